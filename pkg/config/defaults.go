// Package config provides centralized default values for Aurora
package config

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		file, err := os.Open(".env")
		if err != nil {
			return
		}
		defer file.Close()

		log.Println("Loading configuration overrides from .env file...")
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvSecret(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	CORSOrigins        []string

	// Database
	DatabasePath             string
	DatabaseURL              string
	DatabaseAuthToken        string
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	DBConnMaxIdleMinutes     int
	SlowQueryThreshold       time.Duration

	// Funnel definition cache
	DefinitionCacheTTL time.Duration

	// Data export + admin auth
	DataAPIKey        string
	AdminPasswordHash string
	JWTSecret         string
	JWTExpiry         time.Duration
	ExportMaxLimit    int

	// Analytics delivery
	DeliveryMaxRetries  int
	DeliveryTimeout     time.Duration
	EmitterDrainTimeout time.Duration

	// Meta Conversions API
	MetaPixelID         string
	MetaCAPIAccessToken string
	MetaAPIVersion      string

	// Email (Resend)
	ResendAPIKey    string
	EmailFrom       string
	LeadNotifyEmail string

	// Live feed
	LiveSendBuffer   int
	LivePingInterval time.Duration

	// Logging
	LogLevel string
	LogDir   string
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)
	CORSOrigins = splitCSV(getEnvString("CORS_ORIGINS", "*"))

	// Database
	DatabasePath = getEnvString("AURORA_DB_PATH", "aurora.db")
	DatabaseURL = getEnvSecret("AURORA_DATABASE_URL", "")
	DatabaseAuthToken = getEnvSecret("AURORA_DATABASE_AUTH_TOKEN", "")
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	DBConnMaxIdleMinutes = getEnvInt("DB_CONN_MAX_IDLE_MINUTES", 3)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 100*time.Millisecond)

	// Funnel definition cache
	DefinitionCacheTTL = getEnvDuration("DEFINITION_CACHE_TTL", 5*time.Minute)

	// Data export + admin auth
	DataAPIKey = getEnvSecret("DATA_API_KEY", "")
	AdminPasswordHash = getEnvSecret("ADMIN_PASSWORD_HASH", "")
	JWTSecret = getEnvSecret("JWT_SECRET", "")
	JWTExpiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)
	ExportMaxLimit = getEnvInt("EXPORT_MAX_LIMIT", 1000)

	// Analytics delivery
	DeliveryMaxRetries = getEnvInt("DELIVERY_MAX_RETRIES", 3)
	DeliveryTimeout = getEnvDuration("DELIVERY_TIMEOUT", 10*time.Second)
	EmitterDrainTimeout = getEnvDuration("EMITTER_DRAIN_TIMEOUT", 5*time.Second)

	// Meta Conversions API
	MetaPixelID = getEnvString("META_PIXEL_ID", "")
	MetaCAPIAccessToken = getEnvSecret("META_CAPI_ACCESS_TOKEN", "")
	MetaAPIVersion = getEnvString("META_API_VERSION", "v22.0")

	// Email (Resend)
	ResendAPIKey = getEnvSecret("RESEND_API_KEY", "")
	EmailFrom = getEnvString("EMAIL_FROM", "Aurora <hello@aurora.health>")
	LeadNotifyEmail = getEnvString("LEAD_NOTIFY_EMAIL", "")

	// Live feed
	LiveSendBuffer = getEnvInt("LIVE_SEND_BUFFER", 64)
	LivePingInterval = getEnvDuration("LIVE_PING_INTERVAL", 30*time.Second)

	// Logging
	LogLevel = getEnvString("LOG_LEVEL", "INFO")
	LogDir = getEnvString("LOG_DIR", "")
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
