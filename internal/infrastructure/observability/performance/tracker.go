package performance

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Tracker manages performance markers and threshold alerts
type Tracker struct {
	markers    map[string]*Marker
	alerts     []*Alert
	thresholds *AlertThresholds
	mu         sync.RWMutex
	started    time.Time
	config     *TrackerConfig
}

// TrackerConfig contains configuration options for the performance tracker
type TrackerConfig struct {
	MaxMarkers   int           `json:"maxMarkers"`   // Maximum number of markers to retain
	MaxAlerts    int           `json:"maxAlerts"`    // Maximum number of alerts to retain
	RetainFor    time.Duration `json:"retainFor"`    // How long completed markers are kept
	EnableAlerts bool          `json:"enableAlerts"` // Whether to generate performance alerts
}

// DefaultTrackerConfig returns a sensible default configuration
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		MaxMarkers:   10000,
		MaxAlerts:    500,
		RetainFor:    time.Hour,
		EnableAlerts: true,
	}
}

// AlertThresholds defines performance thresholds for generating alerts
type AlertThresholds struct {
	SlowResponseThreshold     time.Duration `json:"slowResponseThreshold"`
	CriticalResponseThreshold time.Duration `json:"criticalResponseThreshold"`

	IngestOperationThreshold time.Duration `json:"ingestOperationThreshold"`
	ExportQueryThreshold     time.Duration `json:"exportQueryThreshold"`
	DatabaseQueryThreshold   time.Duration `json:"databaseQueryThreshold"`
}

// DefaultAlertThresholds returns sensible default alert thresholds
func DefaultAlertThresholds() *AlertThresholds {
	return &AlertThresholds{
		SlowResponseThreshold:     time.Millisecond * 500,
		CriticalResponseThreshold: time.Second * 5,
		IngestOperationThreshold:  time.Millisecond * 200,
		ExportQueryThreshold:      time.Second * 1,
		DatabaseQueryThreshold:    time.Millisecond * 50,
	}
}

// NewTracker creates a new performance tracker with the given configuration
func NewTracker(config *TrackerConfig) *Tracker {
	if config == nil {
		config = DefaultTrackerConfig()
	}
	return &Tracker{
		markers:    make(map[string]*Marker),
		alerts:     make([]*Alert, 0),
		thresholds: DefaultAlertThresholds(),
		started:    time.Now(),
		config:     config,
	}
}

// StartOperation creates and tracks a new performance marker for an operation
func (t *Tracker) StartOperation(operation string) *Marker {
	marker := &Marker{
		Operation: operation,
		StartTime: time.Now(),
		Metadata:  make(map[string]any),
		Success:   true,
	}

	markerID := fmt.Sprintf("%s_%d", operation, time.Now().UnixNano())

	t.mu.Lock()
	t.markers[markerID] = marker
	t.mu.Unlock()

	return marker
}

// CompleteOperation manually completes an operation and checks for alerts
func (t *Tracker) CompleteOperation(marker *Marker) {
	if marker == nil || marker.Completed {
		return
	}

	marker.Complete()

	if t.config.EnableAlerts {
		t.checkForAlerts(marker)
	}
}

// checkForAlerts evaluates a completed marker against alert thresholds
func (t *Tracker) checkForAlerts(marker *Marker) {
	if marker == nil || !marker.Completed {
		return
	}

	alerts := t.evaluateThresholds(marker)

	t.mu.Lock()
	for _, alert := range alerts {
		t.alerts = append(t.alerts, alert)
		if len(t.alerts) > t.config.MaxAlerts {
			t.alerts = t.alerts[len(t.alerts)-t.config.MaxAlerts:]
		}
	}
	t.mu.Unlock()
}

// evaluateThresholds checks a marker against all relevant thresholds
func (t *Tracker) evaluateThresholds(marker *Marker) []*Alert {
	var alerts []*Alert

	if marker.Duration > t.thresholds.CriticalResponseThreshold {
		alerts = append(alerts, t.createAlert(marker, AlertCritical,
			"Operation exceeded critical response time threshold"))
	} else if marker.Duration > t.thresholds.SlowResponseThreshold {
		alerts = append(alerts, t.createAlert(marker, AlertWarning,
			"Operation exceeded slow response time threshold"))
	}

	switch {
	case strings.Contains(marker.Operation, "ingest"):
		if marker.Duration > t.thresholds.IngestOperationThreshold {
			alerts = append(alerts, t.createAlert(marker, AlertWarning,
				"Ingest operation exceeded threshold"))
		}
	case strings.Contains(marker.Operation, "export"):
		if marker.Duration > t.thresholds.ExportQueryThreshold {
			alerts = append(alerts, t.createAlert(marker, AlertWarning,
				"Export query exceeded threshold"))
		}
	case strings.Contains(marker.Operation, "db"):
		if marker.Duration > t.thresholds.DatabaseQueryThreshold {
			alerts = append(alerts, t.createAlert(marker, AlertWarning,
				"Database query exceeded threshold"))
		}
	}

	return alerts
}

// createAlert creates a new performance alert
func (t *Tracker) createAlert(marker *Marker, severity AlertSeverity, message string) *Alert {
	return &Alert{
		ID:        fmt.Sprintf("alert_%d", time.Now().UnixNano()),
		Timestamp: time.Now(),
		Severity:  severity,
		Operation: marker.Operation,
		Actual:    marker.Duration,
		Message:   message,
	}
}

// GetRecentMetrics returns metrics for operations completed within the specified duration
func (t *Tracker) GetRecentMetrics(within time.Duration) []Marker {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := time.Now().Add(-within)
	var metrics []Marker

	for _, marker := range t.markers {
		if marker.Completed && marker.EndTime.After(cutoff) {
			metrics = append(metrics, *marker)
		}
	}
	return metrics
}

// GetActiveOperations returns currently running operations
func (t *Tracker) GetActiveOperations() []Marker {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var active []Marker
	for _, marker := range t.markers {
		if !marker.Completed {
			snapshot := *marker
			snapshot.Duration = time.Since(marker.StartTime)
			active = append(active, snapshot)
		}
	}
	return active
}

// GetAlerts returns the retained performance alerts
func (t *Tracker) GetAlerts() []*Alert {
	t.mu.RLock()
	defer t.mu.RUnlock()

	alerts := make([]*Alert, len(t.alerts))
	copy(alerts, t.alerts)
	return alerts
}

// Cleanup removes old markers to prevent unbounded growth
func (t *Tracker) Cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-t.config.RetainFor)
	for id, marker := range t.markers {
		if marker.Completed && marker.EndTime.Before(cutoff) {
			delete(t.markers, id)
		}
	}

	if len(t.markers) > t.config.MaxMarkers {
		count := 0
		for id := range t.markers {
			if count > t.config.MaxMarkers/2 {
				delete(t.markers, id)
			}
			count++
		}
	}
}

// GetOverallStats returns overall tracker statistics
func (t *Tracker) GetOverallStats() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	activeCount := 0
	completedCount := 0
	for _, marker := range t.markers {
		if marker.Completed {
			completedCount++
		} else {
			activeCount++
		}
	}

	return map[string]any{
		"trackerUptime":       time.Since(t.started),
		"totalMarkers":        len(t.markers),
		"activeOperations":    activeCount,
		"completedOperations": completedCount,
		"totalAlerts":         len(t.alerts),
		"memoryUsageMB":       memStats.Alloc / (1024 * 1024),
		"systemMemoryMB":      memStats.Sys / (1024 * 1024),
	}
}
