// Package capi provides the server-side Meta Conversions API client.
package capi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AuroraHealth/aurora-go/pkg/config"
	"github.com/cenkalti/backoff/v4"
)

// UserData carries the visitor identifiers Meta uses for matching.
// Email is hashed before it leaves the process; the rest is sent as-is.
type UserData struct {
	Email     string
	IP        string
	UserAgent string
	FBC       string // _fbc cookie
	FBP       string // _fbp cookie
}

// Event is one conversion event destined for the Conversions API.
type Event struct {
	EventName      string
	EventTime      time.Time
	EventID        string // for pixel/CAPI dedup
	EventSourceURL string
	UserData       UserData
	CustomData     map[string]any
}

// Service defines the interface for sending conversion events.
type Service interface {
	SendEvents(events []Event) error
}

// Client posts conversion events to graph.facebook.com.
type Client struct {
	pixelID     string
	accessToken string
	apiVersion  string
	httpClient  *http.Client
	maxRetries  int
}

// NewService creates a Conversions API client from configuration.
// Returns an error when the pixel ID or access token is missing; callers
// treat that as "CAPI disabled".
func NewService() (Service, error) {
	if config.MetaPixelID == "" {
		return nil, fmt.Errorf("META_PIXEL_ID environment variable is required")
	}
	if config.MetaCAPIAccessToken == "" {
		return nil, fmt.Errorf("META_CAPI_ACCESS_TOKEN environment variable is required")
	}

	return &Client{
		pixelID:     config.MetaPixelID,
		accessToken: config.MetaCAPIAccessToken,
		apiVersion:  config.MetaAPIVersion,
		httpClient:  &http.Client{Timeout: config.DeliveryTimeout},
		maxRetries:  config.DeliveryMaxRetries,
	}, nil
}

// SendEvents delivers a batch of conversion events, retrying transient
// failures with exponential backoff.
func (c *Client) SendEvents(events []Event) error {
	if len(events) == 0 {
		return nil
	}

	payload := map[string]any{"data": make([]map[string]any, 0, len(events))}
	entries := payload["data"].([]map[string]any)
	for _, evt := range events {
		entries = append(entries, c.buildEntry(evt))
	}
	payload["data"] = entries

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal CAPI payload: %w", err)
	}

	url := fmt.Sprintf("https://graph.facebook.com/%s/%s/events?access_token=%s",
		c.apiVersion, c.pixelID, c.accessToken)

	operation := func() error {
		resp, err := c.httpClient.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			err := fmt.Errorf("CAPI returned %d: %s", resp.StatusCode, string(respBody))
			if resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries))
	return backoff.Retry(operation, policy)
}

func (c *Client) buildEntry(evt Event) map[string]any {
	userData := map[string]any{}
	if evt.UserData.Email != "" {
		userData["em"] = []string{hashIdentifier(evt.UserData.Email)}
	}
	if evt.UserData.IP != "" {
		userData["client_ip_address"] = evt.UserData.IP
	}
	if evt.UserData.UserAgent != "" {
		userData["client_user_agent"] = evt.UserData.UserAgent
	}
	if evt.UserData.FBC != "" {
		userData["fbc"] = evt.UserData.FBC
	}
	if evt.UserData.FBP != "" {
		userData["fbp"] = evt.UserData.FBP
	}

	eventTime := evt.EventTime
	if eventTime.IsZero() {
		eventTime = time.Now()
	}

	entry := map[string]any{
		"event_name":    evt.EventName,
		"event_time":    eventTime.Unix(),
		"action_source": "website",
		"user_data":     userData,
	}
	if evt.EventSourceURL != "" {
		entry["event_source_url"] = evt.EventSourceURL
	}
	if evt.EventID != "" {
		entry["event_id"] = evt.EventID
	}
	if evt.CustomData != nil {
		entry["custom_data"] = evt.CustomData
	}
	return entry
}

// hashIdentifier normalizes and hashes a match identifier per Meta's rules.
func hashIdentifier(value string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(value))))
	return hex.EncodeToString(sum[:])
}
