// Package events emits fire-and-forget webhook notifications when the
// conversation changes mode. Nothing is sent unless an endpoint is configured.
package events

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"
)

const (
	// Event types
	EventBroadcastSent = "broadcast_sent"
	EventFocusEntered  = "focus_entered"
	EventFocusExited   = "focus_exited"
)

// Event is the JSON payload posted to the endpoint
type Event struct {
	Type      string            `json:"type"`
	Source    string            `json:"source"`
	Timestamp int64             `json:"timestamp"`
	Data      map[string]string `json:"data,omitempty"`
}

// Client posts events to a webhook endpoint
type Client struct {
	endpoint   string
	httpClient *http.Client
	enabled    bool
}

// NewClient creates a client for endpoint. An empty endpoint yields a
// disabled client whose methods do nothing.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 2 * time.Second, // Short timeout for fire-and-forget
		},
		enabled: endpoint != "",
	}
}

// Emit sends an event asynchronously
func (c *Client) Emit(eventType string, data map[string]string) {
	if c == nil || !c.enabled {
		return
	}

	event := Event{
		Type:      eventType,
		Source:    "polychat",
		Timestamp: time.Now().Unix(),
		Data:      data,
	}

	go c.send(event)
}

// send performs the actual HTTP POST (runs in goroutine)
func (c *Client) send(event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("[events] failed to marshal event: %v", err)
		return
	}

	resp, err := c.httpClient.Post(c.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[events] delivery failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Printf("[events] event rejected with status %d", resp.StatusCode)
	}
}

// BroadcastSent emits a broadcast_sent event
func (c *Client) BroadcastSent(roundID string, modelCount int) {
	c.Emit(EventBroadcastSent, map[string]string{
		"round_id": roundID,
		"models":   strconv.Itoa(modelCount),
	})
}

// FocusEntered emits a focus_entered event
func (c *Client) FocusEntered(modelID, modelName string) {
	c.Emit(EventFocusEntered, map[string]string{
		"model_id":   modelID,
		"model_name": truncate(modelName, 100),
	})
}

// FocusExited emits a focus_exited event with the length of the dropped history
func (c *Client) FocusExited(modelID string, turns int) {
	c.Emit(EventFocusExited, map[string]string{
		"model_id": modelID,
		"turns":    strconv.Itoa(turns),
	})
}

// truncate limits a string to maxLen runes
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
