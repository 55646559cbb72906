package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeStatusPublished is sent when an update passes the publish gate
	EventTypeStatusPublished EventType = "status_published"
	// EventTypePublishRejected is sent when the publish gate blocks a draft
	EventTypePublishRejected EventType = "publish_rejected"
	// EventTypeLeakDetection is sent when a draft or validated text carried findings
	EventTypeLeakDetection EventType = "leak_detection"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// StatusPublishedEvent carries a newly published update
type StatusPublishedEvent struct {
	Timestamp string `json:"ts"`
	Draft     string `json:"draft"`
}

// LeakDetectionEvent summarises findings by category. Matched values are
// never broadcast.
type LeakDetectionEvent struct {
	Source        string         `json:"source"` // draft, publish or validate
	Categories    map[string]int `json:"categories"`
	TotalFindings int            `json:"total_findings"`
	Blocked       bool           `json:"blocked"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
	Message  string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type   string      `json:"type"`
	Events []EventType `json:"events,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan Event
	ConnectedAt time.Time
	IP          string
	UserAgent   string

	// nil means every event type
	subscription map[EventType]bool
}
