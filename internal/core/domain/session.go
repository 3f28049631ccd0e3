package domain

import "time"

type SessionID string
type SinkID string

// SinkState is the continuity controller's state.
type SinkState string

const (
	SinkUnmounted SinkState = "unmounted"
	SinkMounted   SinkState = "mounted"
)

// SessionSnapshot is the read-only view of a call session.
type SessionSnapshot struct {
	ID        SessionID    `json:"id"`
	System    VideoSystem  `json:"system"`
	Quality   VideoQuality `json:"quality"`
	SinkState SinkState    `json:"sink_state"`
	SinkID    SinkID       `json:"sink_id,omitempty"`
	Streams   int          `json:"streams"`
	CreatedAt time.Time    `json:"created_at"`
}

type EventType string

const (
	EventSessionStarted  EventType = "session_started"
	EventSinkMounted     EventType = "sink_mounted"
	EventSinkUnmounted   EventType = "sink_unmounted"
	EventDevicesReleased EventType = "devices_released"
	EventSessionEnded    EventType = "session_ended"
	EventConfigUpdated   EventType = "config_updated"
)

type SessionEvent struct {
	Type      EventType              `json:"type"`
	SessionID SessionID              `json:"session_id,omitempty"`
	SinkID    SinkID                 `json:"sink_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
