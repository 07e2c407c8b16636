// Package mqtt publishes buzz and lifecycle events and receives remote
// commands, with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Topic is the MQTT topic for buzz events.
const Topic = "clock/tally/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "clock/tally/system"

// TopicCommand is subscribed to for remote requests.
const TopicCommand = "clock/tally/command"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a buzz event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event BuzzEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Commander delivers commands received on TopicCommand.
type Commander interface {
	OnCommand(handler func(Command))
}

// BuzzEventType marks the start or end of a pattern playback.
type BuzzEventType string

const (
	BuzzStart BuzzEventType = "BUZZ_START"
	BuzzDone  BuzzEventType = "BUZZ_DONE"
)

// BuzzEvent describes one pattern playback.
type BuzzEvent struct {
	Timestamp   time.Time
	Type        BuzzEventType
	RunID       string
	Source      string // "SCHEDULED" or "MANUAL"
	Hour        int
	Minute      int
	Description string
	Pulses      int
	Duration    time.Duration
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "RELOAD"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Buzz BuzzPayload `json:"buzz"`
}

// BuzzPayload contains the buzz event details.
type BuzzPayload struct {
	Timestamp   string `json:"timestamp"`
	Event       string `json:"event"`
	RunID       string `json:"run_id"`
	Source      string `json:"source"`
	Time        string `json:"time"`
	Description string `json:"description"`
	Pulses      int    `json:"pulses"`
	DurationMs  int64  `json:"duration_ms"`
}

// FormatPayload creates the JSON payload for a buzz event.
func FormatPayload(event BuzzEvent) ([]byte, error) {
	payload := Payload{
		Buzz: BuzzPayload{
			Timestamp:   event.Timestamp.UTC().Format(time.RFC3339),
			Event:       string(event.Type),
			RunID:       event.RunID,
			Source:      event.Source,
			Time:        fmt.Sprintf("%02d:%02d", event.Hour, event.Minute),
			Description: event.Description,
			Pulses:      event.Pulses,
			DurationMs:  event.Duration.Milliseconds(),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RELOAD) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// CommandFeelNow asks the clock to play the current time immediately.
const CommandFeelNow = "FEEL_NOW"

// Command is a request received on TopicCommand.
type Command struct {
	Name string `json:"command"`
}

// ParseCommand decodes a command payload, e.g. {"command":"FEEL_NOW"}.
// The name is upper-cased; an empty name is an error.
func ParseCommand(payload []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(payload, &c); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	c.Name = strings.ToUpper(strings.TrimSpace(c.Name))
	if c.Name == "" {
		return Command{}, fmt.Errorf("decode command: missing command name")
	}
	return c, nil
}
