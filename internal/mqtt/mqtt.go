// Package mqtt provides MQTT telemetry publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/amperage-follower/internal/logic"
)

// Topic is the MQTT topic for relay transition events.
const Topic = "energy/amperage-follower/events"

// TopicMeasurement is the MQTT topic for current measurements.
const TopicMeasurement = "energy/amperage-follower/measurements"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "energy/amperage-follower/system"

// Publisher publishes telemetry to MQTT.
type Publisher interface {
	// Publish sends a relay transition event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event RelayEvent) error

	// PublishMeasurement sends one current measurement.
	PublishMeasurement(m MeasurementEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// RelayEvent is a controller transition stamped with wall-clock time and
// the states of both relays after the transition.
type RelayEvent struct {
	Timestamp time.Time
	Event     logic.Event
	Follower  logic.RelayState
	EventRly  logic.RelayState
}

// MeasurementEvent is one sampling window's result.
type MeasurementEvent struct {
	Timestamp time.Time
	Milliamps uint32
	Min       uint16
	Max       uint16
	Samples   int
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload for relay events.
type Payload struct {
	Relay RelayPayload `json:"relay"`
}

// RelayPayload contains the relay event details.
type RelayPayload struct {
	Timestamp string     `json:"timestamp"`
	Event     string     `json:"event"`
	Relay     string     `json:"relay"`
	From      string     `json:"from"`
	To        string     `json:"to"`
	Milliamps uint32     `json:"milliamps"`
	Follower  RelayState `json:"follower"`
	EventRly  RelayState `json:"event_relay"`
}

// RelayState represents a single relay's state.
type RelayState struct {
	State string `json:"state"`
}

// FormatPayload creates the JSON payload for a relay event.
func FormatPayload(event RelayEvent) ([]byte, error) {
	payload := Payload{
		Relay: RelayPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Event.Type),
			Relay:     string(event.Event.Relay),
			From:      string(event.Event.From),
			To:        string(event.Event.To),
			Milliamps: event.Event.Milliamps,
			Follower:  RelayState{State: string(event.Follower)},
			EventRly:  RelayState{State: string(event.EventRly)},
		},
	}
	return json.Marshal(payload)
}

// MeasurementPayload represents the MQTT message payload for measurements.
type MeasurementPayload struct {
	Measurement MeasurementInner `json:"measurement"`
}

// MeasurementInner contains the measurement details.
type MeasurementInner struct {
	Timestamp string `json:"timestamp"`
	Milliamps uint32 `json:"milliamps"`
	Min       uint16 `json:"min"`
	Max       uint16 `json:"max"`
	Samples   int    `json:"samples"`
}

// FormatMeasurementPayload creates the JSON payload for a measurement.
func FormatMeasurementPayload(m MeasurementEvent) ([]byte, error) {
	return json.Marshal(MeasurementPayload{
		Measurement: MeasurementInner{
			Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
			Milliamps: m.Milliamps,
			Min:       m.Min,
			Max:       m.Max,
			Samples:   m.Samples,
		},
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
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
