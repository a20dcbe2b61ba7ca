// Package logic contains the pure relay hysteresis controller.
// This package has NO external dependencies (no GPIO, ADC, MQTT, OS, or time.Sleep).
// Time is always injected as a wrapping millisecond Timestamp.
package logic

import "time"

// RelayState represents the logical state of a relay and its indicator.
type RelayState string

const (
	StateEnergized    RelayState = "ENERGIZED"
	StateShuttingDown RelayState = "SHUTTING_DOWN"
	StateDeenergized  RelayState = "DEENERGIZED"
)

// Active reports whether the relay contact is closed in this state.
// ShuttingDown keeps the contact closed until its deadline.
func (s RelayState) Active() bool {
	return s == StateEnergized || s == StateShuttingDown
}

// Timestamp is a millisecond tick counter that wraps at 32 bits.
type Timestamp uint32

// Add returns t advanced by d, wrapping on overflow.
func (t Timestamp) Add(d time.Duration) Timestamp {
	return t + Timestamp(uint32(d.Milliseconds()))
}

// Sub returns the milliseconds elapsed from earlier to t, modulo 2^32.
func (t Timestamp) Sub(earlier Timestamp) uint32 {
	return uint32(t - earlier)
}

// After reports whether t is strictly past deadline.
// Valid as long as the two are less than 2^31 ms (~24.8 days) apart.
func (t Timestamp) After(deadline Timestamp) bool {
	return int32(t-deadline) > 0
}

// Relay identifies one of the two controlled relays.
type Relay string

const (
	RelayFollower Relay = "follower"
	RelayEvent    Relay = "event"
)

// EventType represents a relay state transition.
type EventType string

const (
	EventFollowerEnergized    EventType = "FOLLOWER_ENERGIZED"
	EventFollowerShuttingDown EventType = "FOLLOWER_SHUTTING_DOWN"
	EventFollowerDeenergized  EventType = "FOLLOWER_DEENERGIZED"
	EventEventEnergized       EventType = "EVENT_ENERGIZED"
	EventEventDeenergized     EventType = "EVENT_DEENERGIZED"
)

// Event represents a relay transition to be published.
type Event struct {
	Timestamp Timestamp
	Type      EventType
	Relay     Relay
	From      RelayState
	To        RelayState
	Milliamps uint32 // reading that caused the transition; 0 for deadline transitions
}

// Outputs holds the four output levels derived from the controller state.
// true = active (relay closed / LED lit).
type Outputs struct {
	FollowerRelay bool
	FollowerLED   bool
	EventRelay    bool
	EventLED      bool
}

// Config holds controller tuning.
type Config struct {
	TriggerMilliamps   uint32
	CheckInterval      time.Duration
	FollowerShutoffLag time.Duration
	EventShutoffLag    time.Duration
}

// DefaultConfig returns the stock tuning of the follower box.
func DefaultConfig() Config {
	return Config{
		TriggerMilliamps:   250,
		CheckInterval:      5 * time.Second,
		FollowerShutoffLag: 5 * time.Second,
		EventShutoffLag:    500 * time.Millisecond,
	}
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	FollowerEnergized    int
	FollowerShuttingDown int
	FollowerDeenergized  int
	EventEnergized       int
	EventDeenergized     int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp     Timestamp
	Uptime        time.Duration
	Counts        EventCounts
	LastMilliamps uint32
}
