// Package status provides a thread-safe status tracker for the amperage-follower daemon.
// It is read by the HTTP handlers and used to build MQTT lifecycle payloads.
package status

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/amperage-follower/internal/logic"
)

// NetworkInfo contains network state as written by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs               int64
	CheckIntervalMs      int64
	FollowerShutoffLagMs int64
	EventShutoffLagMs    int64
	SampleDurationMs     int64
	TriggerMilliamps     uint32
	HeartbeatMs          int64
	Broker               string
	HTTPAddr             string
}

// Measurement is the most recent current reading.
type Measurement struct {
	Milliamps uint32
	Min       uint16
	Max       uint16
	Samples   int
	At        time.Time
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	BootID        string
	Follower      logic.RelayState
	Event         logic.RelayState
	Outputs       logic.Outputs
	Last          *Measurement
	Counts        logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// staleChecks is how many check intervals may pass without a measurement
// before the snapshot counts as stale.
const staleChecks = 3

// Stale reports whether measurements have stopped arriving: the last one (or
// startup, before the first) is more than staleChecks check intervals old.
// Always false when the check interval is unknown.
func (s Snapshot) Stale() bool {
	if s.Config.CheckIntervalMs <= 0 {
		return false
	}
	since := s.StartTime
	if s.Last != nil {
		since = s.Last.At
	}
	limit := staleChecks * time.Duration(s.Config.CheckIntervalMs) * time.Millisecond
	return s.Now.Sub(since) > limit
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
// Each tracker gets a fresh boot ID so consumers can tell restarts apart.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			BootID:    uuid.NewString(),
			Follower:  logic.StateDeenergized,
			Event:     logic.StateDeenergized,
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update sets relay states, output levels and event counts.
// Called from runLoop on every tick.
func (t *Tracker) Update(follower, event logic.RelayState, out logic.Outputs, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Follower = follower
	t.snap.Event = event
	t.snap.Outputs = out
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMeasurement records the most recent reading.
func (t *Tracker) SetMeasurement(m Measurement) {
	t.mu.Lock()
	t.snap.Last = &m
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.Last != nil {
		m := *s.Last
		s.Last = &m
	}
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
