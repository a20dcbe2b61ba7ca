package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string           `json:"event,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	BootID        string           `json:"boot_id"`
	Follower      RelayJSON        `json:"follower"`
	EventRelay    RelayJSON        `json:"event_relay"`
	Measurement   *MeasurementJSON `json:"measurement,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	StartTime     string           `json:"start_time"`
	Timestamp     string           `json:"timestamp"`
	MQTT          MQTTStatus       `json:"mqtt"`
	Counts        CountsJSON       `json:"event_counts"`
	Network       *NetworkJSON     `json:"network,omitempty"`
	Config        ConfigJSON       `json:"config"`
}

// RelayJSON reports one relay's state and output levels.
type RelayJSON struct {
	State     string `json:"state"`
	Contact   bool   `json:"contact"`
	Indicator bool   `json:"indicator"`
}

// MeasurementJSON is the JSON representation of the last reading.
type MeasurementJSON struct {
	Milliamps uint32 `json:"milliamps"`
	Min       uint16 `json:"min"`
	Max       uint16 `json:"max"`
	Samples   int    `json:"samples"`
	Timestamp string `json:"timestamp"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	FollowerEnergized    int `json:"follower_energized"`
	FollowerShuttingDown int `json:"follower_shutting_down"`
	FollowerDeenergized  int `json:"follower_deenergized"`
	EventEnergized       int `json:"event_energized"`
	EventDeenergized     int `json:"event_deenergized"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs               int64  `json:"poll_ms"`
	CheckIntervalMs      int64  `json:"check_interval_ms"`
	FollowerShutoffLagMs int64  `json:"follower_shutoff_lag_ms"`
	EventShutoffLagMs    int64  `json:"event_shutoff_lag_ms"`
	SampleDurationMs     int64  `json:"sample_duration_ms"`
	TriggerMilliamps     uint32 `json:"trigger_milliamps"`
	HeartbeatMs          int64  `json:"heartbeat_ms"`
	Broker               string `json:"broker"`
	HTTPAddr             string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		BootID: snap.BootID,
		Follower: RelayJSON{
			State:     stateOrUnknown(string(snap.Follower)),
			Contact:   snap.Outputs.FollowerRelay,
			Indicator: snap.Outputs.FollowerLED,
		},
		EventRelay: RelayJSON{
			State:     stateOrUnknown(string(snap.Event)),
			Contact:   snap.Outputs.EventRelay,
			Indicator: snap.Outputs.EventLED,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			FollowerEnergized:    snap.Counts.FollowerEnergized,
			FollowerShuttingDown: snap.Counts.FollowerShuttingDown,
			FollowerDeenergized:  snap.Counts.FollowerDeenergized,
			EventEnergized:       snap.Counts.EventEnergized,
			EventDeenergized:     snap.Counts.EventDeenergized,
		},
		Config: ConfigJSON{
			PollMs:               snap.Config.PollMs,
			CheckIntervalMs:      snap.Config.CheckIntervalMs,
			FollowerShutoffLagMs: snap.Config.FollowerShutoffLagMs,
			EventShutoffLagMs:    snap.Config.EventShutoffLagMs,
			SampleDurationMs:     snap.Config.SampleDurationMs,
			TriggerMilliamps:     snap.Config.TriggerMilliamps,
			HeartbeatMs:          snap.Config.HeartbeatMs,
			Broker:               snap.Config.Broker,
			HTTPAddr:             snap.Config.HTTPAddr,
		},
	}

	if m := snap.Last; m != nil {
		inner.Measurement = &MeasurementJSON{
			Milliamps: m.Milliamps,
			Min:       m.Min,
			Max:       m.Max,
			Samples:   m.Samples,
			Timestamp: m.At.UTC().Format(time.RFC3339),
		}
	}
	if n := snap.Network; n != nil {
		inner.Network = &NetworkJSON{
			Type:       n.Type,
			IP:         n.IP,
			Status:     n.Status,
			Gateway:    n.Gateway,
			WifiStatus: n.WifiStatus,
			SSID:       n.SSID,
		}
	}
	return inner
}

func stateOrUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
