package logic

import "time"

// blinkPeriodMs is the indicator blink window while a relay is shutting down.
const blinkPeriodMs = 1000

// Controller owns the follower and event relay state machines.
// It is not safe for concurrent use; the run loop is its only owner.
type Controller struct {
	cfg Config

	follower      RelayState
	event         RelayState
	followerOffAt Timestamp
	eventOffAt    Timestamp
	lastCheckAt   Timestamp

	lastMilliamps uint32
	eventCounts   EventCounts
	startTime     Timestamp
	lastHeartbeat Timestamp
}

// NewController creates a controller with both relays de-energized.
// The startTime is used for calculating uptime in heartbeat events.
func NewController(cfg Config, startTime Timestamp) *Controller {
	return &Controller{
		cfg:           cfg,
		follower:      StateDeenergized,
		event:         StateDeenergized,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// CheckDue reports whether the check interval has elapsed since the last measurement.
func (c *Controller) CheckDue(now Timestamp) bool {
	return now.Sub(c.lastCheckAt) >= uint32(c.cfg.CheckInterval.Milliseconds())
}

// Measure applies a fresh current reading taken at now.
// Only the follower's Energized->ShuttingDown edge arms the event relay.
func (c *Controller) Measure(milliamps uint32, now Timestamp) []Event {
	c.lastCheckAt = now
	c.lastMilliamps = milliamps

	var events []Event
	if milliamps >= c.cfg.TriggerMilliamps {
		events = c.setFollower(events, StateEnergized, now, milliamps)
		// A fresh breach cancels any pending event countdown.
		events = c.setEvent(events, StateDeenergized, now, milliamps)
		return c.count(events)
	}

	if c.follower != StateEnergized {
		return nil
	}
	c.followerOffAt = now.Add(c.cfg.FollowerShutoffLag)
	events = c.setFollower(events, StateShuttingDown, now, milliamps)
	c.eventOffAt = now.Add(c.cfg.EventShutoffLag)
	events = c.setEvent(events, StateEnergized, now, milliamps)
	return c.count(events)
}

// Tick applies deadline-driven transitions. It must be called on every
// scheduler tick, since deadlines can expire between measurements.
func (c *Controller) Tick(now Timestamp) []Event {
	var events []Event
	if c.follower == StateShuttingDown && now.After(c.followerOffAt) {
		events = c.setFollower(events, StateDeenergized, now, 0)
	}
	if c.event != StateDeenergized && now.After(c.eventOffAt) && c.follower != StateEnergized {
		events = c.setEvent(events, StateDeenergized, now, 0)
	}
	return c.count(events)
}

// Update applies a measurement and the deadline checks at now and returns
// the resulting output levels.
func (c *Controller) Update(milliamps uint32, now Timestamp) Outputs {
	c.Measure(milliamps, now)
	c.Tick(now)
	return c.Outputs(now)
}

// Outputs maps the current relay states to output levels at now.
func (c *Controller) Outputs(now Timestamp) Outputs {
	return Outputs{
		FollowerRelay: c.follower.Active(),
		FollowerLED:   IndicatorLevel(c.follower, now),
		EventRelay:    c.event.Active(),
		EventLED:      IndicatorLevel(c.event, now),
	}
}

// IndicatorLevel returns the LED level for a relay state at now.
// While shutting down the LED is lit for ms in [0,250) and (500,750) of
// each second; 500 and 750 themselves are dark.
func IndicatorLevel(s RelayState, now Timestamp) bool {
	switch s {
	case StateEnergized:
		return true
	case StateShuttingDown:
		ms := uint32(now) % blinkPeriodMs
		return ms < 250 || (ms > 500 && ms < 750)
	default:
		return false
	}
}

// CurrentState returns the follower and event relay states.
func (c *Controller) CurrentState() (follower, event RelayState) {
	return c.follower, c.event
}

// Deadlines returns the follower and event off deadlines.
// A deadline is only meaningful while its relay is not de-energized.
func (c *Controller) Deadlines() (followerOffAt, eventOffAt Timestamp) {
	return c.followerOffAt, c.eventOffAt
}

// LastCheckAt returns the time of the most recent measurement.
func (c *Controller) LastCheckAt() Timestamp {
	return c.lastCheckAt
}

// LastMilliamps returns the most recent measurement.
func (c *Controller) LastMilliamps() uint32 {
	return c.lastMilliamps
}

// EventCountsSnapshot returns a copy of the event counters.
func (c *Controller) EventCountsSnapshot() EventCounts {
	return c.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if interval is <= 0 (disabled).
func (c *Controller) CheckHeartbeat(now Timestamp, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(c.lastHeartbeat) < uint32(interval.Milliseconds()) {
		return nil
	}

	c.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp:     now,
		Uptime:        time.Duration(now.Sub(c.startTime)) * time.Millisecond,
		Counts:        c.eventCounts,
		LastMilliamps: c.lastMilliamps,
	}
}

func (c *Controller) setFollower(events []Event, to RelayState, now Timestamp, milliamps uint32) []Event {
	from := c.follower
	if from == to {
		return events
	}
	c.follower = to
	return append(events, Event{
		Timestamp: now,
		Type:      followerEventType(to),
		Relay:     RelayFollower,
		From:      from,
		To:        to,
		Milliamps: milliamps,
	})
}

func (c *Controller) setEvent(events []Event, to RelayState, now Timestamp, milliamps uint32) []Event {
	from := c.event
	if from == to {
		return events
	}
	c.event = to
	typ := EventEventDeenergized
	if to.Active() {
		typ = EventEventEnergized
	}
	return append(events, Event{
		Timestamp: now,
		Type:      typ,
		Relay:     RelayEvent,
		From:      from,
		To:        to,
		Milliamps: milliamps,
	})
}

func (c *Controller) count(events []Event) []Event {
	for _, e := range events {
		switch e.Type {
		case EventFollowerEnergized:
			c.eventCounts.FollowerEnergized++
		case EventFollowerShuttingDown:
			c.eventCounts.FollowerShuttingDown++
		case EventFollowerDeenergized:
			c.eventCounts.FollowerDeenergized++
		case EventEventEnergized:
			c.eventCounts.EventEnergized++
		case EventEventDeenergized:
			c.eventCounts.EventDeenergized++
		}
	}
	return events
}

func followerEventType(to RelayState) EventType {
	switch to {
	case StateEnergized:
		return EventFollowerEnergized
	case StateShuttingDown:
		return EventFollowerShuttingDown
	default:
		return EventFollowerDeenergized
	}
}
