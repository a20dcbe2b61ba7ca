package logic

import (
	"math"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		TriggerMilliamps:   250,
		CheckInterval:      5 * time.Second,
		FollowerShutoffLag: 5 * time.Second,
		EventShutoffLag:    500 * time.Millisecond,
	}
}

// setupShuttingDown returns a controller that was energized at 0 and dropped
// below threshold at dropAt.
func setupShuttingDown(t *testing.T, dropAt Timestamp) *Controller {
	t.Helper()
	c := NewController(testConfig(), 0)
	c.Measure(300, dropAt-5000)
	c.Measure(50, dropAt)
	f, e := c.CurrentState()
	if f != StateShuttingDown || e != StateEnergized {
		t.Fatalf("setup: expected SHUTTING_DOWN/ENERGIZED, got %s/%s", f, e)
	}
	return c
}

func TestNewController(t *testing.T) {
	c := NewController(testConfig(), 1234)
	f, e := c.CurrentState()
	if f != StateDeenergized {
		t.Errorf("expected follower DEENERGIZED, got %s", f)
	}
	if e != StateDeenergized {
		t.Errorf("expected event DEENERGIZED, got %s", e)
	}
	fo, eo := c.Deadlines()
	if fo != 0 || eo != 0 {
		t.Errorf("expected zero deadlines, got %d/%d", fo, eo)
	}
	if out := c.Outputs(0); out != (Outputs{}) {
		t.Errorf("expected all outputs inactive, got %+v", out)
	}
}

func TestTimestampAfter(t *testing.T) {
	tests := []struct {
		name     string
		now      Timestamp
		deadline Timestamp
		want     bool
	}{
		{"before", 100, 200, false},
		{"equal", 200, 200, false},
		{"after", 201, 200, true},
		{"wrapped past deadline", 5, math.MaxUint32 - 5, true},
		{"deadline wrapped ahead", math.MaxUint32 - 5, 5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.now.After(tt.deadline); got != tt.want {
				t.Errorf("%d.After(%d) = %v, want %v", tt.now, tt.deadline, got, tt.want)
			}
		})
	}
}

func TestTimestampAddWraps(t *testing.T) {
	ts := Timestamp(math.MaxUint32 - 99)
	got := ts.Add(500 * time.Millisecond)
	if got != 400 {
		t.Errorf("expected wrapped timestamp 400, got %d", got)
	}
	if got.Sub(ts) != 500 {
		t.Errorf("expected elapsed 500 across wrap, got %d", got.Sub(ts))
	}
}

func TestMeasureAboveThresholdEnergizes(t *testing.T) {
	c := NewController(testConfig(), 0)

	events := c.Measure(300, 0)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventFollowerEnergized {
		t.Errorf("expected FOLLOWER_ENERGIZED, got %s", events[0].Type)
	}
	if events[0].Milliamps != 300 {
		t.Errorf("expected milliamps 300, got %d", events[0].Milliamps)
	}

	out := c.Outputs(0)
	if !out.FollowerRelay || !out.FollowerLED {
		t.Errorf("expected follower relay and LED active, got %+v", out)
	}
	if out.EventRelay || out.EventLED {
		t.Errorf("expected event relay and LED inactive, got %+v", out)
	}
}

func TestMeasureAtThresholdEnergizes(t *testing.T) {
	c := NewController(testConfig(), 0)
	c.Measure(250, 0)
	f, _ := c.CurrentState()
	if f != StateEnergized {
		t.Errorf("reading equal to trigger should energize, got %s", f)
	}
}

func TestMeasureBelowThresholdWhileDeenergizedIsNoop(t *testing.T) {
	c := NewController(testConfig(), 0)
	events := c.Measure(10, 5000)
	if len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
	f, e := c.CurrentState()
	if f != StateDeenergized || e != StateDeenergized {
		t.Errorf("expected DEENERGIZED/DEENERGIZED, got %s/%s", f, e)
	}
}

func TestMeasureDropStartsShutdown(t *testing.T) {
	c := NewController(testConfig(), 0)
	c.Measure(300, 0)

	events := c.Measure(50, 5000)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != EventFollowerShuttingDown {
		t.Errorf("event 0: expected FOLLOWER_SHUTTING_DOWN, got %s", events[0].Type)
	}
	if events[1].Type != EventEventEnergized {
		t.Errorf("event 1: expected EVENT_ENERGIZED, got %s", events[1].Type)
	}

	fo, eo := c.Deadlines()
	if fo != 10000 {
		t.Errorf("expected followerOffAt 10000, got %d", fo)
	}
	if eo != 5500 {
		t.Errorf("expected eventOffAt 5500, got %d", eo)
	}

	out := c.Outputs(5000)
	if !out.FollowerRelay {
		t.Error("follower contact should stay active while shutting down")
	}
	if !out.EventRelay {
		t.Error("event contact should be active after drop")
	}
}

func TestMeasureWhileShuttingDownIsNoop(t *testing.T) {
	c := setupShuttingDown(t, 5000)

	events := c.Measure(20, 7000)
	if len(events) != 0 {
		t.Errorf("expected no events for repeated low reading, got %d", len(events))
	}
	fo, _ := c.Deadlines()
	if fo != 10000 {
		t.Errorf("deadline must not be pushed out by a repeated low reading, got %d", fo)
	}
}

func TestFollowerDeadline(t *testing.T) {
	c := setupShuttingDown(t, 5000)

	c.Tick(10000)
	f, _ := c.CurrentState()
	if f != StateShuttingDown {
		t.Errorf("at deadline follower should still be SHUTTING_DOWN, got %s", f)
	}

	events := c.Tick(10001)
	f, _ = c.CurrentState()
	if f != StateDeenergized {
		t.Errorf("past deadline follower should be DEENERGIZED, got %s", f)
	}
	if len(events) != 1 || events[0].Type != EventFollowerDeenergized {
		t.Errorf("expected one FOLLOWER_DEENERGIZED event, got %+v", events)
	}
	if c.Outputs(10001).FollowerRelay {
		t.Error("follower contact should be inactive past deadline")
	}
}

func TestEventDeadline(t *testing.T) {
	c := setupShuttingDown(t, 5000)

	c.Tick(5500)
	if _, e := c.CurrentState(); e != StateEnergized {
		t.Errorf("at deadline event should still be ENERGIZED, got %s", e)
	}

	events := c.Tick(5501)
	if _, e := c.CurrentState(); e != StateDeenergized {
		t.Errorf("past deadline event should be DEENERGIZED, got %s", e)
	}
	if len(events) != 1 || events[0].Type != EventEventDeenergized {
		t.Errorf("expected one EVENT_DEENERGIZED event, got %+v", events)
	}
	if !c.Outputs(5501).FollowerRelay {
		t.Error("follower contact should still be active")
	}
}

func TestReenergizeCancelsEventCountdown(t *testing.T) {
	c := setupShuttingDown(t, 5000)

	events := c.Measure(400, 5200)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != EventFollowerEnergized {
		t.Errorf("event 0: expected FOLLOWER_ENERGIZED, got %s", events[0].Type)
	}
	if events[1].Type != EventEventDeenergized {
		t.Errorf("event 1: expected EVENT_DEENERGIZED, got %s", events[1].Type)
	}

	// Stale deadlines must not affect the re-energized relays.
	for _, now := range []Timestamp{5600, 10001, 20000} {
		if events := c.Tick(now); len(events) != 0 {
			t.Errorf("tick %d: expected no events, got %+v", now, events)
		}
		f, e := c.CurrentState()
		if f != StateEnergized || e != StateDeenergized {
			t.Errorf("tick %d: expected ENERGIZED/DEENERGIZED, got %s/%s", now, f, e)
		}
	}
}

func TestEventGuardWhileFollowerEnergized(t *testing.T) {
	// Event relay armed but follower back to Energized without the re-arm
	// reset: the stale event deadline must not cut the event relay.
	c := setupShuttingDown(t, 5000)
	c.follower = StateEnergized

	if events := c.Tick(6000); len(events) != 0 {
		t.Errorf("expected no events, got %+v", events)
	}
	if _, e := c.CurrentState(); e != StateEnergized {
		t.Errorf("event relay should stay ENERGIZED while follower is energized, got %s", e)
	}
}

func TestIndicatorLevel(t *testing.T) {
	tests := []struct {
		ms   Timestamp
		want bool
	}{
		{0, true},
		{249, true},
		{250, false},
		{499, false},
		{500, false},
		{501, true},
		{749, true},
		{750, false},
		{999, false},
		{1000, true},
		{12501, true},
		{12750, false},
	}
	for _, tt := range tests {
		if got := IndicatorLevel(StateShuttingDown, tt.ms); got != tt.want {
			t.Errorf("SHUTTING_DOWN at %d: got %v, want %v", tt.ms, got, tt.want)
		}
	}

	for ms := Timestamp(0); ms < 1000; ms += 50 {
		if !IndicatorLevel(StateEnergized, ms) {
			t.Errorf("ENERGIZED at %d should be on", ms)
		}
		if IndicatorLevel(StateDeenergized, ms) {
			t.Errorf("DEENERGIZED at %d should be off", ms)
		}
	}
}

func TestContactDoesNotBlink(t *testing.T) {
	c := setupShuttingDown(t, 5000)
	for now := Timestamp(5000); now < 10000; now += 125 {
		out := c.Outputs(now)
		if !out.FollowerRelay {
			t.Errorf("follower contact dropped at %d while shutting down", now)
		}
	}
}

func TestEventLEDTracksEventRelay(t *testing.T) {
	c := setupShuttingDown(t, 5000)
	out := c.Outputs(5300) // 300 ms into the blink window
	if !out.EventLED {
		t.Error("event LED should be steady on while event relay is energized")
	}
	if out.FollowerLED {
		t.Error("follower LED should be in the dark phase at 300 ms")
	}
}

func TestCheckDue(t *testing.T) {
	c := NewController(testConfig(), 0)
	if c.CheckDue(4999) {
		t.Error("check should not be due before interval")
	}
	if !c.CheckDue(5000) {
		t.Error("check should be due at interval")
	}
	c.Measure(0, 5000)
	if c.LastCheckAt() != 5000 {
		t.Errorf("expected lastCheckAt 5000, got %d", c.LastCheckAt())
	}
	if c.CheckDue(9999) {
		t.Error("check should not be due before next interval")
	}
	if !c.CheckDue(10000) {
		t.Error("check should be due at next interval")
	}
}

func TestCheckDueAcrossWrap(t *testing.T) {
	c := NewController(testConfig(), 0)
	c.Measure(0, math.MaxUint32-1000)
	if c.CheckDue(3000) {
		t.Error("only 4001 ms elapsed across the wrap")
	}
	if !c.CheckDue(3999) {
		t.Error("5000 ms elapsed across the wrap")
	}
}

func TestShutdownAcrossWrap(t *testing.T) {
	start := Timestamp(math.MaxUint32 - 2000)
	c := NewController(testConfig(), 0)
	c.Measure(300, start)
	c.Measure(50, start)

	fo, _ := c.Deadlines()
	if fo != 2999 {
		t.Fatalf("expected wrapped followerOffAt 2999, got %d", fo)
	}

	// Just before the wrap the deadline is still ahead, not behind.
	c.Tick(math.MaxUint32)
	if f, _ := c.CurrentState(); f != StateShuttingDown {
		t.Errorf("before wrap: expected SHUTTING_DOWN, got %s", f)
	}
	c.Tick(2999)
	if f, _ := c.CurrentState(); f != StateShuttingDown {
		t.Errorf("at deadline: expected SHUTTING_DOWN, got %s", f)
	}
	c.Tick(3000)
	if f, _ := c.CurrentState(); f != StateDeenergized {
		t.Errorf("past deadline: expected DEENERGIZED, got %s", f)
	}
}

func TestUpdate(t *testing.T) {
	c := NewController(testConfig(), 0)

	out := c.Update(300, 0)
	if !out.FollowerRelay || out.EventRelay {
		t.Errorf("T=0: expected follower active, event inactive, got %+v", out)
	}

	out = c.Update(50, 5000)
	if !out.FollowerRelay || !out.EventRelay {
		t.Errorf("T=5000: expected both contacts active, got %+v", out)
	}
}

func TestScenario(t *testing.T) {
	c := NewController(testConfig(), 0)

	c.Measure(300, 0)
	c.Tick(0)
	f, e := c.CurrentState()
	if f != StateEnergized || e != StateDeenergized {
		t.Fatalf("T=0: expected ENERGIZED/DEENERGIZED, got %s/%s", f, e)
	}
	out := c.Outputs(0)
	if !out.FollowerRelay || out.EventRelay {
		t.Errorf("T=0: unexpected outputs %+v", out)
	}

	c.Measure(50, 5000)
	c.Tick(5000)
	f, e = c.CurrentState()
	if f != StateShuttingDown || e != StateEnergized {
		t.Fatalf("T=5000: expected SHUTTING_DOWN/ENERGIZED, got %s/%s", f, e)
	}
	fo, eo := c.Deadlines()
	if fo != 10000 || eo != 5500 {
		t.Errorf("T=5000: expected deadlines 10000/5500, got %d/%d", fo, eo)
	}
	if !c.Outputs(5000).EventRelay {
		t.Error("T=5000: event contact should be active")
	}

	c.Tick(5600)
	out = c.Outputs(5600)
	if out.EventRelay {
		t.Error("T=5600: event contact should be inactive")
	}
	if !out.FollowerRelay {
		t.Error("T=5600: follower contact should be active")
	}

	c.Tick(10001)
	if c.Outputs(10001).FollowerRelay {
		t.Error("T=10001: follower contact should be inactive")
	}
}

func TestEventCounts(t *testing.T) {
	c := NewController(testConfig(), 0)
	c.Measure(300, 0)
	c.Measure(50, 5000)
	c.Tick(6000)
	c.Tick(10001)
	c.Measure(300, 15000)

	counts := c.EventCountsSnapshot()
	want := EventCounts{
		FollowerEnergized:    2,
		FollowerShuttingDown: 1,
		FollowerDeenergized:  1,
		EventEnergized:       1,
		EventDeenergized:     1,
	}
	if counts != want {
		t.Errorf("counts: got %+v, want %+v", counts, want)
	}
}

func TestCheckHeartbeat(t *testing.T) {
	c := NewController(testConfig(), 1000)

	if hb := c.CheckHeartbeat(5000, 0); hb != nil {
		t.Error("heartbeat should be disabled with zero interval")
	}
	if hb := c.CheckHeartbeat(60999, time.Minute); hb != nil {
		t.Error("heartbeat should not fire before interval")
	}

	c.Measure(321, 30000)
	hb := c.CheckHeartbeat(61000, time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat at interval")
	}
	if hb.Uptime != time.Minute {
		t.Errorf("expected uptime 1m, got %v", hb.Uptime)
	}
	if hb.LastMilliamps != 321 {
		t.Errorf("expected last milliamps 321, got %d", hb.LastMilliamps)
	}
	if hb.Counts.FollowerEnergized != 1 {
		t.Errorf("expected 1 FOLLOWER_ENERGIZED in counts, got %d", hb.Counts.FollowerEnergized)
	}

	if hb := c.CheckHeartbeat(61001, time.Minute); hb != nil {
		t.Error("heartbeat should reset after firing")
	}
}
