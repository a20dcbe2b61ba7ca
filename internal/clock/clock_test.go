package clock

import (
	"math"
	"testing"
	"time"

	"github.com/sweeney/amperage-follower/internal/logic"
)

func TestMonotonicStartsNearZero(t *testing.T) {
	m := NewMonotonic()
	if now := m.Now(); now > 1000 {
		t.Errorf("expected a fresh clock near 0, got %d", now)
	}
}

func TestMonotonicAdvances(t *testing.T) {
	m := &Monotonic{start: time.Now().Add(-1500 * time.Millisecond)}
	now := m.Now()
	if now < 1500 || now > 2500 {
		t.Errorf("expected ~1500 ms, got %d", now)
	}
}

func TestMonotonicWall(t *testing.T) {
	m := &Monotonic{start: time.Now().Add(-10 * time.Second)}
	wall := m.Wall(m.Now() - 2000)
	diff := time.Since(wall)
	if diff < 1900*time.Millisecond || diff > 3*time.Second {
		t.Errorf("expected wall time ~2s ago, got %v ago", diff)
	}
}

func TestFakeSteps(t *testing.T) {
	f := NewFake(100, 10)
	for i, want := range []logic.Timestamp{100, 110, 120} {
		if got := f.Now(); got != want {
			t.Errorf("call %d: expected %d, got %d", i, want, got)
		}
	}
	if f.Calls != 3 {
		t.Errorf("expected 3 calls, got %d", f.Calls)
	}
}

func TestFakeWraps(t *testing.T) {
	f := NewFake(math.MaxUint32, 1)
	f.Now()
	if got := f.Now(); got != 0 {
		t.Errorf("expected wrap to 0, got %d", got)
	}
}

func TestFakeSet(t *testing.T) {
	f := NewFake(0, 0)
	f.Set(5000)
	if got := f.Now(); got != 5000 {
		t.Errorf("expected 5000, got %d", got)
	}
}
