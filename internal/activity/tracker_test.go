package activity

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iSamBa/gym-manager-sub011/internal/clock"
)

var testEpoch = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type trackerHarness struct {
	fake      *clock.Fake
	tracker   *Tracker
	warnings  []time.Duration
	inactives int
}

func startHarness(t *testing.T, timeout, lead time.Duration) *trackerHarness {
	t.Helper()
	h := &trackerHarness{fake: clock.NewFake(testEpoch)}
	tr, err := Start(Config{
		InactivityTimeout: timeout,
		WarningLead:       lead,
		OnWarning:         func(remaining time.Duration) { h.warnings = append(h.warnings, remaining) },
		OnInactive:        func() { h.inactives++ },
		Clock:             h.fake,
		Logger:            zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("Failed to start tracker: %v", err)
	}
	h.tracker = tr
	t.Cleanup(tr.Stop)
	return h
}

func TestTracker_WarningThenInactiveAtConfiguredTimes(t *testing.T) {
	// 30 minute timeout with a 5 minute lead: warning at 25 minutes,
	// inactive at 30.
	h := startHarness(t, 1800000*time.Millisecond, 300000*time.Millisecond)

	h.fake.Advance(1499999 * time.Millisecond)
	if len(h.warnings) != 0 {
		t.Fatalf("Expected no warning before the lead point, got %d", len(h.warnings))
	}

	h.fake.Advance(1 * time.Millisecond)
	if len(h.warnings) != 1 {
		t.Fatalf("Expected warning at 1500000ms, got %d warnings", len(h.warnings))
	}
	if h.warnings[0] != 300000*time.Millisecond {
		t.Errorf("Expected 300000ms remaining at warning, got %v", h.warnings[0])
	}
	if h.inactives != 0 {
		t.Fatal("Inactive must not fire before the deadline")
	}

	h.fake.Advance(300000 * time.Millisecond)
	if h.inactives != 1 {
		t.Errorf("Expected inactive at 1800000ms, got %d", h.inactives)
	}
	if len(h.warnings) != 1 {
		t.Errorf("Expected exactly one warning, got %d", len(h.warnings))
	}
}

func TestTracker_InteractionDefersWarning(t *testing.T) {
	h := startHarness(t, 1800000*time.Millisecond, 300000*time.Millisecond)

	h.fake.Advance(1000000 * time.Millisecond)
	h.tracker.Observe(SignalClick)

	// The countdown restarted at 1000000ms, so nothing fires through
	// 2200000ms.
	h.fake.Advance(1200000 * time.Millisecond)
	if len(h.warnings) != 0 {
		t.Fatalf("Expected no warning by 2200000ms, got %d", len(h.warnings))
	}
	if h.inactives != 0 {
		t.Fatal("Expected no inactive transition after interaction")
	}

	h.fake.Advance(300000 * time.Millisecond)
	if len(h.warnings) != 1 {
		t.Errorf("Expected warning at 2500000ms, got %d warnings", len(h.warnings))
	}
}

func TestTracker_ExtendRestartsCountdown(t *testing.T) {
	h := startHarness(t, 30*time.Minute, 5*time.Minute)

	h.fake.Advance(25 * time.Minute)
	if len(h.warnings) != 1 {
		t.Fatalf("Expected warning at 25m, got %d", len(h.warnings))
	}

	// Stay signed in: both timers restart from here.
	h.tracker.Extend()
	h.fake.Advance(24 * time.Minute)
	if len(h.warnings) != 1 {
		t.Fatalf("Expected no second warning before another full interval, got %d", len(h.warnings))
	}

	h.fake.Advance(1 * time.Minute)
	if len(h.warnings) != 2 {
		t.Errorf("Expected second warning a full interval after extend, got %d", len(h.warnings))
	}
	if h.inactives != 0 {
		t.Errorf("Expected no inactive transition, got %d", h.inactives)
	}
}

func TestTracker_ZeroLeadWarnsBeforeInactive(t *testing.T) {
	fake := clock.NewFake(testEpoch)
	var order []string
	tr, err := Start(Config{
		InactivityTimeout: 10 * time.Second,
		WarningLead:       0,
		OnWarning:         func(time.Duration) { order = append(order, "warning") },
		OnInactive:        func() { order = append(order, "inactive") },
		Clock:             fake,
		Logger:            zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("Failed to start tracker: %v", err)
	}
	defer tr.Stop()

	fake.Advance(10 * time.Second)

	if len(order) != 2 {
		t.Fatalf("Expected 2 callbacks, got %d: %v", len(order), order)
	}
	if order[0] != "warning" || order[1] != "inactive" {
		t.Errorf("Expected warning before inactive, got %v", order)
	}
}

func TestTracker_WarningFiresOncePerIdlePeriod(t *testing.T) {
	h := startHarness(t, 30*time.Minute, 5*time.Minute)

	h.fake.Advance(25 * time.Minute)
	h.fake.Advance(2 * time.Minute)
	if len(h.warnings) != 1 {
		t.Fatalf("Expected one warning per idle period, got %d", len(h.warnings))
	}

	// Only activity clears the warned state and permits another.
	h.tracker.Observe(SignalKeyPress)
	h.fake.Advance(25 * time.Minute)
	if len(h.warnings) != 2 {
		t.Errorf("Expected a fresh warning after activity, got %d", len(h.warnings))
	}
}

func TestTracker_TimeRemaining(t *testing.T) {
	h := startHarness(t, 30*time.Minute, 5*time.Minute)

	if got := h.tracker.TimeRemaining(); got != 30*time.Minute {
		t.Errorf("Expected full timeout remaining at start, got %v", got)
	}

	h.fake.Advance(10 * time.Minute)
	if got := h.tracker.TimeRemaining(); got != 20*time.Minute {
		t.Errorf("Expected 20m remaining, got %v", got)
	}

	// Reading must not reset anything.
	if got := h.tracker.TimeRemaining(); got != 20*time.Minute {
		t.Errorf("Expected repeated read to agree, got %v", got)
	}

	h.fake.Advance(20 * time.Minute)
	if got := h.tracker.TimeRemaining(); got != 0 {
		t.Errorf("Expected zero remaining at the deadline, got %v", got)
	}

	h.fake.Advance(5 * time.Minute)
	if got := h.tracker.TimeRemaining(); got != 0 {
		t.Errorf("Expected remaining to floor at zero, got %v", got)
	}
}

func TestTracker_DebouncedSignalKeepsDeadlineAccurate(t *testing.T) {
	h := startHarness(t, 10*time.Second, 2*time.Second)

	// Within the default debounce window: timers stay put, but the
	// activity timestamp moves to 500ms.
	h.fake.Advance(500 * time.Millisecond)
	h.tracker.Observe(SignalPointerMove)

	if got := h.tracker.TimeRemaining(); got != 10*time.Second {
		t.Errorf("Expected debounced signal to refresh remaining time, got %v", got)
	}

	// The warning timer wakes at 8s, notices the true warning point is
	// 8.5s, and re-arms for the remainder.
	h.fake.Advance(7500 * time.Millisecond)
	if len(h.warnings) != 0 {
		t.Fatalf("Expected no warning at the stale deadline, got %d", len(h.warnings))
	}

	h.fake.Advance(500 * time.Millisecond)
	if len(h.warnings) != 1 {
		t.Fatalf("Expected warning at the adjusted deadline, got %d", len(h.warnings))
	}
	if h.warnings[0] != 2*time.Second {
		t.Errorf("Expected 2s remaining at warning, got %v", h.warnings[0])
	}

	h.fake.Advance(1500 * time.Millisecond)
	if h.inactives != 0 {
		t.Fatal("Inactive must not fire before the adjusted deadline")
	}
	h.fake.Advance(500 * time.Millisecond)
	if h.inactives != 1 {
		t.Errorf("Expected inactive at the adjusted deadline, got %d", h.inactives)
	}
}

type countingClock struct {
	clock.Clock
	afterFuncs int
}

func (c *countingClock) AfterFunc(d time.Duration, fn func()) clock.Timer {
	c.afterFuncs++
	return c.Clock.AfterFunc(d, fn)
}

func TestTracker_RapidSignalsCoalesceRearms(t *testing.T) {
	fake := clock.NewFake(testEpoch)
	counting := &countingClock{Clock: fake}
	tr, err := Start(Config{
		InactivityTimeout: 10 * time.Second,
		WarningLead:       2 * time.Second,
		OnInactive:        func() {},
		Clock:             counting,
		Logger:            zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("Failed to start tracker: %v", err)
	}
	defer tr.Stop()

	armed := counting.afterFuncs

	// A burst inside one debounce window schedules nothing new.
	for i := 0; i < 5; i++ {
		fake.Advance(100 * time.Millisecond)
		tr.Observe(SignalScroll)
	}
	if counting.afterFuncs != armed {
		t.Errorf("Expected burst to coalesce into the initial arm, got %d extra timers", counting.afterFuncs-armed)
	}

	// Past the window the next signal rearms.
	fake.Advance(time.Second)
	tr.Observe(SignalScroll)
	if counting.afterFuncs == armed {
		t.Error("Expected a rearm once the debounce window passed")
	}
}

func TestTracker_UntrackedSignalIgnored(t *testing.T) {
	h := startHarness(t, 30*time.Minute, 5*time.Minute)

	h.fake.Advance(10 * time.Minute)
	h.tracker.Observe(Signal("window_resize"))

	if got := h.tracker.TimeRemaining(); got != 20*time.Minute {
		t.Errorf("Expected untracked signal to leave the countdown alone, got %v remaining", got)
	}
}

func TestTracker_StopCancelsTimers(t *testing.T) {
	h := startHarness(t, 30*time.Minute, 5*time.Minute)

	h.tracker.Stop()
	h.tracker.Stop()

	h.fake.Advance(2 * time.Hour)
	if len(h.warnings) != 0 || h.inactives != 0 {
		t.Errorf("Expected no callbacks after stop, got %d warnings and %d inactives", len(h.warnings), h.inactives)
	}
	if h.fake.Pending() != 0 {
		t.Errorf("Expected no pending timers after stop, got %d", h.fake.Pending())
	}
	if got := h.tracker.TimeRemaining(); got != 0 {
		t.Errorf("Expected zero remaining after stop, got %v", got)
	}

	// Signals after stop must not revive the timers.
	h.tracker.Observe(SignalClick)
	if h.fake.Pending() != 0 {
		t.Errorf("Expected observe after stop to be a no-op, got %d pending timers", h.fake.Pending())
	}
}

func TestTracker_ResyncDeliversMissedWarning(t *testing.T) {
	h := startHarness(t, 30*time.Minute, 5*time.Minute)

	// Suspended through the warning point but short of the deadline.
	h.fake.Jump(testEpoch.Add(27 * time.Minute))
	h.tracker.Resync()

	if len(h.warnings) != 1 {
		t.Fatalf("Expected resync to deliver the missed warning, got %d", len(h.warnings))
	}
	if h.warnings[0] != 3*time.Minute {
		t.Errorf("Expected 3m remaining at resync warning, got %v", h.warnings[0])
	}

	h.fake.Advance(3 * time.Minute)
	if h.inactives != 1 {
		t.Errorf("Expected inactive at the original deadline, got %d", h.inactives)
	}
}

func TestTracker_ResyncBeforeWarningKeepsSchedule(t *testing.T) {
	h := startHarness(t, 30*time.Minute, 5*time.Minute)

	h.fake.Jump(testEpoch.Add(10 * time.Minute))
	h.tracker.Resync()

	if len(h.warnings) != 0 {
		t.Fatalf("Expected no early warning on resync, got %d", len(h.warnings))
	}

	h.fake.Advance(15 * time.Minute)
	if len(h.warnings) != 1 {
		t.Errorf("Expected warning at the original warning point, got %d", len(h.warnings))
	}
	h.fake.Advance(5 * time.Minute)
	if h.inactives != 1 {
		t.Errorf("Expected inactive at the original deadline, got %d", h.inactives)
	}
}

func TestTracker_ConfigValidation(t *testing.T) {
	cases := []struct {
		name    string
		timeout time.Duration
		lead    time.Duration
		wantErr bool
	}{
		{"zero timeout", 0, 0, true},
		{"negative timeout", -time.Minute, 0, true},
		{"negative lead", time.Minute, -time.Second, true},
		{"lead equals timeout", time.Minute, time.Minute, true},
		{"lead exceeds timeout", time.Minute, 2 * time.Minute, true},
		{"zero lead", time.Minute, 0, false},
		{"typical", 30 * time.Minute, 5 * time.Minute, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr, err := Start(Config{
				InactivityTimeout: tc.timeout,
				WarningLead:       tc.lead,
				Clock:             clock.NewFake(testEpoch),
				Logger:            zerolog.Nop(),
			})
			if tc.wantErr {
				if err == nil {
					t.Fatal("Expected config error")
				}
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("Expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected valid config, got %v", err)
			}
			tr.Stop()
		})
	}
}
