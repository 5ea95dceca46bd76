package session

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iSamBa/gym-manager-sub011/internal/activity"
	"github.com/iSamBa/gym-manager-sub011/internal/broadcast"
	"github.com/iSamBa/gym-manager-sub011/internal/clock"
)

var testEpoch = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type tab struct {
	coord      *Coordinator
	warnings   []time.Duration
	reasons    []Reason
	reconciles int
}

func startTab(t *testing.T, fake *clock.Fake, bus broadcast.Bus) *tab {
	t.Helper()
	tb := &tab{}
	coord, err := Start(context.Background(), Config{
		InactivityTimeout: 30 * time.Minute,
		WarningLead:       5 * time.Minute,
		OnWarning:         func(remaining time.Duration) { tb.warnings = append(tb.warnings, remaining) },
		OnTerminate:       func(r Reason) { tb.reasons = append(tb.reasons, r) },
		OnReconcile:       func() { tb.reconciles++ },
		Bus:               bus,
		Clock:             fake,
		Logger:            zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("Failed to start coordinator: %v", err)
	}
	tb.coord = coord
	t.Cleanup(coord.Close)
	return tb
}

func TestCoordinator_InactivityTerminates(t *testing.T) {
	fake := clock.NewFake(testEpoch)
	tb := startTab(t, fake, nil)

	fake.Advance(25 * time.Minute)
	if len(tb.warnings) != 1 {
		t.Fatalf("Expected warning before termination, got %d", len(tb.warnings))
	}
	if tb.warnings[0] != 5*time.Minute {
		t.Errorf("Expected 5m remaining at warning, got %v", tb.warnings[0])
	}

	fake.Advance(5 * time.Minute)
	if len(tb.reasons) != 1 {
		t.Fatalf("Expected one termination, got %d", len(tb.reasons))
	}
	if tb.reasons[0] != ReasonInactivity {
		t.Errorf("Expected inactivity reason, got %s", tb.reasons[0])
	}
	if got := tb.coord.TimeRemaining(); got != 0 {
		t.Errorf("Expected zero remaining after termination, got %v", got)
	}
}

func TestCoordinator_RemoteLogoutOverridesTimers(t *testing.T) {
	fake := clock.NewFake(testEpoch)
	hub := broadcast.NewHub()
	tabA := startTab(t, fake, hub.Bus())
	tabB := startTab(t, fake, hub.Bus())

	// Tab B is mid-session with plenty of time left when tab A signs
	// out.
	fake.Advance(10 * time.Minute)
	tabA.coord.SignOut(context.Background())

	if len(tabA.reasons) != 1 || tabA.reasons[0] != ReasonSignOut {
		t.Fatalf("Expected local sign-out on tab A, got %v", tabA.reasons)
	}
	if len(tabB.reasons) != 1 || tabB.reasons[0] != ReasonRemoteLogout {
		t.Fatalf("Expected remote logout on tab B, got %v", tabB.reasons)
	}
	if got := tabB.coord.TimeRemaining(); got != 0 {
		t.Errorf("Expected tab B remaining to drop to zero, got %v", got)
	}

	// The already-dead timers must not fire anything later.
	fake.Advance(time.Hour)
	if len(tabB.reasons) != 1 {
		t.Errorf("Expected no further terminations on tab B, got %v", tabB.reasons)
	}
}

func TestCoordinator_DuplicateTerminationAbsorbed(t *testing.T) {
	fake := clock.NewFake(testEpoch)
	hub := broadcast.NewHub()
	tb := startTab(t, fake, hub.Bus())

	// Idle timeout first, then an explicit sign-out and a remote
	// logout pile on.
	fake.Advance(30 * time.Minute)
	tb.coord.SignOut(context.Background())
	if err := hub.Bus().Publish(context.Background(), broadcast.Signal{Kind: broadcast.KindLogout, EmittedAt: fake.Now()}); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	if len(tb.reasons) != 1 {
		t.Fatalf("Expected duplicates to be absorbed, got %v", tb.reasons)
	}
	if tb.reasons[0] != ReasonInactivity {
		t.Errorf("Expected the first reason to stick, got %s", tb.reasons[0])
	}
}

func TestCoordinator_RemoteLoginReconcilesSignedOutTab(t *testing.T) {
	fake := clock.NewFake(testEpoch)
	hub := broadcast.NewHub()
	tabA := startTab(t, fake, hub.Bus())
	tabB := startTab(t, fake, hub.Bus())

	// While B is signed in, a login signal changes nothing.
	if err := hub.Bus().Publish(context.Background(), broadcast.Signal{Kind: broadcast.KindLogin, EmittedAt: fake.Now()}); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}
	if tabB.reconciles != 0 {
		t.Fatalf("Expected no reconcile while signed in, got %d", tabB.reconciles)
	}

	// Once B is signed out, a fresh login elsewhere triggers a reload.
	// B's sign-out also took tab A down remotely, so both reconcile.
	tabB.coord.SignOut(context.Background())
	if err := hub.Bus().Publish(context.Background(), broadcast.Signal{Kind: broadcast.KindLogin, EmittedAt: fake.Now()}); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}
	if tabB.reconciles != 1 {
		t.Errorf("Expected one reconcile on the signed-out tab, got %d", tabB.reconciles)
	}
	if tabA.reconciles != 1 {
		t.Errorf("Expected the remotely signed-out tab to reconcile too, got %d", tabA.reconciles)
	}
}

type deadBus struct{}

func (deadBus) Publish(context.Context, broadcast.Signal) error {
	return broadcast.ErrUnavailable
}

func (deadBus) Subscribe(context.Context, func(broadcast.Signal)) (func(), error) {
	return nil, broadcast.ErrUnavailable
}

func TestCoordinator_DegradedBusFallsBackToLocalTimers(t *testing.T) {
	fake := clock.NewFake(testEpoch)
	tb := startTab(t, fake, deadBus{})

	fake.Advance(30 * time.Minute)
	if len(tb.reasons) != 1 || tb.reasons[0] != ReasonInactivity {
		t.Errorf("Expected per-tab timeout despite dead bus, got %v", tb.reasons)
	}
}

func TestCoordinator_SignOutSurvivesPublishFailure(t *testing.T) {
	fake := clock.NewFake(testEpoch)
	tb := startTab(t, fake, deadBus{})

	tb.coord.SignOut(context.Background())
	if len(tb.reasons) != 1 || tb.reasons[0] != ReasonSignOut {
		t.Errorf("Expected local sign-out to land despite dead bus, got %v", tb.reasons)
	}
}

func TestCoordinator_ExtendKeepsSessionAlive(t *testing.T) {
	fake := clock.NewFake(testEpoch)
	tb := startTab(t, fake, nil)

	fake.Advance(25 * time.Minute)
	if len(tb.warnings) != 1 {
		t.Fatalf("Expected warning at 25m, got %d", len(tb.warnings))
	}

	tb.coord.Extend()
	fake.Advance(25 * time.Minute)
	if len(tb.warnings) != 2 {
		t.Errorf("Expected a fresh warning a full interval after extend, got %d", len(tb.warnings))
	}
	if len(tb.reasons) != 0 {
		t.Errorf("Expected no termination, got %v", tb.reasons)
	}
}

func TestCoordinator_ObserveRestartsCountdown(t *testing.T) {
	fake := clock.NewFake(testEpoch)
	tb := startTab(t, fake, nil)

	fake.Advance(20 * time.Minute)
	tb.coord.Observe(activity.SignalPointerPress)

	fake.Advance(20 * time.Minute)
	if len(tb.reasons) != 0 {
		t.Fatalf("Expected interaction to defer the timeout, got %v", tb.reasons)
	}

	fake.Advance(10 * time.Minute)
	if len(tb.reasons) != 1 {
		t.Errorf("Expected timeout a full interval after the interaction, got %v", tb.reasons)
	}
}

func TestDurations_Pick(t *testing.T) {
	d := Durations{Standard: 30 * time.Minute, Remembered: 12 * time.Hour}

	if got := d.Pick(false); got != 30*time.Minute {
		t.Errorf("Expected standard duration, got %v", got)
	}
	if got := d.Pick(true); got != 12*time.Hour {
		t.Errorf("Expected remembered duration, got %v", got)
	}
}
