package activity

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iSamBa/gym-manager-sub011/internal/clock"
)

// DefaultDebounce is the rearm coalescing window applied when Config
// leaves Debounce zero.
const DefaultDebounce = time.Second

// ErrInvalidConfig is wrapped by every configuration error returned
// from Start.
var ErrInvalidConfig = errors.New("invalid tracker config")

// Config describes one idle-tracking session.
type Config struct {
	// InactivityTimeout is how long without interaction before the
	// session is considered inactive. Must be positive.
	InactivityTimeout time.Duration

	// WarningLead is how long before the inactivity deadline the
	// warning fires. Must satisfy 0 <= WarningLead < InactivityTimeout.
	// Zero means the warning is delivered immediately before the
	// inactive transition, in that order.
	WarningLead time.Duration

	// Debounce coalesces timer rearms for signals arriving within this
	// window of the previous rearm. Zero selects DefaultDebounce,
	// negative disables coalescing. Activity timestamps are recorded
	// regardless, so deadlines stay accurate.
	Debounce time.Duration

	// OnWarning runs once per idle period when WarningLead remains
	// before forced inactivity. Optional.
	OnWarning func(remaining time.Duration)

	// OnInactive runs when the timeout elapses with no interaction.
	// Optional; the embedding layer usually terminates the session here.
	OnInactive func()

	// Clock defaults to the system clock.
	Clock clock.Clock

	Logger zerolog.Logger
}

func (c *Config) validate() error {
	if c.InactivityTimeout <= 0 {
		return fmt.Errorf("%w: inactivity timeout %v must be positive", ErrInvalidConfig, c.InactivityTimeout)
	}
	if c.WarningLead < 0 {
		return fmt.Errorf("%w: warning lead %v must not be negative", ErrInvalidConfig, c.WarningLead)
	}
	if c.WarningLead >= c.InactivityTimeout {
		return fmt.Errorf("%w: warning lead %v must be shorter than inactivity timeout %v", ErrInvalidConfig, c.WarningLead, c.InactivityTimeout)
	}
	return nil
}

// Tracker watches operator interaction and drives the two-stage idle
// transition: a warning WarningLead before the deadline, then the
// inactive callback at the deadline. All methods are safe for
// concurrent use.
type Tracker struct {
	cfg Config
	clk clock.Clock
	log zerolog.Logger

	mu           sync.Mutex
	lastActivity time.Time
	lastRearm    time.Time
	warned       bool
	stopped      bool
	gen          uint64
	warnTimer    clock.Timer
	idleTimer    clock.Timer
}

// Start validates cfg and begins tracking. The idle countdown starts
// immediately.
func Start(cfg Config) (*Tracker, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	switch {
	case cfg.Debounce == 0:
		cfg.Debounce = DefaultDebounce
	case cfg.Debounce < 0:
		cfg.Debounce = 0
	}

	t := &Tracker{
		cfg: cfg,
		clk: cfg.Clock,
		log: cfg.Logger.With().Str("component", "activity-tracker").Logger(),
	}

	t.mu.Lock()
	t.rearmLocked(t.clk.Now())
	t.mu.Unlock()

	t.log.Debug().
		Dur("inactivity_timeout", cfg.InactivityTimeout).
		Dur("warning_lead", cfg.WarningLead).
		Msg("Tracking started")
	return t, nil
}

// Observe records an operator interaction and restarts the idle
// countdown. Signals outside the tracked set are ignored. Rearms within
// the debounce window are coalesced; the activity timestamp is stamped
// either way and the timers reconcile against it when they fire.
func (t *Tracker) Observe(sig Signal) {
	if !sig.Tracked() {
		t.log.Debug().Str("signal", string(sig)).Msg("Untracked signal ignored")
		return
	}
	t.note(false)
}

// Extend restarts the idle countdown unconditionally and clears a shown
// warning. This is the "stay signed in" action.
func (t *Tracker) Extend() {
	t.note(true)
}

func (t *Tracker) note(bypassDebounce bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	now := t.clk.Now()
	t.lastActivity = now
	if !bypassDebounce && t.cfg.Debounce > 0 && now.Sub(t.lastRearm) < t.cfg.Debounce {
		return
	}
	t.rearmLocked(now)
}

// rearmLocked restarts both timers from now. Caller holds t.mu.
func (t *Tracker) rearmLocked(now time.Time) {
	t.lastActivity = now
	t.lastRearm = now
	t.warned = false
	t.gen++
	gen := t.gen
	t.cancelTimersLocked()
	if t.cfg.WarningLead > 0 {
		t.warnTimer = t.clk.AfterFunc(t.cfg.InactivityTimeout-t.cfg.WarningLead, func() { t.warnFired(gen) })
	}
	t.idleTimer = t.clk.AfterFunc(t.cfg.InactivityTimeout, func() { t.idleFired(gen) })
}

func (t *Tracker) cancelTimersLocked() {
	if t.warnTimer != nil {
		t.warnTimer.Stop()
		t.warnTimer = nil
	}
	if t.idleTimer != nil {
		t.idleTimer.Stop()
		t.idleTimer = nil
	}
}

// warnFired handles the warning timer. Debounced activity may have
// moved the true warning point past the timer's deadline; in that case
// the timer re-arms for the remainder instead of firing.
func (t *Tracker) warnFired(gen uint64) {
	t.mu.Lock()
	if t.stopped || gen != t.gen {
		t.mu.Unlock()
		return
	}
	now := t.clk.Now()
	warnAt := t.lastActivity.Add(t.cfg.InactivityTimeout - t.cfg.WarningLead)
	if now.Before(warnAt) {
		t.warnTimer = t.clk.AfterFunc(warnAt.Sub(now), func() { t.warnFired(gen) })
		t.mu.Unlock()
		return
	}
	if t.warned {
		t.mu.Unlock()
		return
	}
	t.warned = true
	remaining := t.remainingLocked(now)
	cb := t.cfg.OnWarning
	t.mu.Unlock()

	t.log.Info().Dur("remaining", remaining).Msg("Inactivity warning")
	if cb != nil {
		cb(remaining)
	}
}

// idleFired handles the inactivity timer. Like warnFired it reconciles
// against the true deadline first. If the warning never fired (zero
// lead, or the warning point was crossed in the same tick) it is
// delivered synchronously before the inactive callback.
func (t *Tracker) idleFired(gen uint64) {
	t.mu.Lock()
	if t.stopped || gen != t.gen {
		t.mu.Unlock()
		return
	}
	now := t.clk.Now()
	deadline := t.lastActivity.Add(t.cfg.InactivityTimeout)
	if now.Before(deadline) {
		t.idleTimer = t.clk.AfterFunc(deadline.Sub(now), func() { t.idleFired(gen) })
		t.mu.Unlock()
		return
	}
	var warnCb func(time.Duration)
	if !t.warned {
		t.warned = true
		warnCb = t.cfg.OnWarning
	}
	inactiveCb := t.cfg.OnInactive
	t.mu.Unlock()

	if warnCb != nil {
		t.log.Info().Dur("remaining", 0).Msg("Inactivity warning")
		warnCb(0)
	}
	t.log.Info().Dur("idle", t.cfg.InactivityTimeout).Msg("Inactivity deadline reached")
	if inactiveCb != nil {
		inactiveCb()
	}
}

// TimeRemaining reports how long until the inactive transition. It is a
// pure read: never above InactivityTimeout, floored at zero, no side
// effects. A stopped tracker reports zero.
func (t *Tracker) TimeRemaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return 0
	}
	return t.remainingLocked(t.clk.Now())
}

func (t *Tracker) remainingLocked(now time.Time) time.Duration {
	rem := t.lastActivity.Add(t.cfg.InactivityTimeout).Sub(now)
	if rem < 0 {
		return 0
	}
	if rem > t.cfg.InactivityTimeout {
		return t.cfg.InactivityTimeout
	}
	return rem
}

// LastActivity returns the most recent interaction timestamp, including
// debounced interactions.
func (t *Tracker) LastActivity() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastActivity
}

// Resync re-arms both timers against the current wall clock without
// recording new activity. Used after the host resumes from a period
// when timer delivery was suspended. If the warning point passed while
// suspended and the deadline has not, the warning is delivered here.
func (t *Tracker) Resync() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	now := t.clk.Now()
	t.gen++
	gen := t.gen
	t.cancelTimersLocked()

	deadline := t.lastActivity.Add(t.cfg.InactivityTimeout)
	warnAt := deadline.Add(-t.cfg.WarningLead)

	var warnCb func(time.Duration)
	var remaining time.Duration
	if !t.warned && t.cfg.WarningLead > 0 {
		if warnAt.After(now) {
			t.warnTimer = t.clk.AfterFunc(warnAt.Sub(now), func() { t.warnFired(gen) })
		} else if deadline.After(now) {
			t.warned = true
			warnCb = t.cfg.OnWarning
			remaining = deadline.Sub(now)
		}
	}
	idleIn := deadline.Sub(now)
	if idleIn < 0 {
		idleIn = 0
	}
	t.idleTimer = t.clk.AfterFunc(idleIn, func() { t.idleFired(gen) })
	t.mu.Unlock()

	if warnCb != nil {
		t.log.Info().Dur("remaining", remaining).Msg("Inactivity warning")
		warnCb(remaining)
	}
}

// Stop cancels both timers. No callback starts after Stop returns; one
// already running may complete, matching time.Timer.Stop. Stop is
// idempotent.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	t.gen++
	t.cancelTimersLocked()
	t.log.Debug().Msg("Tracking stopped")
}
