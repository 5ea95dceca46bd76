package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iSamBa/gym-manager-sub011/internal/activity"
	"github.com/iSamBa/gym-manager-sub011/internal/broadcast"
	"github.com/iSamBa/gym-manager-sub011/internal/clock"
)

// ErrInvalidConfig is wrapped by every configuration error returned
// from Start.
var ErrInvalidConfig = errors.New("invalid session config")

// Reason records what ended a session.
type Reason string

const (
	// ReasonInactivity is the idle timeout, whether caught by a timer
	// or by wall-clock reconciliation after the tab was hidden.
	ReasonInactivity Reason = "inactivity"

	// ReasonSignOut is an explicit local sign-out.
	ReasonSignOut Reason = "sign_out"

	// ReasonRemoteLogout is a sign-out observed from another tab.
	ReasonRemoteLogout Reason = "remote_logout"
)

// Durations fixes the two selectable session lengths. The choice
// between them is made once at sign-in and never changes mid-session.
type Durations struct {
	Standard   time.Duration
	Remembered time.Duration
}

// Pick returns the inactivity timeout for a new session.
func (d Durations) Pick(remember bool) time.Duration {
	if remember {
		return d.Remembered
	}
	return d.Standard
}

// Config describes one tab's session runtime.
type Config struct {
	// InactivityTimeout ends the session after this much operator
	// silence. Fixed for the session lifetime.
	InactivityTimeout time.Duration

	// WarningLead is how long before the deadline the stay-signed-in
	// prompt appears. Must be shorter than InactivityTimeout.
	WarningLead time.Duration

	// Debounce is passed through to the activity tracker.
	Debounce time.Duration

	// OnWarning surfaces the stay-signed-in prompt with the time left
	// before forced sign-out. Optional.
	OnWarning func(remaining time.Duration)

	// OnTerminate runs exactly once when the session ends. Optional.
	OnTerminate func(Reason)

	// OnReconcile asks the embedding surface to reload session state
	// after another tab signed in while this one was signed out.
	// Optional.
	OnReconcile func()

	// Bus carries cross-tab signals. Nil selects the degraded
	// per-tab-only mode.
	Bus broadcast.Bus

	// Burst, when set, feeds press-type interactions to the
	// informational rate watcher.
	Burst *activity.BurstWatch

	// Clock defaults to the system clock.
	Clock clock.Clock

	Logger zerolog.Logger
}

// Coordinator drives one tab's session lifecycle: idle tracking,
// cross-tab signal handling, visibility reconciliation, and the single
// idempotent termination path they all funnel into.
type Coordinator struct {
	cfg Config
	clk clock.Clock
	log zerolog.Logger

	tracker   *activity.Tracker
	unsub     func()
	startedAt time.Time

	mu         sync.Mutex
	terminated bool
	reason     Reason
}

// Start validates cfg, begins idle tracking, and attaches to the
// cross-tab bus. A bus that cannot be subscribed degrades to per-tab
// timers instead of failing the session.
func Start(ctx context.Context, cfg Config) (*Coordinator, error) {
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	if cfg.Bus == nil {
		cfg.Bus = broadcast.NopBus{}
	}

	c := &Coordinator{
		cfg: cfg,
		clk: cfg.Clock,
		log: cfg.Logger.With().Str("component", "session-coordinator").Logger(),
	}

	tracker, err := activity.Start(activity.Config{
		InactivityTimeout: cfg.InactivityTimeout,
		WarningLead:       cfg.WarningLead,
		Debounce:          cfg.Debounce,
		OnWarning:         c.warned,
		OnInactive:        func() { c.terminate(ReasonInactivity) },
		Clock:             cfg.Clock,
		Logger:            cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	c.tracker = tracker
	c.startedAt = c.clk.Now()

	unsub, err := cfg.Bus.Subscribe(ctx, c.observed)
	if err != nil {
		// Degraded mode: this tab still times out on its own.
		c.log.Warn().Err(err).Msg("Cross-tab sync unavailable, using per-tab timers only")
		unsub = func() {}
	}
	c.unsub = unsub

	c.log.Info().
		Dur("inactivity_timeout", cfg.InactivityTimeout).
		Dur("warning_lead", cfg.WarningLead).
		Msg("Session started")
	return c, nil
}

// Observe reports an operator interaction.
func (c *Coordinator) Observe(sig activity.Signal) {
	if c.cfg.Burst != nil {
		c.cfg.Burst.Note(sig)
	}
	c.tracker.Observe(sig)
}

// Extend restarts the idle countdown, dismissing a shown warning. This
// is the stay-signed-in action.
func (c *Coordinator) Extend() {
	c.tracker.Extend()
}

// TimeRemaining reports how long until forced sign-out. Zero once the
// session has terminated.
func (c *Coordinator) TimeRemaining() time.Duration {
	c.mu.Lock()
	dead := c.terminated
	c.mu.Unlock()
	if dead {
		return 0
	}
	return c.tracker.TimeRemaining()
}

// LastActivity returns the most recent interaction timestamp.
func (c *Coordinator) LastActivity() time.Time {
	return c.tracker.LastActivity()
}

// SignOut ends the session locally and announces it to other tabs. The
// local change is applied directly: self-notification through the bus
// is not relied on.
func (c *Coordinator) SignOut(ctx context.Context) {
	if !c.terminate(ReasonSignOut) {
		return
	}
	s := broadcast.Signal{Kind: broadcast.KindLogout, EmittedAt: c.clk.Now()}
	if err := c.cfg.Bus.Publish(ctx, s); err != nil {
		c.log.Warn().Err(err).Msg("Sign-out broadcast failed")
	}
}

// Terminated reports whether the session has ended, and why.
func (c *Coordinator) Terminated() (Reason, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason, c.terminated
}

// Close releases timers and the bus subscription without ending the
// shared session, e.g. when the tab itself closes.
func (c *Coordinator) Close() {
	c.tracker.Stop()
	if c.unsub != nil {
		c.unsub()
	}
}

func (c *Coordinator) warned(remaining time.Duration) {
	c.mu.Lock()
	dead := c.terminated
	c.mu.Unlock()
	if dead {
		return
	}
	if c.cfg.OnWarning != nil {
		c.cfg.OnWarning(remaining)
	}
}

// observed handles signals from other tabs. Observed signals are never
// re-published.
func (c *Coordinator) observed(s broadcast.Signal) {
	switch s.Kind {
	case broadcast.KindLogout:
		// Authoritative regardless of local timer state.
		c.log.Info().Time("emitted_at", s.EmittedAt).Msg("Remote sign-out observed")
		c.terminate(ReasonRemoteLogout)
	case broadcast.KindLogin:
		c.mu.Lock()
		dead := c.terminated
		c.mu.Unlock()
		if !dead {
			c.log.Debug().Msg("Remote sign-in observed, session already active")
			return
		}
		c.log.Info().Time("emitted_at", s.EmittedAt).Msg("Remote sign-in observed, reconciling")
		if c.cfg.OnReconcile != nil {
			c.cfg.OnReconcile()
		}
	}
}

// terminate is the single shutdown path. Every trigger funnels here;
// only the first caller wins and duplicates are absorbed.
func (c *Coordinator) terminate(r Reason) bool {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return false
	}
	c.terminated = true
	c.reason = r
	c.mu.Unlock()

	c.tracker.Stop()
	c.log.Info().Str("reason", string(r)).Msg("Session terminated")
	if c.cfg.OnTerminate != nil {
		c.cfg.OnTerminate(r)
	}
	return true
}
