package activity

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/iSamBa/gym-manager-sub011/internal/clock"
)

// Burst-watch defaults: a human operator stays well under two presses
// per second over any sustained stretch.
const (
	DefaultBurstRate = 2.0
	DefaultBurstSize = 30
	burstLogThrottle = 10 * time.Second
)

// BurstWatch flags implausibly rapid press-type interactions. It is
// informational only: it logs and reports, and never alters session
// state.
type BurstWatch struct {
	lim     *rate.Limiter
	clk     clock.Clock
	log     zerolog.Logger
	onBurst func()

	mu         sync.Mutex
	lastLogged time.Time
}

// NewBurstWatch builds a watcher allowing perSecond sustained presses
// with a burst allowance. onBurst, when non-nil, runs once per flagged
// interaction, typically to bump a counter.
func NewBurstWatch(perSecond float64, burst int, clk clock.Clock, logger zerolog.Logger, onBurst func()) *BurstWatch {
	if perSecond <= 0 {
		perSecond = DefaultBurstRate
	}
	if burst <= 0 {
		burst = DefaultBurstSize
	}
	if clk == nil {
		clk = clock.System()
	}
	return &BurstWatch{
		lim:     rate.NewLimiter(rate.Limit(perSecond), burst),
		clk:     clk,
		log:     logger.With().Str("component", "burst-watch").Logger(),
		onBurst: onBurst,
	}
}

// Note feeds one interaction into the watcher. Only press-type signals
// count toward the budget.
func (w *BurstWatch) Note(sig Signal) {
	switch sig {
	case SignalClick, SignalPointerPress, SignalTouchStart:
	default:
		return
	}
	now := w.clk.Now()
	if w.lim.AllowN(now, 1) {
		return
	}
	w.mu.Lock()
	shouldLog := now.Sub(w.lastLogged) >= burstLogThrottle
	if shouldLog {
		w.lastLogged = now
	}
	w.mu.Unlock()
	if shouldLog {
		w.log.Warn().Str("signal", string(sig)).Msg("Interaction rate above plausible operator speed")
	}
	if w.onBurst != nil {
		w.onBurst()
	}
}
