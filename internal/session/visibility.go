package session

import (
	"context"

	"github.com/iSamBa/gym-manager-sub011/internal/broadcast"
)

// BecameVisible reconciles session state after the tab was hidden or
// the host suspended. Timers throttled while hidden cannot be trusted,
// so expiry is recomputed from the wall clock, and an authoritative
// signal missed while hidden is picked up from the bus snapshot.
// Re-foregrounding is not interaction: it never extends the session.
func (c *Coordinator) BecameVisible(ctx context.Context) {
	c.mu.Lock()
	dead := c.terminated
	c.mu.Unlock()
	if dead {
		return
	}

	if snap, ok := c.cfg.Bus.(broadcast.Snapshotter); ok {
		s, err := snap.Snapshot(ctx)
		switch {
		case err != nil:
			c.log.Debug().Err(err).Msg("Signal snapshot unavailable")
		case s != nil && s.Kind == broadcast.KindLogout && s.EmittedAt.After(c.startedAt):
			c.log.Info().Time("emitted_at", s.EmittedAt).Msg("Missed sign-out found during reconcile")
			c.terminate(ReasonRemoteLogout)
			return
		}
	}

	elapsed := c.clk.Now().Sub(c.tracker.LastActivity())
	if elapsed >= c.cfg.InactivityTimeout {
		// Expired while hidden: end now, never wait for a stale timer.
		c.log.Info().Dur("elapsed", elapsed).Msg("Session expired while hidden")
		c.terminate(ReasonInactivity)
		return
	}

	// Still live. Re-arm the timers against the wall clock; the tracker
	// raises the warning here if its moment passed while hidden.
	c.tracker.Resync()
	c.log.Debug().Dur("elapsed", elapsed).Msg("Session reconciled after becoming visible")
}
