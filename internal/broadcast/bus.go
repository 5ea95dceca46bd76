package broadcast

import (
	"context"
	"errors"
)

// ErrUnavailable wraps every failure of the shared medium. Callers are
// expected to log it and carry on with per-tab behavior.
var ErrUnavailable = errors.New("broadcast medium unavailable")

// Bus distributes session signals between tabs. One handle belongs to
// one tab: a handle never hears its own publishes.
type Bus interface {
	// Publish announces s to every other tab.
	Publish(ctx context.Context, s Signal) error

	// Subscribe registers fn for signals published by other tabs. The
	// returned cancel stops delivery and releases the subscription.
	Subscribe(ctx context.Context, fn func(Signal)) (cancel func(), err error)
}

// Snapshotter is implemented by buses whose medium retains the last
// written signal, letting a tab that was hidden or offline catch up.
type Snapshotter interface {
	// Snapshot returns the last stored signal, or nil when none exists.
	Snapshot(ctx context.Context) (*Signal, error)
}

// NopBus is the degraded mode used when no shared medium is available:
// publishes vanish and subscriptions never deliver, so every tab falls
// back to its own timers.
type NopBus struct{}

func (NopBus) Publish(context.Context, Signal) error { return nil }

func (NopBus) Subscribe(context.Context, func(Signal)) (func(), error) {
	return func() {}, nil
}
