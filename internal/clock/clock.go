package clock

import "time"

// Clock abstracts time observation and delayed callback scheduling so
// that idle tracking can run against a controllable time source in tests.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc schedules fn to run after d has elapsed. The callback
	// runs on its own goroutine. The returned timer can be stopped
	// before it fires.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a single pending callback created by AfterFunc.
type Timer interface {
	// Stop cancels the timer and reports whether the call prevented the
	// callback from firing. Stop does not wait for a callback that has
	// already started, matching time.Timer semantics.
	Stop() bool
}

type systemClock struct{}

type systemTimer struct {
	t *time.Timer
}

// System returns the real process clock backed by the time package.
func System() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return systemTimer{t: time.AfterFunc(d, fn)}
}

func (s systemTimer) Stop() bool { return s.t.Stop() }
