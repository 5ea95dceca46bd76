package clock

import (
	"sync"
	"time"
)

// Fake is a manually driven Clock for tests. Timers fire synchronously
// on the goroutine calling Advance or Set, in deadline order, FIFO for
// equal deadlines. Callbacks may schedule further timers; those fire too
// if they fall within the same advance.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	pending []*fakeTimer
}

type fakeTimer struct {
	clock    *Fake
	deadline time.Time
	seq      uint64
	fn       func()
	fired    bool
	stopped  bool
}

// NewFake returns a fake clock initialized to start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTimer{
		clock:    f,
		deadline: f.now.Add(d),
		seq:      f.seq,
		fn:       fn,
	}
	f.pending = append(f.pending, t)
	return t
}

// Advance moves the clock forward by d, firing every timer whose
// deadline is reached.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()
	f.Set(target)
}

// Set moves the clock to t, firing due timers along the way. Moving the
// clock backwards fires nothing and only changes Now.
func (f *Fake) Set(t time.Time) {
	for {
		f.mu.Lock()
		if t.Before(f.now) {
			f.now = t
			f.mu.Unlock()
			return
		}
		next := f.popDue(t)
		if next == nil {
			f.now = t
			f.mu.Unlock()
			return
		}
		if f.now.Before(next.deadline) {
			f.now = next.deadline
		}
		next.fired = true
		f.mu.Unlock()
		next.fn()
	}
}

// Jump moves the clock forward without firing timers, simulating a host
// that suspended timer delivery (hidden tab, sleeping machine). Timers
// whose deadlines were passed fire on the next Advance.
func (f *Fake) Jump(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.After(f.now) {
		f.now = t
	}
}

// Pending reports how many timers are scheduled.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// popDue removes and returns the earliest timer due at or before limit.
// Caller holds f.mu.
func (f *Fake) popDue(limit time.Time) *fakeTimer {
	best := -1
	for i, t := range f.pending {
		if t.deadline.After(limit) {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := f.pending[best]
		if t.deadline.Before(b.deadline) || (t.deadline.Equal(b.deadline) && t.seq < b.seq) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	t := f.pending[best]
	f.pending = append(f.pending[:best], f.pending[best+1:]...)
	return t
}

func (f *Fake) remove(t *fakeTimer) {
	for i, p := range f.pending {
		if p == t {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			return
		}
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	t.clock.remove(t)
	return true
}
