package host

import "time"

// Throttle coalesces rapid updates: at most one emit per interval, with the
// latest value winning while suppressed. Call Flush periodically so a
// suppressed value still goes out. Not safe for concurrent use; the room
// loop owns its throttles.
type Throttle struct {
	minInterval time.Duration
	lastEmit    time.Time
	pending     Event
	hasPending  bool
	now         func() time.Time
}

func NewThrottle(minInterval time.Duration) *Throttle {
	return &Throttle{
		minInterval: minInterval,
		now:         time.Now,
	}
}

// MaybeEmit emits ev if the interval has passed, otherwise stores it as
// pending. Returns true if emitted.
func (t *Throttle) MaybeEmit(ev Event, emit func(Event)) bool {
	now := t.now()
	if now.Sub(t.lastEmit) >= t.minInterval {
		emit(ev)
		t.lastEmit = now
		t.hasPending = false
		return true
	}
	t.pending = ev
	t.hasPending = true
	return false
}

// Flush emits the pending event if any. Returns true if one was emitted.
func (t *Throttle) Flush(emit func(Event)) bool {
	if !t.hasPending {
		return false
	}
	emit(t.pending)
	t.lastEmit = t.now()
	t.hasPending = false
	return true
}

func (t *Throttle) HasPending() bool {
	return t.hasPending
}
