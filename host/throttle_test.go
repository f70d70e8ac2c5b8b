package host

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type throttleClock struct {
	t time.Time
}

func (c *throttleClock) Now() time.Time {
	return c.t
}

func (c *throttleClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func mkThrottle(interval time.Duration) (*Throttle, *throttleClock) {
	clk := &throttleClock{t: time.Unix(1000, 0)}
	tr := NewThrottle(interval)
	tr.now = clk.Now
	return tr, clk
}

func TestThrottleFirstEmitImmediate(t *testing.T) {
	tr, _ := mkThrottle(50 * time.Millisecond)

	var got []Event
	emit := func(ev Event) { got = append(got, ev) }

	assert.True(t, tr.MaybeEmit(Event{Topic: TopicArduino}, emit))
	assert.Len(t, got, 1)
	assert.False(t, tr.HasPending())
}

func TestThrottleLatestWins(t *testing.T) {
	tr, clk := mkThrottle(50 * time.Millisecond)

	var got []Event
	emit := func(ev Event) { got = append(got, ev) }

	tr.MaybeEmit(Event{Data: 1}, emit)

	// burst inside the window: suppressed, latest kept
	assert.False(t, tr.MaybeEmit(Event{Data: 2}, emit))
	assert.False(t, tr.MaybeEmit(Event{Data: 3}, emit))
	assert.True(t, tr.HasPending())
	assert.Len(t, got, 1)

	clk.Advance(50 * time.Millisecond)
	assert.True(t, tr.MaybeEmit(Event{Data: 4}, emit))
	assert.Len(t, got, 2)
	assert.Equal(t, 4, got[1].Data)
	assert.False(t, tr.HasPending())
}

func TestThrottleFlush(t *testing.T) {
	tr, _ := mkThrottle(50 * time.Millisecond)

	var got []Event
	emit := func(ev Event) { got = append(got, ev) }

	assert.False(t, tr.Flush(emit), "nothing pending yet")

	tr.MaybeEmit(Event{Data: 1}, emit)
	tr.MaybeEmit(Event{Data: 2}, emit)

	assert.True(t, tr.Flush(emit))
	assert.Len(t, got, 2)
	assert.Equal(t, 2, got[1].Data)

	// flush consumed the pending value
	assert.False(t, tr.Flush(emit))
}
