package metrics

import (
	"sync/atomic"
	"time"
)

type Counter struct {
	value atomic.Uint64
}

func (c *Counter) Inc() {
	c.value.Add(1)
}

func (c *Counter) Load() uint64 {
	return c.value.Load()
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// LastDuration keeps the most recent observed duration.
type LastDuration struct {
	nanos atomic.Int64
}

func (d *LastDuration) Observe(v time.Duration) {
	d.nanos.Store(int64(v))
}

func (d *LastDuration) Load() time.Duration {
	return time.Duration(d.nanos.Load())
}
