package fanout

import (
	"sync"
	"sync/atomic"
)

// resultChannel carries outcomes from tasks to the collector.
//
// The buffer holds one slot per request, so a task never blocks on its single
// send regardless of how fast the collector drains.
type resultChannel struct {
	ch     chan Outcome
	writes atomic.Int64
	closed atomic.Bool
	once   sync.Once
	hooks  Hooks
}

func newResultChannel(capacity int, hooks Hooks) *resultChannel {
	return &resultChannel{
		ch:    make(chan Outcome, capacity),
		hooks: hooks,
	}
}

// send writes one outcome. Writing after close is a programming error.
func (c *resultChannel) send(o Outcome) {
	if c.closed.Load() {
		panic("fanout: " + ProgrammingError.String() + ": write to closed result channel")
	}
	c.ch <- o
	n := c.writes.Add(1)
	if c.hooks.OnWrite != nil {
		c.hooks.OnWrite(o, n)
	}
}

// close closes the channel exactly once.
func (c *resultChannel) close() {
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.ch)
		if c.hooks.OnClose != nil {
			c.hooks.OnClose(c.writes.Load())
		}
	})
}

func (c *resultChannel) receive() <-chan Outcome {
	return c.ch
}
