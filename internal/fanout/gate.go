package fanout

import (
	"sync"
	"sync/atomic"
)

// completionGate counts launched tasks and lets a single closer wait for all
// of them to finish.
//
// enter must be called before the task goroutine starts and before wait is
// called; leave is called exactly once when the task has written its outcome.
type completionGate struct {
	wg          sync.WaitGroup
	outstanding atomic.Int64
}

func (g *completionGate) enter() {
	g.outstanding.Add(1)
	g.wg.Add(1)
}

func (g *completionGate) leave() {
	g.outstanding.Add(-1)
	g.wg.Done()
}

func (g *completionGate) wait() {
	g.wg.Wait()
}

// Outstanding returns the number of launched tasks that have not finished.
func (g *completionGate) Outstanding() int64 {
	return g.outstanding.Load()
}
