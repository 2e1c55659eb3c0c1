package fanout

import (
	"fmt"
	"sync/atomic"
)

// Phase is the state of one dispatch run.
//
// A run moves Idle → Dispatching → Draining → Done and never skips a state,
// even when there is nothing to fetch.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseDispatching
	PhaseDraining
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDispatching:
		return "dispatching"
	case PhaseDraining:
		return "draining"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

type pipeline struct {
	phase   atomic.Int32
	onPhase func(Phase)
}

func newPipeline(onPhase func(Phase)) *pipeline {
	p := &pipeline{onPhase: onPhase}
	if onPhase != nil {
		onPhase(PhaseIdle)
	}
	return p
}

// advance moves to next, which must directly follow the current phase.
func (p *pipeline) advance(next Phase) {
	if !p.phase.CompareAndSwap(int32(next-1), int32(next)) {
		panic(fmt.Sprintf("fanout: illegal phase transition %s -> %s", Phase(p.phase.Load()), next))
	}
	if p.onPhase != nil {
		p.onPhase(next)
	}
}

func (p *pipeline) current() Phase {
	return Phase(p.phase.Load())
}
