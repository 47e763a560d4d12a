package coro

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// coroutine is one entry in a Scheduler's coroutine table. Its status is
// stored in an atomic.Int32 independent of mu/cond, matching the
// reference protocol's literal step ordering, which sets status and
// S.running before acquiring any mutex: atomic access gives that ordering
// race-free observability without forcing mu to double as a status lock.
type coroutine struct {
	id       int
	name     string
	mainFunc func(*Scheduler, any)
	ud       any

	statusVal atomic.Int32

	// mu/cond are the coroutine-private lock+CV that park the worker
	// thread hosting this coroutine while it is SUSPEND, and that the
	// resumer signals on the SUSPEND->RUNNING transition (spec §4.3).
	mu   sync.Mutex
	cond *sync.Cond

	// panicValue/panicked carry a recovered panic from the trampoline
	// (§4.4) through to the Resume call that observes the RUNNING->DEAD
	// transition. They are written on the coroutine's worker goroutine
	// and read on the resumer's goroutine; correctness relies on the
	// happens-before edge established by the Scheduler's cond_wait
	// signal in finishCoroutine, not on a separate lock.
	panicValue any
	panicked   bool
}

func newCoroutine(id int, fn func(*Scheduler, any), ud any) *coroutine {
	co := &coroutine{
		id:       id,
		name:     fmt.Sprintf("#%d", id),
		mainFunc: fn,
		ud:       ud,
	}
	co.statusVal.Store(int32(StatusReady))
	co.cond = sync.NewCond(&co.mu)
	return co
}

func (co *coroutine) status() Status {
	return Status(co.statusVal.Load())
}

func (co *coroutine) setStatus(s Status) {
	co.statusVal.Store(int32(s))
}

// takePanic returns, at most once, the error wrapping a panic recovered
// from this coroutine's last slice, clearing it so a caller can never
// observe the same panic twice.
func (co *coroutine) takePanic() error {
	if !co.panicked {
		return nil
	}
	co.panicked = false
	v := co.panicValue
	co.panicValue = nil
	return &CoroutinePanic{ID: co.id, Value: v}
}
