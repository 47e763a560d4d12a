package coro

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/coropkg/coro/internal/workerpool"
)

// defaultCoroutineCapacity is the coroutine table's starting slot count,
// doubled on demand by New. It matches the reference implementation's
// default capacity of 16.
const defaultCoroutineCapacity = 16

var (
	sharedPool     *workerpool.Pool
	sharedPoolOnce sync.Once
)

func getSharedPool(opts []workerpool.Option) *workerpool.Pool {
	sharedPoolOnce.Do(func() {
		sharedPool = workerpool.Open(opts...)
	})
	return sharedPool
}

// Scheduler owns a group of coroutines and serializes their execution:
// at most one coroutine belonging to a Scheduler is RUNNING at any
// instant. Independent Schedulers may run coroutines in parallel, each
// occupying one worker thread of the shared process-wide pool.
type Scheduler struct {
	tableMu sync.RWMutex
	co      []*coroutine
	nco     int
	closed  bool

	// waitMu/waitCond are S.mutex_wait/S.cond_wait: the lock+CV on which
	// the resumer parks while a coroutine slice executes (spec §3.4,
	// §4.3). running is independently atomic so that the literal protocol
	// step that sets it before acquiring any mutex (Yield's step 1) is
	// race-free without conflating it with the rendezvous lock.
	waitMu   sync.Mutex
	waitCond *sync.Cond
	running  atomic.Int32

	pool      *workerpool.Pool
	logger    logrus.FieldLogger
	name      string
	closing   chan struct{}
	closeOnce sync.Once
}

// Open creates a Scheduler. The first Open call in a process lazily
// initializes the shared worker pool (spec §3.2); later calls reuse it.
func Open(opts ...Option) *Scheduler {
	cfg := schedulerConfig{logger: logrus.New()}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Scheduler{
		co:      make([]*coroutine, defaultCoroutineCapacity),
		pool:    getSharedPool(cfg.poolOpts),
		logger:  cfg.logger,
		name:    cfg.name,
		closing: make(chan struct{}),
	}
	s.running.Store(-1)
	s.waitCond = sync.NewCond(&s.waitMu)

	s.logger.WithFields(logrus.Fields{
		"scheduler": s.name,
		"capacity":  defaultCoroutineCapacity,
	}).Debug("coro: scheduler opened")

	return s
}

// New creates a coroutine in status Ready, occupying the lowest-indexed
// empty slot of the coroutine table (growing it by doubling if the table
// is at capacity), and returns its id. The id is stable until the
// coroutine reaches Dead.
func (s *Scheduler) New(fn func(*Scheduler, any), ud any) int {
	s.tableMu.Lock()
	defer s.tableMu.Unlock()

	if s.closed {
		panic("coro: New called on a closed scheduler")
	}

	if s.nco >= len(s.co) {
		oldCap := len(s.co)
		grown := make([]*coroutine, oldCap*2)
		copy(grown, s.co)
		s.co = grown

		id := oldCap
		s.co[id] = newCoroutine(id, fn, ud)
		s.nco++

		s.logger.WithFields(logrus.Fields{
			"scheduler": s.name,
			"id":        id,
			"capacity":  len(s.co),
		}).Debug("coro: coroutine table grown")

		return id
	}

	for i, slot := range s.co {
		if slot == nil {
			s.co[i] = newCoroutine(i, fn, ud)
			s.nco++
			return i
		}
	}

	// Unreachable: nco < len(co) guarantees an empty slot exists.
	panic("coro: coroutine table slot accounting invariant violated")
}

// Resume transitions the coroutine id from Ready or Suspend to Running
// and blocks the calling goroutine until that slice yields or returns.
// It is a no-op if id names a never-allocated or already-Dead slot.
func (s *Scheduler) Resume(id int) error {
	s.tableMu.RLock()
	closed := s.closed
	valid := id >= 0 && id < len(s.co)
	var co *coroutine
	if valid {
		co = s.co[id]
	}
	s.tableMu.RUnlock()

	if closed {
		return ErrSchedulerClosed
	}
	if !valid {
		return fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	if co == nil {
		// Transient-absent object: resume of a cleared slot is a silent
		// no-op per spec §7/§8.
		return nil
	}

	if !s.running.CompareAndSwap(-1, int32(id)) {
		return fmt.Errorf("%w: coroutine %d is already running", ErrAlreadyRunning, s.running.Load())
	}

	status := co.status()
	co.setStatus(StatusRunning)

	s.waitMu.Lock()
	switch status {
	case StatusReady:
		task := &workerpool.Task{
			Fn: func(arg any) { s.trampoline(arg.(*coroutine)) },
			Arg: co,
		}
		s.pool.Submit(task)

	case StatusSuspend:
		co.mu.Lock()
		co.cond.Signal()
		co.mu.Unlock()

	default:
		s.waitMu.Unlock()
		s.running.Store(-1)
		return fmt.Errorf("coro: coroutine %d is not resumable (status %s)", id, status)
	}

	s.waitCond.Wait() // releases waitMu, blocks until the slice ends, reacquires
	s.waitMu.Unlock()

	return co.takePanic()
}

// Yield suspends the coroutine currently RUNNING on this scheduler,
// parking its worker thread until the next Resume. It must be called from
// the worker goroutine executing that coroutine. If no coroutine is
// RUNNING, Yield is a no-op.
func (s *Scheduler) Yield() {
	id := s.running.Load()
	if id == -1 {
		return
	}

	s.tableMu.RLock()
	var co *coroutine
	if int(id) >= 0 && int(id) < len(s.co) {
		co = s.co[id]
	}
	s.tableMu.RUnlock()
	if co == nil {
		return
	}

	co.setStatus(StatusSuspend)
	s.running.Store(-1)

	co.mu.Lock()

	s.waitMu.Lock()
	s.waitCond.Signal()
	s.waitMu.Unlock()

	co.cond.Wait() // releases co.mu, blocks until resumed, reacquires
	co.mu.Unlock()
}

// Status reports a coroutine's current state. A never-allocated or
// cleared slot reports Dead.
func (s *Scheduler) Status(id int) Status {
	s.tableMu.RLock()
	defer s.tableMu.RUnlock()
	if id < 0 || id >= len(s.co) || s.co[id] == nil {
		return StatusDead
	}
	return s.co[id].status()
}

// Running returns the id of the coroutine currently RUNNING on this
// scheduler, or -1 if none.
func (s *Scheduler) Running() int {
	return int(s.running.Load())
}

// Done returns a channel closed when Close is called, so a coroutine body
// may cooperatively check it at a yield point and unwind. Checking it is
// never required: the Non-goal of preemption means a coroutine that never
// checks Done simply keeps running until it yields or returns on its own.
func (s *Scheduler) Done() <-chan struct{} {
	return s.closing
}

// Close marks the scheduler closed, so that further Resume calls return
// ErrSchedulerClosed and further New calls panic, and destroys every live
// coroutine's table entry. It does not wait for RUNNING or SUSPEND coroutines to reach
// Dead — the caller is responsible for that, exactly as documented for
// the reference implementation. A second Close is idempotent and returns
// ErrSchedulerClosed.
func (s *Scheduler) Close() error {
	alreadyClosed := true
	s.closeOnce.Do(func() {
		alreadyClosed = false

		s.tableMu.Lock()
		s.closed = true
		s.co = nil
		s.nco = 0
		s.tableMu.Unlock()

		close(s.closing)

		s.logger.WithFields(logrus.Fields{
			"scheduler": s.name,
		}).Debug("coro: scheduler closed")
	})
	if alreadyClosed {
		return ErrSchedulerClosed
	}
	return nil
}

// trampoline is submitted as a pool task's function, bound to one
// coroutine. It runs the coroutine's entry function and, whether it
// returns or panics, performs the RUNNING->DEAD transition (spec §4.4).
func (s *Scheduler) trampoline(co *coroutine) {
	defer func() {
		if r := recover(); r != nil {
			co.panicValue = r
			co.panicked = true
		}
		s.finishCoroutine(co)
	}()
	co.mainFunc(s, co.ud)
}

// finishCoroutine performs the RUNNING->DEAD transition: clear the slot,
// decrement the live count, mark no coroutine running, then wake the
// resumer (spec §4.3 "RUNNING -> DEAD").
func (s *Scheduler) finishCoroutine(co *coroutine) {
	s.tableMu.Lock()
	if co.id < len(s.co) && s.co[co.id] == co {
		s.co[co.id] = nil
		s.nco--
	}
	s.tableMu.Unlock()

	co.setStatus(StatusDead)
	s.running.Store(-1)

	s.waitMu.Lock()
	s.waitCond.Signal()
	s.waitMu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"scheduler": s.name,
		"id":        co.id,
		"panicked":  co.panicked,
	}).Debug("coro: coroutine finished")
}

// Stats is a diagnostic snapshot of a Scheduler's coroutine table.
type Stats struct {
	Capacity int
	Count    int
	Running  int
}

// Stats returns a snapshot of the scheduler's table capacity, live
// coroutine count, and currently-running id, for diagnostics — the
// Go-native analogue of steel-orchestrator's /status endpoint and
// so-http10-demo's metrics() snapshot.
func (s *Scheduler) Stats() Stats {
	s.tableMu.RLock()
	defer s.tableMu.RUnlock()
	return Stats{
		Capacity: len(s.co),
		Count:    s.nco,
		Running:  int(s.running.Load()),
	}
}
