// Package workerpool implements the fixed-size, process-wide worker-thread
// pool that hosts coroutine slices for package coro.
//
// A Pool owns a sparse, doubling task-slot array guarded by a mutex and a
// condition variable, and a fixed set of worker goroutines draining it. Open
// builds a new Pool on every call; package coro opens its process-wide pool
// lazily, once. A Pool is never torn down: workers block on the queue's
// condition variable when idle and are never told to exit during normal
// operation.
package workerpool

import (
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultWorkers is the worker-thread count a Pool opens with unless
// overridden by WithWorkers. It mirrors the reference C implementation's
// DEFAULT_THREAD, and bounds the number of coroutines that may be
// simultaneously suspended across the whole process to DefaultWorkers-1.
const DefaultWorkers = 16

// initialQueueCapacity is the task-slot array's starting size, doubled on
// demand by Submit. It matches the reference implementation's initial
// capacity of 16.
const initialQueueCapacity = 16

// Task is a single unit of work submitted to a Pool: a function paired
// with an opaque argument it receives unchanged. A Task is consumed
// exactly once by exactly one worker and is never retried.
type Task struct {
	Fn  func(arg any)
	Arg any
}

// Option configures a Pool at Open time.
type Option func(*config)

type config struct {
	workers         int
	initialCapacity int
	logger          logrus.FieldLogger
}

// WithWorkers sets the worker-goroutine count. Values <= 0 normalize to
// DefaultWorkers; values above runtime.GOMAXPROCS(0)*32 are clamped down
// to that ceiling, the same clamp shape the teacher pool uses for its own
// worker count, applied here against a different default and ceiling
// because these workers spend most of their life parked on a coroutine's
// condition variable rather than running CPU-bound work.
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// WithInitialCapacity sets the task queue's starting slot count. Values
// <= 0 normalize to initialQueueCapacity.
func WithInitialCapacity(n int) Option {
	return func(c *config) { c.initialCapacity = n }
}

// WithLogger overrides the pool's structured logger. A nil logger is
// ignored.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// Pool is a fixed-size worker-thread pool draining a shared, sparse,
// doubling queue of Tasks.
type Pool struct {
	mu   sync.Mutex
	cond *sync.Cond

	slots []*Task // sparse: nil entries are empty slots
	count int     // number of non-nil slots

	workers  int
	workerWG sync.WaitGroup

	logger logrus.FieldLogger
}

// Open creates the queue, spawns the configured (or default) number of
// worker goroutines, and returns immediately. Open never fails in normal
// operation: a failure to allocate is a fatal, unrecoverable condition in
// Go just as it is in the reference C implementation, and is left to
// panic the process rather than being wrapped in a typed error.
func Open(opts ...Option) *Pool {
	cfg := config{
		workers:         DefaultWorkers,
		initialCapacity: initialQueueCapacity,
		logger:          logrus.New(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.workers <= 0 {
		cfg.workers = DefaultWorkers
	}
	if ceiling := runtime.GOMAXPROCS(0) * 32; cfg.workers > ceiling {
		cfg.workers = ceiling
	}
	if cfg.initialCapacity <= 0 {
		cfg.initialCapacity = initialQueueCapacity
	}

	p := &Pool{
		slots:   make([]*Task, cfg.initialCapacity),
		workers: cfg.workers,
		logger:  cfg.logger,
	}
	p.cond = sync.NewCond(&p.mu)

	p.logger.WithFields(logrus.Fields{
		"pool_workers":  p.workers,
		"initial_slots": cfg.initialCapacity,
	}).Debug("workerpool: opened")

	for i := 0; i < p.workers; i++ {
		p.workerWG.Add(1)
		go p.drain(i)
	}

	return p
}

// Submit enqueues a task. If the queue is full, its capacity is doubled
// (new slots are zero-valued nil), the task is placed in the first newly
// allocated slot, and one parked worker is woken. Otherwise the task is
// placed in the lowest-indexed empty slot and one parked worker is woken.
// Submit holds the queue mutex for the entire operation.
func (p *Pool) Submit(t *Task) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.count >= len(p.slots) {
		oldLen := len(p.slots)
		grown := make([]*Task, oldLen*2)
		copy(grown, p.slots)
		p.slots = grown
		p.slots[oldLen] = t
		p.count++

		p.logger.WithFields(logrus.Fields{
			"queue_len": p.count,
			"queue_cap": len(p.slots),
		}).Debug("workerpool: queue grown")

		p.cond.Signal()
		return
	}

	for i, slot := range p.slots {
		if slot == nil {
			p.slots[i] = t
			p.count++
			p.cond.Signal()
			return
		}
	}

	// Unreachable: count < len(slots) guarantees an empty slot exists.
	panic("workerpool: queue full slot accounting invariant violated")
}

// take removes and returns the lowest-indexed non-empty slot's task,
// blocking on the condition variable while the queue is empty. It is
// internal to workers: callers outside the drain loop never invoke it.
func (p *Pool) take() *Task {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.count == 0 {
		p.cond.Wait()
	}

	for i, slot := range p.slots {
		if slot != nil {
			p.slots[i] = nil
			p.count--
			return slot
		}
	}

	// Unreachable: count > 0 guarantees a non-empty slot exists.
	panic("workerpool: queue empty slot accounting invariant violated")
}

// drain is the worker goroutine's loop: take a task, run it, recover any
// panic (a task's function is never retried), repeat forever.
func (p *Pool) drain(id int) {
	defer p.workerWG.Done()

	for {
		task := p.take()
		p.runTask(id, task)
	}
}

func (p *Pool) runTask(workerID int, task *Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithFields(logrus.Fields{
				"worker_id": workerID,
				"panic":     r,
			}).Error("workerpool: task panicked, discarding")
		}
	}()
	task.Fn(task.Arg)
}

// Stats is a diagnostic snapshot of a Pool's configuration and current
// queue occupancy.
type Stats struct {
	Workers  int
	QueueLen int
	QueueCap int
}

// Stats returns a snapshot of the pool's current worker count and queue
// occupancy, for diagnostics — the Go-native analogue of
// steel-orchestrator's /status endpoint and so-http10-demo's metrics()
// snapshot, minus any HTTP surface (out of scope for this module).
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Workers:  p.workers,
		QueueLen: p.count,
		QueueCap: len(p.slots),
	}
}
