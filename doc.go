// Package coro implements symmetric, stackful coroutines with a Lua-style
// resume/yield API, hosted on a fixed-size worker-thread pool (package
// internal/workerpool).
//
// A coroutine runs to its next yield or return on whichever worker thread
// picks it up; the goroutine that called Resume is blocked for the
// duration of that slice, so from the resumer's point of view the
// coroutine is single-threaded. Exactly one coroutine per Scheduler may be
// RUNNING at any instant — this rendezvous, driven by a pair of condition
// variables per exchange, is the core of the package.
//
// A minimal ping-pong coroutine:
//
//	sched := coro.Open()
//	id := sched.New(func(s *coro.Scheduler, ud any) {
//		fmt.Println("A")
//		s.Yield()
//		fmt.Println("B")
//	}, nil)
//	sched.Resume(id) // prints "A"
//	sched.Resume(id) // prints "B"
//
// The maximum number of simultaneously SUSPEND coroutines across the whole
// process is bounded by workerpool.DefaultWorkers-1: every suspended
// coroutine parks one worker thread. Exceeding this bound deadlocks the
// process — this is a documented limitation, not a bug, inherited from
// the reference design this package implements.
package coro
