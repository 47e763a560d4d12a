package coro

import (
	"errors"
	"fmt"
)

// Sentinel errors for the programmer-error fault class: violated
// invariants such as a nested resume or an out-of-range coroutine id.
// Unlike the reference C implementation, which treats these as fatal
// assertions, a Go library boundary returns them as typed errors the
// caller must not ignore.
var (
	// ErrInvalidID is returned by Resume for an id outside [0, capacity)
	// of the scheduler's coroutine table. Status does not return it: it
	// reports StatusDead for such an id.
	ErrInvalidID = errors.New("coro: invalid coroutine id")

	// ErrAlreadyRunning is returned by Resume when the scheduler already
	// has a coroutine RUNNING — resume is not reentrant.
	ErrAlreadyRunning = errors.New("coro: scheduler already has a running coroutine")

	// ErrSchedulerClosed is returned by Resume and by a second Close
	// against a scheduler that has already been closed. New on a closed
	// scheduler panics instead.
	ErrSchedulerClosed = errors.New("coro: scheduler is closed")
)

// CoroutinePanic wraps a value recovered from a panicking coroutine body.
// It is returned by Resume on the call whose slice triggered the panic;
// the coroutine's slot has already transitioned to Dead by the time the
// caller observes it, exactly as if the coroutine had returned normally.
type CoroutinePanic struct {
	// ID is the coroutine id that panicked.
	ID int
	// Value is the value passed to panic() inside the coroutine body.
	Value any
}

func (p *CoroutinePanic) Error() string {
	return fmt.Sprintf("coro: coroutine %d panicked: %v", p.ID, p.Value)
}
