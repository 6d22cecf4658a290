package weft

import (
	"errors"
)

// FiberState tracks where a fiber is in its lifecycle.
type FiberState int

const (
	// StateCreated means the fiber exists but has never been scheduled.
	StateCreated FiberState = iota
	// StateReady means the fiber is in the ready queue waiting for a turn.
	StateReady
	// StateRunning means the fiber currently holds the thread of control.
	StateRunning
	// StateWaiting means the fiber is parked on a channel, timer or descriptor.
	StateWaiting
	// StateDead means the fiber's body returned or failed; it is never rescheduled.
	StateDead
)

// String returns the lowercase name of the state.
func (s FiberState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateWaiting:
		return "waiting"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Body is the code a fiber executes. The error it returns (or the panic it
// raises) is recorded on that fiber alone; it never propagates to the fiber
// that spawned it. The main fiber's error becomes the result of Run.
type Body func(f *Fiber) error

// Interest selects which readiness conditions a Subscribe call waits for.
type Interest uint8

const (
	// Readable wakes the fiber when the descriptor has data to read.
	Readable Interest = 1 << iota
	// Writable wakes the fiber when the descriptor can accept a write.
	Writable
)

// Wake reports why a Subscribe call returned.
type Wake int

const (
	// WakeReady means the requested readiness condition was satisfied.
	WakeReady Wake = iota
	// WakeTimeout means the deadline passed first.
	WakeTimeout
)

// String returns "ready" or "timeout".
func (w Wake) String() string {
	if w == WakeTimeout {
		return "timeout"
	}
	return "ready"
}

var (
	// ErrClosedChannel is returned by Send after Close, and reported to any
	// fiber that was still waiting on the channel when it was closed.
	ErrClosedChannel = errors.New("weft: operation on closed channel")

	// ErrDeadlock is returned by Run when no fiber is runnable, the event
	// loop has nothing pending, and at least one fiber is still waiting.
	ErrDeadlock = errors.New("weft: deadlock: all fibers are waiting and no event is pending")

	// ErrStackOverflow kills a fiber whose stack usage exceeds the
	// configured limit. It is fatal to the whole run when the fiber is the
	// main one.
	ErrStackOverflow = errors.New("weft: fiber stack overflow")
)
