package weft

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"
	"unsafe"
)

// resumeMode is the signal a parked fiber receives on its resume channel.
type resumeMode int

const (
	resumeRun  resumeMode = iota // take the thread of control
	resumeKill                   // unwind and exit; the runtime is tearing down
)

// killSignal is panicked inside a fiber to unwind its body during teardown.
type killSignal struct{}

// Fiber is a cooperatively scheduled execution unit. Each fiber runs its
// Body on a dedicated goroutine, but an unbuffered resume channel per fiber
// plus the scheduler's parking channel guarantee that at most one of them,
// or the scheduler itself, is executing at any instant. The goroutine's
// stack is the fiber's stack: reserved lazily and grown by copying, with
// usage checked against Config.MaxStackBytes at every suspension point.
//
// All fields are owned by whichever context currently holds the thread of
// control, so no locking is needed.
type Fiber struct {
	id     int
	rt     *Runtime
	state  FiberState
	body   Body
	resume chan resumeMode
	err    error

	// stackBase anchors the stack usage measurement; re-anchored whenever
	// the goroutine stack has been moved since the last suspension point.
	stackBase uintptr

	// wake carries the result of an event-loop registration back to
	// Subscribe when the fiber is resumed.
	wake Wake
}

// ID returns the fiber's identity, unique within its Runtime.
func (f *Fiber) ID() int {
	return f.id
}

// State returns the fiber's current lifecycle state.
func (f *Fiber) State() FiberState {
	return f.state
}

// Err returns the error the fiber died with, or nil.
func (f *Fiber) Err() error {
	return f.err
}

// newFiber creates a fiber in StateCreated and starts its goroutine parked
// on the resume channel. The body does not execute until the scheduler
// hands the fiber the thread of control.
func (rt *Runtime) newFiber(body Body) *Fiber {
	f := &Fiber{
		id:     rt.nextFiberID,
		rt:     rt,
		state:  StateCreated,
		body:   body,
		resume: make(chan resumeMode),
	}
	rt.nextFiberID++
	rt.fibers[f.id] = f
	rt.spawned++
	rt.wg.Add(1)
	go f.trampoline()
	rt.logger.DebugCat(CatFiber, "fiber %d created", f.id)
	return f
}

// Spawn creates a new fiber for body and appends it to the ready queue.
// The body does not run until the spawning fiber reaches a suspension
// point and the scheduler works its way to the new fiber. The returned
// handle can be inspected but carries no join semantics: if the main
// fiber returns first, the spawned fiber is discarded.
func (f *Fiber) Spawn(body Body) *Fiber {
	child := f.rt.newFiber(body)
	child.state = StateReady
	f.rt.enqueueReady(child)
	return child
}

// Yield moves the calling fiber to the back of the ready queue and hands
// control to the scheduler. It returns when the fiber's turn comes around
// again.
func (f *Fiber) Yield() {
	f.checkStack()
	f.rt.logger.TraceCat(CatFiber, "fiber %d yields", f.id)
	f.state = StateReady
	f.rt.enqueueReady(f)
	f.switchToScheduler()
}

// Sleep suspends the calling fiber until at least d has elapsed. It is a
// timer registration with the event loop: the fiber waits, and the
// scheduler resumes it once the deadline has passed and its ready-queue
// turn arrives.
func (f *Fiber) Sleep(d time.Duration) {
	f.checkStack()
	f.rt.loop.addTimer(f, time.Now().Add(d))
	f.state = StateWaiting
	f.switchToScheduler()
}

// Subscribe suspends the calling fiber until the descriptor satisfies the
// requested interest, or until the deadline passes (zero deadline means
// none). At most one fiber may wait on a given descriptor at a time.
func (f *Fiber) Subscribe(fd int, interest Interest, deadline time.Time) (Wake, error) {
	f.checkStack()
	if err := f.rt.loop.addFD(f, fd, interest, deadline); err != nil {
		return WakeReady, err
	}
	f.state = StateWaiting
	f.switchToScheduler()
	return f.wake, nil
}

// trampoline is the fiber goroutine. It parks until first scheduled, runs
// the body, records the outcome, and returns the thread of control to the
// scheduler. A resumeKill at any parking point unwinds the body via
// killSignal without touching any shared runtime state, because teardown
// runs concurrently with killed fibers.
func (f *Fiber) trampoline() {
	defer f.rt.wg.Done()

	if <-f.resume == resumeKill {
		// Spawned but never scheduled.
		f.state = StateDead
		return
	}

	var anchor byte
	f.stackBase = uintptr(unsafe.Pointer(&anchor))

	killed := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(killSignal); ok {
					killed = true
					return
				}
				if err, ok := r.(error); ok && errors.Is(err, ErrStackOverflow) {
					f.err = err
					return
				}
				f.err = fmt.Errorf("weft: fiber %d panicked: %v\n%s", f.id, r, debug.Stack())
			}
		}()
		f.err = f.body(f)
	}()

	f.state = StateDead
	if killed {
		return
	}

	if f.err != nil {
		f.rt.logger.DebugCat(CatFiber, "fiber %d died with error: %v", f.id, f.err)
	} else {
		f.rt.logger.DebugCat(CatFiber, "fiber %d finished", f.id)
	}
	delete(f.rt.fibers, f.id)
	f.rt.schedCh <- struct{}{}
}

// switchToScheduler hands the thread of control back to the scheduler and
// parks until this fiber is resumed. The caller must already have placed
// the fiber wherever it belongs (ready queue, a wait queue, or an event
// loop registration) and set its state.
func (f *Fiber) switchToScheduler() {
	f.rt.schedCh <- struct{}{}
	if <-f.resume == resumeKill {
		panic(killSignal{})
	}
}

// checkStack measures the fiber's stack usage against the configured
// limit. Goroutine stacks grow by copying, so a measurement that lands
// outside the plausible range of the recorded anchor means the stack has
// moved; the anchor is then reset and the fiber gets a fresh measurement
// window. The check therefore under-reports across a move but can never
// falsely kill a fiber.
func (f *Fiber) checkStack() {
	limit := f.rt.config.MaxStackBytes
	if limit <= 0 {
		return
	}
	var probe byte
	sp := uintptr(unsafe.Pointer(&probe))
	if f.stackBase == 0 || sp > f.stackBase || f.stackBase-sp > uintptr(limit)*4 {
		f.stackBase = sp
		return
	}
	if used := int(f.stackBase - sp); used > limit {
		panic(fmt.Errorf("%w: fiber %d is using about %d bytes of stack (limit %d)",
			ErrStackOverflow, f.id, used, limit))
	}
}
