package weft

import (
	"container/heap"
	"fmt"
	"time"
)

// registration tracks one waiting fiber on the event loop: a descriptor
// interest, a timer deadline, or both (a descriptor wait with a timeout).
// fd is -1 for pure timers; index is the heap position, -1 when the
// registration has no deadline.
type registration struct {
	f        *Fiber
	fd       int
	interest Interest
	deadline time.Time
	index    int
}

// timerHeap orders registrations by deadline, earliest first.
type timerHeap []*registration

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	reg := x.(*registration)
	reg.index = len(*h)
	*h = append(*h, reg)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	reg := old[n-1]
	old[n-1] = nil
	reg.index = -1
	*h = old[:n-1]
	return reg
}

// eventLoop is the runtime's source of external wakeups: descriptor
// readiness and timer expiry. The scheduler consults it only when the
// ready queue is empty, so loop-driven wakeups never preempt runnable
// fibers.
type eventLoop struct {
	rt     *Runtime
	poller Poller
	byFD   map[int]*registration
	timers timerHeap
}

func newEventLoop(rt *Runtime) *eventLoop {
	return &eventLoop{
		rt:     rt,
		poller: newPoller(),
		byFD:   make(map[int]*registration),
	}
}

// hasPending reports whether any fiber is waiting on the loop. When the
// ready queue is empty and this is false, the program is deadlocked.
func (l *eventLoop) hasPending() bool {
	return len(l.byFD) > 0 || l.timers.Len() > 0
}

// addTimer registers a pure sleep for f expiring at deadline.
func (l *eventLoop) addTimer(f *Fiber, deadline time.Time) {
	reg := &registration{f: f, fd: -1, deadline: deadline, index: -1}
	heap.Push(&l.timers, reg)
	l.rt.logger.TraceCat(CatTimer, "fiber %d sleeps until %s", f.id, deadline.Format(time.RFC3339Nano))
}

// addFD registers f's interest in a descriptor, with an optional deadline
// (zero means wait indefinitely). Each descriptor admits one waiter.
func (l *eventLoop) addFD(f *Fiber, fd int, interest Interest, deadline time.Time) error {
	if fd < 0 {
		return fmt.Errorf("invalid descriptor %d", fd)
	}
	if interest&(Readable|Writable) == 0 {
		return fmt.Errorf("descriptor %d subscribed with no interest", fd)
	}
	if _, busy := l.byFD[fd]; busy {
		return fmt.Errorf("descriptor %d already has a waiting fiber", fd)
	}
	if err := l.poller.Add(fd, interest); err != nil {
		return fmt.Errorf("registering descriptor %d: %w", fd, err)
	}
	reg := &registration{f: f, fd: fd, interest: interest, deadline: deadline, index: -1}
	l.byFD[fd] = reg
	if !deadline.IsZero() {
		heap.Push(&l.timers, reg)
	}
	l.rt.logger.TraceCat(CatIO, "fiber %d waits on descriptor %d", f.id, fd)
	return nil
}

// runOnce blocks until at least one registration fires, then wakes every
// fiber whose descriptor is ready or whose deadline has passed. Called by
// the scheduler with an empty ready queue and hasPending true.
func (l *eventLoop) runOnce() error {
	timeout := time.Duration(-1)
	if l.timers.Len() > 0 {
		timeout = time.Until(l.timers[0].deadline)
		if timeout < 0 {
			timeout = 0
		}
	}
	if l.rt.config.MaxPollMillis > 0 {
		limit := time.Duration(l.rt.config.MaxPollMillis) * time.Millisecond
		if timeout < 0 || timeout > limit {
			timeout = limit
		}
	}

	events, err := l.poller.Wait(timeout)
	if err != nil {
		return fmt.Errorf("polling: %w", err)
	}

	for _, ev := range events {
		reg, ok := l.byFD[ev.FD]
		if !ok || reg.interest&ev.Ready == 0 {
			continue
		}
		l.remove(reg)
		l.wake(reg, WakeReady)
	}

	now := time.Now()
	for l.timers.Len() > 0 && !l.timers[0].deadline.After(now) {
		reg := heap.Pop(&l.timers).(*registration)
		if reg.fd >= 0 {
			delete(l.byFD, reg.fd)
			l.poller.Remove(reg.fd)
		}
		l.wake(reg, WakeTimeout)
	}

	return nil
}

// remove drops a registration from the fd table and, if it carries a
// deadline, from the timer heap.
func (l *eventLoop) remove(reg *registration) {
	delete(l.byFD, reg.fd)
	l.poller.Remove(reg.fd)
	if reg.index >= 0 {
		heap.Remove(&l.timers, reg.index)
	}
}

func (l *eventLoop) wake(reg *registration, w Wake) {
	l.rt.logger.TraceCat(CatLoop, "fiber %d wakes: %s", reg.f.id, w)
	reg.f.wake = w
	reg.f.state = StateReady
	l.rt.enqueueReady(reg.f)
}

func (l *eventLoop) close() {
	l.poller.Close()
	l.byFD = make(map[int]*registration)
	l.timers = nil
}
