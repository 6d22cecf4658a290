package weft

// sendWaiter is a fiber blocked in Send, holding the value it wants to
// deliver. When the value has been taken (or the channel closed) the
// fiber is marked Ready and reads the outcome from these fields.
type sendWaiter[T any] struct {
	f      *Fiber
	value  T
	closed bool
}

// recvWaiter is a fiber blocked in Recv. It is woken either by a sender
// that hands it a value directly (delivered=true) or by Close.
type recvWaiter[T any] struct {
	f         *Fiber
	value     T
	delivered bool
	closed    bool
}

// Channel is a bounded rendezvous queue connecting sending and receiving
// fibers of one Runtime. Capacity zero means every transfer is a direct
// handoff between a send and a receive. Wait queues on both sides are
// strict FIFO (first blocked, first served), which is what makes the
// interleavings of a program deterministic.
//
// Like everything else in this package, a Channel must only be used from
// fibers of the Runtime it was created on.
type Channel[T any] struct {
	rt       *Runtime
	capacity int
	buf      []T
	sendq    []*sendWaiter[T]
	recvq    []*recvWaiter[T]
	closed   bool
}

// NewChannel creates a channel with the given capacity. Capacity zero
// makes it unbuffered: every Send rendezvouses with a Recv.
func NewChannel[T any](rt *Runtime, capacity int) *Channel[T] {
	if capacity < 0 {
		panic("weft: channel capacity must not be negative")
	}
	return &Channel[T]{rt: rt, capacity: capacity}
}

// Cap returns the channel's buffer capacity.
func (ch *Channel[T]) Cap() int {
	return ch.capacity
}

// Len returns the number of values currently buffered.
func (ch *Channel[T]) Len() int {
	return len(ch.buf)
}

// IsClosed reports whether Close has been called.
func (ch *Channel[T]) IsClosed() bool {
	return ch.closed
}

// Send delivers v to the channel, suspending the calling fiber when the
// transfer cannot complete immediately. It returns ErrClosedChannel if the
// channel is closed now or becomes closed while the fiber waits.
//
// A waiting receiver always takes the value directly, bypassing the
// buffer (receivers only block when the buffer is empty, so it still is).
// Such a handoff costs the sender its turn only when the buffer has no
// free room, which is every handoff on an unbuffered channel. With no
// receiver waiting, the value goes into free buffer space without a
// switch, and a full buffer blocks the sender in FIFO order behind
// earlier senders.
func (ch *Channel[T]) Send(f *Fiber, v T) error {
	f.checkStack()
	if ch.closed {
		return ErrClosedChannel
	}

	if r := ch.popRecv(); r != nil {
		r.value = v
		r.delivered = true
		r.f.state = StateReady
		ch.rt.enqueueReady(r.f)
		ch.rt.logger.TraceCat(CatChannel, "fiber %d handed a value to fiber %d", f.id, r.f.id)
		if len(ch.buf) == ch.capacity {
			// The rendezvous is complete, but a capacity-exhausted send
			// still costs the sender its turn.
			f.state = StateReady
			ch.rt.enqueueReady(f)
			f.switchToScheduler()
		}
		return nil
	}

	if len(ch.buf) < ch.capacity {
		ch.buf = append(ch.buf, v)
		ch.rt.logger.TraceCat(CatChannel, "fiber %d buffered a value (%d/%d)", f.id, len(ch.buf), ch.capacity)
		return nil
	}

	w := &sendWaiter[T]{f: f, value: v}
	ch.sendq = append(ch.sendq, w)
	ch.rt.logger.TraceCat(CatChannel, "fiber %d waiting to send", f.id)
	f.state = StateWaiting
	f.switchToScheduler()
	if w.closed {
		return ErrClosedChannel
	}
	return nil
}

// Recv takes the next value from the channel, suspending the calling
// fiber when none is available. The second result is false only when the
// channel is closed and empty; buffered values are still drained after
// Close.
//
// A receive that finds a buffered value returns it without giving up the
// calling fiber's turn; if that freed a slot and a sender is waiting, the
// eldest waiting sender's value moves into the buffer and that sender is
// marked Ready. A receive on an empty channel takes the eldest waiting
// sender's value directly, and blocks in FIFO order when there is none. A
// blocked receiver is woken only by a direct handoff or by Close, so it
// never re-examines the buffer.
func (ch *Channel[T]) Recv(f *Fiber) (T, bool) {
	f.checkStack()

	if len(ch.buf) > 0 {
		v := ch.buf[0]
		ch.buf = ch.buf[1:]
		if s := ch.popSend(); s != nil {
			ch.buf = append(ch.buf, s.value)
			s.f.state = StateReady
			ch.rt.enqueueReady(s.f)
		}
		return v, true
	}

	if s := ch.popSend(); s != nil {
		s.f.state = StateReady
		ch.rt.enqueueReady(s.f)
		return s.value, true
	}

	if ch.closed {
		var zero T
		return zero, false
	}

	w := &recvWaiter[T]{f: f}
	ch.recvq = append(ch.recvq, w)
	ch.rt.logger.TraceCat(CatChannel, "fiber %d waiting to receive", f.id)
	f.state = StateWaiting
	f.switchToScheduler()
	if w.closed {
		var zero T
		return zero, false
	}
	return w.value, w.delivered
}

// Close marks the channel closed and wakes every waiting fiber: receivers
// first, then senders, each in FIFO order. Woken receivers observe the
// closed indicator, woken senders get ErrClosedChannel. Closing an
// already-closed channel returns ErrClosedChannel. Close is not a
// suspension point; the calling fiber keeps running.
func (ch *Channel[T]) Close() error {
	if ch.closed {
		return ErrClosedChannel
	}
	ch.closed = true
	ch.rt.logger.DebugCat(CatChannel, "channel closed with %d receivers and %d senders waiting",
		len(ch.recvq), len(ch.sendq))

	for _, r := range ch.recvq {
		r.closed = true
		r.f.state = StateReady
		ch.rt.enqueueReady(r.f)
	}
	ch.recvq = nil

	for _, s := range ch.sendq {
		s.closed = true
		s.f.state = StateReady
		ch.rt.enqueueReady(s.f)
	}
	ch.sendq = nil

	return nil
}

// popRecv removes and returns the eldest waiting receiver, or nil.
func (ch *Channel[T]) popRecv() *recvWaiter[T] {
	if len(ch.recvq) == 0 {
		return nil
	}
	r := ch.recvq[0]
	ch.recvq = ch.recvq[1:]
	return r
}

// popSend removes and returns the eldest waiting sender, or nil.
func (ch *Channel[T]) popSend() *sendWaiter[T] {
	if len(ch.sendq) == 0 {
		return nil
	}
	s := ch.sendq[0]
	ch.sendq = ch.sendq[1:]
	return s
}
