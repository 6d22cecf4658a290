package weft

import (
	"errors"
	"fmt"
	"testing"
)

// trace collects output from interleaved fibers. Only one fiber runs at a
// time, so plain appends are enough.
type trace struct {
	events []string
}

func (tr *trace) add(format string, args ...interface{}) {
	tr.events = append(tr.events, fmt.Sprintf(format, args...))
}

func (tr *trace) contains(event string) bool {
	for _, e := range tr.events {
		if e == event {
			return true
		}
	}
	return false
}

func expectTrace(t *testing.T, tr *trace, want []string) {
	t.Helper()
	if len(tr.events) != len(want) {
		t.Fatalf("got %d events %v, want %d events %v", len(tr.events), tr.events, len(want), want)
	}
	for i := range want {
		if tr.events[i] != want[i] {
			t.Errorf("event %d: got %q, want %q (full trace %v)", i, tr.events[i], want[i], tr.events)
		}
	}
}

func TestUnbufferedRendezvousOrder(t *testing.T) {
	rt := New(nil)
	tr := &trace{}

	err := rt.Run(func(f *Fiber) error {
		ch := NewChannel[int](rt, 0)
		f.Spawn(func(f *Fiber) error {
			tr.add("Before first send")
			if err := ch.Send(f, 1); err != nil {
				return err
			}
			tr.add("Before second send")
			return ch.Send(f, 2)
		})
		tr.add("Before first receive")
		v, _ := ch.Recv(f)
		tr.add("%d", v)
		tr.add("Before second receive")
		v, _ = ch.Recv(f)
		tr.add("%d", v)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	expectTrace(t, tr, []string{
		"Before first receive",
		"Before first send",
		"1",
		"Before second receive",
		"Before second send",
		"2",
	})
}

func TestBufferedCapacityTwoSendsCompleteFirst(t *testing.T) {
	rt := New(nil)
	tr := &trace{}

	err := rt.Run(func(f *Fiber) error {
		ch := NewChannel[int](rt, 2)
		f.Spawn(func(f *Fiber) error {
			for i := 1; i <= 3; i++ {
				tr.add("Before send %d", i)
				if err := ch.Send(f, i); err != nil {
					return err
				}
			}
			tr.add("After send")
			return nil
		})
		for i := 0; i < 3; i++ {
			v, _ := ch.Recv(f)
			tr.add("%d", v)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The first send hands its value straight to the already-waiting main
	// fiber; with free buffer room that costs the sender nothing. The
	// other two fit the buffer, so the sender runs to completion before
	// the main fiber prints a single value.
	expectTrace(t, tr, []string{
		"Before send 1",
		"Before send 2",
		"Before send 3",
		"After send",
		"1",
		"2",
		"3",
	})
}

func TestBufferedCapacityOneSenderDiscarded(t *testing.T) {
	rt := New(nil)
	tr := &trace{}

	err := rt.Run(func(f *Fiber) error {
		ch := NewChannel[int](rt, 1)
		f.Spawn(func(f *Fiber) error {
			for i := 1; i <= 3; i++ {
				if err := ch.Send(f, i); err != nil {
					return err
				}
			}
			tr.add("End of send fiber")
			return nil
		})
		for i := 0; i < 3; i++ {
			v, _ := ch.Recv(f)
			tr.add("%d", v)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	expectTrace(t, tr, []string{"1", "2", "3"})
	if tr.contains("End of send fiber") {
		t.Error("sender's final statement ran even though the main fiber exited first")
	}
}

func TestTrailingYieldGivesSenderFinalTurn(t *testing.T) {
	rt := New(nil)
	tr := &trace{}

	err := rt.Run(func(f *Fiber) error {
		ch := NewChannel[int](rt, 1)
		f.Spawn(func(f *Fiber) error {
			for i := 1; i <= 3; i++ {
				if err := ch.Send(f, i); err != nil {
					return err
				}
			}
			tr.add("End of send fiber")
			return nil
		})
		for i := 0; i < 3; i++ {
			v, _ := ch.Recv(f)
			tr.add("%d", v)
		}
		f.Yield()
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !tr.contains("End of send fiber") {
		t.Errorf("trailing yield did not give the sender its final turn: %v", tr.events)
	}
}

func TestFIFOOrderAcrossCapacities(t *testing.T) {
	const n = 20
	for _, capacity := range []int{0, 1, 2, 5, n} {
		rt := New(nil)
		var got []int

		err := rt.Run(func(f *Fiber) error {
			ch := NewChannel[int](rt, capacity)
			f.Spawn(func(f *Fiber) error {
				for i := 0; i < n; i++ {
					if err := ch.Send(f, i); err != nil {
						return err
					}
				}
				return nil
			})
			for i := 0; i < n; i++ {
				v, ok := ch.Recv(f)
				if !ok {
					return errors.New("channel reported closed")
				}
				got = append(got, v)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("capacity %d: Run: %v", capacity, err)
		}
		if len(got) != n {
			t.Fatalf("capacity %d: received %d values, want %d", capacity, len(got), n)
		}
		for i, v := range got {
			if v != i {
				t.Errorf("capacity %d: position %d holds %d, want %d", capacity, i, v, i)
			}
		}
	}
}

func TestWaitingSendersServedFIFO(t *testing.T) {
	rt := New(nil)
	var got []string

	err := rt.Run(func(f *Fiber) error {
		ch := NewChannel[string](rt, 0)
		for _, name := range []string{"first", "second", "third"} {
			name := name
			f.Spawn(func(f *Fiber) error {
				return ch.Send(f, name)
			})
		}
		// Let every sender reach its blocking send before receiving.
		f.Yield()
		for i := 0; i < 3; i++ {
			v, _ := ch.Recv(f)
			got = append(got, v)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("receive %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCloseWakesAllWaiters(t *testing.T) {
	rt := New(nil)
	var recvClosed, sendClosed int

	err := rt.Run(func(f *Fiber) error {
		recvCh := NewChannel[int](rt, 0)
		sendCh := NewChannel[int](rt, 0)
		for i := 0; i < 2; i++ {
			f.Spawn(func(f *Fiber) error {
				if _, ok := recvCh.Recv(f); !ok {
					recvClosed++
				}
				return nil
			})
			f.Spawn(func(f *Fiber) error {
				if err := sendCh.Send(f, i); errors.Is(err, ErrClosedChannel) {
					sendClosed++
				}
				return nil
			})
		}
		f.Yield()
		if err := recvCh.Close(); err != nil {
			return err
		}
		if err := sendCh.Close(); err != nil {
			return err
		}
		f.Yield()
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if recvClosed != 2 {
		t.Errorf("%d receivers saw the closed indicator, want 2", recvClosed)
	}
	if sendClosed != 2 {
		t.Errorf("%d senders got ErrClosedChannel, want 2", sendClosed)
	}
}

func TestSendOnClosedChannel(t *testing.T) {
	rt := New(nil)

	err := rt.Run(func(f *Fiber) error {
		ch := NewChannel[int](rt, 1)
		if err := ch.Close(); err != nil {
			return err
		}
		if err := ch.Send(f, 1); !errors.Is(err, ErrClosedChannel) {
			t.Errorf("Send on closed channel: got %v, want ErrClosedChannel", err)
		}
		if err := ch.Close(); !errors.Is(err, ErrClosedChannel) {
			t.Errorf("second Close: got %v, want ErrClosedChannel", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRecvDrainsClosedBuffer(t *testing.T) {
	rt := New(nil)

	err := rt.Run(func(f *Fiber) error {
		ch := NewChannel[int](rt, 3)
		for i := 1; i <= 3; i++ {
			if err := ch.Send(f, i); err != nil {
				return err
			}
		}
		if err := ch.Close(); err != nil {
			return err
		}
		for i := 1; i <= 3; i++ {
			v, ok := ch.Recv(f)
			if !ok || v != i {
				t.Errorf("drain %d: got (%d, %v), want (%d, true)", i, v, ok, i)
			}
		}
		if v, ok := ch.Recv(f); ok {
			t.Errorf("Recv on drained closed channel: got (%d, true), want closed", v)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestChannelLenCap(t *testing.T) {
	rt := New(nil)

	err := rt.Run(func(f *Fiber) error {
		ch := NewChannel[string](rt, 2)
		if ch.Cap() != 2 || ch.Len() != 0 {
			t.Errorf("fresh channel: Len=%d Cap=%d, want 0 and 2", ch.Len(), ch.Cap())
		}
		if err := ch.Send(f, "a"); err != nil {
			return err
		}
		if ch.Len() != 1 {
			t.Errorf("after one send: Len=%d, want 1", ch.Len())
		}
		if _, ok := ch.Recv(f); !ok {
			return errors.New("channel reported closed")
		}
		if ch.Len() != 0 {
			t.Errorf("after receive: Len=%d, want 0", ch.Len())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestNegativeCapacityPanics(t *testing.T) {
	rt := New(nil)
	defer func() {
		if recover() == nil {
			t.Error("NewChannel with negative capacity did not panic")
		}
	}()
	NewChannel[int](rt, -1)
}
