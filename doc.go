// Package weft is a single-threaded cooperative concurrency runtime:
// fibers multiplexed onto one logical thread of control, CSP-style
// rendezvous channels connecting them, and an event loop that folds
// timers and descriptor readiness into the cooperative model.
//
// Exactly one fiber executes at any instant. A fiber keeps running until
// it reaches a suspension point (Yield, a channel Send or Recv that
// cannot complete without waiting, Sleep, or Subscribe); control then
// passes to the scheduler, which resumes the next fiber in strict FIFO
// order. Because no two fibers ever run at the same time, state shared
// between fibers of one Runtime needs no locking, and a given program
// always produces the same interleaving.
//
// A program is driven by a Runtime:
//
//	rt := weft.New(nil)
//	err := rt.Run(func(f *weft.Fiber) error {
//		ch := weft.NewChannel[int](rt, 0)
//		f.Spawn(func(f *weft.Fiber) error {
//			return ch.Send(f, 42)
//		})
//		v, _ := ch.Recv(f)
//		fmt.Println(v)
//		return nil
//	})
//
// Run returns when the main fiber returns. There is no implicit join:
// spawned fibers that have not finished by then are discarded, exactly
// as a process exits without waiting for its background work. Programs
// that need to wait do so explicitly through a channel.
//
// A Runtime and everything created from it must be used from its own
// fibers only; nothing in this package is safe for use from other
// goroutines.
package weft
