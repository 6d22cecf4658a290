package weft

// enqueueReady appends a fiber to the back of the ready queue. The caller
// is responsible for having set the fiber's state to StateReady and for
// the invariant that a fiber sits in at most one queue at a time.
func (rt *Runtime) enqueueReady(f *Fiber) {
	rt.ready = append(rt.ready, f)
}

// resumeFiber hands the thread of control to f and parks the scheduler
// until f gives it back, either by suspending or by dying.
func (rt *Runtime) resumeFiber(f *Fiber) {
	rt.current = f
	f.state = StateRunning
	rt.logger.TraceCat(CatSched, "resuming fiber %d", f.id)
	f.resume <- resumeRun
	<-rt.schedCh
	rt.current = nil
}

// runLoop is the scheduler: while the main fiber is alive, pop the head of
// the ready queue and resume it. When the ready queue is empty the event
// loop, a pseudo-fiber that only ever gets a turn when nothing else is
// runnable, polls for timers and descriptor readiness and re-enqueues the
// fibers whose conditions were satisfied. An empty ready queue with
// nothing pending in the event loop means no fiber can ever run again.
func (rt *Runtime) runLoop() error {
	for rt.main.state != StateDead {
		if len(rt.ready) > 0 {
			f := rt.ready[0]
			rt.ready = rt.ready[1:]
			rt.resumeFiber(f)
			continue
		}

		if rt.loop.hasPending() {
			if err := rt.loop.runOnce(); err != nil {
				rt.logger.ErrorCat(CatLoop, "event loop failed: %v", err)
				return err
			}
			continue
		}

		rt.logger.ErrorCat(CatSched, "deadlock: %d fibers alive, none runnable, no event pending",
			len(rt.fibers))
		return ErrDeadlock
	}
	return rt.main.err
}
