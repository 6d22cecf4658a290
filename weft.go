package weft

import (
	"fmt"
	"sync"
)

// Runtime owns a scheduler, its fibers, and an event loop. Each Runtime is
// a single logical thread of control: Run drives it on the calling
// goroutine, and everything spawned from it is confined to it.
type Runtime struct {
	config *Config
	logger *Logger

	fibers      map[int]*Fiber
	nextFiberID int
	spawned     int

	ready   []*Fiber
	current *Fiber
	main    *Fiber

	// schedCh is the scheduler's parking spot: the running fiber sends on
	// it when giving the thread of control back.
	schedCh chan struct{}

	loop *eventLoop
	wg   sync.WaitGroup

	running  bool
	finished bool
}

// New creates a Runtime. A nil config means DefaultConfig.
func New(config *Config) *Runtime {
	if config == nil {
		config = DefaultConfig()
	}

	logger := NewLogger(config.Debug)
	for _, cat := range config.DebugCategories {
		logger.EnableCategory(cat)
	}

	rt := &Runtime{
		config:  config,
		logger:  logger,
		fibers:  make(map[int]*Fiber),
		schedCh: make(chan struct{}),
	}
	rt.loop = newEventLoop(rt)
	return rt
}

// Logger returns the runtime's logger so callers can adjust categories or
// redirect output before Run.
func (rt *Runtime) Logger() *Logger {
	return rt.logger
}

// Config returns the runtime's configuration.
func (rt *Runtime) Config() *Config {
	return rt.config
}

// LiveFibers returns the number of fibers whose resources are still held,
// including spawned fibers that have not yet had a first turn. Valid from
// inside a running fiber or after Run has returned.
func (rt *Runtime) LiveFibers() int {
	return len(rt.fibers)
}

// SpawnCount returns the total number of fibers ever created on this
// runtime, the main fiber included.
func (rt *Runtime) SpawnCount() int {
	return rt.spawned
}

// Run creates the main fiber for body and drives the scheduler on the
// calling goroutine until that fiber dies. It returns the main fiber's
// error, or ErrDeadlock when no fiber can ever run again. Fibers still
// alive when the main fiber returns are discarded, not joined. A Runtime
// can only be run once.
func (rt *Runtime) Run(body Body) error {
	if rt.running {
		return fmt.Errorf("weft: runtime is already running")
	}
	if rt.finished {
		return fmt.Errorf("weft: runtime has already finished")
	}
	rt.running = true

	main := rt.newFiber(body)
	rt.main = main
	main.state = StateReady
	rt.enqueueReady(main)
	rt.logger.DebugCat(CatSched, "runtime started, main fiber %d", main.id)

	err := rt.runLoop()
	rt.teardown()

	rt.running = false
	rt.finished = true
	rt.logger.DebugCat(CatSched, "runtime stopped after %d fibers", rt.spawned)
	return err
}

// teardown kills every fiber that is still alive once the main fiber has
// returned, waits for their goroutines to unwind, and releases the event
// loop. Killed fibers only touch their own record, so running them
// concurrently here is safe.
func (rt *Runtime) teardown() {
	remaining := make([]*Fiber, 0, len(rt.fibers))
	for _, f := range rt.fibers {
		remaining = append(remaining, f)
	}
	if n := len(remaining); n > 0 {
		rt.logger.DebugCat(CatSched, "discarding %d unfinished fibers", n)
	}
	for _, f := range remaining {
		f.resume <- resumeKill
	}
	rt.wg.Wait()

	rt.fibers = make(map[int]*Fiber)
	rt.ready = nil
	rt.loop.close()
}
