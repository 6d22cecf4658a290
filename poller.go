package weft

import "time"

// PollEvent reports that a watched descriptor became ready.
type PollEvent struct {
	FD    int
	Ready Interest
}

// Poller is the event loop's wait primitive. The unix implementation uses
// poll(2); other platforms get a timer-only fallback that cannot watch
// descriptors.
type Poller interface {
	Add(fd int, interest Interest) error
	Remove(fd int)
	// Wait blocks until a watched descriptor is ready or the timeout
	// elapses. A negative timeout means wait indefinitely.
	Wait(timeout time.Duration) ([]PollEvent, error)
	Close()
}
