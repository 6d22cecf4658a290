//go:build !unix

package weft

import (
	"errors"
	"time"
)

// sleepPoller is the fallback for platforms without poll(2). Timers still
// work; descriptor subscriptions are refused.
type sleepPoller struct{}

func newPoller() Poller {
	return sleepPoller{}
}

func (sleepPoller) Add(fd int, interest Interest) error {
	return errors.New("descriptor polling is not supported on this platform")
}

func (sleepPoller) Remove(fd int) {}

func (sleepPoller) Wait(timeout time.Duration) ([]PollEvent, error) {
	if timeout < 0 {
		timeout = 0
	}
	time.Sleep(timeout)
	return nil, nil
}

func (sleepPoller) Close() {}
