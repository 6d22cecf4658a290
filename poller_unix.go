//go:build unix

package weft

import (
	"time"

	"golang.org/x/sys/unix"
)

// pollPoller multiplexes descriptor readiness through poll(2).
type pollPoller struct {
	interests map[int]Interest
}

func newPoller() Poller {
	return &pollPoller{interests: make(map[int]Interest)}
}

func (p *pollPoller) Add(fd int, interest Interest) error {
	p.interests[fd] = interest
	return nil
}

func (p *pollPoller) Remove(fd int) {
	delete(p.interests, fd)
}

func (p *pollPoller) Wait(timeout time.Duration) ([]PollEvent, error) {
	if len(p.interests) == 0 {
		if timeout < 0 {
			// Nothing to watch and nothing to time out: never happens while
			// the loop has pending registrations, but guard against an
			// unbounded sleep anyway.
			timeout = 0
		}
		time.Sleep(timeout)
		return nil, nil
	}

	fds := make([]unix.PollFd, 0, len(p.interests))
	for fd, interest := range p.interests {
		var events int16
		if interest&Readable != 0 {
			events |= unix.POLLIN
		}
		if interest&Writable != 0 {
			events |= unix.POLLOUT
		}
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: events})
	}

	millis := -1
	if timeout >= 0 {
		// Round up so a wait never returns before a due deadline.
		millis = int((timeout + time.Millisecond - 1) / time.Millisecond)
	}

	n, err := unix.Poll(fds, millis)
	if err == unix.EINTR {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	events := make([]PollEvent, 0, n)
	for _, pfd := range fds {
		if pfd.Revents == 0 {
			continue
		}
		var ready Interest
		if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			ready |= Readable
		}
		if pfd.Revents&(unix.POLLOUT|unix.POLLERR) != 0 {
			ready |= Writable
		}
		if ready == 0 {
			continue
		}
		events = append(events, PollEvent{FD: int(pfd.Fd), Ready: ready})
	}
	return events, nil
}

func (p *pollPoller) Close() {
	p.interests = make(map[int]Interest)
}
