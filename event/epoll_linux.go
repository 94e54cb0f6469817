/*
 * MIT License
 *
 * Copyright (c) 2023 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package event

import (
	"golang.org/x/sys/unix"
)

type fired struct {
	fd   int
	mask Mask
}

type poller struct {
	epfd  int
	evbuf []unix.EpollEvent
	out   []fired
}

func newPoller(setsize int) (*poller, error) {
	fd, e := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if e != nil {
		return nil, ErrorPoller.Error(e)
	}

	return &poller{
		epfd:  fd,
		evbuf: make([]unix.EpollEvent, setsize),
		out:   make([]fired, 0, setsize),
	}, nil
}

func epollBits(m Mask) uint32 {
	var ev uint32

	if m&Readable != 0 {
		ev |= unix.EPOLLIN
	}
	if m&Writable != 0 {
		ev |= unix.EPOLLOUT
	}

	return ev
}

// ctl reconciles the kernel interest set with a mask transition.
func (o *poller) ctl(fd int, old, next Mask) error {
	var op int

	switch {
	case old == None && next == None:
		return nil
	case old == None:
		op = unix.EPOLL_CTL_ADD
	case next == None:
		op = unix.EPOLL_CTL_DEL
	default:
		op = unix.EPOLL_CTL_MOD
	}

	ev := &unix.EpollEvent{
		Events: epollBits(next),
		Fd:     int32(fd),
	}

	if e := unix.EpollCtl(o.epfd, op, fd, ev); e != nil {
		return ErrorPoller.Error(e)
	}

	return nil
}

// wait blocks up to timeout milliseconds (-1 forever) and returns the
// ready descriptors. Error and hangup conditions mark both directions so
// the owning handler observes the failure on its next I/O call.
func (o *poller) wait(timeout int) ([]fired, error) {
	n, e := unix.EpollWait(o.epfd, o.evbuf, timeout)
	if e != nil {
		if e == unix.EINTR {
			return nil, nil
		}
		return nil, ErrorPoller.Error(e)
	}

	o.out = o.out[:0]
	for i := 0; i < n; i++ {
		var m Mask

		ev := o.evbuf[i].Events
		if ev&(unix.EPOLLIN|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			m |= Readable
		}
		if ev&(unix.EPOLLOUT|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			m |= Writable
		}

		o.out = append(o.out, fired{fd: int(o.evbuf[i].Fd), mask: m})
	}

	return o.out, nil
}

func (o *poller) close() error {
	return unix.Close(o.epfd)
}
