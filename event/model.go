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
	"reflect"
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"
)

type fileEvent struct {
	mask  Mask
	rproc FileProc
	wproc FileProc
	data  interface{}
}

type loop struct {
	size   int
	events []fileEvent
	used   *bitset.BitSet
	maxfd  int
	poll   *poller
	timers *timeEvent
	nextID int64
	stop   atomic.Bool
	before func(lp Loop)
}

func newLoop(setsize int) (*loop, error) {
	p, err := newPoller(setsize)
	if err != nil {
		return nil, err
	}

	return &loop{
		size:   setsize,
		events: make([]fileEvent, setsize),
		used:   bitset.New(uint(setsize)),
		maxfd:  -1,
		poll:   p,
	}, nil
}

func (o *loop) AddFileEvent(fd int, mask Mask, proc FileProc, data interface{}) error {
	if fd < 0 || fd >= o.size {
		return ErrorSetSize.Errorf("fd %d, set size %d", fd, o.size)
	}

	fe := &o.events[fd]

	if err := o.poll.ctl(fd, fe.mask, fe.mask|mask); err != nil {
		return err
	}

	fe.mask |= mask
	if mask&Readable != 0 {
		fe.rproc = proc
	}
	if mask&Writable != 0 {
		fe.wproc = proc
	}
	fe.data = data

	o.used.Set(uint(fd))
	if fd > o.maxfd {
		o.maxfd = fd
	}

	return nil
}

func (o *loop) DelFileEvent(fd int, mask Mask) {
	if fd < 0 || fd >= o.size {
		return
	}

	fe := &o.events[fd]
	if fe.mask == None {
		return
	}

	next := fe.mask &^ mask
	_ = o.poll.ctl(fd, fe.mask, next)
	fe.mask = next

	if next != None {
		return
	}

	fe.rproc = nil
	fe.wproc = nil
	fe.data = nil
	o.used.Clear(uint(fd))

	if fd == o.maxfd {
		j := -1
		for i := fd - 1; i >= 0; i-- {
			if o.used.Test(uint(i)) {
				j = i
				break
			}
		}
		o.maxfd = j
	}
}

func (o *loop) FileEvents(fd int) Mask {
	if fd < 0 || fd >= o.size {
		return None
	}
	return o.events[fd].mask
}

func (o *loop) SetBeforeSleep(fn func(lp Loop)) {
	o.before = fn
}

func (o *loop) MaxFd() int {
	return o.maxfd
}

func sameProc(a, b FileProc) bool {
	if a == nil || b == nil {
		return false
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

func (o *loop) Process(flags ProcFlag) int {
	var processed int

	if flags&AllEvents == 0 {
		return 0
	}

	// The multiplexer is entered even with no descriptor registered, so a
	// pure-timer loop still sleeps until its next deadline.
	if o.maxfd != -1 || (flags&TimeEvents != 0 && flags&DontWait == 0) {
		timeout := -1

		if flags&TimeEvents != 0 && flags&DontWait == 0 {
			if t := o.nearestTimer(); t != nil {
				timeout = t.remainingMs()
			}
		}
		if flags&DontWait != 0 {
			timeout = 0
		}

		fired, err := o.poll.wait(timeout)
		if err == nil {
			for _, fi := range fired {
				if fi.fd < 0 || fi.fd >= o.size {
					continue
				}

				fe := &o.events[fi.fd]
				rfired := false

				// Re-check the registered mask on each dispatch: an
				// earlier handler of this pass may have dropped the
				// descriptor.
				if fe.mask&fi.mask&Readable != 0 && fe.rproc != nil {
					rfired = true
					fe.rproc(o, fi.fd, fe.data, fi.mask)
				}
				if fe.mask&fi.mask&Writable != 0 && fe.wproc != nil {
					if !rfired || !sameProc(fe.wproc, fe.rproc) {
						fe.wproc(o, fi.fd, fe.data, fi.mask)
					}
				}

				processed++
			}
		}
	}

	if flags&TimeEvents != 0 {
		processed += o.processTimeEvents()
	}

	return processed
}

func (o *loop) Main() {
	for !o.stop.Load() {
		if o.before != nil {
			o.before(o)
		}
		o.Process(AllEvents)
	}
}

func (o *loop) Stop() {
	o.stop.Store(true)
}

func (o *loop) Close() error {
	return o.poll.close()
}
