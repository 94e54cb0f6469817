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

// Package event is the single-threaded reactor driving the connection
// process: readiness events on file descriptors plus a small set of timers
// bounding the multiplexer sleep.
//
// A descriptor carries at most one readable and one writable handler;
// registering again merges mask bits. Timer callbacks return the next
// period in milliseconds or NoMore to be removed. Timers created while the
// timer list is being scanned only fire from the next pass on.
package event

import (
	liberr "github.com/nabbar/verben/errors"
)

const (
	ErrorSetSize liberr.CodeError = iota + liberr.MinPkgEvent
	ErrorPoller
	ErrorNoEvent
)

func init() {
	liberr.Register(ErrorSetSize, "descriptor beyond the configured set size")
	liberr.Register(ErrorPoller, "multiplexer failure")
	liberr.Register(ErrorNoEvent, "no such event")
}

// Mask is a set of readiness conditions.
type Mask uint8

const (
	None     Mask = 0
	Readable Mask = 1 << iota
	Writable
)

// ProcFlag selects what one Process pass handles.
type ProcFlag uint8

const (
	FileEvents ProcFlag = 1 << iota
	TimeEvents
	DontWait

	AllEvents = FileEvents | TimeEvents
)

// NoMore is returned by a timer callback to delete the timer.
const NoMore = -1

// FileProc handles readiness on a descriptor.
type FileProc func(lp Loop, fd int, data interface{}, mask Mask)

// TimeProc handles a fired timer and returns the next period in
// milliseconds, or NoMore.
type TimeProc func(lp Loop, id int64, data interface{}) int64

// TimeFinalizer runs when a timer is deleted.
type TimeFinalizer func(lp Loop, data interface{})

// Loop is the reactor.
type Loop interface {
	// AddFileEvent registers proc for the mask bits on fd, merging with
	// any bits already registered.
	AddFileEvent(fd int, mask Mask, proc FileProc, data interface{}) error

	// DelFileEvent clears mask bits on fd; clearing the last bit drops
	// the descriptor and recomputes the tracked maximum.
	DelFileEvent(fd int, mask Mask)

	// FileEvents returns the mask currently registered on fd.
	FileEvents(fd int) Mask

	// AddTimeEvent schedules proc to fire in ms milliseconds and returns
	// the timer id.
	AddTimeEvent(ms int64, proc TimeProc, data interface{}, fin TimeFinalizer) int64

	// DelTimeEvent removes a timer, running its finalizer.
	DelTimeEvent(id int64) error

	// SetBeforeSleep installs a hook run before each blocking wait.
	SetBeforeSleep(fn func(lp Loop))

	// Process runs one reactor pass and returns the number of events
	// dispatched.
	Process(flags ProcFlag) int

	// Main loops Process until Stop. After Stop, at most one pending
	// multiplexer wait completes before Main returns.
	Main()

	// Stop ends Main at the next iteration; safe from another goroutine.
	Stop()

	// MaxFd returns the highest registered descriptor, -1 when none.
	MaxFd() int

	// Close releases the multiplexer.
	Close() error
}

// New builds a reactor tracking descriptors below setsize.
func New(setsize int) (Loop, error) {
	return newLoop(setsize)
}
