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

// Package shmq implements the shared-memory ring queues shuttling framed
// requests and responses between the connection process and the workers.
//
// A queue is one contiguous shared mapping treated as a circular byte
// buffer with an in-band header per block. Producers advance the tail,
// consumers advance the head; `head == tail` if and only if the queue is
// empty. A pad block fills the end of the buffer when the next data block
// would cross the wrap boundary; consumers never see it.
package shmq

import (
	"os"

	liberr "github.com/nabbar/verben/errors"
	liblck "github.com/nabbar/verben/lock"
)

const (
	ErrorSegment liberr.CodeError = iota + liberr.MinPkgShmq
	ErrorTooBig
	ErrorFull
	ErrorEmpty
	ErrorStopped
	ErrorShortHeader
	ErrorBadMagic
)

func init() {
	liberr.Register(ErrorSegment, "cannot create or map shared memory segment")
	liberr.Register(ErrorTooBig, "message cannot ever fit the ring")
	liberr.Register(ErrorFull, "ring is full")
	liberr.Register(ErrorEmpty, "ring is empty")
	liberr.Register(ErrorStopped, "ring waiters stopped")
	liberr.Register(ErrorShortHeader, "ring message shorter than its header")
	liberr.Register(ErrorBadMagic, "ring message carries a wrong magic word")
}

// Flag tunes a single Push or Pop call.
type Flag uint8

const (
	// FlagWait retries a full push or an empty pop every wait cycle
	// (~0.2 ms) until it succeeds or the queue is stopped.
	FlagWait Flag = 1 << iota

	// FlagLock takes the embedded cross-process lock around the attempt.
	FlagLock
)

// Queue is a bounded byte-granular MPMC queue over shared memory.
type Queue interface {
	// Push copies data into the ring. Without FlagWait a full ring fails
	// with ErrorFull; a payload that can never fit fails with ErrorTooBig
	// and no side effect.
	Push(data []byte, flags Flag) error

	// Pop copies the oldest payload out of the ring and returns it to the
	// caller, which owns the slice. Without FlagWait an empty ring fails
	// with ErrorEmpty.
	Pop(flags Flag) ([]byte, error)

	// Count returns the number of data blocks currently queued.
	Count() int

	// Capacity returns the total byte size of the mapping.
	Capacity() int

	// File exposes the backing descriptor for inheritance by children.
	File() *os.File

	// StopWait unblocks every waiter of this process with ErrorStopped.
	// The queue stays usable for non-waiting calls.
	StopWait()

	// Close unmaps the segment in this process. The backing memory lives
	// until every process unmaps it.
	Close() error
}

// New creates a ring of the given byte capacity backed by an anonymous
// memory segment. A nil locker embeds a spin lock inside the mapping;
// otherwise the supplied backend guards the ring.
func New(name string, capacity int, lk liblck.Locker) (Queue, error) {
	return newRing(name, capacity, lk)
}

// Attach maps a ring inherited from the parent process through its file
// descriptor. The locker must match the parent's choice; nil selects the
// spin word embedded in the mapping.
func Attach(f *os.File, lk liblck.Locker) (Queue, error) {
	return attachRing(f, lk)
}
