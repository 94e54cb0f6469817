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

// Package notifier wakes the connection process when a worker has queued a
// response. The transport is a single non-blocking pipe created before the
// children spawn: workers write one byte, the connection process registers
// the read end with its reactor and drains it on wake. Lost or duplicate
// wake-ups are harmless since the consumer always polls the ring anyway.
package notifier

import (
	"os"

	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/verben/errors"
)

const (
	ErrorCreate liberr.CodeError = iota + liberr.MinPkgNotifier
	ErrorWake
)

func init() {
	liberr.Register(ErrorCreate, "cannot create notifier pipe")
	liberr.Register(ErrorWake, "cannot write notifier byte")
}

// Notifier is the wake-up channel between workers and the connection
// process.
type Notifier interface {
	// Reader returns the read end, registered with the reactor.
	Reader() *os.File

	// Writer returns the write end, used by workers.
	Writer() *os.File

	// Wake queues one wake byte. A full pipe means a wake is already
	// pending, which is just as good.
	Wake() error

	// Drain consumes every pending wake byte and returns how many were
	// read.
	Drain() int

	// CloseRead closes the read end, for processes that only write.
	CloseRead() error

	// CloseWrite closes the write end, for processes that only read.
	CloseWrite() error

	// Close closes both ends.
	Close() error
}

type ntf struct {
	r *os.File
	w *os.File
}

// New creates the pipe with both ends non-blocking and close-on-exec; fd
// inheritance happens through the explicit spawn descriptor list.
func New() (Notifier, error) {
	var fds [2]int

	if e := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); e != nil {
		return nil, ErrorCreate.Error(e)
	}

	return &ntf{
		r: os.NewFile(uintptr(fds[0]), "notifier-rd"),
		w: os.NewFile(uintptr(fds[1]), "notifier-wr"),
	}, nil
}

// Attach rebuilds a Notifier around inherited descriptors, restoring the
// non-blocking mode lost through the spawn dup.
func Attach(r, w *os.File) (Notifier, error) {
	for _, f := range []*os.File{r, w} {
		if f == nil {
			continue
		}
		if e := unix.SetNonblock(int(f.Fd()), true); e != nil {
			return nil, ErrorCreate.Error(e)
		}
	}

	return &ntf{r: r, w: w}, nil
}

func (o *ntf) Reader() *os.File {
	return o.r
}

func (o *ntf) Writer() *os.File {
	return o.w
}

func (o *ntf) Wake() error {
	_, e := unix.Write(int(o.w.Fd()), []byte{'x'})

	if e == nil || e == unix.EAGAIN {
		return nil
	}

	return ErrorWake.Error(e)
}

func (o *ntf) Drain() int {
	var (
		buf [1024]byte
		n   int
	)

	for {
		c, e := unix.Read(int(o.r.Fd()), buf[:])
		if c > 0 {
			n += c
		}
		if e != nil || c < len(buf) {
			return n
		}
	}
}

func (o *ntf) CloseRead() error {
	if o.r == nil {
		return nil
	}
	e := o.r.Close()
	o.r = nil
	return e
}

func (o *ntf) CloseWrite() error {
	if o.w == nil {
		return nil
	}
	e := o.w.Close()
	o.w = nil
	return e
}

func (o *ntf) Close() error {
	e1 := o.CloseRead()
	e2 := o.CloseWrite()

	if e1 != nil {
		return e1
	}
	return e2
}
