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

package shmq

import (
	"os"

	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/verben/errors"
)

// segment is a shared anonymous memory mapping reachable by children
// through its file descriptor (memfd), which survives exec.
type segment struct {
	f *os.File
	b []byte
}

func newSegment(name string, size int) (*segment, liberr.Error) {
	fd, e := unix.MemfdCreate("verben-"+name, 0)
	if e != nil {
		return nil, ErrorSegment.Error(e)
	}

	if e = unix.Ftruncate(fd, int64(size)); e != nil {
		_ = unix.Close(fd)
		return nil, ErrorSegment.Error(e)
	}

	b, e := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if e != nil {
		_ = unix.Close(fd)
		return nil, ErrorSegment.Error(e)
	}

	return &segment{
		f: os.NewFile(uintptr(fd), "verben-"+name),
		b: b,
	}, nil
}

func attachSegment(f *os.File) (*segment, liberr.Error) {
	st, e := f.Stat()
	if e != nil {
		return nil, ErrorSegment.Error(e)
	}

	b, e := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if e != nil {
		return nil, ErrorSegment.Error(e)
	}

	return &segment{f: f, b: b}, nil
}

func (o *segment) close() error {
	var err error

	if o.b != nil {
		err = unix.Munmap(o.b)
		o.b = nil
	}

	if o.f != nil {
		if e := o.f.Close(); e != nil && err == nil {
			err = e
		}
		o.f = nil
	}

	return err
}
