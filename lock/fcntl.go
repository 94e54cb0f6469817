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

package lock

import (
	"os"

	"golang.org/x/sys/unix"
)

// fcl serializes on an advisory write lock covering a whole scratch file.
// Record locks are per (process, inode), so every cooperating process
// opens the same path and holds its own descriptor.
type fcl struct {
	f *os.File
	p string
}

// NewFcntl creates or opens the scratch file backing the lock. Every
// process of the group calls it with the same path.
func NewFcntl(path string) (Locker, error) {
	f, e := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if e != nil {
		return nil, ErrorInit.Error(e)
	}

	return &fcl{f: f, p: path}, nil
}

// Path returns the scratch file path for handing to a child process.
func (o *fcl) Path() string {
	return o.p
}

func (o *fcl) flock(typ int16) error {
	l := unix.Flock_t{
		Type:   typ,
		Whence: int16(os.SEEK_SET),
		Start:  0,
		Len:    0,
	}

	for {
		e := unix.FcntlFlock(o.f.Fd(), unix.F_SETLKW, &l)
		if e == nil {
			return nil
		}
		if e != unix.EINTR {
			return e
		}
	}
}

func (o *fcl) Lock() error {
	if e := o.flock(unix.F_WRLCK); e != nil {
		return ErrorLock.Error(e)
	}
	return nil
}

func (o *fcl) Unlock() error {
	if e := o.flock(unix.F_UNLCK); e != nil {
		return ErrorUnlock.Error(e)
	}
	return nil
}

func (o *fcl) Destroy() error {
	e := o.f.Close()
	_ = os.Remove(o.p)

	if e != nil {
		return ErrorDestroy.Error(e)
	}
	return nil
}
