/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
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

// Package pidfile guards against double daemon starts: the file is created
// exclusively, write-locked for the life of the master and unlinked at
// shutdown. Its content is the decimal pid followed by a newline.
package pidfile

import (
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/verben/errors"
)

const (
	ErrorCreate liberr.CodeError = iota + liberr.MinPkgPidFile
	ErrorLockHeld
	ErrorRead
	ErrorRemove
)

func init() {
	liberr.Register(ErrorCreate, "cannot create pid file")
	liberr.Register(ErrorLockHeld, "pid file exists or is locked, daemon already running")
	liberr.Register(ErrorRead, "cannot read pid file")
	liberr.Register(ErrorRemove, "cannot remove pid file")
}

// PidFile is the exclusive pid marker of a running master.
type PidFile interface {
	// Create writes the pid exclusively and keeps an advisory write lock
	// on the open descriptor until Remove.
	Create(pid int) error

	// Remove unlinks the file and drops the lock.
	Remove() error

	// Path returns the configured location.
	Path() string
}

// New builds a PidFile at path.
func New(path string) PidFile {
	return &pf{p: path}
}

// Read returns the pid recorded at path, for the `stop` command.
func Read(path string) (int, error) {
	b, e := os.ReadFile(path)
	if e != nil {
		return 0, ErrorRead.Error(e)
	}

	pid, e := strconv.Atoi(strings.TrimSpace(string(b)))
	if e != nil || pid <= 0 {
		return 0, ErrorRead.Errorf("invalid content %q", strings.TrimSpace(string(b)))
	}

	return pid, nil
}

type pf struct {
	p string
	f *os.File
}

func (o *pf) Path() string {
	return o.p
}

func (o *pf) Create(pid int) error {
	f, e := os.OpenFile(o.p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if e != nil {
		if os.IsExist(e) {
			return ErrorLockHeld.Errorf("%s", o.p)
		}
		return ErrorCreate.Error(e)
	}

	l := unix.Flock_t{
		Type:   unix.F_WRLCK,
		Whence: int16(os.SEEK_SET),
	}
	if e = unix.FcntlFlock(f.Fd(), unix.F_SETLK, &l); e != nil {
		_ = f.Close()
		return ErrorLockHeld.Error(e)
	}

	if _, e = f.WriteString(strconv.Itoa(pid) + "\n"); e != nil {
		_ = f.Close()
		_ = os.Remove(o.p)
		return ErrorCreate.Error(e)
	}

	o.f = f

	return nil
}

func (o *pf) Remove() error {
	if o.f != nil {
		_ = o.f.Close()
		o.f = nil
	}

	if e := os.Remove(o.p); e != nil && !os.IsNotExist(e) {
		return ErrorRemove.Error(e)
	}

	return nil
}
