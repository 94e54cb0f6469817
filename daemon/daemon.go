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

// Package daemon holds the process plumbing every role shares: detaching
// from the controlling terminal, renaming the process for ps, and raising
// the descriptor limit before the reactor sizes itself.
package daemon

import (
	"os"
	"os/exec"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/verben/errors"
)

const (
	ErrorDetach liberr.CodeError = iota + liberr.MinPkgDaemon
	ErrorRlimit
)

func init() {
	liberr.Register(ErrorDetach, "cannot detach daemon process")
	liberr.Register(ErrorRlimit, "cannot raise open file limit")
}

const envDetached = "VERBEN_DETACHED"

// Detached reports whether this process already runs in the background.
func Detached() bool {
	return os.Getenv(envDetached) == "1"
}

// Detach re-executes the binary in a fresh session with the standard
// descriptors on /dev/null, then makes the parent exit. The child sees
// Detached() true and continues the boot.
func Detach() error {
	if Detached() {
		return nil
	}

	null, e := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if e != nil {
		return ErrorDetach.Error(e)
	}

	exe, e := os.Executable()
	if e != nil {
		return ErrorDetach.Error(e)
	}

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(), envDetached+"=1")
	cmd.Stdin = null
	cmd.Stdout = null
	cmd.Stderr = null
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if e = cmd.Start(); e != nil {
		return ErrorDetach.Error(e)
	}

	os.Exit(0)
	return nil
}

// SetTitle renames the process as seen by ps, `verben:[master]` style.
// Linux truncates the comm name to 15 bytes.
func SetTitle(title string) {
	b := make([]byte, 0, 16)
	b = append(b, title...)
	if len(b) > 15 {
		b = b[:15]
	}
	b = append(b, 0)

	_ = unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&b[0])), 0, 0, 0)
}

// RaiseNoFile lifts the soft open-file limit up to n, capped by the hard
// limit when unprivileged.
func RaiseNoFile(n uint64) error {
	var lim unix.Rlimit

	if e := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); e != nil {
		return ErrorRlimit.Error(e)
	}

	if lim.Cur >= n {
		return nil
	}

	lim.Cur = n
	if lim.Max < n {
		lim.Cur = lim.Max
	}

	if e := unix.Setrlimit(unix.RLIMIT_NOFILE, &lim); e != nil {
		return ErrorRlimit.Error(e)
	}

	return nil
}
