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

// Package lock provides a mutex usable from several processes at once.
//
// Three interchangeable backends implement the same interface: a spin word
// living inside a shared memory mapping, a System V semaphore, and an
// advisory record lock over a scratch file. Locks are non-reentrant and
// unfair, and must never be held across a blocking call.
package lock

import (
	"strings"

	liberr "github.com/nabbar/verben/errors"
)

const (
	ErrorInit liberr.CodeError = iota + liberr.MinPkgLock
	ErrorLock
	ErrorUnlock
	ErrorDestroy
)

func init() {
	liberr.Register(ErrorInit, "cannot initialize cross-process lock")
	liberr.Register(ErrorLock, "cannot acquire cross-process lock")
	liberr.Register(ErrorUnlock, "cannot release cross-process lock")
	liberr.Register(ErrorDestroy, "cannot destroy cross-process lock")
}

// Locker is a mutex shared between processes.
type Locker interface {
	// Lock blocks until the lock is held by the caller.
	Lock() error

	// Unlock releases a held lock. Unlocking a lock the caller does not
	// hold is undefined.
	Unlock() error

	// Destroy releases the kernel or mapping resources behind the lock.
	// The lock must not be used afterwards.
	Destroy() error
}

// Mode selects a Locker backend.
type Mode uint8

const (
	// ModeSpin spins on a word embedded in a shared mapping.
	ModeSpin Mode = iota

	// ModeSysV serializes on a System V semaphore.
	ModeSysV

	// ModeFcntl serializes on an advisory write lock over a scratch file.
	ModeFcntl
)

// ParseMode maps a config value to a Mode, defaulting to ModeSpin.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sysv", "sem", "semaphore":
		return ModeSysV
	case "fcntl", "file":
		return ModeFcntl
	}
	return ModeSpin
}

func (m Mode) String() string {
	switch m {
	case ModeSysV:
		return "sysv"
	case ModeFcntl:
		return "fcntl"
	}
	return "spin"
}
