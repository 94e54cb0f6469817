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
	"unsafe"

	"golang.org/x/sys/unix"
)

// System V semaphore constants not exported by x/sys/unix.
const (
	ipcPrivate = 0
	ipcCreat   = 0o1000
	ipcExcl    = 0o2000
	ipcRmid    = 0
	semSetVal  = 16
	semUndo    = 0x1000
)

type sembuf struct {
	num int16
	op  int16
	flg int16
}

// sysv serializes on a one-slot System V semaphore set. The semaphore id
// is a kernel-wide handle, so a child only needs the integer to attach.
type sysv struct {
	id int
}

// NewSysV creates a private semaphore set initialized to one.
func NewSysV() (Locker, error) {
	id, _, en := unix.Syscall(unix.SYS_SEMGET, ipcPrivate, 1, ipcCreat|ipcExcl|0o600)
	if en != 0 {
		return nil, ErrorInit.Error(en)
	}

	if _, _, en = unix.Syscall6(unix.SYS_SEMCTL, id, 0, semSetVal, 1, 0, 0); en != 0 {
		_, _, _ = unix.Syscall6(unix.SYS_SEMCTL, id, 0, ipcRmid, 0, 0, 0)
		return nil, ErrorInit.Error(en)
	}

	return &sysv{id: int(id)}, nil
}

// AttachSysV wraps an inherited semaphore id.
func AttachSysV(id int) Locker {
	return &sysv{id: id}
}

// ID returns the kernel semaphore id for handing to a child process.
func (o *sysv) ID() int {
	return o.id
}

func (o *sysv) semop(op int16) error {
	sb := sembuf{num: 0, op: op, flg: semUndo}

	for {
		_, _, en := unix.Syscall(unix.SYS_SEMOP, uintptr(o.id), uintptr(unsafe.Pointer(&sb)), 1)
		if en == 0 {
			return nil
		}
		if en != unix.EINTR {
			return en
		}
	}
}

func (o *sysv) Lock() error {
	if e := o.semop(-1); e != nil {
		return ErrorLock.Error(e)
	}
	return nil
}

func (o *sysv) Unlock() error {
	if e := o.semop(1); e != nil {
		return ErrorUnlock.Error(e)
	}
	return nil
}

func (o *sysv) Destroy() error {
	if _, _, en := unix.Syscall6(unix.SYS_SEMCTL, uintptr(o.id), 0, ipcRmid, 0, 0, 0); en != 0 {
		return ErrorDestroy.Error(en)
	}
	return nil
}
