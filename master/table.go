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

package master

import (
	"golang.org/x/sys/unix"

	libplg "github.com/nabbar/verben/plugin"
)

// Policy rules what happens to a child slot after its process exits.
type Policy uint8

const (
	// PolicyNoRespawn leaves the slot dead.
	PolicyNoRespawn Policy = iota

	// PolicyJustSpawn spawns once and never again.
	PolicyJustSpawn

	// PolicyRespawn refills the slot whenever the child exits outside a
	// shutdown.
	PolicyRespawn

	// PolicyDetached runs outside the supervision group.
	PolicyDetached
)

const maxProcesses = 1024

type slot struct {
	pid     int
	status  unix.WaitStatus
	role    libplg.Role
	pol     Policy
	exiting bool
	exited  bool
}

// table is the master-only index of child slots; a free slot has pid -1.
type table struct {
	slots []slot
	last  int
}

func newTable() *table {
	t := &table{slots: make([]slot, maxProcesses)}
	for i := range t.slots {
		t.slots[i].pid = -1
	}
	return t
}

func (o *table) alloc() int {
	for i := 0; i < len(o.slots); i++ {
		if o.slots[i].pid == -1 {
			if i >= o.last {
				o.last = i + 1
			}
			return i
		}
	}
	return -1
}

func (o *table) set(i, pid int, role libplg.Role, pol Policy) {
	o.slots[i] = slot{pid: pid, role: role, pol: pol}
}

// markExited records a reaped pid and returns its slot index, -1 when the
// pid is not ours.
func (o *table) markExited(pid int, status unix.WaitStatus) int {
	for i := 0; i < o.last; i++ {
		if o.slots[i].pid == pid {
			o.slots[i].status = status
			o.slots[i].exited = true
			return i
		}
	}
	return -1
}

func (o *table) free(i int) {
	o.slots[i] = slot{pid: -1}
}

// live counts children not yet reaped.
func (o *table) live() int {
	var n int
	for i := 0; i < o.last; i++ {
		if o.slots[i].pid != -1 && !o.slots[i].exited {
			n++
		}
	}
	return n
}

func (o *table) each(fn func(i int, s *slot)) {
	for i := 0; i < o.last; i++ {
		if o.slots[i].pid != -1 {
			fn(i, &o.slots[i])
		}
	}
}
