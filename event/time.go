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

package event

import (
	"time"
)

type timeEvent struct {
	id   int64
	when time.Time
	proc TimeProc
	fin  TimeFinalizer
	data interface{}
	next *timeEvent
}

func (o *timeEvent) remainingMs() int {
	d := time.Until(o.when)
	if d <= 0 {
		return 0
	}

	ms := int(d.Milliseconds())
	if ms == 0 {
		ms = 1
	}

	return ms
}

func (o *loop) AddTimeEvent(ms int64, proc TimeProc, data interface{}, fin TimeFinalizer) int64 {
	id := o.nextID
	o.nextID++

	o.timers = &timeEvent{
		id:   id,
		when: time.Now().Add(time.Duration(ms) * time.Millisecond),
		proc: proc,
		fin:  fin,
		data: data,
		next: o.timers,
	}

	return id
}

func (o *loop) DelTimeEvent(id int64) error {
	var prev *timeEvent

	for te := o.timers; te != nil; te = te.next {
		if te.id == id {
			if prev == nil {
				o.timers = te.next
			} else {
				prev.next = te.next
			}
			if te.fin != nil {
				te.fin(o, te.data)
			}
			return nil
		}
		prev = te
	}

	return ErrorNoEvent.Errorf("timer %d", id)
}

// nearestTimer scans the unsorted list for the soonest deadline; the list
// stays short enough that sorting would buy nothing.
func (o *loop) nearestTimer() *timeEvent {
	var nearest *timeEvent

	for te := o.timers; te != nil; te = te.next {
		if nearest == nil || te.when.Before(nearest.when) {
			nearest = te
		}
	}

	return nearest
}

func (o *loop) processTimeEvents() int {
	var processed int

	// Timers registered by a callback during this pass carry an id above
	// the snapshot and are skipped until the next pass.
	maxID := o.nextID - 1

	te := o.timers
	for te != nil {
		if te.id > maxID {
			te = te.next
			continue
		}

		if time.Now().Before(te.when) {
			te = te.next
			continue
		}

		id := te.id
		ret := te.proc(o, id, te.data)
		processed++

		if ret > 0 {
			te.when = time.Now().Add(time.Duration(ret) * time.Millisecond)
		} else {
			_ = o.DelTimeEvent(id)
		}

		// The callback may have reshaped the list; restart from the head.
		te = o.timers
	}

	return processed
}
