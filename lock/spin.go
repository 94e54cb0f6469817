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
	"runtime"
	"sync/atomic"
	"time"
)

// spin is a test-and-set lock over a word that must live inside a shared
// mapping so every process spins on the same cache line. The word must be
// zeroed before the first child forks.
type spin struct {
	w *uint32
}

// NewSpin wraps a word of a shared mapping into a Locker.
func NewSpin(word *uint32) Locker {
	return &spin{w: word}
}

func (o *spin) Lock() error {
	for i := 0; ; i++ {
		if atomic.CompareAndSwapUint32(o.w, 0, 1) {
			return nil
		}

		// Stay polite: yield first, then back off to a real sleep so a
		// descheduled holder in another process can run.
		if i < 64 {
			runtime.Gosched()
		} else {
			time.Sleep(50 * time.Microsecond)
		}
	}
}

func (o *spin) Unlock() error {
	atomic.StoreUint32(o.w, 0)
	return nil
}

func (o *spin) Destroy() error {
	return nil
}
