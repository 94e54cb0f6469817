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

package event_test

import (
	"os"
	"time"

	libevt "github.com/nabbar/verben/event"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Event Loop", func() {
	var lp libevt.Loop

	BeforeEach(func() {
		var err error
		lp, err = libevt.New(1024)
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		Expect(lp.Close()).To(Succeed())
	})

	Context("file events", func() {
		var r, w *os.File

		BeforeEach(func() {
			var err error
			r, w, err = os.Pipe()
			Expect(err).ToNot(HaveOccurred())
		})

		AfterEach(func() {
			_ = r.Close()
			_ = w.Close()
		})

		It("fires the readable handler when bytes arrive", func() {
			var got []byte

			err := lp.AddFileEvent(int(r.Fd()), libevt.Readable,
				func(l libevt.Loop, fd int, data interface{}, mask libevt.Mask) {
					buf := make([]byte, 16)
					n, _ := r.Read(buf)
					got = buf[:n]
				}, nil)
			Expect(err).ToNot(HaveOccurred())

			_, _ = w.WriteString("ping")

			n := lp.Process(libevt.AllEvents | libevt.DontWait)
			Expect(n).To(BeNumerically(">=", 1))
			Expect(string(got)).To(Equal("ping"))
		})

		It("merges mask bits on repeated registration", func() {
			noop := func(l libevt.Loop, fd int, data interface{}, mask libevt.Mask) {}

			Expect(lp.AddFileEvent(int(r.Fd()), libevt.Readable, noop, nil)).To(Succeed())
			Expect(lp.AddFileEvent(int(r.Fd()), libevt.Writable, noop, nil)).To(Succeed())

			Expect(lp.FileEvents(int(r.Fd()))).To(Equal(libevt.Readable | libevt.Writable))
		})

		It("fires a shared handler once when both directions are ready", func() {
			var calls int

			shared := func(l libevt.Loop, fd int, data interface{}, mask libevt.Mask) {
				calls++
			}

			// A pipe write end is always writable and never readable, so
			// a shared read/write handler must fire exactly once.
			Expect(lp.AddFileEvent(int(w.Fd()), libevt.Readable|libevt.Writable, shared, nil)).To(Succeed())

			lp.Process(libevt.AllEvents | libevt.DontWait)
			Expect(calls).To(Equal(1))
		})

		It("recomputes the max descriptor when events are dropped", func() {
			noop := func(l libevt.Loop, fd int, data interface{}, mask libevt.Mask) {}

			r2, w2, err := os.Pipe()
			Expect(err).ToNot(HaveOccurred())
			defer func() {
				_ = r2.Close()
				_ = w2.Close()
			}()

			lo, hi := int(r.Fd()), int(r2.Fd())
			if lo > hi {
				lo, hi = hi, lo
			}

			Expect(lp.AddFileEvent(lo, libevt.Readable, noop, nil)).To(Succeed())
			Expect(lp.AddFileEvent(hi, libevt.Readable, noop, nil)).To(Succeed())
			Expect(lp.MaxFd()).To(Equal(hi))

			lp.DelFileEvent(hi, libevt.Readable)
			Expect(lp.MaxFd()).To(Equal(lo))

			lp.DelFileEvent(lo, libevt.Readable)
			Expect(lp.MaxFd()).To(Equal(-1))
		})

		It("rejects descriptors beyond the set size", func() {
			noop := func(l libevt.Loop, fd int, data interface{}, mask libevt.Mask) {}
			err := lp.AddFileEvent(4096, libevt.Readable, noop, nil)
			Expect(libevt.ErrorSetSize.IsCode(err)).To(BeTrue())
		})
	})

	Context("time events", func() {
		It("fires a one-shot timer and deletes it after NoMore", func() {
			var (
				fired     int
				finalized bool
			)

			lp.AddTimeEvent(1,
				func(l libevt.Loop, id int64, data interface{}) int64 {
					fired++
					return libevt.NoMore
				},
				nil,
				func(l libevt.Loop, data interface{}) {
					finalized = true
				})

			Eventually(func() int {
				lp.Process(libevt.AllEvents)
				return fired
			}, time.Second).Should(Equal(1))

			Expect(finalized).To(BeTrue())

			// One more pass must not re-fire a deleted timer.
			lp.Process(libevt.AllEvents | libevt.DontWait)
			Expect(fired).To(Equal(1))
		})

		It("reschedules a periodic timer by its returned interval", func() {
			var fired int

			lp.AddTimeEvent(1,
				func(l libevt.Loop, id int64, data interface{}) int64 {
					fired++
					if fired >= 3 {
						return libevt.NoMore
					}
					return 1
				}, nil, nil)

			Eventually(func() int {
				lp.Process(libevt.AllEvents)
				return fired
			}, time.Second).Should(Equal(3))
		})

		It("defers timers registered from a callback to the next pass", func() {
			var inner int

			lp.AddTimeEvent(1,
				func(l libevt.Loop, id int64, data interface{}) int64 {
					l.AddTimeEvent(0,
						func(l libevt.Loop, id int64, data interface{}) int64 {
							inner++
							return libevt.NoMore
						}, nil, nil)
					return libevt.NoMore
				}, nil, nil)

			Eventually(func() int {
				lp.Process(libevt.AllEvents)
				return inner
			}, time.Second).Should(Equal(1))
		})

		It("deletes a timer on demand, running its finalizer", func() {
			var finalized bool

			id := lp.AddTimeEvent(60_000,
				func(l libevt.Loop, id int64, data interface{}) int64 {
					return libevt.NoMore
				}, nil,
				func(l libevt.Loop, data interface{}) {
					finalized = true
				})

			Expect(lp.DelTimeEvent(id)).To(Succeed())
			Expect(finalized).To(BeTrue())
			Expect(libevt.ErrorNoEvent.IsCode(lp.DelTimeEvent(id))).To(BeTrue())
		})
	})

	Context("main loop", func() {
		It("returns after Stop within one pass", func() {
			done := make(chan struct{})

			lp.AddTimeEvent(1,
				func(l libevt.Loop, id int64, data interface{}) int64 {
					return 1
				}, nil, nil)

			go func() {
				lp.Main()
				close(done)
			}()

			time.Sleep(10 * time.Millisecond)
			lp.Stop()

			Eventually(done, time.Second).Should(BeClosed())
		})

		It("runs the before-sleep hook each pass", func() {
			var hooks int

			lp.SetBeforeSleep(func(l libevt.Loop) {
				hooks++
				if hooks >= 2 {
					l.Stop()
				}
			})

			lp.AddTimeEvent(1,
				func(l libevt.Loop, id int64, data interface{}) int64 {
					return 1
				}, nil, nil)

			lp.Main()
			Expect(hooks).To(BeNumerically(">=", 2))
		})
	})
})
