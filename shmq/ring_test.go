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

package shmq_test

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	libshm "github.com/nabbar/verben/shmq"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Ring Queue", func() {
	var q libshm.Queue

	BeforeEach(func() {
		var err error
		q, err = libshm.New("test", 1<<16, nil)
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		Expect(q.Close()).To(Succeed())
	})

	Context("round trip", func() {
		It("preserves payloads byte-exactly in FIFO order", func() {
			var want [][]byte
			for i := 0; i < 50; i++ {
				p := []byte(fmt.Sprintf("payload-%04d-%s", i, string(bytes.Repeat([]byte{byte(i)}, i))))
				want = append(want, p)
				Expect(q.Push(p, 0)).To(Succeed())
			}

			Expect(q.Count()).To(Equal(50))

			for i := 0; i < 50; i++ {
				got, err := q.Pop(0)
				Expect(err).ToNot(HaveOccurred())
				Expect(got).To(Equal(want[i]))
			}

			Expect(q.Count()).To(Equal(0))
		})

		It("accepts empty payloads", func() {
			Expect(q.Push(nil, 0)).To(Succeed())

			got, err := q.Pop(0)
			Expect(err).ToNot(HaveOccurred())
			Expect(got).To(BeEmpty())
		})

		It("reports empty on pop without wait", func() {
			_, err := q.Pop(0)
			Expect(libshm.ErrorEmpty.IsCode(err)).To(BeTrue())
		})
	})

	Context("wrap boundary", func() {
		It("hides pad blocks from consumers while cycling", func() {
			// Blocks sized so that pushes repeatedly cross the end of the
			// mapping; every payload must still come back intact.
			payload := bytes.Repeat([]byte{0xAB}, 1000)

			for round := 0; round < 500; round++ {
				Expect(q.Push(payload, 0)).To(Succeed())
				Expect(q.Push(payload, 0)).To(Succeed())

				got, err := q.Pop(0)
				Expect(err).ToNot(HaveOccurred())
				Expect(got).To(HaveLen(len(payload)))
				Expect(got).To(Equal(payload))

				got, err = q.Pop(0)
				Expect(err).ToNot(HaveOccurred())
				Expect(got).To(Equal(payload))
			}

			Expect(q.Count()).To(Equal(0))
		})
	})

	Context("capacity limits", func() {
		It("rejects a payload that can never fit, with no side effect", func() {
			err := q.Push(make([]byte, 1<<16), 0)
			Expect(libshm.ErrorTooBig.IsCode(err)).To(BeTrue())
			Expect(q.Count()).To(Equal(0))

			Expect(q.Push([]byte("still working"), 0)).To(Succeed())
		})

		It("fails fast on a full ring without the wait flag", func() {
			chunk := make([]byte, 4096)

			var pushed int
			for {
				if e := q.Push(chunk, 0); e != nil {
					Expect(libshm.ErrorFull.IsCode(e)).To(BeTrue())
					break
				}
				pushed++
			}

			Expect(pushed).To(BeNumerically(">", 0))

			// A wrapped block must stay strictly short of the head, so one
			// freed block of the same size is not enough; two are.
			_, err := q.Pop(0)
			Expect(err).ToNot(HaveOccurred())
			_, err = q.Pop(0)
			Expect(err).ToNot(HaveOccurred())
			Expect(q.Push(chunk, 0)).To(Succeed())
		})
	})

	Context("stop signal", func() {
		It("unblocks a waiting pop within one wait cycle", func() {
			done := make(chan error, 1)

			go func() {
				_, e := q.Pop(libshm.FlagWait | libshm.FlagLock)
				done <- e
			}()

			time.Sleep(5 * time.Millisecond)
			q.StopWait()

			Eventually(done, time.Second).Should(Receive(WithTransform(
				libshm.ErrorStopped.IsCode, BeTrue())))
		})

		It("unblocks a waiting push on a full ring", func() {
			chunk := make([]byte, 4096)
			for q.Push(chunk, 0) == nil {
			}

			done := make(chan error, 1)
			go func() {
				done <- q.Push(chunk, libshm.FlagWait|libshm.FlagLock)
			}()

			time.Sleep(5 * time.Millisecond)
			q.StopWait()

			Eventually(done, time.Second).Should(Receive(WithTransform(
				libshm.ErrorStopped.IsCode, BeTrue())))
		})
	})

	Context("concurrent access with the lock flag", func() {
		It("loses and duplicates nothing across producers and consumers", func() {
			const (
				producers = 4
				consumers = 4
				perProd   = 250
			)

			var (
				wgP  sync.WaitGroup
				wgC  sync.WaitGroup
				mu   sync.Mutex
				seen = make(map[string]int)
			)

			for p := 0; p < producers; p++ {
				wgP.Add(1)
				go func(p int) {
					defer wgP.Done()
					for i := 0; i < perProd; i++ {
						msg := []byte(fmt.Sprintf("p%02d-m%04d", p, i))
						Expect(q.Push(msg, libshm.FlagWait|libshm.FlagLock)).To(Succeed())
					}
				}(p)
			}

			stop := make(chan struct{})
			for c := 0; c < consumers; c++ {
				wgC.Add(1)
				go func() {
					defer wgC.Done()
					for {
						b, e := q.Pop(libshm.FlagLock)
						if e != nil {
							select {
							case <-stop:
								return
							default:
								time.Sleep(time.Millisecond)
								continue
							}
						}
						mu.Lock()
						seen[string(b)]++
						mu.Unlock()
					}
				}()
			}

			wgP.Wait()
			Eventually(func() int {
				mu.Lock()
				defer mu.Unlock()
				return len(seen)
			}, 10*time.Second).Should(Equal(producers * perProd))

			close(stop)
			wgC.Wait()

			mu.Lock()
			defer mu.Unlock()
			for k, n := range seen {
				Expect(n).To(Equal(1), "message %s seen %d times", k, n)
			}
		})
	})
})
