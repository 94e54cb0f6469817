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

package conn_test

import (
	"bytes"
	"io"
	"time"

	"github.com/nabbar/verben/plugins/echo"
	libshm "github.com/nabbar/verben/shmq"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Connection Process", func() {
	Context("echo happy path", func() {
		var f *fixture

		BeforeEach(func() {
			f = startFixture(defaultServer(), echo.New(), true)
		})

		AfterEach(func() {
			f.stop()
		})

		It("returns exactly what the client sent and keeps the connection open", func() {
			c := f.dial()
			defer func() {
				_ = c.Close()
			}()

			_, e := c.Write([]byte("hello\n"))
			Expect(e).ToNot(HaveOccurred())

			Expect(readN(c, 6)).To(Equal([]byte("hello\n")))

			// Still open: a second round trip works on the same socket.
			_, e = c.Write([]byte("again\n"))
			Expect(e).ToNot(HaveOccurred())
			Expect(readN(c, 6)).To(Equal([]byte("again\n")))
		})
	})

	Context("pipelined frames on one connection", func() {
		var f *fixture

		BeforeEach(func() {
			f = startFixture(defaultServer(), &frame8{}, true)
		})

		AfterEach(func() {
			f.stop()
		})

		It("delivers every response in order on a single worker", func() {
			const frames = 200

			c := f.dial()
			defer func() {
				_ = c.Close()
			}()

			var req bytes.Buffer
			for i := 0; i < frames; i++ {
				req.WriteByte(byte('a' + i%26))
				req.WriteString("0123456")
			}

			_, e := c.Write(req.Bytes())
			Expect(e).ToNot(HaveOccurred())

			got := readN(c, frames*8)
			Expect(got).To(Equal(req.Bytes()))
		})
	})

	Context("close after send", func() {
		var f *fixture

		BeforeEach(func() {
			f = startFixture(defaultServer(), &closing{}, true)
		})

		AfterEach(func() {
			f.stop()
		})

		It("flushes the response then shuts the connection down", func() {
			c := f.dial()
			defer func() {
				_ = c.Close()
			}()

			_, e := c.Write([]byte("8bytes!!"))
			Expect(e).ToNot(HaveOccurred())

			Expect(readN(c, 8)).To(Equal([]byte("8bytes!!")))

			_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, e = c.Read(make([]byte, 1))
			Expect(e).To(Equal(io.EOF))
		})
	})

	Context("plugin greeting", func() {
		var f *fixture

		BeforeEach(func() {
			f = startFixture(defaultServer(), &greeting{}, true)
		})

		AfterEach(func() {
			f.stop()
		})

		It("pushes the banner before any request", func() {
			c := f.dial()
			defer func() {
				_ = c.Close()
			}()

			Expect(readN(c, 8)).To(Equal([]byte("welcome\n")))
		})
	})

	Context("framing violation", func() {
		var f *fixture

		BeforeEach(func() {
			f = startFixture(defaultServer(), &rejecting{}, true)
		})

		AfterEach(func() {
			f.stop()
		})

		It("closes the connection when the framer rejects the bytes", func() {
			c := f.dial()
			defer func() {
				_ = c.Close()
			}()

			_, e := c.Write([]byte("garbage"))
			Expect(e).ToNot(HaveOccurred())

			_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, e = c.Read(make([]byte, 1))
			Expect(e).To(Equal(io.EOF))
		})
	})

	Context("idle timeout", func() {
		var (
			f *fixture
			h *watching
		)

		BeforeEach(func() {
			srv := defaultServer()
			srv.ClientTimeout = 1
			h = &watching{}
			f = startFixture(srv, h, true)
		})

		AfterEach(func() {
			f.stop()
		})

		It("closes a silent client and notifies the plugin", func() {
			c := f.dial()
			defer func() {
				_ = c.Close()
			}()

			_ = c.SetReadDeadline(time.Now().Add(4 * time.Second))
			_, e := c.Read(make([]byte, 1))
			Expect(e).To(Equal(io.EOF))

			Eventually(h.closes, 2*time.Second).Should(BeNumerically(">=", 1))
		})
	})

	Context("client limit", func() {
		var f *fixture

		BeforeEach(func() {
			srv := defaultServer()
			srv.ClientLimit = 1
			f = startFixture(srv, &frame8{}, true)
		})

		AfterEach(func() {
			f.stop()
		})

		It("drops connections beyond the configured limit", func() {
			keep := f.dial()
			defer func() {
				_ = keep.Close()
			}()

			// Make sure the first connection is registered before racing
			// the second one against it.
			_, e := keep.Write([]byte("8bytes!!"))
			Expect(e).ToNot(HaveOccurred())
			Expect(readN(keep, 8)).To(Equal([]byte("8bytes!!")))

			over := f.dial()
			defer func() {
				_ = over.Close()
			}()

			_ = over.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, e = over.Read(make([]byte, 1))
			Expect(e).To(Equal(io.EOF))
		})
	})

	Context("stale responses after a conn respawn", func() {
		var f *fixture

		BeforeEach(func() {
			// No real worker: the spec plays a worker from a previous
			// daemon generation.
			f = startFixture(defaultServer(), &frame8{}, false)
		})

		AfterEach(func() {
			f.stop()
		})

		It("silently discards a response whose origin pid is not ours", func() {
			c := f.dial()
			defer func() {
				_ = c.Close()
			}()

			stale := &libshm.Message{
				Origin:     1, // no live conn process has pid 1
				ConnID:     1,
				RemoteIP:   "127.0.0.1",
				RemotePort: 1,
				Payload:    []byte("ghost!!!"),
			}
			Expect(f.sendQ.Push(stale.Encode(), libshm.FlagWait|libshm.FlagLock)).To(Succeed())
			Expect(f.ntf.Wake()).To(Succeed())

			// Nothing may reach the client.
			_ = c.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
			_, e := c.Read(make([]byte, 1))
			ne, ok := e.(interface{ Timeout() bool })
			Expect(ok).To(BeTrue())
			Expect(ne.Timeout()).To(BeTrue())

			// And the ring is drained.
			Eventually(f.sendQ.Count, time.Second).Should(Equal(0))
		})
	})
})
