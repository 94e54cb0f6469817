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

// helper_test.go hosts the shared fixture: a full in-process daemon slice
// (connection process + one worker + both rings + notifier) plus the test
// plugin handlers the specs need.
package conn_test

import (
	"fmt"
	"net"
	"sync"
	"time"

	libcfg "github.com/nabbar/verben/config"
	libcon "github.com/nabbar/verben/conn"
	libntf "github.com/nabbar/verben/notifier"
	libplg "github.com/nabbar/verben/plugin"
	libshm "github.com/nabbar/verben/shmq"
	libwrk "github.com/nabbar/verben/worker"

	. "github.com/onsi/gomega"
)

// fixture bundles one running daemon slice.
type fixture struct {
	srv   *libcfg.Server
	proc  *libcon.Process
	wrk   *libwrk.Worker
	recvQ libshm.Queue
	sendQ libshm.Queue
	ntf   libntf.Notifier

	procDone chan error
	wrkDone  chan error
}

func defaultServer() *libcfg.Server {
	return &libcfg.Server{
		Bind:          "127.0.0.1",
		Port:          0,
		WorkerNum:     1,
		ShmqRecv:      1 << 18,
		ShmqSend:      1 << 18,
		ClientTimeout: 60,
	}
}

// startFixture boots the slice around a handler; workerless specs pass
// withWorker false to play the worker themselves.
func startFixture(srv *libcfg.Server, h libplg.Handler, withWorker bool) *fixture {
	f := &fixture{
		srv:      srv,
		procDone: make(chan error, 1),
		wrkDone:  make(chan error, 1),
	}

	var err error

	f.recvQ, err = libshm.New("t-recv", srv.ShmqRecv, nil)
	Expect(err).ToNot(HaveOccurred())

	f.sendQ, err = libshm.New("t-send", srv.ShmqSend, nil)
	Expect(err).ToNot(HaveOccurred())

	f.ntf, err = libntf.New()
	Expect(err).ToNot(HaveOccurred())

	f.proc, err = libcon.New(libcon.Options{
		Server:    srv,
		Handler:   h,
		RecvQueue: f.recvQ,
		SendQueue: f.sendQ,
		Notifier:  f.ntf,
	})
	Expect(err).ToNot(HaveOccurred())

	go func() {
		f.procDone <- f.proc.Run()
	}()

	if withWorker {
		f.wrk, err = libwrk.New(libwrk.Options{
			Handler:   h,
			RecvQueue: f.recvQ,
			SendQueue: f.sendQ,
			Notifier:  f.ntf,
		})
		Expect(err).ToNot(HaveOccurred())

		go func() {
			f.wrkDone <- f.wrk.Run()
		}()
	} else {
		close(f.wrkDone)
	}

	return f
}

func (f *fixture) stop() {
	if f.wrk != nil {
		f.wrk.Stop()
		Eventually(f.wrkDone, 2*time.Second).Should(Receive(BeNil()))
	}

	f.proc.Stop()
	Eventually(f.procDone, 2*time.Second).Should(Receive(BeNil()))

	_ = f.recvQ.Close()
	_ = f.sendQ.Close()
	_ = f.ntf.Close()
}

func (f *fixture) dial() net.Conn {
	var (
		c net.Conn
		e error
	)

	addr := fmt.Sprintf("127.0.0.1:%d", f.proc.Port())

	Eventually(func() error {
		c, e = net.DialTimeout("tcp", addr, time.Second)
		return e
	}, 2*time.Second).Should(Succeed())

	return c
}

func readN(c net.Conn, n int) []byte {
	buf := make([]byte, n)
	_ = c.SetReadDeadline(time.Now().Add(3 * time.Second))

	got := 0
	for got < n {
		r, e := c.Read(buf[got:])
		Expect(e).ToNot(HaveOccurred())
		got += r
	}

	return buf
}

// frame8 frames fixed 8-byte records, which makes pipelining
// deterministic regardless of how reads chunk.
type frame8 struct{}

func (o *frame8) Input(buf []byte, ip string, port int) int {
	return 8
}

func (o *frame8) Process(in []byte, ip string, port int) ([]byte, libplg.Result) {
	out := make([]byte, len(in))
	copy(out, in)
	return out, libplg.ResultOK
}

// closing echoes one frame and asks for close-after-send.
type closing struct {
	frame8
}

func (o *closing) Process(in []byte, ip string, port int) ([]byte, libplg.Result) {
	out, _ := o.frame8.Process(in, ip, port)
	return out, libplg.ResultConnClose
}

// greeting pushes a banner at accept time.
type greeting struct {
	frame8
}

func (o *greeting) Open(ip string, port int) ([]byte, error) {
	return []byte("welcome\n"), nil
}

// rejecting aborts every connection with a framing violation.
type rejecting struct {
	frame8
}

func (o *rejecting) Input(buf []byte, ip string, port int) int {
	return -1
}

// watching records close notifications.
type watching struct {
	frame8

	mu     sync.Mutex
	closed int
}

func (o *watching) CloseNotify(ip string, port int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed++
}

func (o *watching) closes() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
