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

// Package conn runs the network-front process: it owns every client
// socket, frames requests through the plugin's input probe, dispatches
// them to the receive ring and flushes worker responses back.
//
// Responses are routed by (origin pid, connection id) only; a message
// whose origin is not this process predates a respawn and is dropped.
// A record is destroyed exactly when its socket is closed and no worker
// response is owed anymore.
package conn

import (
	"os"
	"time"

	"golang.org/x/sys/unix"

	libcfg "github.com/nabbar/verben/config"
	liberr "github.com/nabbar/verben/errors"
	libevt "github.com/nabbar/verben/event"
	liblog "github.com/nabbar/verben/logger"
	libntf "github.com/nabbar/verben/notifier"
	libplg "github.com/nabbar/verben/plugin"
	libshm "github.com/nabbar/verben/shmq"
)

const (
	ErrorParams liberr.CodeError = iota + liberr.MinPkgConn
	ErrorListen
	ErrorLoop
	ErrorPlugin
)

func init() {
	liberr.Register(ErrorParams, "missing connection process collaborator")
	liberr.Register(ErrorListen, "cannot open listening socket")
	liberr.Register(ErrorLoop, "cannot create reactor")
	liberr.Register(ErrorPlugin, "plugin rejected connection process start")
}

const (
	ioBufSize = 4096

	// MaxProtLen bounds the frame length a plugin may declare; anything
	// beyond is a framing violation and closes the connection.
	MaxProtLen = 4096

	setSize = 10240
)

// Options wires a connection process.
type Options struct {
	Server    *libcfg.Server
	Raw       libcfg.Config
	Handler   libplg.Handler
	RecvQueue libshm.Queue
	SendQueue libshm.Queue
	Notifier  libntf.Notifier
	Log       liblog.Logger
}

// Process is the single-threaded network front.
type Process struct {
	cfg    *libcfg.Server
	raw    libcfg.Config
	h      libplg.Handler
	lp     libevt.Loop
	recvQ  libshm.Queue
	sendQ  libshm.Queue
	ntf    libntf.Notifier
	conns  *connSet
	lfd    int
	origin uint32
	log    liblog.Logger
}

// New validates the collaborators, creates the reactor and binds the
// listening socket, so that a boot failure surfaces before the first
// client shows up.
func New(opt Options) (*Process, error) {
	if opt.Server == nil || opt.Handler == nil || opt.RecvQueue == nil ||
		opt.SendQueue == nil || opt.Notifier == nil {
		return nil, ErrorParams.Error(nil)
	}

	if opt.Log == nil {
		opt.Log = liblog.Discard()
	}

	lp, err := libevt.New(setSize)
	if err != nil {
		return nil, ErrorLoop.Error(err)
	}

	lfd, e := tcpListen(opt.Server.Bind, opt.Server.Port)
	if e != nil {
		_ = lp.Close()
		return nil, e
	}

	return &Process{
		cfg:    opt.Server,
		raw:    opt.Raw,
		h:      opt.Handler,
		lp:     lp,
		recvQ:  opt.RecvQueue,
		sendQ:  opt.SendQueue,
		ntf:    opt.Notifier,
		conns:  newConnSet(),
		lfd:    lfd,
		origin: uint32(os.Getpid()),
		log:    opt.Log,
	}, nil
}

// Port returns the bound listening port.
func (o *Process) Port() int {
	return boundPort(o.lfd)
}

// Stop ends the reactor at its next iteration and unblocks a dispatch
// stuck on a full receive ring. Safe from a signal goroutine.
func (o *Process) Stop() {
	o.recvQ.StopWait()
	o.lp.Stop()
}

// Run drives the reactor until Stop. The plugin's conn-role lifecycle
// wraps the loop.
func (o *Process) Run() error {
	if e := libplg.Init(o.h, o.raw, libplg.RoleConn); e != nil {
		return ErrorPlugin.Error(e)
	}

	defer libplg.Fini(o.h, o.raw, libplg.RoleConn)

	if e := o.lp.AddFileEvent(o.lfd, libevt.Readable, o.acceptHandler, nil); e != nil {
		return e
	}
	if e := o.lp.AddFileEvent(int(o.ntf.Reader().Fd()), libevt.Readable, o.notifierHandler, nil); e != nil {
		return e
	}

	o.lp.AddTimeEvent(1000, o.serverCron, nil, nil)

	o.log.Info("connection process listening on %s:%d", o.cfg.Bind, o.Port())

	o.lp.Main()

	o.conns.each(func(c *Conn) {
		o.closeClient(c)
	})

	_ = unix.Close(o.lfd)
	_ = o.lp.Close()

	return nil
}

func (o *Process) acceptHandler(lp libevt.Loop, fd int, data interface{}, mask libevt.Mask) {
	for {
		nfd, sa, e := unix.Accept4(o.lfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if e != nil {
			if e != unix.EAGAIN && e != unix.EINTR {
				o.log.Error("accept failed: %v", e)
			}
			return
		}

		ip, port := peerAddr(sa)

		if o.cfg.ClientLimit > 0 && o.conns.len() >= o.cfg.ClientLimit {
			o.log.Warning("client limit %d reached, rejecting %s:%d", o.cfg.ClientLimit, ip, port)
			_ = unix.Close(nfd)
			continue
		}

		_ = unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

		c := o.conns.add(nfd, ip, port)

		if e := o.lp.AddFileEvent(nfd, libevt.Readable, o.readHandler, c); e != nil {
			o.log.Error("[%s:%d] cannot watch socket: %v", ip, port, e)
			o.closeClient(c)
			continue
		}

		greeting, e := libplg.Open(o.h, ip, port)
		if e != nil {
			o.log.Debug("[%s:%d] rejected by plugin open: %v", ip, port, e)
			o.closeClient(c)
			continue
		}

		if len(greeting) > 0 {
			c.sendBuf = append(c.sendBuf, greeting...)
			o.armWrite(c)
		}

		o.log.Debug("[%s:%d] accepted as conn %d", ip, port, c.id)
	}
}

func (o *Process) readHandler(lp libevt.Loop, fd int, data interface{}, mask libevt.Mask) {
	c := data.(*Conn)
	if c.fd == -1 {
		return
	}

	var buf [ioBufSize]byte

	n, e := unix.Read(fd, buf[:])
	if e != nil {
		if e == unix.EAGAIN || e == unix.EINTR {
			return
		}
		o.log.Debug("[%s:%d] read failed: %v", c.ip, c.port, e)
		o.closeClient(c)
		return
	}
	if n == 0 {
		o.closeClient(c)
		return
	}

	c.recvBuf = append(c.recvBuf, buf[:n]...)
	c.lastActive = time.Now()

	o.frameLoop(c)
}

// frameLoop drains every complete frame out of the receive buffer, one
// ring message per frame, leaving trailing bytes for the next read.
func (o *Process) frameLoop(c *Conn) {
	for c.fd != -1 {
		if c.protLen == 0 {
			if len(c.recvBuf) == 0 {
				return
			}

			n := o.h.Input(c.recvBuf, c.ip, c.port)
			if n < 0 || n > MaxProtLen {
				o.log.Error("[%s:%d] framing violation, declared %d bytes", c.ip, c.port, n)
				o.closeClient(c)
				return
			}
			if n == 0 {
				return
			}
			c.protLen = n
		}

		if len(c.recvBuf) < c.protLen {
			return
		}

		msg := &libshm.Message{
			Origin:     o.origin,
			ConnID:     c.id,
			RemoteIP:   c.ip,
			RemotePort: uint16(c.port),
			Payload:    c.recvBuf[:c.protLen],
		}

		// Blocking dispatch on purpose: a full ring stalls the reactor
		// and the kernel accept queue becomes the admission control.
		if e := o.recvQ.Push(msg.Encode(), libshm.FlagWait|libshm.FlagLock); e != nil {
			if libshm.ErrorStopped.IsCode(e) {
				return
			}
			o.log.Error("[%s:%d] dispatch failed: %v", c.ip, c.port, e)
			o.closeClient(c)
			return
		}

		c.refcount++

		rest := copy(c.recvBuf, c.recvBuf[c.protLen:])
		c.recvBuf = c.recvBuf[:rest]
		c.protLen = 0
	}
}

func (o *Process) notifierHandler(lp libevt.Loop, fd int, data interface{}, mask libevt.Mask) {
	o.ntf.Drain()

	for {
		b, e := o.sendQ.Pop(0)
		if e != nil {
			return
		}

		m, err := libshm.Decode(b)
		if err != nil {
			o.log.Error("dropping unreadable response: %v", err)
			continue
		}

		if m.Origin != o.origin {
			o.log.Error("dropping stale response for conn %d (origin pid %d, ours %d)",
				m.ConnID, m.Origin, o.origin)
			continue
		}

		c := o.conns.get(m.ConnID)
		if c == nil {
			o.log.Debug("dropping response for gone conn %d", m.ConnID)
			continue
		}

		if c.fd != -1 {
			if len(m.Payload) > 0 {
				c.sendBuf = append(c.sendBuf, m.Payload...)
				o.armWrite(c)
			}
			if m.CloseAfterSend {
				c.closeAfter = true
				if len(c.sendBuf) == 0 {
					o.closeClient(c)
				}
			}
		}

		o.reduceRefcount(c)
	}
}

func (o *Process) armWrite(c *Conn) {
	if e := o.lp.AddFileEvent(c.fd, libevt.Writable, o.writeHandler, c); e != nil {
		o.log.Error("[%s:%d] cannot arm write: %v", c.ip, c.port, e)
		o.closeClient(c)
	}
}

func (o *Process) writeHandler(lp libevt.Loop, fd int, data interface{}, mask libevt.Mask) {
	c := data.(*Conn)
	if c.fd == -1 {
		return
	}

	n, e := unix.Write(fd, c.sendBuf)
	if e != nil {
		if e == unix.EAGAIN || e == unix.EINTR {
			return
		}
		o.log.Debug("[%s:%d] write failed: %v", c.ip, c.port, e)
		o.closeClient(c)
		return
	}

	c.lastActive = time.Now()

	rest := copy(c.sendBuf, c.sendBuf[n:])
	c.sendBuf = c.sendBuf[:rest]

	if len(c.sendBuf) == 0 {
		o.lp.DelFileEvent(c.fd, libevt.Writable)
		if c.closeAfter {
			o.closeClient(c)
		}
	}
}

func (o *Process) serverCron(lp libevt.Loop, id int64, data interface{}) int64 {
	idle := time.Duration(o.cfg.ClientTimeout) * time.Second

	o.conns.each(func(c *Conn) {
		if c.fd != -1 && c.refcount == 0 && time.Since(c.lastActive) > idle {
			o.log.Debug("[%s:%d] idle for %s, closing", c.ip, c.port, idle)
			o.closeClient(c)
		}
	})

	return 1000
}

// closeClient tears the socket down, idempotently. The record itself only
// dies once no worker response is owed; reduceRefcount finishes the job
// otherwise.
func (o *Process) closeClient(c *Conn) {
	if c.fd != -1 {
		o.lp.DelFileEvent(c.fd, libevt.Readable|libevt.Writable)
		_ = unix.Close(c.fd)
		c.fd = -1
		libplg.CloseNotify(o.h, c.ip, c.port)
	}

	if c.refcount == 0 {
		o.conns.remove(c)
	}
}

// reduceRefcount is the sole destroyer of a record whose socket is gone.
func (o *Process) reduceRefcount(c *Conn) {
	if c.refcount > 0 {
		c.refcount--
	}

	if c.fd == -1 && c.refcount == 0 {
		o.conns.remove(c)
	}
}
