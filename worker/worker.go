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

// Package worker runs the processing loop of one worker process: pop a
// framed request off the receive ring, hand it to the plugin, push the
// response and poke the notifier. Workers hold no state of their own
// between messages.
package worker

import (
	"sync/atomic"

	libcfg "github.com/nabbar/verben/config"
	liberr "github.com/nabbar/verben/errors"
	liblog "github.com/nabbar/verben/logger"
	libntf "github.com/nabbar/verben/notifier"
	libplg "github.com/nabbar/verben/plugin"
	libshm "github.com/nabbar/verben/shmq"
)

const (
	ErrorParams liberr.CodeError = iota + liberr.MinPkgWorker
	ErrorPlugin
)

func init() {
	liberr.Register(ErrorParams, "missing worker collaborator")
	liberr.Register(ErrorPlugin, "plugin rejected worker start")
}

// Options wires a worker process.
type Options struct {
	Raw       libcfg.Config
	Handler   libplg.Handler
	RecvQueue libshm.Queue
	SendQueue libshm.Queue
	Notifier  libntf.Notifier
	Log       liblog.Logger
}

// Worker is one pool slot's processing loop.
type Worker struct {
	raw   libcfg.Config
	h     libplg.Handler
	recvQ libshm.Queue
	sendQ libshm.Queue
	ntf   libntf.Notifier
	log   liblog.Logger
	stop  atomic.Bool
}

// New validates the collaborators.
func New(opt Options) (*Worker, error) {
	if opt.Handler == nil || opt.RecvQueue == nil || opt.SendQueue == nil || opt.Notifier == nil {
		return nil, ErrorParams.Error(nil)
	}

	if opt.Log == nil {
		opt.Log = liblog.Discard()
	}

	return &Worker{
		raw:   opt.Raw,
		h:     opt.Handler,
		recvQ: opt.RecvQueue,
		sendQ: opt.SendQueue,
		ntf:   opt.Notifier,
		log:   opt.Log,
	}, nil
}

// Stop unblocks the loop within one ring wait cycle; safe from a signal
// goroutine.
func (o *Worker) Stop() {
	o.stop.Store(true)
	o.recvQ.StopWait()
	o.sendQ.StopWait()
}

// Run loops until Stop. A plugin init failure aborts the process so the
// master can see the exit; a per-message failure only costs that message.
func (o *Worker) Run() error {
	if e := libplg.Init(o.h, o.raw, libplg.RoleWorker); e != nil {
		return ErrorPlugin.Error(e)
	}

	defer libplg.Fini(o.h, o.raw, libplg.RoleWorker)

	for {
		if o.stop.Load() {
			return nil
		}

		b, e := o.recvQ.Pop(libshm.FlagWait | libshm.FlagLock)
		if e != nil {
			if libshm.ErrorStopped.IsCode(e) {
				return nil
			}
			o.log.Error("ring pop failed: %v", e)
			continue
		}

		m, err := libshm.Decode(b)
		if err != nil {
			o.log.Error("dropping unreadable request: %v", err)
			continue
		}

		out, res := o.h.Process(m.Payload, m.RemoteIP, int(m.RemotePort))

		rsp := &libshm.Message{
			Origin:         m.Origin,
			ConnID:         m.ConnID,
			RemoteIP:       m.RemoteIP,
			RemotePort:     m.RemotePort,
			CloseAfterSend: res&(libplg.ResultError|libplg.ResultConnClose) != 0,
		}

		// An erroring plugin sends nothing back; the close flag alone
		// travels so the connection is shut after flush.
		if res&libplg.ResultError == 0 {
			rsp.Payload = out
		}

		if e = o.sendQ.Push(rsp.Encode(), libshm.FlagWait|libshm.FlagLock); e != nil {
			if libshm.ErrorStopped.IsCode(e) {
				return nil
			}
			o.log.Error("[%s] response push failed: %v", m.RemoteAddr(), e)
			continue
		}

		libplg.ProcessPost(o.h, out)

		if e = o.ntf.Wake(); e != nil {
			o.log.Error("notifier wake failed: %v", e)
		}
	}
}
