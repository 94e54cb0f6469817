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

// Package plugin defines the contract between the daemon and the loaded
// business module, and resolves a module by name or shared-object path.
//
// A module must implement Handler. The remaining capabilities — lifecycle
// hooks, connection open/close notification, post-process release — are
// optional interfaces probed at call sites through the Init/Fini/Open/...
// helpers, mirroring the optional symbols of the historical ABI.
package plugin

import (
	libcfg "github.com/nabbar/verben/config"
	liberr "github.com/nabbar/verben/errors"
)

const (
	ErrorLoad liberr.CodeError = iota + liberr.MinPkgPlugin
	ErrorSymbol
	ErrorUnknown
	ErrorInit
)

func init() {
	liberr.Register(ErrorLoad, "cannot load plugin module")
	liberr.Register(ErrorSymbol, "plugin module misses a mandatory symbol")
	liberr.Register(ErrorUnknown, "no such registered plugin")
	liberr.Register(ErrorInit, "plugin initialization failed")
}

// Role tells a callback which process it runs in.
type Role uint8

const (
	RoleMaster Role = iota
	RoleConn
	RoleWorker
)

func (r Role) String() string {
	switch r {
	case RoleConn:
		return "conn"
	case RoleWorker:
		return "worker"
	}
	return "master"
}

// Result is the bit-flagged outcome of Handler.Process.
type Result uint32

const (
	// ResultOK keeps the connection open and sends the payload.
	ResultOK Result = 0

	// ResultError suppresses the payload and closes after flush.
	ResultError Result = 1 << (iota - 1)

	// ResultConnClose sends the payload, then closes the connection.
	ResultConnClose
)

// Handler is the mandatory part of a plugin.
type Handler interface {
	// Input probes the receive buffer for one complete frame and returns
	// its total length, 0 when more bytes are needed, or a negative value
	// to abort the connection.
	Input(buf []byte, ip string, port int) int

	// Process turns one framed request into a response payload. It runs
	// in a worker process; the returned flags drive post-send behavior.
	Process(in []byte, ip string, port int) (out []byte, res Result)
}

// Initializer is the optional per-role setup hook. A non-nil error in any
// role aborts that process.
type Initializer interface {
	Init(cfg libcfg.Config, role Role) error
}

// Finalizer is the optional per-role teardown hook, paired one-to-one
// with a successful Init of the same process.
type Finalizer interface {
	Fini(cfg libcfg.Config, role Role)
}

// Opener is notified of each accepted connection and may return a
// greeting pushed to the client before any request. A non-nil error
// closes the connection immediately.
type Opener interface {
	Open(ip string, port int) (greeting []byte, err error)
}

// CloseNotifier is told when a connection is torn down.
type CloseNotifier interface {
	CloseNotify(ip string, port int)
}

// PostProcessor runs after the core has copied the Process output,
// letting the module recycle its buffer.
type PostProcessor interface {
	ProcessPost(out []byte)
}

// Init runs the optional Initializer of h.
func Init(h Handler, cfg libcfg.Config, role Role) error {
	if i, ok := h.(Initializer); ok {
		return i.Init(cfg, role)
	}
	return nil
}

// Fini runs the optional Finalizer of h.
func Fini(h Handler, cfg libcfg.Config, role Role) {
	if i, ok := h.(Finalizer); ok {
		i.Fini(cfg, role)
	}
}

// Open runs the optional Opener of h; the zero returns mean "no greeting,
// keep the connection".
func Open(h Handler, ip string, port int) ([]byte, error) {
	if i, ok := h.(Opener); ok {
		return i.Open(ip, port)
	}
	return nil, nil
}

// CloseNotify runs the optional CloseNotifier of h.
func CloseNotify(h Handler, ip string, port int) {
	if i, ok := h.(CloseNotifier); ok {
		i.CloseNotify(ip, port)
	}
}

// ProcessPost runs the optional PostProcessor of h.
func ProcessPost(h Handler, out []byte) {
	if i, ok := h.(PostProcessor); ok {
		i.ProcessPost(out)
	}
}
