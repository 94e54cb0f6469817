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

package conn

import (
	"container/list"
	"time"
)

const connMagic = 0x1234ABCD

// Conn is the per-client record, owned exclusively by the connection
// process. Its id is the only identity ever crossing a process boundary.
//
// A record lives while `fd != -1 || refcount > 0`: a closed socket with
// responses still owed lingers until every worker response drained.
type Conn struct {
	id         uint64
	fd         int
	ip         string
	port       int
	recvBuf    []byte
	sendBuf    []byte
	protLen    int
	closeAfter bool
	refcount   int
	lastActive time.Time
	magic      uint32
	elem       *list.Element
}

// ID returns the stable identity of this connection.
func (o *Conn) ID() uint64 {
	return o.id
}

// RemoteIP returns the textual IPv4 address of the peer.
func (o *Conn) RemoteIP() string {
	return o.ip
}

// RemotePort returns the peer source port.
func (o *Conn) RemotePort() int {
	return o.port
}

// Refcount returns the number of worker responses still owed.
func (o *Conn) Refcount() int {
	return o.refcount
}

// Alive reports whether the socket is still open.
func (o *Conn) Alive() bool {
	return o.fd != -1
}

// connSet indexes the live records by identity and keeps them in a list
// for the idle sweep.
type connSet struct {
	byID   map[uint64]*Conn
	lst    *list.List
	nextID uint64
}

func newConnSet() *connSet {
	return &connSet{
		byID: make(map[uint64]*Conn),
		lst:  list.New(),
	}
}

func (o *connSet) add(fd int, ip string, port int) *Conn {
	o.nextID++

	c := &Conn{
		id:         o.nextID,
		fd:         fd,
		ip:         ip,
		port:       port,
		lastActive: time.Now(),
		magic:      connMagic,
	}
	c.elem = o.lst.PushBack(c)
	o.byID[c.id] = c

	return c
}

func (o *connSet) get(id uint64) *Conn {
	return o.byID[id]
}

func (o *connSet) remove(c *Conn) {
	if c.elem != nil {
		o.lst.Remove(c.elem)
		c.elem = nil
	}
	delete(o.byID, c.id)
}

func (o *connSet) len() int {
	return len(o.byID)
}

// each walks a snapshot so callbacks may remove records while iterating.
func (o *connSet) each(fn func(c *Conn)) {
	snap := make([]*Conn, 0, o.lst.Len())
	for e := o.lst.Front(); e != nil; e = e.Next() {
		snap = append(snap, e.Value.(*Conn))
	}

	for _, c := range snap {
		fn(c)
	}
}
