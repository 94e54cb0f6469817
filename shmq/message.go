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

package shmq

import (
	"bytes"
	"encoding/binary"
	"fmt"

	liberr "github.com/nabbar/verben/errors"
)

// MsgMagic guards every ring message against torn or foreign blocks.
const MsgMagic uint32 = 0x567890EF

// MsgHeaderSize is the packed fixed header preceding every ring payload:
// magic(4) origin(4) connid(8) ip(16) port(2) flags(1) pad(5).
const MsgHeaderSize = 40

const flagCloseAfterSend = 0x1

// Message is one framed request or response crossing a ring. The origin
// pid plus the connection id replace any in-process reference: a consumer
// only ever routes by the pair, never by address.
type Message struct {
	// Origin is the pid of the connection process that owned the client
	// socket when the request was framed. A response whose origin is not
	// the current connection process predates a respawn and is dropped.
	Origin uint32

	// ConnID is the per-process monotonic identity of the connection.
	ConnID uint64

	// RemoteIP is the textual IPv4 address of the client.
	RemoteIP string

	// RemotePort is the client source port.
	RemotePort uint16

	// CloseAfterSend asks the connection process to close the client once
	// this payload is flushed.
	CloseAfterSend bool

	// Payload is the framed application bytes.
	Payload []byte
}

// Encode renders the message into a fresh buffer, header first.
func (o *Message) Encode() []byte {
	b := make([]byte, MsgHeaderSize+len(o.Payload))

	binary.LittleEndian.PutUint32(b[0:], MsgMagic)
	binary.LittleEndian.PutUint32(b[4:], o.Origin)
	binary.LittleEndian.PutUint64(b[8:], o.ConnID)
	copy(b[16:32], o.RemoteIP)
	binary.LittleEndian.PutUint16(b[32:], o.RemotePort)

	if o.CloseAfterSend {
		b[34] = flagCloseAfterSend
	}

	copy(b[MsgHeaderSize:], o.Payload)

	return b
}

// Decode parses a ring block back into a message, validating length and
// magic. The payload aliases the input slice.
func Decode(b []byte) (*Message, liberr.Error) {
	if len(b) < MsgHeaderSize {
		return nil, ErrorShortHeader.Errorf("%d bytes", len(b))
	}

	if m := binary.LittleEndian.Uint32(b[0:]); m != MsgMagic {
		return nil, ErrorBadMagic.Errorf("0x%08X", m)
	}

	ip := b[16:32]
	if i := bytes.IndexByte(ip, 0); i >= 0 {
		ip = ip[:i]
	}

	return &Message{
		Origin:         binary.LittleEndian.Uint32(b[4:]),
		ConnID:         binary.LittleEndian.Uint64(b[8:]),
		RemoteIP:       string(ip),
		RemotePort:     binary.LittleEndian.Uint16(b[32:]),
		CloseAfterSend: b[34]&flagCloseAfterSend != 0,
		Payload:        b[MsgHeaderSize:],
	}, nil
}

// RemoteAddr renders the client address for log tags.
func (o *Message) RemoteAddr() string {
	return fmt.Sprintf("%s:%d", o.RemoteIP, o.RemotePort)
}
