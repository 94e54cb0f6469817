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
	"encoding/binary"
	"os"
	"sync/atomic"
	"time"
	"unsafe"

	liberr "github.com/nabbar/verben/errors"
	liblck "github.com/nabbar/verben/lock"
)

// Mapping layout. The first ringHeaderSize bytes hold the head and tail
// offsets, the block counter and the embedded spin word; blocks start at
// ringHeaderSize and stay aligned on blockAlign.
const (
	offHead  = 0
	offTail  = 4
	offCount = 8
	offLock  = 12

	ringHeaderSize = 64
	blockHeaderLen = 8
	blockAlign     = 8

	flagPadBlock = 0x1

	waitCycle = 200 * time.Microsecond
)

type ring struct {
	seg  *segment
	lck  liblck.Locker
	stop atomic.Bool
	end  int // end of the usable area, mapping size rounded down to blockAlign
}

func newRing(name string, capacity int, lk liblck.Locker) (*ring, liberr.Error) {
	if capacity <= ringHeaderSize+blockHeaderLen {
		return nil, ErrorSegment.Errorf("capacity %d too small", capacity)
	}

	seg, err := newSegment(name, capacity)
	if err != nil {
		return nil, err
	}

	q := &ring{seg: seg, end: capacity &^ (blockAlign - 1)}
	q.setHead(ringHeaderSize)
	q.setTail(ringHeaderSize)

	if lk == nil {
		lk = liblck.NewSpin(q.word(offLock))
	}
	q.lck = lk

	return q, nil
}

func attachRing(f *os.File, lk liblck.Locker) (*ring, liberr.Error) {
	seg, err := attachSegment(f)
	if err != nil {
		return nil, err
	}

	q := &ring{seg: seg, end: len(seg.b) &^ (blockAlign - 1)}
	if lk == nil {
		lk = liblck.NewSpin(q.word(offLock))
	}
	q.lck = lk

	return q, nil
}

func (o *ring) word(off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&o.seg.b[off]))
}

func (o *ring) head() int          { return int(atomic.LoadUint32(o.word(offHead))) }
func (o *ring) tail() int          { return int(atomic.LoadUint32(o.word(offTail))) }
func (o *ring) setHead(v int)      { atomic.StoreUint32(o.word(offHead), uint32(v)) }
func (o *ring) setTail(v int)      { atomic.StoreUint32(o.word(offTail), uint32(v)) }
func (o *ring) addCount(d int32)   { atomic.AddInt32((*int32)(unsafe.Pointer(o.word(offCount))), d) }
func (o *ring) Count() int         { return int(atomic.LoadInt32((*int32)(unsafe.Pointer(o.word(offCount))))) }
func (o *ring) Capacity() int      { return len(o.seg.b) }
func (o *ring) File() *os.File     { return o.seg.f }

func (o *ring) StopWait() {
	o.stop.Store(true)
}

func (o *ring) Close() error {
	return o.seg.close()
}

func align(n int) int {
	return (n + blockAlign - 1) &^ (blockAlign - 1)
}

func (o *ring) writeBlock(off int, flags uint32, payload []byte) {
	binary.LittleEndian.PutUint32(o.seg.b[off:], uint32(blockHeaderLen+len(payload)))
	binary.LittleEndian.PutUint32(o.seg.b[off+4:], flags)
	copy(o.seg.b[off+blockHeaderLen:], payload)
}

func (o *ring) blockAt(off int) (size int, flags uint32) {
	return int(binary.LittleEndian.Uint32(o.seg.b[off:])),
		binary.LittleEndian.Uint32(o.seg.b[off+4:])
}

// Push copies data into the ring as one data block, spilling a pad block
// at the wrap boundary when needed. The waiting loop sleeps with the lock
// released so other producers and consumers keep making progress.
func (o *ring) Push(data []byte, flags Flag) error {
	req := align(blockHeaderLen + len(data))
	if req >= o.end-ringHeaderSize {
		return ErrorTooBig.Errorf("block of %d bytes in a ring of %d", req, o.Capacity())
	}

	for {
		if flags&FlagLock != 0 {
			if e := o.lck.Lock(); e != nil {
				return e
			}
		}

		ok := o.tryPush(data, req)

		if flags&FlagLock != 0 {
			if e := o.lck.Unlock(); e != nil {
				return e
			}
		}

		if ok {
			return nil
		}
		if flags&FlagWait == 0 {
			return ErrorFull.Error(nil)
		}
		if o.stop.Load() {
			return ErrorStopped.Error(nil)
		}

		time.Sleep(waitCycle)
	}
}

func (o *ring) tryPush(data []byte, req int) bool {
	const start = ringHeaderSize

	cap_ := o.end
	h := o.head()
	t := o.tail()

	// The tail parks on the capacity mark after an exactly-fitting block;
	// it may only wrap once the head has left the start.
	if t == cap_ {
		if h == start {
			return false
		}
		t = start
		o.setTail(t)
	}

	if t >= h {
		if t+req <= cap_ {
			o.writeBlock(t, 0, data)
			o.setTail(t + req)
			o.addCount(1)
			return true
		}

		// Wrap: a pad block swallows [t, cap) and the data block lands at
		// the start, which must stay strictly short of the head.
		if start+req < h {
			binary.LittleEndian.PutUint32(o.seg.b[t:], uint32(cap_-t))
			binary.LittleEndian.PutUint32(o.seg.b[t+4:], flagPadBlock)
			o.writeBlock(start, 0, data)
			o.setTail(start + req)
			o.addCount(1)
			return true
		}

		return false
	}

	if t+req < h {
		o.writeBlock(t, 0, data)
		o.setTail(t + req)
		o.addCount(1)
		return true
	}

	return false
}

// Pop copies the oldest payload out. Pad blocks are skipped in place and
// never surface to the caller.
func (o *ring) Pop(flags Flag) ([]byte, error) {
	for {
		if flags&FlagLock != 0 {
			if e := o.lck.Lock(); e != nil {
				return nil, e
			}
		}

		out, ok := o.tryPop()

		if flags&FlagLock != 0 {
			if e := o.lck.Unlock(); e != nil {
				return nil, e
			}
		}

		if ok {
			return out, nil
		}
		if flags&FlagWait == 0 {
			return nil, ErrorEmpty.Error(nil)
		}
		if o.stop.Load() {
			return nil, ErrorStopped.Error(nil)
		}

		time.Sleep(waitCycle)
	}
}

func (o *ring) tryPop() ([]byte, bool) {
	const start = ringHeaderSize

	cap_ := o.end

	for {
		h := o.head()
		t := o.tail()

		if h == t {
			return nil, false
		}

		if h == cap_ {
			o.setHead(start)
			continue
		}

		size, flags := o.blockAt(h)
		if flags&flagPadBlock != 0 {
			o.setHead(start)
			continue
		}

		out := make([]byte, size-blockHeaderLen)
		copy(out, o.seg.b[h+blockHeaderLen:h+size])

		o.setHead(h + align(size))
		o.addCount(-1)

		return out, true
	}
}
