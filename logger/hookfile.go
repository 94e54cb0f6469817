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

package logger

import (
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	liberr "github.com/nabbar/verben/errors"
)

const (
	defaultMaxSize  = 64 << 20
	defaultMaxFiles = 10
)

// hookFile is a logrus hook writing formatted entries to a file rotated by
// size: the live file moves into the first free `<name>.<i>` slot; once all
// n slots are taken, `<name>.<i>` shifts down, the oldest (`.0`) dropping
// out, and the live file becomes `<name>.<n-1>`.
type hookFile struct {
	m    sync.Mutex
	p    string
	f    *os.File
	w    int64
	max  int64
	num  int
	lvl  []logrus.Level
	fmtr logrus.Formatter
}

func newHookFile(path string, maxSize int64, maxFiles int, lvls []logrus.Level) (*hookFile, liberr.Error) {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	if maxFiles <= 0 {
		maxFiles = defaultMaxFiles
	}

	h := &hookFile{
		p:    path,
		max:  maxSize,
		num:  maxFiles,
		lvl:  lvls,
		fmtr: defaultFormatter(),
	}

	if e := h.open(); e != nil {
		return nil, e
	}

	return h, nil
}

func (o *hookFile) open() liberr.Error {
	f, e := os.OpenFile(o.p, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if e != nil {
		return ErrorOpenFile.Error(e)
	}

	i, e := f.Stat()
	if e != nil {
		_ = f.Close()
		return ErrorOpenFile.Error(e)
	}

	o.f = f
	o.w = i.Size()

	return nil
}

func (o *hookFile) Levels() []logrus.Level {
	return o.lvl
}

func (o *hookFile) Fire(entry *logrus.Entry) error {
	b, e := o.fmtr.Format(entry)
	if e != nil {
		return e
	}

	o.m.Lock()
	defer o.m.Unlock()

	if o.w+int64(len(b)) > o.max {
		if e := o.rotate(); e != nil {
			return e
		}
	}

	n, e := o.f.Write(b)
	o.w += int64(n)

	return e
}

// rotate moves the live file into the first free <name>.0..n-1 slot; when
// none is free it first shifts <name>.1..n-1 down one slot and uses the top
// slot. It then reopens a fresh live file.
func (o *hookFile) rotate() error {
	_ = o.f.Close()

	free := -1
	for i := 0; i < o.num; i++ {
		if _, e := os.Stat(fmt.Sprintf("%s.%d", o.p, i)); os.IsNotExist(e) {
			free = i
			break
		}
	}

	if free < 0 {
		for i := 1; i < o.num; i++ {
			_ = os.Rename(fmt.Sprintf("%s.%d", o.p, i), fmt.Sprintf("%s.%d", o.p, i-1))
		}
		free = o.num - 1
	}

	if e := os.Rename(o.p, fmt.Sprintf("%s.%d", o.p, free)); e != nil {
		return ErrorRotateFile.Error(e)
	}

	return o.open()
}

func (o *hookFile) Close() error {
	o.m.Lock()
	defer o.m.Unlock()

	if o.f == nil {
		return nil
	}

	e := o.f.Close()
	o.f = nil

	return e
}
