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
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	liberr "github.com/nabbar/verben/errors"
)

type lgr struct {
	m sync.RWMutex
	l *logrus.Logger
	o Options
	f logrus.Fields
	s []io.Closer
}

func defaultFormatter() logrus.Formatter {
	return &logrus.TextFormatter{
		ForceQuote:             true,
		FullTimestamp:          true,
		TimestampFormat:        time.RFC3339,
		DisableLevelTruncation: true,
		PadLevelText:           true,
		QuoteEmptyFields:       true,
	}
}

func newLogger(opt *Options) (Logger, error) {
	var o Options

	if opt != nil {
		o = *opt
	}

	if o.Level == 0 && o.Dir == "" {
		o.Level = DebugLevel
	}

	l := logrus.New()
	l.SetLevel(o.Level.Logrus())
	l.SetFormatter(defaultFormatter())

	r := &lgr{
		l: l,
		o: o,
		f: logrus.Fields{},
	}

	if o.Tag != "" {
		r.f["tag"] = o.Tag
	}

	if o.Dir == "" {
		l.SetOutput(os.Stderr)
		return r, nil
	}

	if i, err := os.Stat(o.Dir); err != nil || !i.IsDir() {
		return nil, ErrorInvalidDir.Errorf("%s", o.Dir)
	}

	// File sinks are logrus hooks so `log_multi` can fan levels out to
	// separate files; the logger's own writer stays discarded.
	l.SetOutput(io.Discard)

	if e := r.addFileHooks(); e != nil {
		return nil, e
	}

	return r, nil
}

func (o *lgr) addFileHooks() liberr.Error {
	base := filepath.Join(o.o.Dir, o.o.Name)

	if !o.o.Multi {
		h, e := newHookFile(base, o.o.MaxSize, o.o.MaxFiles, levelsAtMost(o.o.Level))
		if e != nil {
			return e
		}
		o.l.AddHook(h)
		o.s = append(o.s, h)
		return nil
	}

	for lvl := FatalLevel; lvl <= o.o.Level; lvl++ {
		h, e := newHookFile(base+"_"+lvl.String(), o.o.MaxSize, o.o.MaxFiles, []logrus.Level{lvl.Logrus()})
		if e != nil {
			return e
		}
		o.l.AddHook(h)
		o.s = append(o.s, h)
	}

	return nil
}

func levelsAtMost(lvl Level) []logrus.Level {
	var res []logrus.Level
	for l := FatalLevel; l <= lvl; l++ {
		res = append(res, l.Logrus())
	}
	return res
}

func (o *lgr) SetLevel(lvl Level) {
	o.m.Lock()
	defer o.m.Unlock()
	o.o.Level = lvl
	o.l.SetLevel(lvl.Logrus())
}

func (o *lgr) GetLevel() Level {
	o.m.RLock()
	defer o.m.RUnlock()
	return fromLogrus(o.l.GetLevel())
}

func (o *lgr) WithField(key string, value interface{}) Logger {
	o.m.RLock()
	defer o.m.RUnlock()

	f := logrus.Fields{}
	for k, v := range o.f {
		f[k] = v
	}
	f[key] = value

	return &lgr{l: o.l, o: o.o, f: f}
}

func (o *lgr) entry() *logrus.Entry {
	o.m.RLock()
	defer o.m.RUnlock()
	return o.l.WithFields(o.f)
}

func (o *lgr) Debug(format string, args ...interface{}) {
	o.entry().Debugf(format, args...)
}

func (o *lgr) Info(format string, args ...interface{}) {
	o.entry().Infof(format, args...)
}

func (o *lgr) Warning(format string, args ...interface{}) {
	o.entry().Warnf(format, args...)
}

func (o *lgr) Error(format string, args ...interface{}) {
	o.entry().Errorf(format, args...)
}

func (o *lgr) Fatal(format string, args ...interface{}) {
	o.entry().Fatalf(format, args...)
}

func (o *lgr) CheckError(lvl Level, message string, err error) bool {
	if err == nil {
		return false
	}

	e := o.entry().WithField("error", err.Error())
	switch lvl {
	case FatalLevel:
		e.Fatal(message)
	case ErrorLevel:
		e.Error(message)
	case WarnLevel:
		e.Warn(message)
	case NoticeLevel:
		e.Info(message)
	default:
		e.Debug(message)
	}

	return true
}

func (o *lgr) Close() error {
	o.m.Lock()
	defer o.m.Unlock()

	var err error
	for _, c := range o.s {
		if e := c.Close(); e != nil && err == nil {
			err = e
		}
	}
	o.s = nil

	return err
}

// Discard returns a logger that drops everything; used by tests and as a
// safe default before configuration is loaded.
func Discard() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &lgr{l: l, f: logrus.Fields{}}
}
