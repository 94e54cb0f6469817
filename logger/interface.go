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

// Package logger fronts logrus for every verben process role.
//
// Each role opens its own logger after spawn, so no file offset is ever
// shared between processes. Output goes to a size-rotated file sink when a
// directory is configured, to stderr otherwise. The historical `log_multi`
// switch splits entries into one file per level.
package logger

import (
	"io"

	liberr "github.com/nabbar/verben/errors"
)

const (
	ErrorInvalidDir liberr.CodeError = iota + liberr.MinPkgLogger
	ErrorOpenFile
	ErrorRotateFile
)

func init() {
	liberr.Register(ErrorInvalidDir, "log directory is not writable")
	liberr.Register(ErrorOpenFile, "cannot open log file")
	liberr.Register(ErrorRotateFile, "cannot rotate log file")
}

// Options carries the config keys driving the logger.
type Options struct {
	// Dir is the log directory (`log_dir`). Empty means stderr only.
	Dir string

	// Name is the base file name (`log_name`).
	Name string

	// Level is the minimal level written (`log_level`).
	Level Level

	// MaxSize is the rotation threshold in bytes (`log_size`).
	MaxSize int64

	// MaxFiles is the number of rotated files kept (`log_num`).
	MaxFiles int

	// Multi writes one file per level instead of a single file (`log_multi`).
	Multi bool

	// Tag is the contextual prefix added to every entry, e.g. the
	// process role and pid.
	Tag string
}

// Logger is the logging front used by all packages.
type Logger interface {
	io.Closer

	// SetLevel changes the minimal written level.
	SetLevel(lvl Level)

	// GetLevel returns the minimal written level.
	GetLevel() Level

	// WithField returns a derived logger stamping an extra field on
	// every entry, sharing sinks with its parent.
	WithField(key string, value interface{}) Logger

	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})
	Fatal(format string, args ...interface{})

	// CheckError logs err under lvl when non-nil and reports whether an
	// error was seen.
	CheckError(lvl Level, message string, err error) bool
}

// New opens a logger from options. A nil or zero options value yields a
// stderr logger at debug level.
func New(opt *Options) (Logger, error) {
	return newLogger(opt)
}
