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
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Level is the severity of a log entry, ordered from most severe
// (FatalLevel) to least severe (DebugLevel).
type Level uint8

const (
	FatalLevel Level = iota
	ErrorLevel
	WarnLevel
	NoticeLevel
	DebugLevel
)

// Parse maps a config value onto a Level. Numeric values follow the
// historical 0..4 scale; names are matched case-insensitively. Unknown
// input yields DebugLevel so a misconfigured daemon logs everything
// rather than nothing.
func Parse(s string) Level {
	if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		if i < int(FatalLevel) {
			return FatalLevel
		}
		if i > int(DebugLevel) {
			return DebugLevel
		}
		return Level(i)
	}

	switch {
	case strings.EqualFold(s, "fatal"):
		return FatalLevel
	case strings.EqualFold(s, "error"), strings.EqualFold(s, "err"):
		return ErrorLevel
	case strings.EqualFold(s, "warning"), strings.EqualFold(s, "warn"):
		return WarnLevel
	case strings.EqualFold(s, "notice"), strings.EqualFold(s, "info"):
		return NoticeLevel
	case strings.EqualFold(s, "debug"):
		return DebugLevel
	}

	return DebugLevel
}

// String returns the upper-case level tag used to suffix per-level file
// names.
func (l Level) String() string {
	switch l {
	case FatalLevel:
		return "FATAL"
	case ErrorLevel:
		return "ERROR"
	case WarnLevel:
		return "WARNING"
	case NoticeLevel:
		return "NOTICE"
	case DebugLevel:
		return "DEBUG"
	}
	return "DEBUG"
}

// Logrus converts the level for the underlying logrus logger.
func (l Level) Logrus() logrus.Level {
	switch l {
	case FatalLevel:
		return logrus.FatalLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case WarnLevel:
		return logrus.WarnLevel
	case NoticeLevel:
		return logrus.InfoLevel
	case DebugLevel:
		return logrus.DebugLevel
	}
	return logrus.DebugLevel
}

func fromLogrus(l logrus.Level) Level {
	switch l {
	case logrus.PanicLevel, logrus.FatalLevel:
		return FatalLevel
	case logrus.ErrorLevel:
		return ErrorLevel
	case logrus.WarnLevel:
		return WarnLevel
	case logrus.InfoLevel:
		return NoticeLevel
	}
	return DebugLevel
}
