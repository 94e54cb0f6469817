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

// Package console renders the boot status lines printed by the master on
// stdout: the step description padded to a fixed column, then a green
// `[  OK  ]` or red `[FAILED]` tag. Colors are dropped automatically when
// stdout is not a terminal.
package console

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

const contentCols = 65

var (
	okTag   = color.New(color.FgGreen, color.Bold)
	failTag = color.New(color.FgRed, color.Bold)

	out io.Writer = os.Stdout
)

// SetOutput redirects the boot lines, mainly for tests.
func SetOutput(w io.Writer) {
	out = w
}

// BootOK prints a step line tagged `[  OK  ]`.
func BootOK(format string, args ...interface{}) {
	bootLine(true, format, args...)
}

// BootFailed prints a step line tagged `[FAILED]`. The caller decides
// whether the failure is fatal.
func BootFailed(format string, args ...interface{}) {
	bootLine(false, format, args...)
}

func bootLine(ok bool, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if len(msg) > contentCols {
		msg = msg[:contentCols]
	}

	_, _ = fmt.Fprintf(out, "%-*s", contentCols, msg)

	if ok {
		_, _ = okTag.Fprint(out, "[  OK  ]")
	} else {
		_, _ = failTag.Fprint(out, "[FAILED]")
	}

	_, _ = fmt.Fprintln(out)
}
