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

// Package echo is the smallest useful plugin: every read chunk is one
// frame and the response mirrors the request byte for byte. It doubles as
// the round-trip reference for the integration suites.
package echo

import (
	libplg "github.com/nabbar/verben/plugin"
)

func init() {
	libplg.Register("echo", New())
}

// New returns the echo handler.
func New() libplg.Handler {
	return &hdl{}
}

type hdl struct{}

func (o *hdl) Input(buf []byte, ip string, port int) int {
	return len(buf)
}

func (o *hdl) Process(in []byte, ip string, port int) ([]byte, libplg.Result) {
	out := make([]byte, len(in))
	copy(out, in)

	return out, libplg.ResultOK
}
