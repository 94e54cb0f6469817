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

// Package version carries the build metadata printed by `verben --version`.
// The release, build and date values are meant to be overridden at link time.
package version

import "fmt"

var (
	release = "0.4.0"
	build   = "dev"
	date    = "2024-06-01"
)

// Version exposes the build metadata of a running binary.
type Version interface {
	Release() string
	Build() string
	Date() string

	// Info returns the one-line banner used by the CLI.
	Info() string
}

type vrs struct {
	rel string
	bld string
	dte string
}

// New returns a Version from explicit values.
func New(release, build, date string) Version {
	return &vrs{rel: release, bld: build, dte: date}
}

// Default returns the Version compiled into this binary.
func Default() Version {
	return New(release, build, date)
}

func (o *vrs) Release() string {
	return o.rel
}

func (o *vrs) Build() string {
	return o.bld
}

func (o *vrs) Date() string {
	return o.dte
}

func (o *vrs) Info() string {
	return fmt.Sprintf("verben %s (build %s, %s)", o.rel, o.bld, o.dte)
}
