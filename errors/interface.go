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

// Package errors provides typed, coded errors shared by all verben packages.
//
// Each package owns a contiguous range of CodeError values starting at its
// Min* constant and registers a message for every code it defines. Errors
// built from a code chain onto an optional parent and stay compatible with
// the standard errors.Is / errors.As helpers.
package errors

import (
	"errors"
	"fmt"
)

// CodeError is a numeric error classifier. Zero is reserved and never valid.
type CodeError uint16

// Per-package code ranges. A package defines its codes as
// `iota + MinPkgXxx` and never reaches into another range.
const (
	MinPkgLogger CodeError = 0x0100 + (0x0100 * iota)
	MinPkgConfig
	MinPkgLock
	MinPkgShmq
	MinPkgNotifier
	MinPkgEvent
	MinPkgPlugin
	MinPkgConn
	MinPkgWorker
	MinPkgMaster
	MinPkgPidFile
	MinPkgDaemon
)

// Error is the chainable coded error carried across the daemon.
type Error interface {
	error

	// Code returns the numeric classifier of this error.
	Code() CodeError

	// Unwrap exposes the parent error, if any, for errors.Is / errors.As.
	Unwrap() error
}

var messages = make(map[CodeError]string)

// Register binds a human message to a code. Meant to be called from the
// owning package's init; a second registration for the same code panics
// since it always indicates a range collision.
func Register(code CodeError, message string) {
	if _, ok := messages[code]; ok {
		panic(fmt.Sprintf("errors: duplicate registration of code 0x%04x", uint16(code)))
	}
	messages[code] = message
}

// Message returns the registered message of a code, or a hex placeholder
// when the code is unknown.
func (c CodeError) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return fmt.Sprintf("unknown error (code 0x%04x)", uint16(c))
}

// Error builds an Error for this code chained onto an optional parent.
func (c CodeError) Error(parent error) Error {
	return &ers{c: c, p: parent}
}

// Errorf builds an Error whose message is extended with formatted detail.
func (c CodeError) Errorf(format string, args ...interface{}) Error {
	return &ers{c: c, p: fmt.Errorf(format, args...)}
}

// IsCode reports whether err or any error in its chain carries this code.
func (c CodeError) IsCode(err error) bool {
	for err != nil {
		if e, ok := err.(Error); ok && e.Code() == c {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
