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

// Package config parses the line-oriented verben.conf grammar.
//
// The grammar: `# comment` lines, blank-separated `KEY VALUE` pairs (the
// value keeps its inner blanks), `KEY {` opening a nested block closed by a
// bare `}`, an `include PATH` directive whose base name may be a glob, and
// `$VAR` / `${VAR}` / `$(VAR)` references expanded recursively from earlier
// keys or the environment.
//
// Keys are case-insensitive. Re-assigning a key appends to an ordered list;
// single-value accessors return the most recent assignment, list iteration
// yields the first-assigned value last.
package config

import (
	"io"

	liberr "github.com/nabbar/verben/errors"
)

const (
	ErrorFileRead liberr.CodeError = iota + liberr.MinPkgConfig
	ErrorSyntax
	ErrorInclude
	ErrorExpand
	ErrorBindServer
	ErrorValidateServer
)

func init() {
	liberr.Register(ErrorFileRead, "cannot read config file")
	liberr.Register(ErrorSyntax, "config syntax error")
	liberr.Register(ErrorInclude, "invalid include directive")
	liberr.Register(ErrorExpand, "cannot expand variable reference")
	liberr.Register(ErrorBindServer, "cannot bind server configuration")
	liberr.Register(ErrorValidateServer, "invalid server configuration")
}

// Config is a parsed configuration tree.
type Config interface {
	// GetString returns the most recent assignment of key, or def.
	GetString(key, def string) string

	// GetInt returns key as an integer: numeric strings parse as base 10,
	// boolean words map to 1/0, anything else yields def.
	GetInt(key string, def int) int

	// GetInt64 is GetInt for 64-bit values.
	GetInt64(key string, def int64) int64

	// GetBool returns key as a boolean, or def when the value is neither
	// numeric nor a recognized boolean word.
	GetBool(key string, def bool) bool

	// GetList returns every assignment of key, first-assigned last.
	GetList(key string) []string

	// Block returns the nested blocks assigned to key, first-defined last.
	Block(key string) []Config

	// Keys lists the scalar and block keys in first-seen order.
	Keys() []string

	// Dump writes a canonical rendering that re-parses to an equivalent
	// tree.
	Dump(w io.Writer) error
}

// Parse loads a configuration file, following include directives.
func Parse(path string) (Config, liberr.Error) {
	t := newTree()
	if err := t.loadFile(path); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseReader parses an in-memory configuration. Include directives are
// resolved relative to the working directory.
func ParseReader(r io.Reader) (Config, liberr.Error) {
	t := newTree()
	if err := t.parse("", r, false); err != nil {
		return nil, err
	}
	return t, nil
}
