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

package config

import (
	"strconv"
	"strings"
)

const (
	kindEntry = iota + 1
	kindBlock
)

type node struct {
	kind   int
	vals   []string // assignment order
	blocks []*tree  // definition order
}

// tree is the internal implementation of Config. Key order is preserved
// for the canonical Dump rendering.
type tree struct {
	m     map[string]*node
	order []string
}

func newTree() *tree {
	return &tree{m: make(map[string]*node)}
}

func (o *tree) node(key string) *node {
	return o.m[strings.ToLower(key)]
}

func (o *tree) put(key string) *node {
	k := strings.ToLower(key)
	n, ok := o.m[k]
	if !ok {
		n = &node{}
		o.m[k] = n
		o.order = append(o.order, k)
	}
	return n
}

func (o *tree) GetString(key, def string) string {
	n := o.node(key)
	if n == nil || n.kind != kindEntry || len(n.vals) == 0 {
		return def
	}
	return n.vals[len(n.vals)-1]
}

func (o *tree) GetInt(key string, def int) int {
	return int(o.GetInt64(key, int64(def)))
}

func (o *tree) GetInt64(key string, def int64) int64 {
	n := o.node(key)
	if n == nil || n.kind != kindEntry || len(n.vals) == 0 {
		return def
	}

	v := n.vals[len(n.vals)-1]
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if b, ok := ParseBool(v); ok {
		if b {
			return 1
		}
		return 0
	}

	return def
}

func (o *tree) GetBool(key string, def bool) bool {
	n := o.node(key)
	if n == nil || n.kind != kindEntry || len(n.vals) == 0 {
		return def
	}

	if b, ok := ParseBool(n.vals[len(n.vals)-1]); ok {
		return b
	}

	return def
}

func (o *tree) GetList(key string) []string {
	n := o.node(key)
	if n == nil || n.kind != kindEntry {
		return nil
	}

	res := make([]string, len(n.vals))
	for i, v := range n.vals {
		res[len(n.vals)-1-i] = v
	}

	return res
}

func (o *tree) Block(key string) []Config {
	n := o.node(key)
	if n == nil || n.kind != kindBlock {
		return nil
	}

	res := make([]Config, len(n.blocks))
	for i, b := range n.blocks {
		res[len(n.blocks)-1-i] = b
	}

	return res
}

func (o *tree) Keys() []string {
	res := make([]string, len(o.order))
	copy(res, o.order)
	return res
}

// ParseBool interprets a config scalar as a boolean. Numeric values map to
// their zero-ness; on/off, yes/no, true/false and enable[d]/disable[d]
// match case-insensitively. The second result reports whether the value
// was recognized at all.
func ParseBool(s string) (value bool, ok bool) {
	if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		return i != 0, true
	}

	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes", "true", "enable", "enabled":
		return true, true
	case "off", "no", "false", "disable", "disabled":
		return false, true
	}

	return false, false
}
