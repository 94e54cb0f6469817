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
	"fmt"
	"io"
	"strings"
)

func (o *tree) Dump(w io.Writer) error {
	return o.dump(w, 0)
}

// dump renders assignments in their original order so the output re-parses
// to an equivalent tree. Variable references are already expanded at parse
// time; the rendering is the resolved form.
func (o *tree) dump(w io.Writer, depth int) error {
	pad := strings.Repeat("    ", depth)

	for _, k := range o.order {
		n := o.m[k]

		switch n.kind {
		case kindEntry:
			for _, v := range n.vals {
				if _, e := fmt.Fprintf(w, "%s%-20s %s\n", pad, k, v); e != nil {
					return e
				}
			}

		case kindBlock:
			for _, b := range n.blocks {
				if _, e := fmt.Fprintf(w, "%s%s {\n", pad, k); e != nil {
					return e
				}
				if e := b.dump(w, depth+1); e != nil {
					return e
				}
				if _, e := fmt.Fprintf(w, "%s}\n", pad); e != nil {
					return e
				}
			}
		}
	}

	return nil
}
