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
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	liberr "github.com/nabbar/verben/errors"
)

func (o *tree) loadFile(path string) liberr.Error {
	resolved, e := filepath.EvalSymlinks(path)
	if e != nil {
		return ErrorFileRead.Error(e)
	}
	if resolved, e = filepath.Abs(resolved); e != nil {
		return ErrorFileRead.Error(e)
	}

	f, e := os.Open(path)
	if e != nil {
		return ErrorFileRead.Error(e)
	}

	defer func() {
		_ = f.Close()
	}()

	return o.parse(resolved, f, false)
}

func (o *tree) parse(current string, r io.Reader, inBlock bool) liberr.Error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 4096), 64<<10)

	if err := o.parseLines(current, sc, inBlock); err != nil {
		return err
	}

	if e := sc.Err(); e != nil {
		return ErrorFileRead.Error(e)
	}

	return nil
}

// parseLines consumes scanner lines until EOF, or until the closing brace
// when inBlock is set. current is the resolved path of the file being
// read, used by the include self-guard.
func (o *tree) parseLines(current string, sc *bufio.Scanner, inBlock bool) liberr.Error {
	for sc.Scan() {
		line := sc.Text()

		if strings.HasPrefix(strings.TrimLeft(line, " \t"), "#") {
			continue
		}

		key, val, n := splitKV(line)
		switch n {
		case 0:
			continue

		case 1:
			if key == "}" {
				if inBlock {
					return nil
				}
				return ErrorSyntax.Errorf("unexpected '}' outside a block")
			}
			return ErrorSyntax.Errorf("dangling token %q", key)

		case 2:
			v, err := o.expand(val)
			if err != nil {
				return err
			}

			if strings.EqualFold(key, "include") {
				if err = o.include(current, v); err != nil {
					return err
				}
				continue
			}

			if v == "{" {
				sub := newTree()
				if err = sub.parseLines(current, sc, true); err != nil {
					return err
				}
				nd := o.put(key)
				if nd.kind == kindEntry {
					return ErrorSyntax.Errorf("key %q redefined as block", key)
				}
				nd.kind = kindBlock
				nd.blocks = append(nd.blocks, sub)
				continue
			}

			nd := o.put(key)
			if nd.kind == kindBlock {
				return ErrorSyntax.Errorf("block %q redefined as entry", key)
			}
			nd.kind = kindEntry
			nd.vals = append(nd.vals, v)
		}
	}

	if inBlock {
		return ErrorSyntax.Errorf("unterminated block")
	}

	return nil
}

// splitKV splits a line into at most a key and a value, the value keeping
// its inner blanks but shedding surrounding ones.
func splitKV(line string) (key, val string, n int) {
	line = strings.Trim(line, " \t\r\n")
	if line == "" {
		return "", "", 0
	}

	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, "", 1
	}

	return line[:i], strings.Trim(line[i:], " \t"), 2
}

// expand resolves $VAR, ${VAR} and $(VAR) references against already
// parsed keys, then the environment, recursively.
func (o *tree) expand(value string) (string, liberr.Error) {
	const maxDepth = 16

	for depth := 0; ; depth++ {
		i := strings.IndexByte(value, '$')
		if i < 0 {
			return value, nil
		}
		if depth >= maxDepth {
			return "", ErrorExpand.Errorf("recursion too deep in %q", value)
		}

		rest := value[i+1:]
		var name, tail string

		switch {
		case strings.HasPrefix(rest, "{"):
			j := strings.IndexByte(rest, '}')
			if j < 0 {
				return "", ErrorExpand.Errorf("unterminated reference in %q", value)
			}
			name, tail = rest[1:j], rest[j+1:]

		case strings.HasPrefix(rest, "("):
			j := strings.IndexByte(rest, ')')
			if j < 0 {
				return "", ErrorExpand.Errorf("unterminated reference in %q", value)
			}
			name, tail = rest[1:j], rest[j+1:]

		default:
			j := strings.IndexFunc(rest, func(r rune) bool {
				return r != '_' && (r < '0' || r > '9') && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z')
			})
			if j < 0 {
				name, tail = rest, ""
			} else {
				name, tail = rest[:j], rest[j:]
			}
		}

		sub := o.GetString(name, "")
		if sub == "" {
			sub = os.Getenv(name)
		}

		value = value[:i] + sub + tail
	}
}

// include loads every non-directory file of the directory component whose
// base name matches the glob, skipping the file currently being parsed
// (symlinks resolved, as the grammar demands).
func (o *tree) include(current, pattern string) liberr.Error {
	dir := filepath.Dir(pattern)
	base := filepath.Base(pattern)

	if base == "." || base == ".." || base == "/" {
		return ErrorInclude.Errorf("%q", pattern)
	}

	entries, e := os.ReadDir(dir)
	if e != nil {
		return ErrorInclude.Error(e)
	}

	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}

		ok, e := filepath.Match(base, ent.Name())
		if e != nil {
			return ErrorInclude.Error(e)
		}
		if !ok {
			continue
		}

		full := filepath.Join(dir, ent.Name())

		resolved, e := filepath.EvalSymlinks(full)
		if e != nil {
			return ErrorInclude.Error(e)
		}
		if resolved, e = filepath.Abs(resolved); e != nil {
			return ErrorInclude.Error(e)
		}
		if resolved == current {
			continue
		}

		if err := o.loadFile(full); err != nil {
			return err
		}
	}

	return nil
}
