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

package plugin

import (
	goplugin "plugin"
	"sort"
	"strings"
	"sync"

	liberr "github.com/nabbar/verben/errors"
)

// HandlerSymbol is the exported variable a shared-object module must
// declare: `var Handler plugin.Handler = ...`. The name is part of the ABI.
const HandlerSymbol = "Handler"

var (
	regMut sync.RWMutex
	reg    = make(map[string]Handler)
)

// Register installs a built-in module under a name resolvable through the
// `so_file` config key. Built-ins are compiled into the daemon and skip
// the dynamic loader entirely.
func Register(name string, h Handler) {
	regMut.Lock()
	defer regMut.Unlock()
	reg[strings.ToLower(name)] = h
}

// Registered lists the built-in module names.
func Registered() []string {
	regMut.RLock()
	defer regMut.RUnlock()

	res := make([]string, 0, len(reg))
	for k := range reg {
		res = append(res, k)
	}
	sort.Strings(res)

	return res
}

// Load resolves the configured module: a `.so` path goes through the
// dynamic loader and must export HandlerSymbol; anything else names a
// built-in.
func Load(name string) (Handler, liberr.Error) {
	if strings.HasSuffix(name, ".so") {
		return loadShared(name)
	}

	regMut.RLock()
	h, ok := reg[strings.ToLower(name)]
	regMut.RUnlock()

	if ok {
		return h, nil
	}

	return nil, ErrorUnknown.Errorf("%q (built-ins: %s)", name, strings.Join(Registered(), ", "))
}

func loadShared(path string) (Handler, liberr.Error) {
	p, e := goplugin.Open(path)
	if e != nil {
		return nil, ErrorLoad.Error(e)
	}

	sym, e := p.Lookup(HandlerSymbol)
	if e != nil {
		return nil, ErrorSymbol.Error(e)
	}

	if h, ok := sym.(*Handler); ok && *h != nil {
		return *h, nil
	}
	if h, ok := sym.(Handler); ok {
		return h, nil
	}

	return nil, ErrorSymbol.Errorf("%s in %s has the wrong type", HandlerSymbol, path)
}
