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

// Package httpd is a deliberately small HTTP sample plugin: GET only, one
// request per connection, files served from a configured document root.
// It exists to exercise variable-length framing and the close-after-send
// path, not to be a web server.
package httpd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	libcfg "github.com/nabbar/verben/config"
	libplg "github.com/nabbar/verben/plugin"
)

func init() {
	libplg.Register("httpd", New())
}

// New returns the httpd handler.
func New() libplg.Handler {
	return &hdl{
		root:  "/var/www",
		index: "index.html",
	}
}

type hdl struct {
	root  string
	index string
}

// Init reads `docroot` and `index` in the worker role, from the last
// `httpd { }` block when the config has one, from top-level keys
// otherwise; the other roles have nothing to set up.
func (o *hdl) Init(cfg libcfg.Config, role libplg.Role) error {
	if role != libplg.RoleWorker || cfg == nil {
		return nil
	}

	if b := cfg.Block("httpd"); len(b) > 0 {
		cfg = b[0]
	}

	o.root = cfg.GetString("docroot", o.root)
	o.index = cfg.GetString("index", o.index)

	return nil
}

// Input frames one HTTP request: everything up to the header terminator
// plus a Content-Length body when present.
func (o *hdl) Input(buf []byte, ip string, port int) int {
	end := bytes.Index(buf, []byte("\r\n\r\n"))
	if end < 0 {
		return 0
	}
	end += 4

	head := string(buf[:end])
	if i := strings.Index(head, "Content-Length:"); i >= 0 {
		v := head[i+len("Content-Length:"):]
		if j := strings.IndexByte(v, '\r'); j >= 0 {
			v = v[:j]
		}

		n, e := strconv.Atoi(strings.TrimSpace(v))
		if e != nil || n < 0 {
			return -1
		}

		return end + n
	}

	return end
}

func (o *hdl) Process(in []byte, ip string, port int) ([]byte, libplg.Result) {
	req := string(in)

	if !strings.HasPrefix(req, "GET ") {
		return respond(405, "Method Not Allowed", nil), libplg.ResultConnClose
	}

	target := strings.TrimPrefix(req, "GET ")
	if i := strings.IndexByte(target, ' '); i >= 0 {
		target = target[:i]
	}

	if target == "" || target == "/" {
		target = "/" + o.index
	}

	// Resolve under the document root only; anything escaping it is a
	// plain 404 rather than a hint.
	path := filepath.Join(o.root, filepath.Clean("/"+target))
	if !strings.HasPrefix(path, filepath.Clean(o.root)+string(os.PathSeparator)) {
		return respond(404, "Not Found", nil), libplg.ResultConnClose
	}

	body, e := os.ReadFile(path)
	if e != nil {
		return respond(404, "Not Found", nil), libplg.ResultConnClose
	}

	return respond(200, "OK", body), libplg.ResultConnClose
}

func respond(code int, text string, body []byte) []byte {
	if body == nil {
		body = []byte(fmt.Sprintf("%d %s\r\n", code, text))
	}

	head := fmt.Sprintf(
		"HTTP/1.0 %d %s\r\nServer: verben\r\nContent-Length: %d\r\nConnection: close\r\n\r\n",
		code, text, len(body))

	return append([]byte(head), body...)
}
