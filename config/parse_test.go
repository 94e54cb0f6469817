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

package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	libcfg "github.com/nabbar/verben/config"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func parse(s string) libcfg.Config {
	c, err := libcfg.ParseReader(strings.NewReader(s))
	Expect(err).ToNot(HaveOccurred())
	return c
}

var _ = Describe("Config Parser", func() {
	Context("key/value grammar", func() {
		It("parses blank-separated pairs and keeps inner blanks of values", func() {
			c := parse("log_name   my server.log  \nport 8773\n")

			Expect(c.GetString("log_name", "")).To(Equal("my server.log"))
			Expect(c.GetInt("port", 0)).To(Equal(8773))
		})

		It("ignores comments and empty lines", func() {
			c := parse("# leading comment\n\n   \nport 8080\n  # indented comment\n")

			Expect(c.GetInt("port", 0)).To(Equal(8080))
			Expect(c.Keys()).To(HaveLen(1))
		})

		It("treats keys case-insensitively", func() {
			c := parse("Server 10.0.0.1\n")

			Expect(c.GetString("server", "")).To(Equal("10.0.0.1"))
			Expect(c.GetString("SERVER", "")).To(Equal("10.0.0.1"))
		})

		It("returns the most recent assignment from single-value accessors", func() {
			c := parse("backend one\nbackend two\nbackend three\n")

			Expect(c.GetString("backend", "")).To(Equal("three"))
		})

		It("lists repeated assignments first-assigned last", func() {
			c := parse("backend one\nbackend two\nbackend three\n")

			Expect(c.GetList("backend")).To(Equal([]string{"three", "two", "one"}))
		})
	})

	Context("boolean grammar", func() {
		DescribeTable("recognized words",
			func(in string, want bool) {
				v, ok := libcfg.ParseBool(in)
				Expect(ok).To(BeTrue())
				Expect(v).To(Equal(want))
			},
			Entry("on", "on", true),
			Entry("OFF", "OFF", false),
			Entry("Yes", "Yes", true),
			Entry("no", "no", false),
			Entry("true", "true", true),
			Entry("False", "False", false),
			Entry("enable", "enable", true),
			Entry("Enabled", "Enabled", true),
			Entry("disable", "disable", false),
			Entry("disabled", "disabled", false),
			Entry("integer one", "1", true),
			Entry("integer zero", "0", false),
			Entry("negative integer", "-3", true),
		)

		It("flags unknown words", func() {
			_, ok := libcfg.ParseBool("maybe")
			Expect(ok).To(BeFalse())
		})
	})

	Context("blocks", func() {
		It("parses nested blocks closed by a bare brace", func() {
			c := parse("httpd {\n    docroot /srv/www\n    index start.html\n}\nport 80\n")

			blocks := c.Block("httpd")
			Expect(blocks).To(HaveLen(1))
			Expect(blocks[0].GetString("docroot", "")).To(Equal("/srv/www"))
			Expect(blocks[0].GetString("index", "")).To(Equal("start.html"))
			Expect(c.GetInt("port", 0)).To(Equal(80))
		})

		It("stacks repeated blocks first-defined last", func() {
			c := parse("upstream {\n name a\n}\nupstream {\n name b\n}\n")

			blocks := c.Block("upstream")
			Expect(blocks).To(HaveLen(2))
			Expect(blocks[0].GetString("name", "")).To(Equal("b"))
			Expect(blocks[1].GetString("name", "")).To(Equal("a"))
		})

		It("rejects an unterminated block", func() {
			_, err := libcfg.ParseReader(strings.NewReader("blk {\nkey val\n"))
			Expect(libcfg.ErrorSyntax.IsCode(err)).To(BeTrue())
		})

		It("rejects a stray closing brace", func() {
			_, err := libcfg.ParseReader(strings.NewReader("}\n"))
			Expect(libcfg.ErrorSyntax.IsCode(err)).To(BeTrue())
		})
	})

	Context("variable expansion", func() {
		It("expands earlier keys in every reference form", func() {
			c := parse("base /opt/verben\nlogs $base/logs\nrun ${base}/run\ntmp $(base)/tmp\n")

			Expect(c.GetString("logs", "")).To(Equal("/opt/verben/logs"))
			Expect(c.GetString("run", "")).To(Equal("/opt/verben/run"))
			Expect(c.GetString("tmp", "")).To(Equal("/opt/verben/tmp"))
		})

		It("falls back to the environment", func() {
			Expect(os.Setenv("VERBEN_TEST_HOME", "/home/verben")).To(Succeed())
			defer func() {
				_ = os.Unsetenv("VERBEN_TEST_HOME")
			}()

			c := parse("pid ${VERBEN_TEST_HOME}/verben.pid\n")
			Expect(c.GetString("pid", "")).To(Equal("/home/verben/verben.pid"))
		})

		It("expands recursively", func() {
			c := parse("a one\nb $a/two\nc $b/three\n")
			Expect(c.GetString("c", "")).To(Equal("one/two/three"))
		})
	})

	Context("include directive", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		write := func(name, content string) string {
			p := filepath.Join(dir, name)
			Expect(os.WriteFile(p, []byte(content), 0o644)).To(Succeed())
			return p
		}

		It("loads every file matching the glob", func() {
			write("10-first.conf", "alpha 1\n")
			write("20-second.conf", "beta 2\n")
			write("notes.txt", "gamma 3\n")
			main := write("main.conf", "include "+dir+"/*.conf\nport 9000\n")

			c, err := libcfg.Parse(main)
			Expect(err).ToNot(HaveOccurred())

			Expect(c.GetInt("alpha", 0)).To(Equal(1))
			Expect(c.GetInt("beta", 0)).To(Equal(2))
			Expect(c.GetInt("gamma", -1)).To(Equal(-1))
			Expect(c.GetInt("port", 0)).To(Equal(9000))
		})

		It("never re-enters the file being parsed", func() {
			main := write("all.conf", "include "+dir+"/*.conf\nport 7000\n")

			c, err := libcfg.Parse(main)
			Expect(err).ToNot(HaveOccurred())
			Expect(c.GetInt("port", 0)).To(Equal(7000))
		})
	})

	Context("canonical dump", func() {
		It("re-parses to an equivalent tree", func() {
			src := "server 0.0.0.0\nport 8773\nbackend one\nbackend two\nhttpd {\n    docroot /srv\n}\n"
			c := parse(src)

			var buf bytes.Buffer
			Expect(c.Dump(&buf)).To(Succeed())

			c2, err := libcfg.ParseReader(bytes.NewReader(buf.Bytes()))
			Expect(err).ToNot(HaveOccurred())

			Expect(c2.GetString("server", "")).To(Equal("0.0.0.0"))
			Expect(c2.GetInt("port", 0)).To(Equal(8773))
			Expect(c2.GetList("backend")).To(Equal(c.GetList("backend")))

			b1 := c.Block("httpd")
			b2 := c2.Block("httpd")
			Expect(b2).To(HaveLen(len(b1)))
			Expect(b2[0].GetString("docroot", "")).To(Equal("/srv"))
		})
	})
})
