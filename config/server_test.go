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
	libcfg "github.com/nabbar/verben/config"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Server Binding", func() {
	It("applies the documented defaults", func() {
		srv, err := libcfg.BindServer(parse("so_file echo\n"))
		Expect(err).ToNot(HaveOccurred())

		Expect(srv.Bind).To(Equal("0.0.0.0"))
		Expect(srv.Port).To(Equal(8773))
		Expect(srv.WorkerNum).To(Equal(4))
		Expect(srv.ShmqRecv).To(Equal(1 << 20))
		Expect(srv.ShmqSend).To(Equal(1 << 20))
		Expect(srv.ClientLimit).To(Equal(0))
		Expect(srv.ClientTimeout).To(Equal(60))
		Expect(srv.PidFile).To(Equal("/tmp/verben.pid"))
		Expect(srv.LockMode).To(Equal("spin"))
	})

	It("overlays configured values, converting types weakly", func() {
		srv, err := libcfg.BindServer(parse(
			"so_file httpd\nserver 127.0.0.1\nport 18773\nworker_num 2\n" +
				"shmq_recv 131072\nclient_timeout 5\nlog_multi on\nlock_mode fcntl\n"))
		Expect(err).ToNot(HaveOccurred())

		Expect(srv.Bind).To(Equal("127.0.0.1"))
		Expect(srv.Port).To(Equal(18773))
		Expect(srv.WorkerNum).To(Equal(2))
		Expect(srv.ShmqRecv).To(Equal(131072))
		Expect(srv.ClientTimeout).To(Equal(5))
		Expect(srv.LogMulti).To(BeTrue())
		Expect(srv.LockMode).To(Equal("fcntl"))
	})

	It("rejects a missing plugin module", func() {
		_, err := libcfg.BindServer(parse("port 8080\n"))
		Expect(libcfg.ErrorValidateServer.IsCode(err)).To(BeTrue())
	})

	It("rejects an out-of-range port", func() {
		_, err := libcfg.BindServer(parse("so_file echo\nport 70000\n"))
		Expect(libcfg.ErrorValidateServer.IsCode(err)).To(BeTrue())
	})

	It("rejects an undersized ring", func() {
		_, err := libcfg.BindServer(parse("so_file echo\nshmq_recv 1024\n"))
		Expect(libcfg.ErrorValidateServer.IsCode(err)).To(BeTrue())
	})

	It("rejects an unknown lock mode", func() {
		_, err := libcfg.BindServer(parse("so_file echo\nlock_mode flock\n"))
		Expect(libcfg.ErrorValidateServer.IsCode(err)).To(BeTrue())
	})
})
