/*
 * MIT License
 *
 * Copyright (c) 2023 Nicolas JUHEL
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

package shmq_test

import (
	libshm "github.com/nabbar/verben/shmq"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Ring Message", func() {
	It("carries identity, address and flags through the codec", func() {
		in := &libshm.Message{
			Origin:         4242,
			ConnID:         987654321,
			RemoteIP:       "192.168.10.20",
			RemotePort:     52311,
			CloseAfterSend: true,
			Payload:        []byte("GET / HTTP/1.0\r\n\r\n"),
		}

		out, err := libshm.Decode(in.Encode())
		Expect(err).ToNot(HaveOccurred())

		Expect(out.Origin).To(Equal(in.Origin))
		Expect(out.ConnID).To(Equal(in.ConnID))
		Expect(out.RemoteIP).To(Equal(in.RemoteIP))
		Expect(out.RemotePort).To(Equal(in.RemotePort))
		Expect(out.CloseAfterSend).To(BeTrue())
		Expect(out.Payload).To(Equal(in.Payload))
		Expect(out.RemoteAddr()).To(Equal("192.168.10.20:52311"))
	})

	It("rejects a truncated header", func() {
		_, err := libshm.Decode(make([]byte, libshm.MsgHeaderSize-1))
		Expect(libshm.ErrorShortHeader.IsCode(err)).To(BeTrue())
	})

	It("rejects a corrupted magic word", func() {
		b := (&libshm.Message{RemoteIP: "127.0.0.1"}).Encode()
		b[0] ^= 0xFF

		_, err := libshm.Decode(b)
		Expect(libshm.ErrorBadMagic.IsCode(err)).To(BeTrue())
	})

	It("keeps an empty payload empty", func() {
		out, err := libshm.Decode((&libshm.Message{RemoteIP: "10.0.0.1"}).Encode())
		Expect(err).ToNot(HaveOccurred())
		Expect(out.Payload).To(BeEmpty())
		Expect(out.CloseAfterSend).To(BeFalse())
	})
})
