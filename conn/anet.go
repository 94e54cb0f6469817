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

package conn

import (
	"net"

	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/verben/errors"
)

const listenBacklog = 511

// tcpListen opens the non-blocking listening socket the reactor accepts
// from. Rebinding after a respawn relies on SO_REUSEADDR exactly like the
// original child did.
func tcpListen(bind string, port int) (int, liberr.Error) {
	ip := net.ParseIP(bind)
	if ip != nil {
		ip = ip.To4()
	}
	if ip == nil {
		return -1, ErrorListen.Errorf("%q is not an IPv4 address", bind)
	}

	fd, e := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if e != nil {
		return -1, ErrorListen.Error(e)
	}

	if e = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); e != nil {
		_ = unix.Close(fd)
		return -1, ErrorListen.Error(e)
	}

	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], ip)

	if e = unix.Bind(fd, sa); e != nil {
		_ = unix.Close(fd)
		return -1, ErrorListen.Error(e)
	}

	if e = unix.Listen(fd, listenBacklog); e != nil {
		_ = unix.Close(fd)
		return -1, ErrorListen.Error(e)
	}

	return fd, nil
}

// boundPort reads the effective port back, which matters when the config
// asked for port 0.
func boundPort(fd int) int {
	sa, e := unix.Getsockname(fd)
	if e != nil {
		return 0
	}

	if s4, ok := sa.(*unix.SockaddrInet4); ok {
		return s4.Port
	}

	return 0
}

// peerAddr renders an accepted peer as textual IPv4 plus port.
func peerAddr(sa unix.Sockaddr) (string, int) {
	if s4, ok := sa.(*unix.SockaddrInet4); ok {
		return net.IP(s4.Addr[:]).String(), s4.Port
	}

	return "", 0
}
