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

package master

import (
	"github.com/shirou/gopsutil/process"
	"golang.org/x/sys/unix"

	libcfg "github.com/nabbar/verben/config"
	libpid "github.com/nabbar/verben/pidfile"
)

// Stop implements the `verben stop` action: read the recorded pid, check
// the process is actually alive and send it SIGQUIT.
func Stop(cfgPath string) error {
	raw, err := libcfg.Parse(cfgPath)
	if err != nil {
		return err
	}

	srv, err := libcfg.BindServer(raw)
	if err != nil {
		return err
	}

	pid, e := libpid.Read(srv.PidFile)
	if e != nil {
		return ErrorStopNotRunning.Error(e)
	}

	ok, e := process.PidExists(int32(pid))
	if e != nil || !ok {
		return ErrorStopNotRunning.Errorf("pid %d from %s is gone", pid, srv.PidFile)
	}

	return unix.Kill(pid, unix.SIGQUIT)
}
