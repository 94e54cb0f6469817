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
	"fmt"
	"os"
	"syscall"

	libplg "github.com/nabbar/verben/plugin"
)

// Children are re-executions of this binary. The role and config travel
// in the environment; the shared segments and the notifier pipe travel as
// descriptors 3 to 6, in this fixed order.
const (
	EnvRole   = "VERBEN_ROLE"
	EnvConfig = "VERBEN_CONFIG"
	EnvLock   = "VERBEN_LOCK"

	FdShmqRecv = 3
	FdShmqSend = 4
	FdNotifyRd = 5
	FdNotifyWr = 6
)

// ChildRole reports the role this process was spawned for, empty for the
// master itself.
func ChildRole() string {
	return os.Getenv(EnvRole)
}

func (o *Master) childEnv(role libplg.Role) []string {
	env := make([]string, 0, len(os.Environ())+3)

	for _, kv := range os.Environ() {
		env = append(env, kv)
	}

	env = append(env,
		fmt.Sprintf("%s=%s", EnvRole, role.String()),
		fmt.Sprintf("%s=%s", EnvConfig, o.cfgPath),
		fmt.Sprintf("%s=%s", EnvLock, o.lockEnv),
	)

	return env
}

// spawnInto forks one child of the given role into a slot and records it.
func (o *Master) spawnInto(idx int, role libplg.Role, pol Policy) error {
	exe, e := os.Executable()
	if e != nil {
		return ErrorSpawn.Error(e)
	}

	files := []uintptr{
		os.Stdin.Fd(),
		os.Stdout.Fd(),
		os.Stderr.Fd(),
		o.recvQ.File().Fd(),
		o.sendQ.File().Fd(),
		o.ntf.Reader().Fd(),
		o.ntf.Writer().Fd(),
	}

	pid, e := syscall.ForkExec(exe, []string{"verben:[" + role.String() + "]"}, &syscall.ProcAttr{
		Env:   o.childEnv(role),
		Files: files,
	})
	if e != nil {
		return ErrorSpawn.Error(e)
	}

	o.tbl.set(idx, pid, role, pol)
	o.log.Info("spawned %s process pid %d into slot %d", role, pid, idx)

	return nil
}

func (o *Master) spawn(role libplg.Role, pol Policy) error {
	idx := o.tbl.alloc()
	if idx < 0 {
		return ErrorSpawn.Errorf("process table full")
	}

	return o.spawnInto(idx, role, pol)
}
