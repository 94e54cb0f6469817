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

// Package master supervises the daemon: it boots the shared transport,
// spawns the connection child and the worker pool, respawns whatever
// exits outside a shutdown and tears everything down on SIGTERM/SIGQUIT.
package master

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"

	libcfg "github.com/nabbar/verben/config"
	libcsl "github.com/nabbar/verben/console"
	libdmn "github.com/nabbar/verben/daemon"
	liberr "github.com/nabbar/verben/errors"
	liblck "github.com/nabbar/verben/lock"
	liblog "github.com/nabbar/verben/logger"
	libntf "github.com/nabbar/verben/notifier"
	libpid "github.com/nabbar/verben/pidfile"
	libplg "github.com/nabbar/verben/plugin"
	libshm "github.com/nabbar/verben/shmq"
)

const (
	ErrorBoot liberr.CodeError = iota + liberr.MinPkgMaster
	ErrorSpawn
	ErrorStopNotRunning
)

func init() {
	liberr.Register(ErrorBoot, "daemon boot failed")
	liberr.Register(ErrorSpawn, "cannot spawn child process")
	liberr.Register(ErrorStopNotRunning, "daemon is not running")
}

const maxOpenFiles = 50000

// Master owns the whole daemon lifetime.
type Master struct {
	cfgPath string
	raw     libcfg.Config
	srv     *libcfg.Server
	log     liblog.Logger
	h       libplg.Handler
	recvQ   libshm.Queue
	sendQ   libshm.Queue
	ntf     libntf.Notifier
	pid     libpid.PidFile
	tbl     *table
	lockEnv string
	locks   []liblck.Locker
	sigc    chan os.Signal
	quit    bool
}

// New prepares a master around a config path; nothing is touched until
// Run.
func New(cfgPath string) *Master {
	return &Master{
		cfgPath: cfgPath,
		log:     liblog.Discard(),
		tbl:     newTable(),
		sigc:    make(chan os.Signal, 16),
	}
}

// step runs one boot action and prints its status line; the first failure
// aborts the boot.
func step(desc string, fn func() error) error {
	if e := fn(); e != nil {
		libcsl.BootFailed("%s", desc)
		return ErrorBoot.Errorf("%s: %v", desc, e)
	}

	libcsl.BootOK("%s", desc)
	return nil
}

// Run boots the daemon and supervises it until shutdown.
func (o *Master) Run() error {
	boot := []struct {
		desc string
		fn   func() error
	}{
		{fmt.Sprintf("Load config file %s", o.cfgPath), o.bootConfig},
		{"Initialize log file", o.bootLogger},
		{"Initialize signal handlers", o.bootSignals},
		{"Set self to be leader of the process group", o.bootProcessGroup},
		{"Create pid file", o.bootPidFile},
		{"Load plugin module", o.bootPlugin},
		{"Initialize plugin (master)", o.bootPluginInit},
		{"Create shared memory queues", o.bootQueues},
		{"Create notifier between workers and conn process", o.bootNotifier},
		{"Raise open file limit", o.bootRlimit},
		{"Spawn connection and worker processes", o.bootChildren},
	}

	for _, s := range boot {
		if e := step(s.desc, s.fn); e != nil {
			o.teardown(false)
			return e
		}
	}

	libdmn.SetTitle("verben:[master]")
	o.log.Info("master pid %d running with %d workers", os.Getpid(), o.srv.WorkerNum)

	return o.cycle()
}

func (o *Master) bootConfig() error {
	raw, err := libcfg.Parse(o.cfgPath)
	if err != nil {
		return err
	}

	srv, err := libcfg.BindServer(raw)
	if err != nil {
		return err
	}

	o.raw = raw
	o.srv = srv

	return nil
}

func (o *Master) bootLogger() error {
	l, e := newRoleLogger(o.srv, "master")
	if e != nil {
		return e
	}

	o.log = l
	return nil
}

// newRoleLogger opens the per-role logger every process builds after
// spawn.
func newRoleLogger(srv *libcfg.Server, role string) (liblog.Logger, error) {
	return liblog.New(&liblog.Options{
		Dir:      srv.LogDir,
		Name:     srv.LogName,
		Level:    liblog.Parse(srv.LogLevel),
		MaxSize:  srv.LogSize,
		MaxFiles: srv.LogNum,
		Multi:    srv.LogMulti,
		Tag:      fmt.Sprintf("%s/%d", role, os.Getpid()),
	})
}

func (o *Master) bootSignals() error {
	signal.Ignore(syscall.SIGPIPE, syscall.SIGINT)
	signal.Notify(o.sigc, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGCHLD)
	return nil
}

func (o *Master) bootProcessGroup() error {
	return unix.Setpgid(0, 0)
}

func (o *Master) bootPidFile() error {
	o.pid = libpid.New(o.srv.PidFile)
	return o.pid.Create(os.Getpid())
}

func (o *Master) bootPlugin() error {
	h, err := libplg.Load(o.srv.SoFile)
	if err != nil {
		return err
	}

	o.h = h
	return nil
}

func (o *Master) bootPluginInit() error {
	return libplg.Init(o.h, o.raw, libplg.RoleMaster)
}

// bootQueues creates both rings plus their cross-process locks, and
// renders the lock handles into the child environment form.
func (o *Master) bootQueues() error {
	var (
		rl, sl liblck.Locker
		err    error
	)

	switch liblck.ParseMode(o.srv.LockMode) {
	case liblck.ModeSysV:
		if rl, err = liblck.NewSysV(); err != nil {
			return err
		}
		if sl, err = liblck.NewSysV(); err != nil {
			_ = rl.Destroy()
			return err
		}
		o.locks = append(o.locks, rl, sl)
		o.lockEnv = fmt.Sprintf("sysv:%d:%d",
			rl.(interface{ ID() int }).ID(),
			sl.(interface{ ID() int }).ID())

	case liblck.ModeFcntl:
		base := filepath.Join(os.TempDir(), fmt.Sprintf("verben.%d", os.Getpid()))
		if rl, err = liblck.NewFcntl(base + ".recv.lock"); err != nil {
			return err
		}
		if sl, err = liblck.NewFcntl(base + ".send.lock"); err != nil {
			_ = rl.Destroy()
			return err
		}
		o.locks = append(o.locks, rl, sl)
		o.lockEnv = fmt.Sprintf("fcntl:%s:%s",
			rl.(interface{ Path() string }).Path(),
			sl.(interface{ Path() string }).Path())

	default:
		o.lockEnv = "spin"
	}

	if o.recvQ, err = libshm.New("recv", o.srv.ShmqRecv, rl); err != nil {
		return err
	}
	if o.sendQ, err = libshm.New("send", o.srv.ShmqSend, sl); err != nil {
		return err
	}

	return nil
}

func (o *Master) bootNotifier() error {
	n, e := libntf.New()
	if e != nil {
		return e
	}

	o.ntf = n
	return nil
}

func (o *Master) bootRlimit() error {
	return libdmn.RaiseNoFile(maxOpenFiles)
}

func (o *Master) bootChildren() error {
	if e := o.spawn(libplg.RoleConn, PolicyRespawn); e != nil {
		return e
	}

	for i := 0; i < o.srv.WorkerNum; i++ {
		if e := o.spawn(libplg.RoleWorker, PolicyRespawn); e != nil {
			return e
		}
	}

	return nil
}

// cycle is the supervision loop: reap on SIGCHLD, respawn outside
// shutdown, broadcast SIGTERM on quit and leave once every child is gone.
func (o *Master) cycle() error {
	for {
		sig := <-o.sigc

		switch sig {
		case syscall.SIGCHLD:
			o.reap()

		case syscall.SIGTERM, syscall.SIGQUIT:
			if !o.quit {
				o.quit = true
				o.log.Info("shutdown requested, signalling process group")
				if e := unix.Kill(0, unix.SIGTERM); e != nil {
					o.log.Error("cannot signal process group: %v", e)
				}
			}
		}

		if o.quit && o.tbl.live() == 0 {
			o.log.Info("all children exited, master leaving")
			o.teardown(true)
			return nil
		}
	}
}

func (o *Master) reap() {
	for {
		var status unix.WaitStatus

		pid, e := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		if pid <= 0 || e != nil {
			break
		}

		idx := o.tbl.markExited(pid, status)
		if idx < 0 {
			continue
		}

		s := &o.tbl.slots[idx]
		o.log.Warning("%s process pid %d exited (status %d, signal %v)",
			s.role, pid, status.ExitStatus(), status.Signal())

		if !o.quit && s.pol == PolicyRespawn && !s.exiting {
			role, pol := s.role, s.pol
			o.tbl.free(idx)
			if e := o.spawnInto(idx, role, pol); e != nil {
				o.log.Error("respawn into slot %d failed: %v", idx, e)
			}
		}
	}
}

// teardown releases everything the boot built, tolerating partial boots.
func (o *Master) teardown(ran bool) {
	if o.h != nil && o.raw != nil {
		libplg.Fini(o.h, o.raw, libplg.RoleMaster)
	}

	if o.recvQ != nil {
		_ = o.recvQ.Close()
	}
	if o.sendQ != nil {
		_ = o.sendQ.Close()
	}

	for _, l := range o.locks {
		_ = l.Destroy()
	}

	if o.ntf != nil {
		_ = o.ntf.Close()
	}

	if o.pid != nil {
		_ = o.pid.Remove()
	}

	if ran {
		o.log.Info("master process exited")
	}

	_ = o.log.Close()
}
