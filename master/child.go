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
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"

	libcfg "github.com/nabbar/verben/config"
	libdmn "github.com/nabbar/verben/daemon"
	liblck "github.com/nabbar/verben/lock"
	liblog "github.com/nabbar/verben/logger"
	libntf "github.com/nabbar/verben/notifier"
	libplg "github.com/nabbar/verben/plugin"
	libshm "github.com/nabbar/verben/shmq"
	libcon "github.com/nabbar/verben/conn"
	libwrk "github.com/nabbar/verben/worker"
)

// RunChild is the entry of a spawned role: it rebuilds the shared
// transport from the inherited descriptors and the environment, then runs
// the role loop until SIGTERM. The returned value is the process exit
// code.
func RunChild(role string) int {
	cfgPath := os.Getenv(EnvConfig)

	raw, err := libcfg.Parse(cfgPath)
	if err != nil {
		return childFail(nil, "reload config", err)
	}

	srv, err := libcfg.BindServer(raw)
	if err != nil {
		return childFail(nil, "bind config", err)
	}

	log, e := newRoleLogger(srv, role)
	if e != nil {
		log = liblog.Discard()
	}

	// Fatal crashes leave a backtrace in the log before taking the
	// process down; the master respawns the slot.
	defer func() {
		if r := recover(); r != nil {
			log.Error("fatal crash in %s process: %v\n%s", role, r, debug.Stack())
			panic(r)
		}
	}()

	rl, sl, err := attachLocks(os.Getenv(EnvLock))
	if err != nil {
		return childFail(log, "attach ring locks", err)
	}

	recvQ, err := libshm.Attach(os.NewFile(FdShmqRecv, "shmq-recv"), rl)
	if err != nil {
		return childFail(log, "attach receive ring", err)
	}

	sendQ, err := libshm.Attach(os.NewFile(FdShmqSend, "shmq-send"), sl)
	if err != nil {
		return childFail(log, "attach send ring", err)
	}

	ntf, err := libntf.Attach(
		os.NewFile(FdNotifyRd, "notifier-rd"),
		os.NewFile(FdNotifyWr, "notifier-wr"),
	)
	if err != nil {
		return childFail(log, "attach notifier", err)
	}

	h, err := libplg.Load(srv.SoFile)
	if err != nil {
		return childFail(log, "load plugin", err)
	}

	switch role {
	case libplg.RoleConn.String():
		return runConnChild(srv, raw, h, recvQ, sendQ, ntf, log)

	case libplg.RoleWorker.String():
		return runWorkerChild(raw, h, recvQ, sendQ, ntf, log)
	}

	return childFail(log, "dispatch role", ErrorSpawn.Errorf("unknown role %q", role))
}

func childFail(log liblog.Logger, what string, err error) int {
	if log != nil {
		log.Error("cannot %s: %v", what, err)
	}
	return 1
}

// attachLocks decodes the master's lock handles: "spin",
// "sysv:<recv>:<send>" or "fcntl:<recv>:<send>". Spin locks live inside
// the mappings, so nil tells the ring to use its embedded word.
func attachLocks(env string) (liblck.Locker, liblck.Locker, error) {
	parts := strings.SplitN(env, ":", 3)

	switch parts[0] {
	case "", "spin":
		return nil, nil, nil

	case "sysv":
		if len(parts) != 3 {
			return nil, nil, liblck.ErrorInit.Errorf("malformed lock environment %q", env)
		}
		rid, e1 := strconv.Atoi(parts[1])
		sid, e2 := strconv.Atoi(parts[2])
		if e1 != nil || e2 != nil {
			return nil, nil, liblck.ErrorInit.Errorf("malformed lock environment %q", env)
		}
		return liblck.AttachSysV(rid), liblck.AttachSysV(sid), nil

	case "fcntl":
		if len(parts) != 3 {
			return nil, nil, liblck.ErrorInit.Errorf("malformed lock environment %q", env)
		}
		rl, e := liblck.NewFcntl(parts[1])
		if e != nil {
			return nil, nil, e
		}
		sl, e := liblck.NewFcntl(parts[2])
		if e != nil {
			return nil, nil, e
		}
		return rl, sl, nil
	}

	return nil, nil, liblck.ErrorInit.Errorf("unknown lock backend %q", parts[0])
}

func runConnChild(srv *libcfg.Server, raw libcfg.Config, h libplg.Handler,
	recvQ, sendQ libshm.Queue, ntf libntf.Notifier, log liblog.Logger) int {

	libdmn.SetTitle("verben:[conn]")

	p, err := libcon.New(libcon.Options{
		Server:    srv,
		Raw:       raw,
		Handler:   h,
		RecvQueue: recvQ,
		SendQueue: sendQ,
		Notifier:  ntf,
		Log:       log,
	})
	if err != nil {
		return childFail(log, "build connection process", err)
	}

	onTerm(func() {
		p.Stop()
	})

	if err = p.Run(); err != nil {
		return childFail(log, "run connection process", err)
	}

	log.Info("connection process exiting")
	return 0
}

func runWorkerChild(raw libcfg.Config, h libplg.Handler,
	recvQ, sendQ libshm.Queue, ntf libntf.Notifier, log liblog.Logger) int {

	libdmn.SetTitle("verben:[worker]")

	w, err := libwrk.New(libwrk.Options{
		Raw:       raw,
		Handler:   h,
		RecvQueue: recvQ,
		SendQueue: sendQ,
		Notifier:  ntf,
		Log:       log,
	})
	if err != nil {
		return childFail(log, "build worker", err)
	}

	onTerm(func() {
		w.Stop()
	})

	if err = w.Run(); err != nil {
		return childFail(log, "run worker", err)
	}

	log.Info("worker process exiting")
	return 0
}

func onTerm(fn func()) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM)
	signal.Ignore(syscall.SIGPIPE, syscall.SIGINT)

	go func() {
		<-c
		fn()
	}()
}
