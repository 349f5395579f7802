// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/sydbox/sydbox/pkg/arch"
	"github.com/sydbox/sydbox/pkg/pathlib"
	"github.com/sydbox/sydbox/pkg/policy"
	"github.com/sydbox/sydbox/pkg/tracee"
)

// Engine is the syscall decision engine of §4.4: a dispatch table plus
// the procedure that drives the arch back-end and policy state to decide
// each intercepted call.
type Engine struct {
	Table   Table
	Backend arch.Backend
	Log     *logrus.Logger

	denyLimiter *rate.Limiter
}

// New builds an Engine over table, reading and mutating tracees through
// backend.
func New(table Table, backend arch.Backend, log *logrus.Logger) *Engine {
	return &Engine{
		Table:       table,
		Backend:     backend,
		Log:         log,
		denyLimiter: rate.NewLimiter(rate.Every(time.Second), 20),
	}
}

const devNull = "/dev/null"

// Decide runs the full decision procedure for a tracee at syscall-entry.
// sno is the syscall number just read from the tracee (and not yet
// possibly overwritten by a previous denial). On a deny outcome, Decide
// itself performs the sentinel-syscall-number substitution; the caller
// only needs to resume the tracee afterward.
func (e *Engine) Decide(pid int, sno uintptr, rec *tracee.Record, ctx *policy.Context) error {
	def, ok := e.Table.Lookup(sno)
	if !ok {
		return nil
	}

	pers, err := e.Backend.Personality(pid)
	if err != nil {
		return err
	}

	// openPathCache holds argument 0's path once read, so a call marked
	// both MAGIC_OPEN and CHECK_PATH (open() itself) reads it exactly
	// once.
	var openPathCache *string
	readArg0 := func() (string, error) {
		if openPathCache != nil {
			return *openPathCache, nil
		}
		p, err := e.Backend.GetPath(pid, pers, 0)
		if err != nil {
			return "", err
		}
		openPathCache = &p
		return p, nil
	}

	if rec.HasMagic && def.Flags&MagicOpen != 0 {
		p, err := readArg0()
		if err != nil {
			return err
		}
		handled, err := e.checkMagicOpen(pid, p, rec)
		if err != nil {
			return err
		}
		if handled {
			return nil
		}
	}
	if rec.HasMagic && def.Flags&MagicStat != 0 {
		p, err := readArg0()
		if err != nil {
			return err
		}
		if pathlib.IsMagicDir(p) {
			if err := e.Backend.SetPath(pid, pers, 0, nullBytes()); err != nil {
				return err
			}
			return nil
		}
	}

	mode := modeNoWrite
	modeChecked := false
	switch {
	case def.Flags&AccessMode != 0:
		mode, err = checkAccessMode(e.Backend, pid, pers)
		modeChecked = true
	case def.Flags&AccessModeAt != 0:
		mode, err = checkAccessModeAt(e.Backend, pid, pers)
		modeChecked = true
	case def.Flags&OpenMode != 0:
		mode, err = checkOpenMode(e.Backend, pid, pers)
		modeChecked = true
	case def.Flags&OpenModeAt != 0:
		mode, err = checkOpenModeAt(e.Backend, pid, pers)
		modeChecked = true
	}
	if err != nil {
		return err
	}
	if modeChecked && mode == modeNoWrite {
		return e.netGate(pid, sno, def, rec, ctx)
	}

	var denyErrno int64
	checkOne := func(argIdx int, canCreat bool, readPath func() (string, error)) (bool, error) {
		path, err := readPath()
		if err != nil {
			return false, err
		}
		if path == "" || path[0] != '/' {
			path = rec.Cwd + "/" + path
		}

		resolve := def.Flags&DontResolve == 0
		canonMode := pathlib.Existing
		if canCreat || (modeChecked && mode == modeCreat) {
			canonMode = pathlib.Missing
		}

		canon, err := pathlib.Canonicalize(path, canonMode, resolve, rec.Cwd)
		if err != nil {
			if errno, ok := pathlib.AsErrno(err); ok {
				denyErrno = -errnoToNumber(errno)
			} else {
				denyErrno = -int64(unix.ENOENT)
			}
			return true, nil
		}

		allowWrite := rec.Sandbox.WritePrefixes.Contains(canon)
		allowPredict := rec.Sandbox.PredictPrefixes.Contains(canon)

		switch {
		case !allowWrite && !allowPredict:
			e.logDenied(pid, sno, path)
			denyErrno = -int64(unix.EPERM)
			return true, nil
		case !allowWrite && allowPredict:
			if def.Flags&RetFD != 0 {
				return false, e.Backend.SetPath(pid, pers, argIdx, nullBytes())
			}
			denyErrno = 0
			return true, nil
		}

		if rec.Sandbox.Paranoid && def.Flags&DontResolve == 0 {
			if err := e.Backend.SetPath(pid, pers, argIdx, cStringBytes(canon)); err != nil {
				return false, err
			}
		}
		return false, nil
	}

	if def.Flags&CheckPath != 0 {
		stop, err := checkOne(0, def.Flags&CanCreat != 0, readArg0)
		if err != nil {
			return err
		}
		if stop {
			return e.deny(pid, sno, rec, denyErrno)
		}
	}
	if def.Flags&CheckPath2 != 0 {
		stop, err := checkOne(1, def.Flags&CanCreat2 != 0, func() (string, error) {
			return e.Backend.GetPath(pid, pers, 1)
		})
		if err != nil {
			return err
		}
		if stop {
			return e.deny(pid, sno, rec, denyErrno)
		}
	}
	if def.Flags&CheckPathAt != 0 {
		stop, err := checkOne(1, def.Flags&CanCreatAt != 0, func() (string, error) {
			return e.resolveAtPath(pid, pers, 0, 1)
		})
		if err != nil {
			return err
		}
		if stop {
			return e.deny(pid, sno, rec, denyErrno)
		}
	}
	if def.Flags&CheckPathAt2 != 0 {
		stop, err := checkOne(3, def.Flags&CanCreatAt2 != 0, func() (string, error) {
			return e.resolveAtPath(pid, pers, 2, 3)
		})
		if err != nil {
			return err
		}
		if stop {
			return e.deny(pid, sno, rec, denyErrno)
		}
	}

	return e.netGate(pid, sno, def, rec, ctx)
}

// netGate applies the NET_CALL rule after every path check has passed.
func (e *Engine) netGate(pid int, sno uintptr, def SyscallDef, rec *tracee.Record, ctx *policy.Context) error {
	if def.Flags&NetCall != 0 && !rec.Sandbox.Net {
		e.logDenied(pid, sno, "")
		return e.deny(pid, sno, rec, -int64(unix.EACCES))
	}
	return nil
}

// resolveAtPath reads the dirfd argument and the path argument of an *at
// call and folds dirfd in per §4.4 step 5.
func (e *Engine) resolveAtPath(pid int, pers arch.Personality, dirfdArg, pathArg int) (string, error) {
	dirfd, err := e.Backend.GetArg(pid, pers, dirfdArg)
	if err != nil {
		return "", err
	}
	path, err := e.Backend.GetPath(pid, pers, pathArg)
	if err != nil {
		return "", err
	}
	return resolveDirfd(pid, int32(dirfd), path)
}

// checkMagicOpen implements §4.4 step 2: recognize and act on a magic
// command path, mutating the calling tracee's own sandbox snapshot (not
// the global context -- a magic command only ever affects the subtree
// that issued it) and rewriting the path argument to /dev/null on a hit.
func (e *Engine) checkMagicOpen(pid int, path string, rec *tracee.Record) (bool, error) {
	cmd, arg, ok := pathlib.ParseMagic(path)
	if !ok {
		return false, nil
	}

	// PrefixSet.Add/Remove require an entry with no trailing slash (or
	// exactly "/"), per §3's invariant; ParseMagic passes the verb's
	// remainder through untouched, so "/write/tmp/" arrives as "/tmp/".
	arg = trimMagicArgSlash(arg)

	switch cmd {
	case pathlib.MagicAddWrite:
		rec.Sandbox.WritePrefixes.Add(arg)
		e.Log.WithField("channel", "policy").Infof("addwrite(%q)", arg)
	case pathlib.MagicAddPredict:
		rec.Sandbox.PredictPrefixes.Add(arg)
		e.Log.WithField("channel", "policy").Infof("addpredict(%q)", arg)
	case pathlib.MagicRemoveWrite:
		rec.Sandbox.WritePrefixes.Remove(arg)
		e.Log.WithField("channel", "policy").Infof("rmwrite(%q)", arg)
	case pathlib.MagicRemovePredict:
		rec.Sandbox.PredictPrefixes.Remove(arg)
		e.Log.WithField("channel", "policy").Infof("rmpredict(%q)", arg)
	}

	pers, err := e.Backend.Personality(pid)
	if err != nil {
		return false, err
	}
	if err := e.Backend.SetPath(pid, pers, 0, nullBytes()); err != nil {
		return false, err
	}
	return true, nil
}

// trimMagicArgSlash strips a single trailing slash from a magic-command
// argument, leaving the root "/" alone.
func trimMagicArgSlash(arg string) string {
	if len(arg) > 1 && strings.HasSuffix(arg, "/") {
		return arg[:len(arg)-1]
	}
	return arg
}

// deny performs the sentinel-syscall substitution: save the real syscall
// number and the errno to inject, then overwrite the tracee's syscall
// number so the kernel rejects it without side effects.
func (e *Engine) deny(pid int, sno uintptr, rec *tracee.Record, errno int64) error {
	rec.StartDenial(sno, errno)
	return e.Backend.SetSyscall(pid, tracee.SentinelSyscall())
}

// FinishDenial restores the real syscall number and injects the saved
// errno at syscall-exit, per §4.4's deny mechanism.
func (e *Engine) FinishDenial(pid int, rec *tracee.Record) error {
	if err := e.Backend.SetSyscall(pid, rec.SavedSno); err != nil {
		return err
	}
	return e.Backend.SetReturn(pid, rec.SavedRetval)
}

func (e *Engine) logDenied(pid int, sno uintptr, path string) {
	if !e.denyLimiter.Allow() {
		return
	}
	e.Log.WithFields(logrus.Fields{"channel": "access", "pid": pid}).Warnf("syscall %d(%q) denied", sno, path)
}

func nullBytes() []byte {
	return cStringBytes(devNull)
}

func cStringBytes(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}

func errnoToNumber(e pathlib.Errno) int64 {
	switch e {
	case pathlib.ENOENT:
		return int64(unix.ENOENT)
	case pathlib.ELOOP:
		return int64(unix.ELOOP)
	case pathlib.ENOTDIR:
		return int64(unix.ENOTDIR)
	default:
		return int64(unix.ENOENT)
	}
}
