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

// Package sandbox is the event loop of §4.5: a single-threaded reactor
// that waits for a tracee state change, classifies it, and drives the
// policy engine and tracee table to a decision before resuming.
package sandbox

import (
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/sydbox/sydbox/pkg/arch"
	"github.com/sydbox/sydbox/pkg/engine"
	"github.com/sydbox/sydbox/pkg/policy"
	"github.com/sydbox/sydbox/pkg/tracee"
)

// ptraceOptions are applied to every tracee at its SETUP stop: trace
// fork/vfork/clone (to follow the whole tree) and exec (to observe the
// magic-after-exec transition), plus TRACESYSGOOD so syscall-stops carry
// the 0x80 bit the classifier keys on.
const ptraceOptions = unix.PTRACE_O_TRACESYSGOOD |
	unix.PTRACE_O_TRACEFORK |
	unix.PTRACE_O_TRACEVFORK |
	unix.PTRACE_O_TRACECLONE |
	unix.PTRACE_O_TRACEEXEC

// Loop is the reactor. Run ends when the tracee table is empty; eldest
// is the root pid, and sawEldest records whether it has exited.
type Loop struct {
	Table   *tracee.Table
	Engine  *engine.Engine
	Backend arch.Backend
	Context *policy.Context
	Log     *logrus.Logger

	eldest    int
	exitCode  int
	sawEldest bool

	// premature holds pids that hit their own SETUP_PREMATURE stop (a
	// SIGSTOP with no Record yet) before the parent's Fork event created
	// one. Such a pid gets only the one SIGSTOP ever, so it is left
	// stopped here and its setup is finished directly from the Fork case
	// once the record exists, rather than waiting for a second SETUP stop
	// that will never come.
	premature map[int]struct{}

	// mu guards Table and Context against concurrent access from
	// ApplyPolicyPatch, which an AdminListener goroutine calls outside the
	// single-threaded reactor loop.
	mu sync.Mutex
}

// NewLoop builds a Loop rooted at eldest, the pid of the freshly spawned
// target process. Spawn has already applied PtraceSetOptions and resumed
// eldest into syscall-trace mode on its behalf (see spawn.go), so the root
// record starts with NeedSetup already cleared -- no further SETUP stop
// will ever arrive for it.
func NewLoop(eldest int, cwd string, ctx *policy.Context, eng *engine.Engine, backend arch.Backend, log *logrus.Logger) *Loop {
	table := tracee.NewTable()
	root := tracee.NewRoot(eldest, cwd, ctx)
	root.Flags &^= tracee.NeedSetup
	table.InsertRoot(root)
	ctx.Eldest = eldest
	return &Loop{
		Table:     table,
		Engine:    eng,
		Backend:   backend,
		Context:   ctx,
		Log:       log,
		eldest:    eldest,
		premature: make(map[int]struct{}),
	}
}

// Run drives the reactor until the tracee table empties, per step 9 of
// §4.5. It returns the exit code the sandbox process should itself exit
// with (§6's "process exit code" rule).
func (l *Loop) Run() (int, error) {
	for {
		l.mu.Lock()
		n := l.Table.Len()
		l.mu.Unlock()
		if n == 0 {
			break
		}

		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, 0, nil)
		if err != nil {
			if err == unix.ECHILD {
				break
			}
			if err == unix.EINTR {
				continue
			}
			return l.exitCode, fmt.Errorf("sandbox: wait4: %w", err)
		}

		l.mu.Lock()
		err = l.handle(pid, status)
		l.mu.Unlock()
		if err != nil {
			return l.exitCode, err
		}
	}
	return l.exitCode, nil
}

func (l *Loop) handle(pid int, status unix.WaitStatus) error {
	rec, hasRecord := l.Table.Lookup(pid)
	needsSetup := hasRecord && rec.Flags&tracee.NeedSetup != 0

	switch ev := tracee.Classify(status, hasRecord, needsSetup); ev {
	case tracee.SetupPremature:
		// The child's own SIGSTOP arrived before its parent's fork event.
		// It will never be sent another SIGSTOP, so leave it stopped here
		// (do not resume) and remember it; the Fork case below finishes
		// its setup directly once the parent's event creates its record.
		l.premature[pid] = struct{}{}
		return nil

	case tracee.Setup:
		return l.finishSetup(pid, rec)

	case tracee.Syscall:
		return l.handleSyscall(pid, rec)

	case tracee.Fork:
		childPid, err := unix.PtraceGetEventMsg(pid)
		if err == nil {
			cpid := int(childPid)
			if child, ok := l.Table.Lookup(cpid); !ok {
				child = l.Table.InsertChild(cpid, pid)
				if _, wasPremature := l.premature[cpid]; wasPremature {
					delete(l.premature, cpid)
					if err := l.finishSetup(cpid, child); err != nil {
						return err
					}
				}
			}
		}
		l.Log.WithFields(logrus.Fields{"channel": "policy", "pid": pid}).Debugf("fork -> %d", childPid)
		return l.resumeSyscall(pid, 0)

	case tracee.Execv:
		if rec.HasMagic {
			// The first execve (the target's own exec-self, which happens
			// before the tracer even sees SETUP on some kernels) does not
			// count; only a *second* execve retires magic paths. Since
			// Spawn's target is already running by the time it is
			// attached, the very first Execv observed here already is
			// that second exec for any process that re-execs itself.
			rec.HasMagic = false
		}
		l.Log.WithFields(logrus.Fields{"channel": "policy", "pid": pid}).Debug("execve")
		return l.resumeSyscall(pid, 0)

	case tracee.Genuine:
		sig := status.StopSignal()
		return l.resume(pid, int(sig))

	case tracee.Exit:
		l.exitCode = status.ExitStatus()
		l.removeTracee(pid)
		return nil

	case tracee.ExitSignal:
		l.exitCode = 128 + int(status.Signal())
		l.removeTracee(pid)
		return nil

	default:
		return fmt.Errorf("sandbox: pid %d: unrecognized wait status %#x", pid, status)
	}
}

// finishSetup applies ptrace options to a freshly-stopped tracee and
// resumes it into syscall-trace mode, clearing NeedSetup. It is called
// both from the ordinary Setup stop and, for a child whose SIGSTOP raced
// ahead of its parent's Fork event, from the Fork case directly.
func (l *Loop) finishSetup(pid int, rec *tracee.Record) error {
	rec.Flags &^= tracee.NeedSetup
	if err := unix.PtraceSetOptions(pid, ptraceOptions); err != nil {
		l.Log.WithField("channel", "access").Errorf("pid %d: ptrace setoptions: %v", pid, err)
		return fmt.Errorf("sandbox: ptrace setoptions pid %d: %w", pid, err)
	}
	return l.resumeSyscall(pid, 0)
}

// ApplyPolicyPatch applies an RFC 6902 JSON Patch document to the Loop's
// Context and propagates the result to every currently live tracee's own
// sandbox snapshot: Context.ApplyPatch alone would otherwise only seed
// tracees created afterward (see policy.Tracee's inherit-at-fork model),
// leaving an already-running sandbox unaffected. It is the one entry
// point an AdminListener goroutine is allowed to call concurrently with
// Run.
func (l *Loop) ApplyPolicyPatch(patchJSON []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.Context.ApplyPatch(patchJSON); err != nil {
		return err
	}
	for _, pid := range l.Table.Pids() {
		rec, ok := l.Table.Lookup(pid)
		if !ok {
			continue
		}
		rec.Sandbox.WritePrefixes = policy.NewPrefixSet(l.Context.WritePrefixes)
		rec.Sandbox.PredictPrefixes = policy.NewPrefixSet(l.Context.PredictPrefixes)
		rec.Sandbox.Paranoid = l.Context.Paranoid
		rec.Sandbox.Net = l.Context.NetAllowed
	}
	l.Log.WithField("channel", "policy").Info("admin: policy patch applied")
	return nil
}

func (l *Loop) removeTracee(pid int) {
	l.Table.Delete(pid)
	if pid == l.eldest {
		l.sawEldest = true
	}
}

func (l *Loop) handleSyscall(pid int, rec *tracee.Record) error {
	entering := rec.Flags&tracee.InSyscall == 0
	rec.Flags ^= tracee.InSyscall

	if entering {
		sno, err := l.Backend.GetSyscall(pid)
		if err != nil {
			return l.fatalArchError(pid, err)
		}
		if err := l.Engine.Decide(pid, sno, rec, l.Context); err != nil {
			return l.fatalArchError(pid, err)
		}
		return l.resumeSyscall(pid, 0)
	}

	// Syscall-exit: undo a deny substitution, if one is in flight, then
	// reconcile cwd bookkeeping for chdir/fchdir (§6's sole cwd-discovery
	// mechanism).
	if rec.SavedSno == tracee.SentinelSyscall() {
		// no denial was in flight; SavedSno only differs from the
		// sentinel while FinishDenial has yet to run.
	} else {
		if err := l.Engine.FinishDenial(pid, rec); err != nil {
			return l.fatalArchError(pid, err)
		}
		rec.SavedSno = tracee.SentinelSyscall()
	}
	l.reconcileCwd(pid, rec)
	return l.resumeSyscall(pid, 0)
}

// reconcileCwd re-reads /proc/<pid>/cwd after every syscall-exit; the
// cost of a readlink on a stop that didn't touch cwd is cheap compared to
// tracking which syscalls are chdir/fchdir across two architectures'
// syscall numbers, and it is the only sanctioned mechanism per §6.
func (l *Loop) reconcileCwd(pid int, rec *tracee.Record) {
	link := fmt.Sprintf("/proc/%d/cwd", pid)
	if target, err := os.Readlink(link); err == nil {
		rec.Cwd = target
	}
}

// fatalArchError implements §7's "arch back-end I/O failure other than
// ESRCH is fatal" rule: ESRCH means the tracee vanished mid-inspection,
// which is always recoverable by dropping its record.
func (l *Loop) fatalArchError(pid int, err error) error {
	if err == unix.ESRCH {
		l.removeTracee(pid)
		return nil
	}
	return fmt.Errorf("sandbox: pid %d: arch back-end failure: %w", pid, err)
}

func (l *Loop) resume(pid int, sig int) error {
	if err := unix.PtraceCont(pid, sig); err != nil && err != unix.ESRCH {
		return fmt.Errorf("sandbox: pid %d: ptrace cont: %w", pid, err)
	}
	return nil
}

func (l *Loop) resumeSyscall(pid int, sig int) error {
	if err := unix.PtraceSyscall(pid, sig); err != nil && err != unix.ESRCH {
		return fmt.Errorf("sandbox: pid %d: ptrace syscall: %w", pid, err)
	}
	return nil
}
