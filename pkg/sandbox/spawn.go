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

package sandbox

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/containerd/console"
	"github.com/kr/pty"
	"golang.org/x/sys/unix"
)

// SpawnOptions configures Spawn.
type SpawnOptions struct {
	// Argv is the target command and its arguments.
	Argv []string
	// Env, if non-nil, replaces the inherited environment.
	Env []string
	// Dir is the target's initial working directory.
	Dir string
	// UsePty requests a pty pair for the target's standard streams
	// instead of inheriting the sandbox's own, putting the sandbox's
	// controlling terminal into raw mode for the duration.
	UsePty bool
}

// Spawned holds what Spawn produced: the running, traced target (already
// resumed into syscall-trace mode) and, if a pty was requested, the console handle the caller must restore
// on teardown.
type Spawned struct {
	Pid     int
	Cmd     *exec.Cmd
	Console console.Console
}

// Spawn starts opts.Argv under ptrace. A PTRACE_TRACEME child's post-exec
// stop arrives as a plain SIGTRAP -- the kernel never raises a SIGSTOP for
// it, see /usr/local/go/src/syscall/exec_linux.go's Ptrace handling -- so
// it never matches the event loop's SETUP/SETUP_PREMATURE classification
// and would otherwise be reaped by nobody's Wait4 but Spawn's own. Spawn
// therefore treats that stop as the real first SETUP stop itself: it
// applies PtraceSetOptions and resumes straight into syscall-trace mode,
// so by the time Spawned is returned the target is already traced and
// running, waiting at its first syscall stop for the event loop to see.
func Spawn(opts SpawnOptions) (*Spawned, error) {
	if len(opts.Argv) == 0 {
		return nil, fmt.Errorf("sandbox: spawn: empty argv")
	}

	cmd := exec.Command(opts.Argv[0], opts.Argv[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env
	cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}

	sp := &Spawned{Cmd: cmd}

	if opts.UsePty {
		ptmx, tty, err := pty.Open()
		if err != nil {
			return nil, fmt.Errorf("sandbox: open pty: %w", err)
		}
		defer tty.Close()
		cmd.Stdin, cmd.Stdout, cmd.Stderr = tty, tty, tty

		con, err := console.ConsoleFromFile(ptmx)
		if err != nil {
			ptmx.Close()
			return nil, fmt.Errorf("sandbox: console from pty master: %w", err)
		}
		if err := con.SetRaw(); err != nil {
			ptmx.Close()
			return nil, fmt.Errorf("sandbox: set raw mode: %w", err)
		}
		sp.Console = con
	} else {
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("sandbox: start target: %w", err)
	}
	sp.Pid = cmd.Process.Pid

	// Reap the stop the kernel delivers to a PTRACE_TRACEME child right
	// after its first exec; the event loop's own Wait4 would otherwise
	// race this one.
	var status unix.WaitStatus
	if _, err := unix.Wait4(sp.Pid, &status, 0, nil); err != nil {
		return nil, fmt.Errorf("sandbox: initial wait4: %w", err)
	}
	if err := unix.PtraceSetOptions(sp.Pid, ptraceOptions); err != nil {
		return nil, fmt.Errorf("sandbox: initial ptrace setoptions: %w", err)
	}
	if err := unix.PtraceSyscall(sp.Pid, 0); err != nil {
		return nil, fmt.Errorf("sandbox: initial ptrace syscall: %w", err)
	}
	return sp, nil
}
