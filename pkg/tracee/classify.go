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

package tracee

import "golang.org/x/sys/unix"

// Event is the small alphabet the stop-event classifier maps every raw
// wait status onto.
type Event int

const (
	// Setup is a SIGSTOP stop on a Record still marked NeedSetup.
	Setup Event = iota
	// SetupPremature is a SIGSTOP stop with no Record yet -- the child's
	// own stop arrived before its parent's fork event did.
	SetupPremature
	// Syscall is a syscall-entry or syscall-exit stop.
	Syscall
	// Fork covers PTRACE_EVENT_FORK, VFORK and CLONE alike.
	Fork
	// Execv is PTRACE_EVENT_EXEC.
	Execv
	// Genuine is any other signal-delivery stop, which must be forwarded
	// to the tracee on resume.
	Genuine
	// Exit is a normal process exit.
	Exit
	// ExitSignal is termination by an uncaught signal.
	ExitSignal
	// Unknown is a wait status this classifier cannot place -- fatal.
	Unknown
)

// syscallTrapSignal is the signal value the kernel reports for a
// syscall-entry/exit stop when PTRACE_O_TRACESYSGOOD is in effect: SIGTRAP
// with the high bit of the low byte set.
const syscallTrapSignal = unix.SIGTRAP | 0x80

// Classify maps a raw wait status into an Event. hasRecord reports
// whether a Record already exists for pid, which is what distinguishes
// Setup from SetupPremature.
func Classify(status unix.WaitStatus, hasRecord, needsSetup bool) Event {
	switch {
	case status.Exited():
		return Exit
	case status.Signaled():
		return ExitSignal
	case status.Stopped():
		sig := status.StopSignal()
		switch {
		case sig == unix.SIGSTOP:
			if !hasRecord {
				return SetupPremature
			}
			if needsSetup {
				return Setup
			}
			return Genuine
		case sig == syscallTrapSignal:
			return Syscall
		case sig == unix.SIGTRAP:
			switch status.TrapCause() {
			case unix.PTRACE_EVENT_FORK, unix.PTRACE_EVENT_VFORK, unix.PTRACE_EVENT_CLONE:
				return Fork
			case unix.PTRACE_EVENT_EXEC:
				return Execv
			default:
				return Genuine
			}
		default:
			return Genuine
		}
	default:
		return Unknown
	}
}
