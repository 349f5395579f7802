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

// Package tracee holds the per-task state table the event loop drives:
// one Record per traced task, keyed by pid, with fork-time inheritance
// and a wait-status classifier.
package tracee

import "github.com/sydbox/sydbox/pkg/policy"

// Flags is the per-tracee bitset of §3.
type Flags uint32

const (
	// NeedSetup marks a freshly spawned tracee whose ptrace options have
	// not yet been applied.
	NeedSetup Flags = 1 << iota
	// InSyscall marks a tracee currently between a syscall-entry and
	// syscall-exit stop.
	InSyscall
)

// sentinelSyscall is the invalid syscall number written over a denied
// call; the kernel rejects it with ENOSYS and no side effects.
const sentinelSyscall = 0xbadca11

// Record is one traced task's state.
type Record struct {
	Pid   int
	Flags Flags

	// SavedSno and SavedRetval hold the original syscall number and the
	// errno to inject at the next syscall-exit, while the syscall number
	// visible to the kernel is the sentinel. Only meaningful while a
	// denial is in flight.
	SavedSno    uintptr
	SavedRetval int64

	// Cwd is this tracee's current working directory, re-read from
	// /proc/<pid>/cwd after every successful chdir/fchdir.
	Cwd string

	// HasMagic is true until the tracee's second-ever execve, after
	// which magic paths are treated as ordinary paths.
	HasMagic bool

	// Sandbox is this tracee's private policy snapshot, inherited from
	// its parent at fork time and independently mutable afterward.
	Sandbox *policy.Tracee
}

// NewRoot creates the first Record in a tree: no parent to inherit from,
// so its sandbox snapshot is seeded directly from ctx.
func NewRoot(pid int, cwd string, ctx *policy.Context) *Record {
	return &Record{
		Pid:      pid,
		Flags:    NeedSetup,
		SavedSno: sentinelSyscall,
		Cwd:      cwd,
		HasMagic: true,
		Sandbox:  policy.NewTracee(ctx),
	}
}

// NewChild creates a Record inheriting cwd, hasmagic and sandbox snapshot
// from parent, per §3's inheritance invariant.
func NewChild(pid int, parent *Record) *Record {
	return &Record{
		Pid:      pid,
		Flags:    NeedSetup,
		SavedSno: sentinelSyscall,
		Cwd:      parent.Cwd,
		HasMagic: parent.HasMagic,
		Sandbox:  parent.Sandbox.Inherit(),
	}
}

// StartDenial records a suppressed syscall so it can be undone at the
// matching syscall-exit stop; it does not itself touch the tracee's
// registers.
func (r *Record) StartDenial(realSno uintptr, errno int64) {
	r.SavedSno = realSno
	r.SavedRetval = errno
}

// SentinelSyscall returns the invalid syscall number a denial overwrites
// the real one with.
func SentinelSyscall() uintptr { return sentinelSyscall }
