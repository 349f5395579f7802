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

// Package engine is the syscall decision engine: a declarative dispatch
// table mapping intercepted syscall numbers to argument-shape flags, and
// the procedure that reads those arguments, canonicalizes any paths, and
// decides whether to allow, rewrite-and-allow or deny the call.
package engine

// Flags is the per-syscall dispatch bitset. Several flags are meant to
// co-occur on the same row -- open carries CHECK_PATH, RETURNS_FD,
// OPEN_MODE and MAGIC_OPEN simultaneously -- so this stays a bitset
// rather than a tagged union of call shapes: a sum type would need a
// combinatorial case for every flag combination the real table actually
// uses.
type Flags uint32

const (
	// RetFD marks a call that returns a new file descriptor.
	RetFD Flags = 1 << iota
	// OpenMode inspects open's flags argument (argument 1).
	OpenMode
	// OpenModeAt inspects openat's flags argument (argument 2).
	OpenModeAt
	// AccessMode inspects access's mode argument (argument 1).
	AccessMode
	// AccessModeAt inspects faccessat's mode argument (argument 2).
	AccessModeAt
	// CheckPath marks argument 0 as a path to validate.
	CheckPath
	// CheckPath2 marks argument 1 as a second path to validate.
	CheckPath2
	// CheckPathAt marks an *at variant: argument 1 is the path, argument
	// 0 is dirfd.
	CheckPathAt
	// CheckPathAt2 marks an *at variant: argument 3 is the path,
	// argument 2 is dirfd.
	CheckPathAt2
	// DontResolve means canonicalization follows no symlink component, so
	// a final symlink is checked as named rather than by its target.
	DontResolve
	// CanCreat means argument 0 may name a file that does not yet exist.
	CanCreat
	// CanCreat2 means argument 1 may name a file that does not yet exist.
	CanCreat2
	// CanCreatAt means argument 1 (the *at path) may not yet exist.
	CanCreatAt
	// CanCreatAt2 means argument 3 (the second *at path) may not yet
	// exist.
	CanCreatAt2
	// MagicOpen means argument 0 is eligible for magic-path interpretation.
	MagicOpen
	// MagicStat means argument 0 is eligible for magic-dir fake-stat.
	MagicStat
	// NetCall means the call opens a network endpoint and is gated on
	// net_allowed.
	NetCall
)

// SyscallDef is one dispatch-table row.
type SyscallDef struct {
	Flags Flags
}

// Table maps a syscall number to its dispatch row. Absent entries are
// allowed unconditionally.
type Table map[uintptr]SyscallDef

// Lookup returns the row for no, and whether one exists.
func (t Table) Lookup(no uintptr) (SyscallDef, bool) {
	d, ok := t[no]
	return d, ok
}
