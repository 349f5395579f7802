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

// Package arch provides the architecture back-end: the only layer that
// touches a tracee's raw registers and memory. Everything above it is
// architecture-neutral.
package arch

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MaxArgs is the number of syscall argument registers on every
// architecture this package supports.
const MaxArgs = 6

// Personality selects the argument-register layout in effect for a
// tracee. Single-ABI architectures always report PersonalityNative.
type Personality int

const (
	// PersonalityNative is the architecture's own (64-bit) ABI.
	PersonalityNative Personality = 0
	// PersonalityCompat is a secondary (e.g. 32-bit compat) ABI, only
	// meaningful on architectures that support one.
	PersonalityCompat Personality = 1
)

// SyscallArgument is one raw syscall argument register.
type SyscallArgument struct {
	Value uintptr
}

// Backend is the uniform interface the rest of the sandbox uses to
// inspect and mutate a stopped tracee. A pid passed to any method here
// must name a task that is currently ptrace-stopped; behavior is
// undefined otherwise.
type Backend interface {
	// Personality returns the argument-register layout in effect for pid.
	Personality(pid int) (Personality, error)

	// GetSyscall returns the syscall number the kernel is about to
	// execute (at syscall-entry) or just executed (at syscall-exit).
	GetSyscall(pid int) (uintptr, error)

	// SetSyscall overwrites the syscall number the kernel will dispatch
	// on resume.
	SetSyscall(pid int, no uintptr) error

	// GetReturn returns the signed return value of the syscall just
	// executed.
	GetReturn(pid int) (int64, error)

	// SetReturn stores a signed return value for the syscall just
	// executed.
	SetReturn(pid int, v int64) error

	// GetArg returns the i-th syscall argument as a raw machine word.
	GetArg(pid int, pers Personality, i int) (uintptr, error)

	// GetPath reads a NUL-terminated string from the tracee's address
	// space at the address held in argument i.
	GetPath(pid int, pers Personality, i int) (string, error)

	// SetPath overwrites the bytes at the address held in argument i.
	// data need not be NUL-terminated; callers that want a C string must
	// include the trailing NUL themselves.
	SetPath(pid int, pers Personality, i int, data []byte) error

	// FakeStat writes a synthetic, zeroed stat buffer (with st_mode set
	// to S_IFDIR) to the address held in argument 1.
	FakeStat(pid int, pers Personality) error
}

// wordSize is the native machine word size used for PEEKDATA/POKEDATA
// alignment on every architecture this package targets.
const wordSize = 8

// peekCString reads a NUL-terminated string from the tracee's address
// space at addr, doubling the read buffer until the NUL is found.
//
// golang.org/x/sys/unix.PtracePeekData already performs the
// word-alignment a raw PTRACE_PEEKDATA requires internally, so this
// function can simply request a growing byte range.
func peekCString(pid int, addr uintptr) (string, error) {
	if addr == 0 {
		return "", fmt.Errorf("arch: null path pointer")
	}
	for size := 128; size <= 1<<20; size *= 2 {
		buf := make([]byte, size)
		n, err := unix.PtracePeekData(pid, addr, buf)
		if err != nil {
			return "", err
		}
		buf = buf[:n]
		for i, b := range buf {
			if b == 0 {
				return string(buf[:i]), nil
			}
		}
		// No NUL found in this window; double the read and retry from
		// the start of addr (not a continuation) so a page fault in the
		// unread portion cannot corrupt what we already decoded.
	}
	return "", fmt.Errorf("arch: path at %#x exceeds maximum length", addr)
}

// pokeBytes writes data into the tracee's address space at addr.
//
// unix.PtracePokeData already implements the read-merge-write dance a
// trailing partial word requires (peek the word, splice in the tail,
// poke it back) so adjacent tracee memory is never clobbered.
func pokeBytes(pid int, addr uintptr, data []byte) error {
	if addr == 0 {
		return fmt.Errorf("arch: null destination pointer")
	}
	n, err := unix.PtracePokeData(pid, addr, data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("arch: short write to tracee %#x: wrote %d of %d bytes", addr, n, len(data))
	}
	return nil
}

// stat64Size and stMode64Offset give the size of the host's struct stat
// and the offset of its 4-byte st_mode field, taken from unix.Stat_t so
// each architecture gets its own layout (144 and 24 on amd64, 128 and 16
// on arm64). fakeStatBuf sets only st_mode; everything else -- including
// timestamps, nlink, size -- stays zero so probing code treats the
// magic directory as an always-empty directory.
const stat64Size = int(unsafe.Sizeof(unix.Stat_t{}))
const stMode64Offset = int(unsafe.Offsetof(unix.Stat_t{}.Mode))

func fakeStatBuf() []byte {
	buf := make([]byte, stat64Size)
	// S_IFDIR = 0040000, little-endian uint32 at st_mode's offset.
	const sIFDIR = 0040000
	buf[stMode64Offset+0] = byte(sIFDIR)
	buf[stMode64Offset+1] = byte(sIFDIR >> 8)
	buf[stMode64Offset+2] = byte(sIFDIR >> 16)
	buf[stMode64Offset+3] = byte(sIFDIR >> 24)
	return buf
}
