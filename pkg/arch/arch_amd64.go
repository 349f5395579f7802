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

//go:build linux && amd64
// +build linux,amd64

package arch

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// amd64Backend implements Backend for x86_64 tracees, which may run in
// either 64-bit (long) mode or 32-bit compatibility mode.
type amd64Backend struct{}

// New returns the Backend for the host architecture.
func New() Backend {
	return amd64Backend{}
}

// csLongMode and csCompatMode are the CS segment selector values the
// kernel loads for 64-bit and 32-bit-compat execution respectively.
const (
	csLongMode  = 0x33
	csCompatMode = 0x23
)

// argRegisters maps (personality, argument index) to the PtraceRegs
// field holding that argument, mirroring the Linux x86_64 syscall ABI:
// compat mode (32-bit) passes arguments in ebx/ecx/edx/esi/edi/ebp, long
// mode (64-bit) uses the SysV rdi/rsi/rdx/r10/r8/r9 order.
func argRegisters(regs *unix.PtraceRegs, pers Personality) [MaxArgs]uint64 {
	if pers == PersonalityCompat {
		return [MaxArgs]uint64{regs.Rbx, regs.Rcx, regs.Rdx, regs.Rsi, regs.Rdi, regs.Rbp}
	}
	return [MaxArgs]uint64{regs.Rdi, regs.Rsi, regs.Rdx, regs.R10, regs.R8, regs.R9}
}

func (amd64Backend) Personality(pid int) (Personality, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return 0, err
	}
	switch regs.Cs {
	case csLongMode:
		return PersonalityNative, nil
	case csCompatMode:
		return PersonalityCompat, nil
	default:
		return 0, fmt.Errorf("arch: unrecognized CS segment %#x for pid %d", regs.Cs, pid)
	}
}

func (amd64Backend) GetSyscall(pid int) (uintptr, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return 0, err
	}
	return uintptr(regs.Orig_rax), nil
}

func (amd64Backend) SetSyscall(pid int, no uintptr) error {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return err
	}
	regs.Orig_rax = uint64(no)
	return unix.PtraceSetRegs(pid, &regs)
}

func (amd64Backend) GetReturn(pid int) (int64, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return 0, err
	}
	return int64(regs.Rax), nil
}

func (amd64Backend) SetReturn(pid int, v int64) error {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return err
	}
	regs.Rax = uint64(v)
	return unix.PtraceSetRegs(pid, &regs)
}

func (b amd64Backend) GetArg(pid int, pers Personality, i int) (uintptr, error) {
	if i < 0 || i >= MaxArgs {
		return 0, fmt.Errorf("arch: argument index %d out of range", i)
	}
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return 0, err
	}
	return uintptr(argRegisters(&regs, pers)[i]), nil
}

func (b amd64Backend) GetPath(pid int, pers Personality, i int) (string, error) {
	addr, err := b.GetArg(pid, pers, i)
	if err != nil {
		return "", err
	}
	return peekCString(pid, addr)
}

func (b amd64Backend) SetPath(pid int, pers Personality, i int, data []byte) error {
	addr, err := b.GetArg(pid, pers, i)
	if err != nil {
		return err
	}
	return pokeBytes(pid, addr, data)
}

func (b amd64Backend) FakeStat(pid int, pers Personality) error {
	addr, err := b.GetArg(pid, pers, 1)
	if err != nil {
		return err
	}
	return pokeBytes(pid, addr, fakeStatBuf())
}
