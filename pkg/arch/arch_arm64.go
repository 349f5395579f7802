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

//go:build linux && arm64
// +build linux,arm64

package arch

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// arm64Backend implements Backend for aarch64 tracees. arm64 is a
// single-ABI architecture: there is no compat personality, and the
// syscall number register (X8) is never overwritten with the return
// value the way x86_64's orig_rax/rax pair works, so get/set syscall and
// get/set return address distinct registers directly.
type arm64Backend struct{}

// New returns the Backend for the host architecture.
func New() Backend {
	return arm64Backend{}
}

const (
	regSyscallNo = 8
	regReturn    = 0
)

// argRegisters returns X0..X5, the AAPCS64 syscall argument registers.
func argRegisters(regs *unix.PtraceRegs) [MaxArgs]uint64 {
	var out [MaxArgs]uint64
	copy(out[:], regs.Regs[0:MaxArgs])
	return out
}

func (arm64Backend) Personality(pid int) (Personality, error) {
	return PersonalityNative, nil
}

func (arm64Backend) GetSyscall(pid int) (uintptr, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return 0, err
	}
	return uintptr(regs.Regs[regSyscallNo]), nil
}

func (arm64Backend) SetSyscall(pid int, no uintptr) error {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return err
	}
	regs.Regs[regSyscallNo] = uint64(no)
	return unix.PtraceSetRegs(pid, &regs)
}

func (arm64Backend) GetReturn(pid int) (int64, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return 0, err
	}
	return int64(regs.Regs[regReturn]), nil
}

func (arm64Backend) SetReturn(pid int, v int64) error {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return err
	}
	regs.Regs[regReturn] = uint64(v)
	return unix.PtraceSetRegs(pid, &regs)
}

func (b arm64Backend) GetArg(pid int, pers Personality, i int) (uintptr, error) {
	if i < 0 || i >= MaxArgs {
		return 0, fmt.Errorf("arch: argument index %d out of range", i)
	}
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return 0, err
	}
	return uintptr(argRegisters(&regs)[i]), nil
}

func (b arm64Backend) GetPath(pid int, pers Personality, i int) (string, error) {
	addr, err := b.GetArg(pid, pers, i)
	if err != nil {
		return "", err
	}
	return peekCString(pid, addr)
}

func (b arm64Backend) SetPath(pid int, pers Personality, i int, data []byte) error {
	addr, err := b.GetArg(pid, pers, i)
	if err != nil {
		return err
	}
	return pokeBytes(pid, addr, data)
}

func (b arm64Backend) FakeStat(pid int, pers Personality) error {
	addr, err := b.GetArg(pid, pers, 1)
	if err != nil {
		return err
	}
	return pokeBytes(pid, addr, fakeStatBuf())
}
