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
	"golang.org/x/sys/unix"

	"github.com/sydbox/sydbox/pkg/arch"
)

// modeResult is the outcome of inspecting a call's mode/flags argument.
type modeResult int

const (
	// modeNoWrite means the call is read-only; it should be allowed
	// without a path-prefix check.
	modeNoWrite modeResult = iota
	// modeWrite means the call writes to an existing path.
	modeWrite
	// modeCreat means the call may create the path (O_CREAT).
	modeCreat
)

// checkOpenMode inspects open's flags argument (argument 1).
func checkOpenMode(b arch.Backend, pid int, pers arch.Personality) (modeResult, error) {
	return checkFlagsArg(b, pid, pers, 1)
}

// checkOpenModeAt inspects openat's flags argument (argument 2).
func checkOpenModeAt(b arch.Backend, pid int, pers arch.Personality) (modeResult, error) {
	return checkFlagsArg(b, pid, pers, 2)
}

func checkFlagsArg(b arch.Backend, pid int, pers arch.Personality, argIdx int) (modeResult, error) {
	v, err := b.GetArg(pid, pers, argIdx)
	if err != nil {
		return modeNoWrite, err
	}
	flags := int(v)
	switch {
	case flags&unix.O_CREAT != 0:
		return modeCreat, nil
	case flags&unix.O_WRONLY != 0, flags&unix.O_RDWR != 0:
		return modeWrite, nil
	default:
		return modeNoWrite, nil
	}
}

// checkAccessMode inspects access's mode argument (argument 1).
func checkAccessMode(b arch.Backend, pid int, pers arch.Personality) (modeResult, error) {
	return checkWOK(b, pid, pers, 1)
}

// checkAccessModeAt inspects faccessat's mode argument (argument 2).
func checkAccessModeAt(b arch.Backend, pid int, pers arch.Personality) (modeResult, error) {
	return checkWOK(b, pid, pers, 2)
}

func checkWOK(b arch.Backend, pid int, pers arch.Personality, argIdx int) (modeResult, error) {
	v, err := b.GetArg(pid, pers, argIdx)
	if err != nil {
		return modeNoWrite, err
	}
	if int(v)&unix.W_OK != 0 {
		return modeWrite, nil
	}
	return modeNoWrite, nil
}
