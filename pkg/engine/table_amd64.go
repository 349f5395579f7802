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

package engine

import "golang.org/x/sys/unix"

// DefaultTable is the essential dispatch table of the reference
// implementation's syscall.c, translated to this architecture's native
// (64-bit) syscall numbers. amd64 retains the full legacy syscall set
// alongside the *at variants, so both appear here.
var DefaultTable = Table{
	unix.SYS_CHMOD:     {CheckPath},
	unix.SYS_CHOWN:     {CheckPath},
	unix.SYS_OPEN:      {CheckPath | RetFD | OpenMode | MagicOpen},
	unix.SYS_CREAT:     {CheckPath | CanCreat | RetFD},
	unix.SYS_STAT:      {MagicStat},
	unix.SYS_LCHOWN:    {CheckPath | DontResolve},
	unix.SYS_LINK:      {CheckPath | CheckPath2 | CanCreat2},
	unix.SYS_MKDIR:     {CheckPath | CanCreat},
	unix.SYS_MKNOD:     {CheckPath | CanCreat},
	unix.SYS_ACCESS:    {CheckPath | AccessMode},
	unix.SYS_RENAME:    {CheckPath | CheckPath2 | CanCreat2},
	unix.SYS_RMDIR:     {CheckPath},
	unix.SYS_SYMLINK:   {CheckPath2 | CanCreat2 | DontResolve},
	unix.SYS_TRUNCATE:  {CheckPath},
	unix.SYS_MOUNT:     {CheckPath2},
	unix.SYS_UMOUNT2:   {CheckPath},
	unix.SYS_UTIME:     {CheckPath},
	unix.SYS_UNLINK:    {CheckPath},
	unix.SYS_OPENAT:    {CheckPathAt | OpenModeAt | RetFD},
	unix.SYS_MKDIRAT:   {CheckPathAt | CanCreatAt},
	unix.SYS_MKNODAT:   {CheckPathAt | CanCreatAt},
	unix.SYS_FCHOWNAT:  {CheckPathAt},
	unix.SYS_UNLINKAT:  {CheckPathAt},
	unix.SYS_RENAMEAT:  {CheckPathAt | CheckPathAt2 | CanCreatAt2},
	unix.SYS_LINKAT:    {CheckPathAt | CheckPathAt2 | CanCreatAt2},
	unix.SYS_SYMLINKAT: {CheckPathAt | CheckPathAt2 | CanCreatAt2 | DontResolve},
	unix.SYS_FCHMODAT:  {CheckPathAt},
	unix.SYS_FACCESSAT: {CheckPathAt | AccessModeAt},
	unix.SYS_SOCKET:    {NetCall},
}
