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

package engine

import "golang.org/x/sys/unix"

// DefaultTable is the essential dispatch table translated to arm64's
// syscall numbers. The Linux arm64 ABI dropped the legacy non-*at path
// syscalls entirely (open, creat, stat, access, link, mkdir, mknod,
// rename, rmdir, symlink, truncate, utime, unlink, chmod, chown, lchown
// all have no arm64 syscall number; glibc synthesizes them on top of the
// *at calls), so only the *at family, mount/umount2 and socket appear
// here. A consequence is that the magic-dir stat probe (MagicStat) has no
// row on this architecture: see DESIGN.md.
var DefaultTable = Table{
	unix.SYS_MOUNT:     {CheckPath2},
	unix.SYS_UMOUNT2:   {CheckPath},
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
