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
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// resolveDirfd prepends the directory dirfd refers to onto path, when
// dirfd is not AT_FDCWD and path is relative. The directory is
// discovered by reading the /proc/<pid>/fd/<dirfd> symlink, the only
// portable way to recover a foreign task's fd target.
func resolveDirfd(pid int, dirfd int32, path string) (string, error) {
	if dirfd == unix.AT_FDCWD || strings.HasPrefix(path, "/") {
		return path, nil
	}
	link := fmt.Sprintf("/proc/%d/fd/%d", pid, dirfd)
	target, err := os.Readlink(link)
	if err != nil {
		return "", err
	}
	return target + "/" + path, nil
}
