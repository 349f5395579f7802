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

package sandbox

import (
	"fmt"

	"github.com/containerd/cgroups"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Cgroup places the whole tracee tree in one cgroup, so the tree can be
// frozen as one unit (Freeze) regardless of how deep it has grown. It
// does not kill any task itself; Teardown removes the cgroup once every
// member has exited.
type Cgroup struct {
	cg   cgroups.Cgroup
	path string
}

// NewCgroup creates (or reuses) the static cgroup path and adds pid as
// its first member.
func NewCgroup(path string, pid int) (*Cgroup, error) {
	cg, err := cgroups.New(cgroups.V1, cgroups.StaticPath(path), &specs.LinuxResources{})
	if err != nil {
		return nil, fmt.Errorf("sandbox: create cgroup %s: %w", path, err)
	}
	if err := cg.Add(cgroups.Process{Pid: pid}); err != nil {
		cg.Delete()
		return nil, fmt.Errorf("sandbox: add pid %d to cgroup %s: %w", pid, path, err)
	}
	return &Cgroup{cg: cg, path: path}, nil
}

// Add places an additional pid (a forked descendant the sandbox wants to
// account under the same cgroup explicitly, rather than relying on
// cgroup-v1 inheritance) into the cgroup.
func (c *Cgroup) Add(pid int) error {
	return c.cg.Add(cgroups.Process{Pid: pid})
}

// Freeze suspends every task in the cgroup at once, used to stop a whole
// fork tree before delivering a kill signal so no descendant can fork a
// replacement that escapes the signal.
func (c *Cgroup) Freeze() error {
	return c.cg.Freeze()
}

// Teardown thaws (in case Freeze was called), then deletes the cgroup.
// Deleting a non-empty cgroup fails, so this is only safe to call once
// every member task has already exited.
func (c *Cgroup) Teardown() error {
	_ = c.cg.Thaw()
	return c.cg.Delete()
}
