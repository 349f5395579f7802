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

package tracee

import (
	"testing"

	"github.com/sydbox/sydbox/pkg/policy"
)

func TestTableInsertRootAndLookup(t *testing.T) {
	tbl := NewTable()
	ctx := policy.NewContext("/", nil, nil, false, false)
	root := NewRoot(100, "/", ctx)
	tbl.InsertRoot(root)

	got, ok := tbl.Lookup(100)
	if !ok || got != root {
		t.Fatalf("expected to find the inserted root record")
	}
	if tbl.Len() != 1 {
		t.Fatalf("expected Len()==1, got %d", tbl.Len())
	}
}

func TestTableInsertChildInheritsFromParent(t *testing.T) {
	tbl := NewTable()
	ctx := policy.NewContext("/home/u", []string{"/tmp"}, nil, false, false)
	root := NewRoot(100, "/home/u", ctx)
	tbl.InsertRoot(root)
	root.HasMagic = false

	child := tbl.InsertChild(101, 100)
	if child.Cwd != root.Cwd {
		t.Fatalf("expected child cwd to be inherited, got %q", child.Cwd)
	}
	if child.HasMagic != root.HasMagic {
		t.Fatal("expected child HasMagic to be inherited from parent")
	}
	if !child.Sandbox.WritePrefixes.Contains("/tmp/x") {
		t.Fatal("expected child sandbox snapshot to inherit parent's write prefixes")
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected Len()==2, got %d", tbl.Len())
	}
}

func TestTableInsertChildPanicsOnUnknownParent(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected InsertChild to panic for an unknown parent pid")
		}
	}()
	tbl := NewTable()
	tbl.InsertChild(2, 1)
}

func TestTableDeleteAndPids(t *testing.T) {
	tbl := NewTable()
	ctx := policy.NewContext("/", nil, nil, false, false)
	tbl.InsertRoot(NewRoot(100, "/", ctx))
	tbl.InsertChild(101, 100)

	pids := tbl.Pids()
	if len(pids) != 2 {
		t.Fatalf("expected 2 live pids, got %v", pids)
	}

	tbl.Delete(100)
	if _, ok := tbl.Lookup(100); ok {
		t.Fatal("expected pid 100 to be gone after Delete")
	}
	if tbl.Len() != 1 {
		t.Fatalf("expected Len()==1 after deleting one of two, got %d", tbl.Len())
	}

	tbl.Delete(101)
	if tbl.Len() != 0 {
		t.Fatal("expected an empty table after deleting the last record")
	}
}

func TestRecordStartDenialAndSentinel(t *testing.T) {
	ctx := policy.NewContext("/", nil, nil, false, false)
	rec := NewRoot(100, "/", ctx)
	if rec.SavedSno != SentinelSyscall() {
		t.Fatal("expected a freshly created record to already carry the sentinel")
	}

	rec.StartDenial(59, -13)
	if rec.SavedSno != 59 || rec.SavedRetval != -13 {
		t.Fatalf("StartDenial did not record the real syscall/errno: %+v", rec)
	}
}
