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

// Table is the collection of live Records, keyed by pid. The reference
// implementation uses a singly-linked list with head insertion and
// inherits from "the next node", relying on the coincidence that a
// freshly-forked child is linked in front of its parent. A map keyed by
// pid is used here instead (per the design notes): inheritance is then
// explicit, driven by the parent pid the kernel already reports in the
// PTRACE_EVENT_FORK/VFORK/CLONE event message, rather than inferred from
// list order.
type Table struct {
	records map[int]*Record
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{records: make(map[int]*Record)}
}

// InsertRoot inserts pid as a tree root with no parent to inherit from.
func (t *Table) InsertRoot(rec *Record) {
	t.records[rec.Pid] = rec
}

// InsertChild inserts pid, a new task produced by a fork/vfork/clone on
// parentPid. It panics if parentPid is not present, since the event loop
// must always observe the parent's fork event before (or, for
// SETUP_PREMATURE, without ever needing) the child's own setup stop.
func (t *Table) InsertChild(pid, parentPid int) *Record {
	parent, ok := t.records[parentPid]
	if !ok {
		panic("tracee: InsertChild called with unknown parent pid")
	}
	child := NewChild(pid, parent)
	t.records[pid] = child
	return child
}

// Lookup returns the Record for pid, if any.
func (t *Table) Lookup(pid int) (*Record, bool) {
	r, ok := t.records[pid]
	return r, ok
}

// Delete removes pid's Record. Deleting the table's last pid does not
// free the Table itself; the event loop decides when to stop running
// based on Table.Len reaching zero, not on which pid was removed.
func (t *Table) Delete(pid int) {
	delete(t.records, pid)
}

// Len reports how many tracees are currently live.
func (t *Table) Len() int {
	return len(t.records)
}

// Pids returns every live tracee's pid, in no particular order.
func (t *Table) Pids() []int {
	out := make([]int, 0, len(t.records))
	for pid := range t.records {
		out = append(out, pid)
	}
	return out
}
