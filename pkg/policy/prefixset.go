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

package policy

import (
	"strings"

	"github.com/google/btree"
	"github.com/mohae/deepcopy"
)

// prefixItem is a btree.Item wrapping one stored prefix string.
type prefixItem string

func (a prefixItem) Less(than btree.Item) bool {
	return a < than.(prefixItem)
}

// PrefixSet holds an ordered set of absolute path prefixes (write_prefixes
// or predict_prefixes). Membership tests only need to look up the
// O(depth) ancestor directories of the query path, so a btree turns what
// would otherwise be a linear scan of the whole list into O(depth log n)
// exact lookups.
type PrefixSet struct {
	tree *btree.BTree
}

// NewPrefixSet builds a PrefixSet seeded with entries.
func NewPrefixSet(entries []string) *PrefixSet {
	s := &PrefixSet{tree: btree.New(32)}
	for _, e := range entries {
		s.tree.ReplaceOrInsert(prefixItem(e))
	}
	return s
}

// Add inserts path, which must already be an absolute, canonicalized,
// trailing-slash-free path (or exactly "/").
func (s *PrefixSet) Add(path string) {
	s.tree.ReplaceOrInsert(prefixItem(path))
}

// Remove deletes path if present; removing an absent entry is a no-op.
func (s *PrefixSet) Remove(path string) {
	s.tree.Delete(prefixItem(path))
}

// Contains reports whether path equals a stored entry or is strictly
// nested under one.
func (s *PrefixSet) Contains(path string) bool {
	for _, candidate := range ancestors(path) {
		if s.tree.Get(prefixItem(candidate)) != nil {
			return true
		}
	}
	return false
}

// List returns the stored entries in sorted order.
func (s *PrefixSet) List() []string {
	out := make([]string, 0, s.tree.Len())
	s.tree.Ascend(func(it btree.Item) bool {
		out = append(out, string(it.(prefixItem)))
		return true
	})
	return out
}

// Clone returns an independent copy of s. The stored entries are passed
// through deepcopy.Copy so the clone shares no backing array with s --
// required for fork inheritance, where a child's prefix lists must be
// free to diverge from its parent's without retroactively mutating it.
func (s *PrefixSet) Clone() *PrefixSet {
	copied := deepcopy.Copy(s.List()).([]string)
	return NewPrefixSet(copied)
}

// ancestors returns "/", path's every ancestor directory, and path
// itself, in root-to-leaf order -- the exact set of prefix-list entries
// that would make PrefixListCheck(entries, path) true for some entry.
func ancestors(path string) []string {
	if path == "" {
		return nil
	}
	out := []string{"/"}
	var b strings.Builder
	for _, comp := range strings.Split(strings.Trim(path, "/"), "/") {
		if comp == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(comp)
		out = append(out, b.String())
	}
	return out
}
