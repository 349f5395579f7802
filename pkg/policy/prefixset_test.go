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

import "testing"

func TestPrefixSetContains(t *testing.T) {
	s := NewPrefixSet([]string{"/tmp", "/var/log"})
	cases := map[string]bool{
		"/tmp":          true,
		"/tmp/x":        true,
		"/tmp/x/y":      true,
		"/tmpfoo":       false,
		"/var/log/a":    true,
		"/etc/passwd":   false,
	}
	for path, want := range cases {
		if got := s.Contains(path); got != want {
			t.Errorf("Contains(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestPrefixSetAddRemove(t *testing.T) {
	s := NewPrefixSet(nil)
	if s.Contains("/tmp/x") {
		t.Fatal("empty set should contain nothing")
	}
	s.Add("/tmp")
	if !s.Contains("/tmp/x") {
		t.Fatal("expected /tmp/x to be covered after adding /tmp")
	}
	s.Remove("/tmp")
	if s.Contains("/tmp/x") {
		t.Fatal("expected /tmp/x to be uncovered after removing /tmp")
	}
}

func TestPrefixSetCloneIsIndependent(t *testing.T) {
	parent := NewPrefixSet([]string{"/tmp"})
	child := parent.Clone()
	child.Add("/var/log")

	if parent.Contains("/var/log/x") {
		t.Fatal("mutating the clone must not affect the parent")
	}
	if !child.Contains("/var/log/x") || !child.Contains("/tmp/x") {
		t.Fatal("clone should retain inherited entries plus its own additions")
	}
}

func TestPrefixSetRootMatchesEverything(t *testing.T) {
	s := NewPrefixSet([]string{"/"})
	if !s.Contains("/anything/at/all") {
		t.Fatal("root prefix should match any absolute path")
	}
}
