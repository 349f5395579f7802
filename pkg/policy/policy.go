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

// Package policy holds the sandbox's policy state: the process-wide
// context created at startup, and the per-tracee sandbox snapshot that is
// inherited and may diverge across a fork tree.
package policy

import (
	"encoding/json"

	"github.com/mattbaird/jsonpatch"
)

// LockState records whether a tracee's sandbox settings have been
// explicitly frozen against further magic-path mutation. The value is
// carried and inherited at fork only: no magic command sets it, and the
// decision engine does not consult it, so magic commands are honored in
// every state.
type LockState int

const (
	// LockUnset is the default: magic commands are honored normally.
	LockUnset LockState = iota
	// LockSet means a magic command has locked further mutation out.
	LockSet
	// LockPending means a lock request is queued for the next exec.
	LockPending
)

// Tracee is the per-tracee sandbox snapshot: §3's "sandbox" field,
// inherited at fork time and independently mutable afterward via magic
// paths. A new tree branch can enable paranoid mode, add a write prefix,
// etc. without affecting any other branch.
type Tracee struct {
	On              bool
	Lock            LockState
	Net             bool
	Paranoid        bool
	WritePrefixes   *PrefixSet
	PredictPrefixes *PrefixSet
}

// NewTracee builds a root Tracee sandbox snapshot from a Context's initial
// configuration -- used the one time a tracee has no parent to inherit
// from.
func NewTracee(ctx *Context) *Tracee {
	return &Tracee{
		On:              true,
		Lock:            LockUnset,
		Net:             ctx.NetAllowed,
		Paranoid:        ctx.Paranoid,
		WritePrefixes:   NewPrefixSet(ctx.WritePrefixes),
		PredictPrefixes: NewPrefixSet(ctx.PredictPrefixes),
	}
}

// Inherit returns a child sandbox snapshot copied from t: same on/lock/net
// flags, and independent copies of both prefix lists so the child can
// later diverge without mutating the parent's.
func (t *Tracee) Inherit() *Tracee {
	return &Tracee{
		On:              t.On,
		Lock:            t.Lock,
		Net:             t.Net,
		Paranoid:        t.Paranoid,
		WritePrefixes:   t.WritePrefixes.Clone(),
		PredictPrefixes: t.PredictPrefixes.Clone(),
	}
}

// Context is the process-wide policy state of §3: the sandbox's own
// startup cwd, the initial prefix lists and flags every root tracee is
// seeded from, and the identity of the eldest tracee.
type Context struct {
	// Cwd is the sandbox process's own working directory, captured once
	// at startup; it is never mutated afterward.
	Cwd string

	// WritePrefixes and PredictPrefixes seed every newly-created root
	// tracee (tracees created by fork inherit from their parent instead,
	// see Tracee.Inherit).
	WritePrefixes   []string
	PredictPrefixes []string
	Paranoid        bool
	NetAllowed      bool

	// Eldest is the pid of the root tracee. The event loop runs until the
	// tracee table is empty, not merely until Eldest is removed.
	Eldest int
}

// NewContext builds a Context for a freshly started sandbox.
func NewContext(cwd string, writePrefixes, predictPrefixes []string, paranoid, netAllowed bool) *Context {
	return &Context{
		Cwd:             cwd,
		WritePrefixes:   writePrefixes,
		PredictPrefixes: predictPrefixes,
		Paranoid:        paranoid,
		NetAllowed:      netAllowed,
	}
}

// snapshot is the JSON shape ApplyPatch and Snapshot exchange; it exists
// only to give the admin JSON-Patch surface something to mutate, distinct
// from Context's Go-native representation.
type snapshot struct {
	WritePrefixes   []string `json:"write_prefixes"`
	PredictPrefixes []string `json:"predict_prefixes"`
	Paranoid        bool     `json:"paranoid"`
	NetAllowed      bool     `json:"net_allowed"`
}

// Snapshot marshals the mutable part of the Context to JSON, for an admin
// client to read and diff against.
func (c *Context) Snapshot() ([]byte, error) {
	snap := snapshot{
		WritePrefixes:   c.WritePrefixes,
		PredictPrefixes: c.PredictPrefixes,
		Paranoid:        c.Paranoid,
		NetAllowed:      c.NetAllowed,
	}
	// Empty lists marshal as [] rather than null so a patch can append
	// to them ("/write_prefixes/-").
	if snap.WritePrefixes == nil {
		snap.WritePrefixes = []string{}
	}
	if snap.PredictPrefixes == nil {
		snap.PredictPrefixes = []string{}
	}
	return json.Marshal(snap)
}

// ApplyPatch applies an RFC 6902 JSON Patch document to the Context's
// current snapshot and installs the result. This is a second
// policy-mutation channel alongside in-band magic paths, for an external
// administrator process that can see the whole policy rather than just
// the one path it is opening.
func (c *Context) ApplyPatch(patchJSON []byte) error {
	before, err := c.Snapshot()
	if err != nil {
		return err
	}

	patch, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return err
	}
	after, err := patch.Apply(before)
	if err != nil {
		return err
	}

	var snap snapshot
	if err := json.Unmarshal(after, &snap); err != nil {
		return err
	}
	c.WritePrefixes = snap.WritePrefixes
	c.PredictPrefixes = snap.PredictPrefixes
	c.Paranoid = snap.Paranoid
	c.NetAllowed = snap.NetAllowed
	return nil
}
