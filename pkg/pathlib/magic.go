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

package pathlib

import "strings"

// MagicPrefix is the distinguished directory a traced program opens or
// stats to talk to the sandbox's policy-mutation control channel.
const MagicPrefix = "/dev/sydbox"

// MagicCommand names one of the four policy-mutation verbs a magic path
// can request.
type MagicCommand int

const (
	_ MagicCommand = iota
	// MagicAddWrite appends a path to write_prefixes.
	MagicAddWrite
	// MagicAddPredict appends a path to predict_prefixes.
	MagicAddPredict
	// MagicRemoveWrite removes a path from write_prefixes.
	MagicRemoveWrite
	// MagicRemovePredict removes a path from predict_prefixes.
	MagicRemovePredict
)

var magicVerbs = []struct {
	verb string
	cmd  MagicCommand
}{
	{"/write/", MagicAddWrite},
	{"/predict/", MagicAddPredict},
	{"/rmwrite/", MagicRemoveWrite},
	{"/rmpredict/", MagicRemovePredict},
}

// ParseMagic recognizes path as one of the four magic command forms
// (<MagicPrefix>/write/<path>, /predict/, /rmwrite/, /rmpredict/) and
// returns the command and the path argument it carries. ok is false for
// any path that is not a recognized magic command, including the bare
// magic directory (see IsMagicDir).
func ParseMagic(path string) (cmd MagicCommand, arg string, ok bool) {
	if !strings.HasPrefix(path, MagicPrefix) {
		return 0, "", false
	}
	rest := path[len(MagicPrefix):]
	for _, v := range magicVerbs {
		if strings.HasPrefix(rest, v.verb) {
			return v.cmd, "/" + rest[len(v.verb):], true
		}
	}
	return 0, "", false
}

// IsMagicDir reports whether path names the bare magic directory (with or
// without a trailing slash), the probe a program uses to test whether a
// sandbox is in effect at all.
func IsMagicDir(path string) bool {
	return path == MagicPrefix || path == MagicPrefix+"/"
}
