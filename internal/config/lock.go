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

package config

import (
	"fmt"

	"github.com/gofrs/flock"
)

// LockLogFile takes an exclusive, non-blocking lock on path+".lock" so
// two sandbox invocations sharing a log destination cannot interleave
// writes to it. The caller must Unlock the returned handle at teardown.
func LockLogFile(path string) (*flock.Flock, error) {
	if path == "" {
		return nil, nil
	}
	lk := flock.New(path + ".lock")
	ok, err := lk.TryLock()
	if err != nil {
		return nil, fmt.Errorf("config: lock %s: %w", lk.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("config: %s is already locked by another sydbox instance", lk.Path())
	}
	return lk, nil
}
