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
	"bufio"
	"fmt"
	"net"
	"os"

	"github.com/sirupsen/logrus"
)

// AdminListener serves the policy admin surface over a Unix domain
// socket: each line a connection sends is an RFC 6902 JSON Patch document,
// applied via Loop.ApplyPolicyPatch to every currently live tracee, with
// "ok" or "error: ..." written back as the one-line reply.
type AdminListener struct {
	ln  net.Listener
	log *logrus.Logger
}

// ListenAdmin removes any stale socket left over at path by a prior run
// and starts listening on it.
func ListenAdmin(path string, log *logrus.Logger) (*AdminListener, error) {
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("sandbox: admin listen %s: %w", path, err)
	}
	return &AdminListener{ln: ln, log: log}, nil
}

// Serve accepts connections until the listener is closed, handing each
// line received to apply. It always returns a non-nil error; a Close from
// another goroutine surfaces here as net.ErrClosed, which the caller
// should treat as a clean shutdown rather than a failure.
func (a *AdminListener) Serve(apply func([]byte) error) error {
	for {
		conn, err := a.ln.Accept()
		if err != nil {
			return err
		}
		go a.handle(conn, apply)
	}
}

func (a *AdminListener) handle(conn net.Conn, apply func([]byte) error) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := apply(line); err != nil {
			a.log.WithField("channel", "policy").Warnf("admin: patch rejected: %v", err)
			fmt.Fprintf(conn, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(conn, "ok")
	}
}

// Close stops accepting new connections; connections already being
// handled run to completion.
func (a *AdminListener) Close() error {
	return a.ln.Close()
}
