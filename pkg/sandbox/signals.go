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
	"context"
	"os"
	"os/signal"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// RunWithSignals runs l.Run on the calling goroutine -- which must be the
// OS-thread-locked goroutine that spawned the tracee, since ptrace
// requests are only accepted from the tracing thread -- and, on a second
// goroutine, detaches every live tracee (best effort, per §5's
// cancellation rule) the moment a SIGINT/SIGTERM reaches the sandbox
// itself. When Run returns, the context the signal goroutine is watching
// is cancelled so that goroutine exits too.
func RunWithSignals(l *Loop) (int, error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-sigCh:
			l.detachAll()
			return nil
		case <-gctx.Done():
			return nil
		}
	})

	exitCode, err := l.Run()
	cancel()
	if werr := g.Wait(); err == nil {
		err = werr
	}
	return exitCode, err
}

// detachAll best-effort detaches every still-live tracee so none is left
// ptrace-stopped forever after the sandbox itself is asked to exit.
func (l *Loop) detachAll() {
	for _, pid := range l.Table.Pids() {
		_ = unix.PtraceDetach(pid)
	}
}
