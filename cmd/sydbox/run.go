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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"github.com/syndtr/gocapability/capability"

	"github.com/sydbox/sydbox/internal/config"
	"github.com/sydbox/sydbox/internal/netinfo"
	"github.com/sydbox/sydbox/internal/slog"
	"github.com/sydbox/sydbox/pkg/arch"
	"github.com/sydbox/sydbox/pkg/engine"
	"github.com/sydbox/sydbox/pkg/policy"
	"github.com/sydbox/sydbox/pkg/sandbox"
)

// runCommand implements subcommands.Command for "run", sydbox's one
// load-bearing action: spawn argv under ptrace and drive the event loop
// to completion.
type runCommand struct{}

func (*runCommand) Name() string     { return "run" }
func (*runCommand) Synopsis() string { return "run a command under the sandbox" }
func (*runCommand) Usage() string {
	return "run [-- <flags> --] <command> [args...]\n"
}
func (*runCommand) SetFlags(*flag.FlagSet) {}

func (*runCommand) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.Parse(f.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, "sydbox:", err)
		return subcommands.ExitUsageError
	}

	log, logf, err := slog.New(slog.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintln(os.Stderr, "sydbox:", err)
		return subcommands.ExitFailure
	}
	if logf != nil {
		defer logf.Close()
	}

	if lk, err := config.LockLogFile(cfg.LogFile); err != nil {
		fmt.Fprintln(os.Stderr, "sydbox:", err)
		return subcommands.ExitFailure
	} else if lk != nil {
		defer lk.Unlock()
	}

	warnIfMissingPtraceCapability(log)

	if cfg.NetAllowed {
		netinfo.LogInterfaces(log)
	}

	code, err := run(cfg, log)
	if err != nil {
		log.Errorf("sydbox: %v", err)
		return subcommands.ExitFailure
	}
	if code != 0 {
		return subcommands.ExitStatus(1)
	}
	return subcommands.ExitSuccess
}

func run(cfg *config.Config, log *logrus.Logger) (int, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return 0, fmt.Errorf("getwd: %w", err)
	}

	// ptrace is only safe from the thread that performed PTRACE_ATTACH
	// (here, implicitly, the thread that called exec.Cmd.Start with
	// Ptrace: true); lock this goroutine to its OS thread for the
	// lifetime of the sandbox so the runtime never migrates it.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	sp, err := sandbox.Spawn(sandbox.SpawnOptions{
		Argv:   cfg.Argv,
		Dir:    cwd,
		Env:    os.Environ(),
		UsePty: cfg.Pty,
	})
	if err != nil {
		return 0, err
	}
	if sp.Console != nil {
		defer sp.Console.Reset()
	}

	ctx := policy.NewContext(cwd, cfg.WritePrefixes, cfg.PredictPrefixes, cfg.Paranoid, cfg.NetAllowed)
	backend := arch.New()
	eng := engine.New(engine.DefaultTable, backend, log)
	loop := sandbox.NewLoop(sp.Pid, cwd, ctx, eng, backend, log)

	if cfg.AdminSocket != "" {
		adm, err := sandbox.ListenAdmin(cfg.AdminSocket, log)
		if err != nil {
			return 0, err
		}
		defer adm.Close()
		go func() {
			if err := adm.Serve(loop.ApplyPolicyPatch); err != nil {
				log.WithField("channel", "policy").Debugf("admin: listener stopped: %v", err)
			}
		}()
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	return sandbox.RunWithSignals(loop)
}

// warnIfMissingPtraceCapability logs, but does not refuse to start on, a
// missing CAP_SYS_PTRACE: an unprivileged sandbox tracing its own
// same-uid child still works under the Yama ptrace_scope default.
func warnIfMissingPtraceCapability(log *logrus.Logger) {
	caps, err := capability.NewPid2(0)
	if err != nil {
		log.Debugf("sydbox: capability probe: %v", err)
		return
	}
	if err := caps.Load(); err != nil {
		log.Debugf("sydbox: capability load: %v", err)
		return
	}
	if !caps.Get(capability.EFFECTIVE, capability.CAP_SYS_PTRACE) {
		log.Warn("sydbox: CAP_SYS_PTRACE is not in the effective set; tracing may fail against setuid or cross-uid targets")
	}
}
