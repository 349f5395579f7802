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

// Package config is the excluded configuration layer spec.md §1 names:
// flags, an optional TOML file and an optional OCI bundle, folded into
// one Config the rest of the sandbox consumes.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Config is the resolved policy input of §6: "initial write_prefixes,
// initial predict_prefixes, paranoid, net_allowed, a log destination".
type Config struct {
	WritePrefixes   []string
	PredictPrefixes []string
	Paranoid        bool
	NetAllowed      bool
	LogFile         string
	LogLevel        string
	LogJSON         bool
	Pty             bool
	Bundle          string
	ConfigFile      string
	AdminSocket     string
	Argv            []string
}

// fileConfig is the TOML document shape; every field is optional and
// only overrides Config's matching field when present.
type fileConfig struct {
	Paranoid        *bool    `toml:"paranoid"`
	NetAllowed      *bool    `toml:"net_allowed"`
	WritePrefixes   []string `toml:"write_prefixes"`
	PredictPrefixes []string `toml:"predict_prefixes"`
	LogFile         string   `toml:"log_file"`
	LogLevel        string   `toml:"log_level"`
}

// Parse builds a Config from argv (excluding the program name), registers
// and parses the flags, loads an optional TOML file, and folds in an
// optional OCI bundle's read-write mounts.
func Parse(argv []string) (*Config, error) {
	fs := flag.NewFlagSet("sydbox", flag.ContinueOnError)

	var (
		write      = fs.String("write", "", "comma-separated list of allowed write path prefixes")
		predict    = fs.String("predict", "", "comma-separated list of silently-allowed write path prefixes")
		paranoid   = fs.Bool("paranoid", false, "rewrite resolved paths back into the tracee before resuming")
		netAllowed = fs.Bool("net", false, "allow socket-creation syscalls")
		logFile    = fs.String("log", "", "log file path (default: stderr)")
		logLevel   = fs.String("log-level", "info", "debug, info, warn or error")
		logJSON    = fs.Bool("log-json", false, "emit JSON-formatted log lines")
		pty        = fs.Bool("pty", false, "allocate a pty for the traced program")
		bundle     = fs.String("bundle", "", "OCI bundle directory whose config.json read-write mounts seed write_prefixes")
		configFile = fs.String("config", "", "TOML policy file")
		admin      = fs.String("admin", "", "Unix domain socket path to serve the JSON-Patch policy admin surface on")
	)

	if err := fs.Parse(argv); err != nil {
		return nil, err
	}

	cfg := &Config{
		WritePrefixes:   splitNonEmpty(*write),
		PredictPrefixes: splitNonEmpty(*predict),
		Paranoid:        *paranoid,
		NetAllowed:      *netAllowed,
		LogFile:         *logFile,
		LogLevel:        *logLevel,
		LogJSON:         *logJSON,
		Pty:             *pty,
		Bundle:          *bundle,
		ConfigFile:      *configFile,
		AdminSocket:     *admin,
		Argv:            fs.Args(),
	}

	if cfg.ConfigFile != "" {
		if err := cfg.mergeFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}
	if cfg.Bundle != "" {
		prefixes, err := bundleWritePrefixes(cfg.Bundle)
		if err != nil {
			return nil, err
		}
		cfg.WritePrefixes = append(cfg.WritePrefixes, prefixes...)
	}

	if len(cfg.Argv) == 0 {
		return nil, fmt.Errorf("config: no command given to sandbox")
	}
	return cfg, nil
}

// mergeFile parses a TOML policy file and folds its fields into c.
// paranoid, net_allowed and log_level, when present in the file, replace
// the flag values whether or not the flag was given on the command line;
// log_file applies only when -log was not given; the prefix lists are
// appended to the ones from the flags.
func (c *Config) mergeFile(path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if fc.Paranoid != nil {
		c.Paranoid = *fc.Paranoid
	}
	if fc.NetAllowed != nil {
		c.NetAllowed = *fc.NetAllowed
	}
	c.WritePrefixes = append(c.WritePrefixes, fc.WritePrefixes...)
	c.PredictPrefixes = append(c.PredictPrefixes, fc.PredictPrefixes...)
	if fc.LogFile != "" && c.LogFile == "" {
		c.LogFile = fc.LogFile
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	return nil
}

// bundleWritePrefixes reads an OCI bundle's config.json and returns the
// destination of every mount whose options do not include "ro" -- the
// set of paths a container runtime would itself consider writable.
func bundleWritePrefixes(bundleDir string) ([]string, error) {
	path := bundleDir + "/config.json"
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read bundle %s: %w", path, err)
	}
	var spec specs.Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("config: parse bundle %s: %w", path, err)
	}

	var prefixes []string
	if spec.Root != nil && !spec.Root.Readonly {
		prefixes = append(prefixes, spec.Root.Path)
	}
	for _, m := range spec.Mounts {
		if mountIsReadOnly(m.Options) {
			continue
		}
		prefixes = append(prefixes, m.Destination)
	}
	return prefixes, nil
}

func mountIsReadOnly(options []string) bool {
	for _, o := range options {
		if o == "ro" {
			return true
		}
	}
	return false
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
