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
	"os"
	"path/filepath"
	"testing"
)

func TestParseFlagsAndArgv(t *testing.T) {
	cfg, err := Parse([]string{"-write", "/tmp,/var/log", "-net", "--", "echo", "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.WritePrefixes) != 2 || cfg.WritePrefixes[0] != "/tmp" || cfg.WritePrefixes[1] != "/var/log" {
		t.Fatalf("unexpected write prefixes: %v", cfg.WritePrefixes)
	}
	if !cfg.NetAllowed {
		t.Fatal("expected net_allowed to be true")
	}
	if len(cfg.Argv) != 2 || cfg.Argv[0] != "echo" {
		t.Fatalf("unexpected argv: %v", cfg.Argv)
	}
}

func TestParseRequiresArgv(t *testing.T) {
	if _, err := Parse([]string{"-net"}); err == nil {
		t.Fatal("expected an error when no command is given")
	}
}

func TestMergeFileFoldsInPrefixesAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sydbox.toml")
	doc := "paranoid = true\nwrite_prefixes = [\"/opt\"]\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Parse([]string{"-config", path, "--", "true"})
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Paranoid {
		t.Fatal("expected paranoid=true from the TOML file")
	}
	if len(cfg.WritePrefixes) != 1 || cfg.WritePrefixes[0] != "/opt" {
		t.Fatalf("unexpected write prefixes: %v", cfg.WritePrefixes)
	}
}

func TestBundleWritePrefixesSkipsReadOnlyMounts(t *testing.T) {
	dir := t.TempDir()
	bundle := filepath.Join(dir, "config.json")
	doc := `{
		"root": {"path": "rootfs", "readonly": false},
		"mounts": [
			{"destination": "/data", "type": "bind", "source": "/host/data", "options": ["rbind"]},
			{"destination": "/etc/resolv.conf", "type": "bind", "source": "/etc/resolv.conf", "options": ["ro", "rbind"]}
		]
	}`
	if err := os.WriteFile(bundle, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	prefixes, err := bundleWritePrefixes(dir)
	if err != nil {
		t.Fatal(err)
	}
	found := map[string]bool{}
	for _, p := range prefixes {
		found[p] = true
	}
	if !found["/data"] {
		t.Fatal("expected /data (read-write mount) to be included")
	}
	if found["/etc/resolv.conf"] {
		t.Fatal("expected the read-only mount to be excluded")
	}
	if !found["rootfs"] {
		t.Fatal("expected the writable root path to be included")
	}
}
