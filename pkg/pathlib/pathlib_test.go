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

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCanonicalizeEmptyName(t *testing.T) {
	if _, err := Canonicalize("", Existing, true, "/"); err == nil {
		t.Fatal("expected an error for an empty name")
	} else if errno, ok := AsErrno(err); !ok || errno != ENOENT {
		t.Fatalf("expected ENOENT, got %v", err)
	}
}

func TestCanonicalizeDotDotAtRoot(t *testing.T) {
	got, err := Canonicalize("/../../etc", Missing, true, "/")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/etc" {
		t.Fatalf("got %q, want /etc", got)
	}
}

func TestCanonicalizeRelativeToCwd(t *testing.T) {
	got, err := Canonicalize("foo/bar", Missing, true, "/tmp")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/foo/bar" {
		t.Fatalf("got %q, want /tmp/foo/bar", got)
	}
}

func TestCanonicalizeMissingModeTolerant(t *testing.T) {
	dir := t.TempDir()
	got, err := Canonicalize(filepath.Join(dir, "a/b/c"), Missing, true, "/")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "a/b/c")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCanonicalizeExistingModeFailsOnMissing(t *testing.T) {
	dir := t.TempDir()
	if _, err := Canonicalize(filepath.Join(dir, "nope"), Existing, true, "/"); err == nil {
		t.Fatal("expected an error for a missing path in Existing mode")
	}
}

func TestCanonicalizeAllButLastTolerantOnlyForFinalComponent(t *testing.T) {
	dir := t.TempDir()
	if _, err := Canonicalize(filepath.Join(dir, "newfile"), AllButLast, true, "/"); err != nil {
		t.Fatalf("final missing component should be tolerated: %v", err)
	}
	if _, err := Canonicalize(filepath.Join(dir, "missing-dir", "newfile"), AllButLast, true, "/"); err == nil {
		t.Fatal("expected an error when a non-final component is missing")
	}
}

func TestCanonicalizeSymlinkResolution(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real")
	if err := os.Mkdir(real, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Fatal(err)
	}

	got, err := Canonicalize(link, Existing, true, "/")
	if err != nil {
		t.Fatal(err)
	}
	if got != real {
		t.Fatalf("got %q, want %q", got, real)
	}

	got, err = Canonicalize(link, Existing, false, "/")
	if err != nil {
		t.Fatal(err)
	}
	if got != link {
		t.Fatalf("with resolveSymlinks=false got %q, want %q", got, link)
	}
}

func TestCanonicalizeSymlinkLoop(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	if err := os.Symlink(b, a); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(a, b); err != nil {
		t.Fatal(err)
	}

	_, err := Canonicalize(a, Existing, true, "/")
	if err == nil {
		t.Fatal("expected ELOOP for a symlink cycle")
	}
	if errno, ok := AsErrno(err); !ok || errno != ELOOP {
		t.Fatalf("expected ELOOP, got %v", err)
	}
}

func TestCanonicalizeTrailingSlashOnFileFails(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "file")
	if err := os.WriteFile(f, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Canonicalize(f+"/", Existing, true, "/")
	if err == nil {
		t.Fatal("expected ENOTDIR for a trailing slash on a non-directory")
	}
	if errno, ok := AsErrno(err); !ok || errno != ENOTDIR {
		t.Fatalf("expected ENOTDIR, got %v", err)
	}
}

func TestPrefixListCheck(t *testing.T) {
	list := []string{"/tmp", "/var/log"}
	cases := []struct {
		path string
		want bool
	}{
		{"/tmp", true},
		{"/tmp/x", true},
		{"/tmpfoo", false},
		{"/var/log/foo", true},
		{"/etc/passwd", false},
	}
	for _, c := range cases {
		if got := PrefixListCheck(list, c.path); got != c.want {
			t.Errorf("PrefixListCheck(%v, %q) = %v, want %v", list, c.path, got, c.want)
		}
	}
}

func TestPrefixListCheckRoot(t *testing.T) {
	if !PrefixListCheck([]string{"/"}, "/anything") {
		t.Fatal("root prefix should match everything")
	}
}

func TestParseMagic(t *testing.T) {
	cases := []struct {
		path    string
		wantCmd MagicCommand
		wantArg string
		wantOK  bool
	}{
		{"/dev/sydbox/write/tmp/", MagicAddWrite, "/tmp/", true},
		{"/dev/sydbox/predict/var/log", MagicAddPredict, "/var/log", true},
		{"/dev/sydbox/rmwrite/tmp", MagicRemoveWrite, "/tmp", true},
		{"/dev/sydbox/rmpredict/tmp", MagicRemovePredict, "/tmp", true},
		{"/dev/sydbox/", 0, "", false},
		{"/etc/passwd", 0, "", false},
	}
	for _, c := range cases {
		cmd, arg, ok := ParseMagic(c.path)
		if ok != c.wantOK || (ok && (cmd != c.wantCmd || arg != c.wantArg)) {
			t.Errorf("ParseMagic(%q) = (%v, %q, %v), want (%v, %q, %v)", c.path, cmd, arg, ok, c.wantCmd, c.wantArg, c.wantOK)
		}
	}
}

func TestIsMagicDir(t *testing.T) {
	if !IsMagicDir("/dev/sydbox") || !IsMagicDir("/dev/sydbox/") {
		t.Fatal("expected both bare forms to be recognized as the magic dir")
	}
	if IsMagicDir("/dev/sydbox/write/tmp") {
		t.Fatal("a magic command path must not also be the magic dir")
	}
}
