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

package slog

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewDefaultsToInfo(t *testing.T) {
	log, f, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if f != nil {
		t.Fatal("expected no file handle when File is empty")
	}
	if log.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level, got %v", log.GetLevel())
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, _, err := New(Options{Level: "not-a-level"}); err == nil {
		t.Fatal("expected an error for an invalid level")
	}
}

func TestNewOpensLogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sydbox.log")
	log, f, err := New(Options{File: path, Level: "debug"})
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if log.GetLevel() != logrus.DebugLevel {
		t.Fatal("expected debug level")
	}
	log.Info("hello")
	if err := f.Sync(); err != nil {
		t.Fatal(err)
	}
}
