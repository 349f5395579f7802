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

// Package slog builds the single *logrus.Logger every long-lived
// component (the decision engine, the event loop) is handed as an
// explicit field, per §1.1.
package slog

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Options configures New.
type Options struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// JSON selects the JSON formatter over the default text one.
	JSON bool
	// File, if non-empty, is opened for append and used instead of
	// stderr.
	File string
}

// New builds a logger from opts. The returned *os.File, if non-nil, is
// the opened log file the caller owns and must Close at teardown (§5's
// "the log-file handle is opened at init and closed at teardown" rule).
func New(opts Options) (*logrus.Logger, *os.File, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(levelOrDefault(opts.Level))
	if err != nil {
		return nil, nil, fmt.Errorf("slog: %w", err)
	}
	log.SetLevel(level)

	if opts.JSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var f *os.File
	if opts.File != "" {
		f, err = os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("slog: open log file %s: %w", opts.File, err)
		}
		log.SetOutput(f)
	}

	return log, f, nil
}

func levelOrDefault(level string) string {
	if level == "" {
		return "info"
	}
	return level
}
