// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logging configures the loggers used across the engine.
// Protocol output (info/bestmove lines) never goes through here; this
// is for diagnostics only and writes to stderr so it cannot corrupt
// the USI stream.
package logging

import (
	"os"
	"sync"

	"github.com/op/go-logging"
)

var (
	once sync.Once

	format = logging.MustStringFormatter(
		`%{time:15:04:05.000} %{shortpkg:-8s} %{level:-7s}  %{message}`)
)

func setup() {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatted := logging.NewBackendFormatter(backend, format)
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(logging.WARNING, "")
	logging.SetBackend(leveled)
}

// GetLog returns a logger for the given module.
func GetLog(module string) *logging.Logger {
	once.Do(setup)
	return logging.MustGetLogger(module)
}

// SetLevel changes the log level for all modules.
func SetLevel(level logging.Level) {
	once.Do(setup)
	logging.SetLevel(level, "")
}
