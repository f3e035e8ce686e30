// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logutil is the diagnostic channel for LogScope itself. Nothing written
// here ends up in a session file.
package logutil

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	logger = newLogger()

	// loggedKeys tracks which keys have already been logged
	loggedKeys = make(map[string]struct{})
	mutex      sync.Mutex
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	return l
}

// For returns an entry tagged with the component name
func For(component string) *logrus.Entry {
	return logger.WithField("component", component)
}

func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// SetQuiet drops everything below warnings
func SetQuiet(quiet bool) {
	if quiet {
		logger.SetLevel(logrus.WarnLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
}

func SetDebug(debug bool) {
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	}
}

// shouldLog reports whether key has not been seen yet and marks it as seen
func shouldLog(key string) bool {
	mutex.Lock()
	defer mutex.Unlock()
	if _, exists := loggedKeys[key]; exists {
		return false
	}
	loggedKeys[key] = struct{}{}
	return true
}

// WarnfOnce logs a warning with the given key only once per process.
func WarnfOnce(entry *logrus.Entry, key string, format string, args ...any) {
	if !shouldLog(key) {
		return
	}
	entry.Warnf(format, args...)
}
