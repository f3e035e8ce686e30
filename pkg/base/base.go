// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package base

import "path/filepath"

// Output root. Sessions live under <DocumentsDir>/<LogScopeDirName>/<processid>/.
const DocumentsDir = "~/Documents"
const LogScopeDirName = "LogScope"

// Session file naming
const SessionFilePrefix = "Log_"
const SessionFileExt = ".txt"
const SessionFileTimeFormat = "2006-01-02_15-04-05"
const SessionLockFileName = ".session.lock"

// Line timestamp, HH:mm:ss.SSS
const LineTimeFormat = "15:04:05.000"
const LineTimeSeparator = " : "
const StacktraceHeader = "\nStacktrace:\n"

// Used when the host engine cannot tell us who we are
const UnknownProcessName = "Unknown_Virtual_Process"

const DefaultQueueCapacity = 50000
const DefaultFlushEvery = 100
const DefaultWriteBufferSize = 8 * 1024

// Environment variables
const ConfigJsonEnvName = "LOGSCOPE_CONFIG_JSON"
const ConfigFileEnvName = "LOGSCOPE_CONFIG"
const RootDirEnvName = "LOGSCOPE_ROOT"

const LogScopeVersion = "v0.2.0"

// DefaultRootDir returns the unexpanded default root directory
func DefaultRootDir() string {
	return filepath.Join(DocumentsDir, LogScopeDirName)
}

// SessionMarker is the synthetic first line of every session file
func SessionMarker(processId string) string {
	return "--- Session Started: " + processId + " ---"
}
