// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package logwriter

import "os"

func syncFile(f *os.File) error {
	return f.Sync()
}
