// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package logwriter

import (
	"os"

	"golang.org/x/sys/unix"
)

// data only, file metadata (mtime) does not need to hit the disk on every batch
func syncFile(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
