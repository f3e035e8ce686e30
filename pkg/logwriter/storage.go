// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package logwriter

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/outrigdev/logscope/pkg/base"
)

var ErrStorageClosed = errors.New("session storage is closed")

// Storage is where the writer puts lines. Only the writer goroutine calls it.
type Storage interface {
	WriteLine(line string) error
	// Flush pushes buffered lines to stable storage
	Flush() error
	Close() error
}

// FileStorage is an append-only session file behind a write buffer
type FileStorage struct {
	path   string
	file   *os.File
	bw     *bufio.Writer
	closed bool
}

// OpenFileStorage opens (or creates) path for appending.
// bufSize <= 0 uses base.DefaultWriteBufferSize.
func OpenFileStorage(path string, bufSize int) (*FileStorage, error) {
	if bufSize <= 0 {
		bufSize = base.DefaultWriteBufferSize
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return &FileStorage{
		path: path,
		file: file,
		bw:   bufio.NewWriterSize(file, bufSize),
	}, nil
}

func (fs *FileStorage) Path() string {
	return fs.path
}

func (fs *FileStorage) WriteLine(line string) error {
	if fs.closed {
		return ErrStorageClosed
	}
	if _, err := fs.bw.WriteString(line); err != nil {
		return err
	}
	return fs.bw.WriteByte('\n')
}

func (fs *FileStorage) Flush() error {
	if fs.closed {
		return ErrStorageClosed
	}
	if err := fs.bw.Flush(); err != nil {
		return err
	}
	return syncFile(fs.file)
}

func (fs *FileStorage) Close() error {
	if fs.closed {
		return nil
	}
	flushErr := fs.bw.Flush()
	fs.closed = true
	closeErr := fs.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
