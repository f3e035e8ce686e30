// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package sessionfiles reads what capture sessions left on disk: the per-process
// directories under the root and the Log_*.txt files inside them.
package sessionfiles

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alexflint/go-filemutex"
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/outrigdev/logscope/pkg/base"
)

var ErrNoSessions = errors.New("no session files found")

type SessionFile struct {
	ProcessId string    `json:"processid"`
	Path      string    `json:"path"`
	StartedAt time.Time `json:"startedat"`
	Size      int64     `json:"size"`
}

// ParseSessionFileName returns the start time encoded in a Log_<ts>.txt name
func ParseSessionFileName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, base.SessionFilePrefix) || !strings.HasSuffix(name, base.SessionFileExt) {
		return time.Time{}, false
	}
	tsStr := strings.TrimSuffix(strings.TrimPrefix(name, base.SessionFilePrefix), base.SessionFileExt)
	ts, err := time.ParseInLocation(base.SessionFileTimeFormat, tsStr, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// ListProcesses returns the process directory names under rootDir
func ListProcesses(rootDir string) ([]string, error) {
	entries, err := os.ReadDir(rootDir)
	if err != nil {
		return nil, err
	}
	var rtn []string
	for _, entry := range entries {
		if entry.IsDir() {
			rtn = append(rtn, entry.Name())
		}
	}
	return rtn, nil
}

// ListSessions returns session files ordered oldest first. An empty processId
// lists every process under rootDir.
func ListSessions(rootDir string, processId string) ([]SessionFile, error) {
	processes := []string{processId}
	if processId == "" {
		var err error
		processes, err = ListProcesses(rootDir)
		if err != nil {
			return nil, err
		}
	}
	// ties on the second-resolution timestamp are broken by path
	ordered := treemap.NewWith(utils.StringComparator)
	for _, proc := range processes {
		procDir := filepath.Join(rootDir, proc)
		entries, err := os.ReadDir(procDir)
		if err != nil {
			if processId == "" && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			startedAt, ok := ParseSessionFileName(entry.Name())
			if !ok {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			sf := SessionFile{
				ProcessId: proc,
				Path:      filepath.Join(procDir, entry.Name()),
				StartedAt: startedAt,
				Size:      info.Size(),
			}
			ordered.Put(startedAt.Format(base.SessionFileTimeFormat)+"\x00"+sf.Path, sf)
		}
	}
	rtn := make([]SessionFile, 0, ordered.Size())
	for _, val := range ordered.Values() {
		rtn = append(rtn, val.(SessionFile))
	}
	return rtn, nil
}

// LatestSession returns the most recently started session file
func LatestSession(rootDir string, processId string) (SessionFile, error) {
	sessions, err := ListSessions(rootDir, processId)
	if err != nil {
		return SessionFile{}, err
	}
	if len(sessions) == 0 {
		if processId == "" {
			return SessionFile{}, ErrNoSessions
		}
		return SessionFile{}, fmt.Errorf("%w for process %q", ErrNoSessions, processId)
	}
	return sessions[len(sessions)-1], nil
}

// IsLive reports whether a capture currently holds the process directory's session lock
func IsLive(rootDir string, processId string) bool {
	lockPath := filepath.Join(rootDir, processId, base.SessionLockFileName)
	if _, err := os.Stat(lockPath); err != nil {
		return false
	}
	fm, err := filemutex.New(lockPath)
	if err != nil {
		return false
	}
	defer fm.Close()
	if err := fm.TryLock(); err != nil {
		return true
	}
	fm.Unlock()
	return false
}
