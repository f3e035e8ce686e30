// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session owns one logging run: the output file, the pipeline feeding it
// and the writer draining it.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	filemutex "github.com/alexflint/go-filemutex"
	"github.com/google/uuid"
	"github.com/outrigdev/logscope/pkg/base"
	"github.com/outrigdev/logscope/pkg/config"
	"github.com/outrigdev/logscope/pkg/ds"
	"github.com/outrigdev/logscope/pkg/logutil"
	"github.com/outrigdev/logscope/pkg/logwriter"
	"github.com/outrigdev/logscope/pkg/metrics"
	"github.com/outrigdev/logscope/pkg/panichandler"
	"github.com/outrigdev/logscope/pkg/pipeline"
	"github.com/outrigdev/logscope/pkg/utilfn"
	"github.com/sirupsen/logrus"
)

// ErrSessionClosed is returned by Init once Shutdown has run. A Manager is single use.
var ErrSessionClosed = errors.New("session manager already shut down")

type StorageFactory func(path string, bufSize int) (logwriter.Storage, error)

func fileStorageFactory(path string, bufSize int) (logwriter.Storage, error) {
	return logwriter.OpenFileStorage(path, bufSize)
}

type Option func(*Manager)

// WithStorageFactory replaces the file storage (tests use a flush counting stub)
func WithStorageFactory(fn StorageFactory) Option {
	return func(m *Manager) {
		m.storageFactory = fn
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func WithMetrics(sm *metrics.SessionMetrics) Option {
	return func(m *Manager) {
		m.metrics = sm
	}
}

// WithLineObserver is called on the writer goroutine for every persisted line
func WithLineObserver(fn func(line string)) Option {
	return func(m *Manager) {
		m.onWritten = fn
	}
}

type Manager struct {
	lock     sync.Mutex // serializes Init and Shutdown
	cfg      config.Config
	log      *logrus.Entry
	active   atomic.Bool
	shutdown bool

	// set once by Init, read lock-free by Write
	pipeline atomic.Pointer[pipeline.Pipeline]

	session     ds.Session
	writer      *logwriter.LogWriter
	sessionLock *filemutex.FileMutex

	storageFactory StorageFactory
	now            func() time.Time
	metrics        *metrics.SessionMetrics
	onWritten      func(line string)
}

func MakeManager(cfg config.Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:            cfg.WithDefaults(),
		log:            logutil.For("session"),
		storageFactory: fileStorageFactory,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init starts the session for processId. While a session is active further calls
// are no-ops. Directory or file creation failures abort Init and leave the manager
// inactive, so Write stays a no-op.
func (m *Manager) Init(processId string) (rtnErr error) {
	defer func() {
		if err := panichandler.PanicHandler("session.Init", recover()); err != nil {
			rtnErr = err
		}
	}()
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.shutdown {
		return ErrSessionClosed
	}
	if m.active.Load() {
		return nil
	}

	// the identifier comes from the host engine and becomes a directory name
	processId = utilfn.SafePathElem(processId, base.UnknownProcessName)
	rootDir := m.cfg.ResolvedRootDir()
	appDir := filepath.Join(rootDir, processId)
	if err := os.MkdirAll(appDir, 0755); err != nil {
		m.log.Errorf("critical error: failed to create directories at %s: %v", appDir, err)
		return fmt.Errorf("cannot create session directory: %w", err)
	}

	startedAt := m.now()
	filePath := filepath.Join(appDir, SessionFileName(startedAt))
	storage, err := m.storageFactory(filePath, m.cfg.BufferSize)
	if err != nil {
		m.log.Errorf("error creating log file %s: %v", filePath, err)
		return fmt.Errorf("cannot open session file: %w", err)
	}
	m.sessionLock = m.acquireSessionLock(appDir)

	p := pipeline.MakePipeline(m.cfg.Capacity)
	m.writer = logwriter.MakeLogWriter(p, storage, logwriter.Options{
		FlushEvery: m.cfg.FlushEvery,
		OnWritten:  m.onWritten,
		Metrics:    m.metrics,
	})
	m.session = ds.Session{
		Id:        uuid.New().String(),
		ProcessId: processId,
		RootDir:   rootDir,
		FilePath:  filePath,
		StartedAt: startedAt,
	}
	m.pipeline.Store(p)
	m.active.Store(true)
	m.writer.Start()
	m.metrics.ObserveSessionStart()

	m.Write(base.SessionMarker(processId))
	m.log.WithField("sessionid", m.session.Id).Infof("session initialized at %s", filePath)
	return nil
}

// the lock lets other tools see the session is live. Failing to get it is not fatal.
func (m *Manager) acquireSessionLock(appDir string) *filemutex.FileMutex {
	lockPath := filepath.Join(appDir, base.SessionLockFileName)
	fm, err := filemutex.New(lockPath)
	if err != nil {
		m.log.Warnf("cannot create session lock %s: %v", lockPath, err)
		return nil
	}
	if err := fm.TryLock(); err != nil {
		logutil.WarnfOnce(m.log, "sessionlock:"+lockPath, "session lock %s not acquired (another live session?): %v", lockPath, err)
		fm.Close()
		return nil
	}
	return fm
}

// Write formats message with the current time and queues it. It never blocks.
// Returns false if there is no active session or the line was dropped.
func (m *Manager) Write(message string) bool {
	return m.WriteAt(m.now(), message)
}

// WriteAt is Write with the capture time supplied by the caller
func (m *Manager) WriteAt(ts time.Time, message string) (accepted bool) {
	defer func() {
		if panichandler.PanicHandler("session.Write", recover()) != nil {
			accepted = false
		}
	}()
	if !m.active.Load() {
		return false
	}
	p := m.pipeline.Load()
	if p == nil {
		return false
	}
	switch p.Offer(FormatLine(ts, message)) {
	case pipeline.OfferAccepted:
		m.metrics.ObserveEnqueue(true)
		return true
	case pipeline.OfferDropped:
		m.metrics.ObserveEnqueue(false)
	}
	return false
}

// Shutdown stops accepting lines, drains everything already accepted, flushes and
// closes the file. When it returns the data is on disk. Later calls are no-ops.
func (m *Manager) Shutdown() {
	defer func() {
		panichandler.PanicHandler("session.Shutdown", recover())
	}()
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.shutdown {
		return
	}
	m.shutdown = true
	wasActive := m.active.Swap(false)
	if m.writer != nil {
		m.writer.Stop()
	}
	if m.sessionLock != nil {
		m.sessionLock.Close()
		m.sessionLock = nil
	}
	if wasActive {
		stats := m.stats_nolock()
		m.log.WithField("sessionid", m.session.Id).Infof("session closed, %d lines written, %d dropped, %d write errors",
			stats.Written, stats.Dropped, stats.WriteErrors)
	}
}

func (m *Manager) IsActive() bool {
	return m.active.Load()
}

// Session returns the session info, false if Init never succeeded
func (m *Manager) Session() (ds.Session, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.session, m.session.Id != ""
}

func (m *Manager) Stats() ds.SessionStats {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.stats_nolock()
}

func (m *Manager) stats_nolock() ds.SessionStats {
	var stats ds.SessionStats
	if p := m.pipeline.Load(); p != nil {
		stats.Enqueued = p.Enqueued()
		stats.Dropped = p.Dropped()
		stats.QueueSize = p.Size()
	}
	if m.writer != nil {
		stats.Written = m.writer.Written()
		stats.Flushes = m.writer.Flushes()
		stats.WriteErrors = m.writer.WriteErrors()
	}
	return stats
}

// FormatLine prefixes message with the HH:mm:ss.SSS capture time
func FormatLine(ts time.Time, message string) string {
	return ts.Format(base.LineTimeFormat) + base.LineTimeSeparator + message
}

// SessionFileName is Log_<YYYY-MM-DD_HH-mm-ss>.txt
func SessionFileName(ts time.Time) string {
	return base.SessionFilePrefix + ts.Format(base.SessionFileTimeFormat) + base.SessionFileExt
}
