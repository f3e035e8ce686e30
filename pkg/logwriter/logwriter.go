// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package logwriter

import (
	"sync"
	"sync/atomic"

	"github.com/outrigdev/logscope/pkg/base"
	"github.com/outrigdev/logscope/pkg/logutil"
	"github.com/outrigdev/logscope/pkg/metrics"
	"github.com/outrigdev/logscope/pkg/panichandler"
	"github.com/outrigdev/logscope/pkg/pipeline"
	"github.com/sirupsen/logrus"
)

// write errors are reported for the first failure and then every ErrorReportEvery failures
const ErrorReportEvery = 1000

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type Options struct {
	// FlushEvery flushes storage after this many persisted lines (default 100)
	FlushEvery int
	// OnWritten is called on the writer goroutine after each successful line write.
	// It must not block.
	OnWritten func(line string)
	Metrics   *metrics.SessionMetrics
}

// LogWriter is the single consumer of a pipeline. It owns the storage for its whole life.
type LogWriter struct {
	pipeline *pipeline.Pipeline
	storage  Storage
	opts     Options
	log      *logrus.Entry

	state     atomic.Int32
	running   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}

	written     atomic.Int64
	flushes     atomic.Int64
	writeErrors atomic.Int64
}

// MakeLogWriter creates an idle writer. Call Start to begin draining.
func MakeLogWriter(p *pipeline.Pipeline, storage Storage, opts Options) *LogWriter {
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = base.DefaultFlushEvery
	}
	return &LogWriter{
		pipeline: p,
		storage:  storage,
		opts:     opts,
		log:      logutil.For("logwriter"),
		done:     make(chan struct{}),
	}
}

func (w *LogWriter) State() State {
	return State(w.state.Load())
}

// Start moves Idle -> Running and launches the writer goroutine. No-op otherwise.
func (w *LogWriter) Start() {
	w.startOnce.Do(func() {
		if !w.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
			return
		}
		w.running.Store(true)
		go w.run()
	})
}

// Stop closes the pipeline, waits for every accepted line to be written, then
// flushes and closes the storage. Safe to call more than once; only the first call
// does the work, later calls just wait for it.
func (w *LogWriter) Stop() {
	w.stopOnce.Do(func() {
		// close first so nothing can be accepted once the loop sees running == false
		w.pipeline.Close()
		w.running.Store(false)
		if w.state.CompareAndSwap(int32(StateIdle), int32(StateClosed)) {
			w.finish()
			close(w.done)
			return
		}
		w.state.CompareAndSwap(int32(StateRunning), int32(StateDraining))
	})
	<-w.done
}

// Done is closed once the writer reaches StateClosed
func (w *LogWriter) Done() <-chan struct{} {
	return w.done
}

func (w *LogWriter) run() {
	defer close(w.done)
	defer func() {
		panichandler.PanicHandler("logwriter.run", recover())
		w.finish()
		w.state.Store(int32(StateClosed))
	}()

	var count int
	for w.running.Load() || !w.pipeline.IsEmpty() {
		line, ok := w.pipeline.Dequeue()
		if !ok {
			// closed and drained
			break
		}
		if !w.writeLine(line) {
			continue
		}
		count++
		if count%w.opts.FlushEvery == 0 {
			w.flush()
		}
	}
}

// writeLine returns false if the line could not be persisted
func (w *LogWriter) writeLine(line string) bool {
	err := w.storage.WriteLine(line)
	w.opts.Metrics.ObserveWrite(err)
	if err != nil {
		n := w.writeErrors.Add(1)
		if n == 1 || n%ErrorReportEvery == 0 {
			w.log.Errorf("disk write failed (%d failures): %v", n, err)
		}
		return false
	}
	w.written.Add(1)
	if w.opts.OnWritten != nil {
		w.notify(line)
	}
	return true
}

func (w *LogWriter) notify(line string) {
	defer func() {
		panichandler.PanicHandler("logwriter.OnWritten", recover())
	}()
	w.opts.OnWritten(line)
}

func (w *LogWriter) flush() {
	err := w.storage.Flush()
	w.opts.Metrics.ObserveFlush(err)
	w.opts.Metrics.SetQueueDepth(w.pipeline.Size())
	if err != nil {
		w.writeErrors.Add(1)
		w.log.Errorf("flush failed: %v", err)
		return
	}
	w.flushes.Add(1)
}

// finish does the final flush and releases the storage
func (w *LogWriter) finish() {
	w.flush()
	if err := w.storage.Close(); err != nil {
		w.log.Errorf("error closing session storage: %v", err)
	}
}

func (w *LogWriter) Written() int64 {
	return w.written.Load()
}

func (w *LogWriter) Flushes() int64 {
	return w.flushes.Load()
}

func (w *LogWriter) WriteErrors() int64 {
	return w.writeErrors.Load()
}
