// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package logwriter

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/outrigdev/logscope/pkg/logutil"
	"github.com/outrigdev/logscope/pkg/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logutil.SetOutput(io.Discard)
}

// countingStorage records lines and counts flushes and closes
type countingStorage struct {
	lock       sync.Mutex
	lines      []string
	flushes    int
	closes     int
	flushedAt  []int // number of lines written at each flush
	failLineFn func(line string) bool
}

func (cs *countingStorage) WriteLine(line string) error {
	cs.lock.Lock()
	defer cs.lock.Unlock()
	if cs.failLineFn != nil && cs.failLineFn(line) {
		return errors.New("simulated write failure")
	}
	cs.lines = append(cs.lines, line)
	return nil
}

func (cs *countingStorage) Flush() error {
	cs.lock.Lock()
	defer cs.lock.Unlock()
	cs.flushes++
	cs.flushedAt = append(cs.flushedAt, len(cs.lines))
	return nil
}

func (cs *countingStorage) Close() error {
	cs.lock.Lock()
	defer cs.lock.Unlock()
	cs.closes++
	return nil
}

func (cs *countingStorage) snapshot() ([]string, int, int, []int) {
	cs.lock.Lock()
	defer cs.lock.Unlock()
	return append([]string(nil), cs.lines...), cs.flushes, cs.closes, append([]int(nil), cs.flushedAt...)
}

func TestWriterStateMachine(t *testing.T) {
	p := pipeline.MakePipeline(10)
	store := &countingStorage{}
	w := MakeLogWriter(p, store, Options{})
	assert.Equal(t, StateIdle, w.State())

	w.Start()
	assert.Equal(t, StateRunning, w.State())
	w.Start()
	assert.Equal(t, StateRunning, w.State())

	w.Stop()
	assert.Equal(t, StateClosed, w.State())
	select {
	case <-w.Done():
	default:
		t.Fatal("done channel should be closed after Stop")
	}
}

func TestWriterBatchFlushes(t *testing.T) {
	p := pipeline.MakePipeline(1000)
	store := &countingStorage{}
	w := MakeLogWriter(p, store, Options{FlushEvery: 100})
	w.Start()

	for i := 0; i < 250; i++ {
		require.True(t, p.Enqueue(fmt.Sprintf("line %d", i)))
	}
	w.Stop()

	lines, flushes, closes, flushedAt := store.snapshot()
	assert.Len(t, lines, 250)
	assert.Equal(t, 1, closes)
	assert.GreaterOrEqual(t, flushes, 3, "two intermediate flushes plus the final one")
	assert.Contains(t, flushedAt, 100)
	assert.Contains(t, flushedAt, 200)
	assert.Equal(t, 250, flushedAt[len(flushedAt)-1], "final flush happens after the last line")
	assert.Equal(t, int64(250), w.Written())
}

func TestWriterRepeatedStopFlushesOnce(t *testing.T) {
	p := pipeline.MakePipeline(10)
	store := &countingStorage{}
	w := MakeLogWriter(p, store, Options{})
	w.Start()
	require.True(t, p.Enqueue("a"))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Stop()
		}()
	}
	wg.Wait()
	w.Stop()

	_, flushes, closes, _ := store.snapshot()
	assert.Equal(t, 1, flushes)
	assert.Equal(t, 1, closes)
}

func TestWriterStopDrainsEverything(t *testing.T) {
	p := pipeline.MakePipeline(5000)
	store := &countingStorage{}
	w := MakeLogWriter(p, store, Options{})

	// fill before starting so the writer has a backlog when stop arrives
	for i := 0; i < 5000; i++ {
		require.True(t, p.Enqueue(fmt.Sprintf("%d", i)))
	}
	assert.False(t, p.Enqueue("rejected"))
	w.Start()
	w.Stop()

	lines, _, _, _ := store.snapshot()
	require.Len(t, lines, 5000)
	for i, line := range lines {
		assert.Equal(t, fmt.Sprintf("%d", i), line)
	}
	assert.NotContains(t, lines, "rejected")
}

func TestWriterStopWithoutStart(t *testing.T) {
	p := pipeline.MakePipeline(10)
	store := &countingStorage{}
	w := MakeLogWriter(p, store, Options{})
	w.Stop()
	w.Start()

	assert.Equal(t, StateClosed, w.State())
	_, flushes, closes, _ := store.snapshot()
	assert.Equal(t, 1, flushes)
	assert.Equal(t, 1, closes)
}

func TestWriterContinuesAfterWriteError(t *testing.T) {
	p := pipeline.MakePipeline(10)
	store := &countingStorage{failLineFn: func(line string) bool { return line == "bad" }}
	w := MakeLogWriter(p, store, Options{})
	w.Start()
	p.Enqueue("good-1")
	p.Enqueue("bad")
	p.Enqueue("good-2")
	w.Stop()

	lines, _, _, _ := store.snapshot()
	assert.Equal(t, []string{"good-1", "good-2"}, lines)
	assert.Equal(t, int64(1), w.WriteErrors())
	assert.Equal(t, int64(2), w.Written())
}

func TestWriterFlushCadenceCountsPersistedLines(t *testing.T) {
	p := pipeline.MakePipeline(10)
	store := &countingStorage{failLineFn: func(line string) bool { return line == "bad" }}
	w := MakeLogWriter(p, store, Options{FlushEvery: 2})
	for _, line := range []string{"good-1", "bad", "good-2", "good-3", "good-4"} {
		require.True(t, p.Enqueue(line))
	}
	w.Start()
	w.Stop()

	_, _, _, flushedAt := store.snapshot()
	assert.Equal(t, []int{2, 4, 4}, flushedAt, "failed writes do not advance the flush counter")
}

func TestWriterObserverPanicIsContained(t *testing.T) {
	p := pipeline.MakePipeline(10)
	store := &countingStorage{}
	var seen []string
	w := MakeLogWriter(p, store, Options{OnWritten: func(line string) {
		seen = append(seen, line)
		if line == "boom" {
			panic("observer failure")
		}
	}})
	w.Start()
	p.Enqueue("boom")
	p.Enqueue("after")
	w.Stop()

	lines, _, _, _ := store.snapshot()
	assert.Equal(t, []string{"boom", "after"}, lines)
	assert.Equal(t, []string{"boom", "after"}, seen)
}

func TestWriterIdleIsWokenByStop(t *testing.T) {
	p := pipeline.MakePipeline(10)
	w := MakeLogWriter(p, &countingStorage{}, Options{})
	w.Start()
	time.Sleep(20 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("stop hung on an idle writer")
	}
}

func TestFileStorageAppendAndFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Log_test.txt")
	require.NoError(t, os.WriteFile(path, []byte("existing\n"), 0644))

	fs, err := OpenFileStorage(path, 16)
	require.NoError(t, err)
	require.NoError(t, fs.WriteLine("first"))
	require.NoError(t, fs.WriteLine("second\nStacktrace:\nframe"))
	require.NoError(t, fs.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "existing\nfirst\nsecond\nStacktrace:\nframe\n", string(data))

	require.NoError(t, fs.WriteLine("third"))
	require.NoError(t, fs.Close())
	require.NoError(t, fs.Close())
	assert.ErrorIs(t, fs.WriteLine("late"), ErrStorageClosed)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "third\n"))
}

func TestOpenFileStorageMissingDir(t *testing.T) {
	_, err := OpenFileStorage(filepath.Join(t.TempDir(), "nope", "Log.txt"), 0)
	assert.Error(t, err)
}
