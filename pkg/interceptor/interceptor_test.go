// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package interceptor

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/outrigdev/logscope/pkg/base"
	"github.com/outrigdev/logscope/pkg/config"
	"github.com/outrigdev/logscope/pkg/ds"
	"github.com/outrigdev/logscope/pkg/logutil"
	"github.com/outrigdev/logscope/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logutil.SetOutput(io.Discard)
}

type fakeRecorder struct {
	lock   sync.Mutex
	lines  []string
	stamps []time.Time
	reject bool
}

func (r *fakeRecorder) WriteAt(ts time.Time, message string) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.reject {
		return false
	}
	r.lines = append(r.lines, message)
	r.stamps = append(r.stamps, ts)
	return true
}

type fakeRegistry struct {
	hooks   map[string]ds.PostCallHook
	failSig map[string]bool
	panicOn string
}

func (fr *fakeRegistry) RegisterPostCallHook(sig ds.MethodSignature, hook ds.PostCallHook) error {
	if sig.String() == fr.panicOn {
		panic("engine blew up")
	}
	if fr.failSig[sig.String()] {
		return fmt.Errorf("no such method %s", sig)
	}
	if fr.hooks == nil {
		fr.hooks = make(map[string]ds.PostCallHook)
	}
	fr.hooks[sig.String()] = hook
	return nil
}

type stringer string

func (s stringer) String() string { return string(s) }

type tracedFault struct{}

func (tracedFault) Error() string { return "traced" }
func (tracedFault) StackTrace() string {
	return "java.lang.IllegalStateException: boom\n\tat com.example.Main.run(Main.java:10)"
}

type nilStringer struct{ name string }

type ptrFault struct{ trace string }

func (f *ptrFault) Error() string      { return "ptr fault" }
func (f *ptrFault) StackTrace() string { return f.trace }

type ptrError struct{ msg string }

func (e *ptrError) Error() string { return e.msg }

func (n *nilStringer) String() string { return n.name }

func TestSignatures(t *testing.T) {
	sigs := Signatures()
	require.Len(t, sigs, 12)
	seen := make(map[string]bool)
	for _, sig := range sigs {
		assert.Equal(t, LogClass, sig.Class)
		assert.Contains(t, []int{2, 3}, sig.Arity)
		seen[sig.String()] = true
	}
	assert.Len(t, seen, 12)
	assert.True(t, seen["android.util.Log.wtf/3"])
	assert.True(t, seen["android.util.Log.v/2"])
}

func TestRegisterSkipsFailures(t *testing.T) {
	reg := &fakeRegistry{
		failSig: map[string]bool{"android.util.Log.wtf/3": true, "android.util.Log.v/3": true},
		panicOn: "android.util.Log.d/3",
	}
	ic := MakeInterceptor(&fakeRecorder{})
	var count int
	assert.NotPanics(t, func() { count = ic.Register(reg) })
	assert.Equal(t, 9, count)
	assert.Contains(t, reg.hooks, "android.util.Log.wtf/2")
	assert.NotContains(t, reg.hooks, "android.util.Log.wtf/3")
	assert.Contains(t, reg.hooks, "android.util.Log.e/3")
}

func TestOnInterceptedFormats(t *testing.T) {
	tests := []struct {
		name   string
		method string
		args   []any
		want   string
	}{
		{name: "info", method: "i", args: []any{"Tag", "hello"}, want: "[I/Tag] hello"},
		{name: "verbose", method: "v", args: []any{"Net", "connecting"}, want: "[V/Net] connecting"},
		{name: "assert", method: "wtf", args: []any{"Core", "impossible"}, want: "[WTF/Core] impossible"},
		{name: "bytes and stringer", method: "d", args: []any{[]byte("Bytes"), stringer("from stringer")}, want: "[D/Bytes] from stringer"},
		{name: "third arg not a fault", method: "w", args: []any{"Tag", "msg", 42}, want: "[W/Tag] msg"},
		{name: "nil fault", method: "e", args: []any{"Tag", "msg", nil}, want: "[E/Tag] msg"},
		{name: "plain error", method: "e", args: []any{"Tag", "failed", errors.New("disk full")}, want: "[E/Tag] failed\nStacktrace:\ndisk full"},
		{
			name:   "traced fault",
			method: "e",
			args:   []any{"Tag", "crashed", tracedFault{}},
			want:   "[E/Tag] crashed\nStacktrace:\njava.lang.IllegalStateException: boom\n\tat com.example.Main.run(Main.java:10)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			ic := MakeInterceptor(rec)
			ic.OnIntercepted(tt.method, tt.args)
			require.Len(t, rec.lines, 1)
			assert.Equal(t, tt.want, rec.lines[0])
			assert.Equal(t, int64(1), ic.Counts().Captured)
		})
	}
}

func TestOnInterceptedIgnoresMalformed(t *testing.T) {
	tests := []struct {
		name   string
		method string
		args   []any
		errIs  error
	}{
		{name: "nil args", method: "i", args: nil, errIs: ErrTooFewArgs},
		{name: "one arg", method: "i", args: []any{"Tag"}, errIs: ErrTooFewArgs},
		{name: "int tag", method: "i", args: []any{7, "msg"}, errIs: ErrNotText},
		{name: "nil message", method: "i", args: []any{"Tag", nil}, errIs: ErrNotText},
		{name: "unknown method", method: "println", args: []any{"Tag", "msg"}, errIs: ErrUnknownMethod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			ic := MakeInterceptor(rec)
			assert.NotPanics(t, func() { ic.OnIntercepted(tt.method, tt.args) })
			assert.Empty(t, rec.lines)
			assert.Equal(t, int64(1), ic.Counts().Ignored)

			_, err := ic.BuildRecord(tt.method, tt.args)
			assert.ErrorIs(t, err, tt.errIs)
		})
	}
}

func TestOnInterceptedContainsPanics(t *testing.T) {
	rec := &fakeRecorder{}
	ic := MakeInterceptor(rec)
	var bad *nilStringer
	assert.NotPanics(t, func() { ic.OnIntercepted("i", []any{bad, "msg"}) })
	assert.Empty(t, rec.lines)
	assert.Equal(t, int64(1), ic.Counts().Failed)
}

func TestOnInterceptedNilFaultKeepsRecord(t *testing.T) {
	var nilError error
	tests := []struct {
		name  string
		fault any
	}{
		{name: "untyped nil", fault: nil},
		{name: "nil error interface", fault: nilError},
		{name: "typed nil stack tracer", fault: (*ptrFault)(nil)},
		{name: "typed nil error", fault: (*ptrError)(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			ic := MakeInterceptor(rec)
			assert.NotPanics(t, func() { ic.OnIntercepted("e", []any{"Tag", "msg", tt.fault}) })
			assert.Equal(t, []string{"[E/Tag] msg"}, rec.lines)
			assert.Equal(t, Counts{Captured: 1}, ic.Counts())
		})
	}
}

func TestOnInterceptedPassesRecordTime(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 6_000_000, time.Local)
	rec := &fakeRecorder{}
	ic := MakeInterceptor(rec)
	ic.now = func() time.Time { return fixed }
	ic.OnIntercepted("i", []any{"Tag", "msg"})
	require.Len(t, rec.stamps, 1)
	assert.True(t, fixed.Equal(rec.stamps[0]))
}

func TestOnInterceptedRecorderRejects(t *testing.T) {
	rec := &fakeRecorder{reject: true}
	ic := MakeInterceptor(rec)
	ic.OnIntercepted("i", []any{"Tag", "msg"})
	assert.Equal(t, Counts{Failed: 1}, ic.Counts())
}

func TestBuildRecord(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	ic := MakeInterceptor(&fakeRecorder{})
	ic.now = func() time.Time { return fixed }
	rec, err := ic.BuildRecord("w", []any{"Tag", "careful"})
	require.NoError(t, err)
	assert.Equal(t, ds.LogRecord{Ts: fixed, Level: ds.LevelWarn, Tag: "Tag", Message: "careful"}, rec)
}

func TestMalformedCallDoesNotTouchSession(t *testing.T) {
	t.Setenv(base.RootDirEnvName, "")
	mgr := session.MakeManager(config.Config{RootDir: t.TempDir()})
	require.NoError(t, mgr.Init("com.example.app"))
	defer mgr.Shutdown()

	before := mgr.Stats().Enqueued
	ic := MakeInterceptor(mgr)
	ic.OnIntercepted("i", []any{"only-a-tag"})
	assert.Equal(t, before, mgr.Stats().Enqueued)

	ic.OnIntercepted("i", []any{"Tag", "hello"})
	assert.Equal(t, before+1, mgr.Stats().Enqueued)
}

func TestHookedThroughRegistry(t *testing.T) {
	rec := &fakeRecorder{}
	ic := MakeInterceptor(rec)
	reg := &fakeRegistry{}
	require.Equal(t, 12, ic.Register(reg))

	reg.hooks["android.util.Log.e/3"]("e", []any{"Db", "query failed", errors.New("timeout")})
	reg.hooks["android.util.Log.i/2"]("i", []any{"Db", "connected"})
	assert.Equal(t, []string{"[E/Db] query failed\nStacktrace:\ntimeout", "[I/Db] connected"}, rec.lines)
}
