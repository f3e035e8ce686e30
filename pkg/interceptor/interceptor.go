// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package interceptor turns intercepted logging calls into session lines.
// Nothing here may fail the instrumented caller: every boundary recovers and
// converts errors into a debug log.
package interceptor

import (
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/outrigdev/logscope/pkg/ds"
	"github.com/outrigdev/logscope/pkg/logutil"
	"github.com/outrigdev/logscope/pkg/panichandler"
	"github.com/sirupsen/logrus"
)

// LogClass is the hooked logging API
const LogClass = "android.util.Log"

var (
	ErrTooFewArgs     = errors.New("intercepted call has fewer than 2 arguments")
	ErrNotText        = errors.New("tag or message is not text")
	ErrUnknownMethod  = errors.New("not a hooked logging method")
	ErrRecorderClosed = errors.New("record not accepted")
)

// StackTracer is implemented by fault values that carry their own rendered stack
type StackTracer interface {
	StackTrace() string
}

type Interceptor struct {
	recorder ds.Recorder
	now      func() time.Time
	log      *logrus.Entry

	captured atomic.Int64
	ignored  atomic.Int64
	failed   atomic.Int64
}

func MakeInterceptor(recorder ds.Recorder) *Interceptor {
	return &Interceptor{
		recorder: recorder,
		now:      time.Now,
		log:      logutil.For("interceptor"),
	}
}

// Signatures lists every call shape we hook: each level in its (tag, msg) and
// (tag, msg, fault) form.
func Signatures() []ds.MethodSignature {
	sigs := make([]ds.MethodSignature, 0, len(ds.AllLevels)*2)
	for _, level := range ds.AllLevels {
		for _, arity := range []int{2, 3} {
			sigs = append(sigs, ds.MethodSignature{Class: LogClass, Method: level.MethodName(), Arity: arity})
		}
	}
	return sigs
}

// Register hooks every signature independently. A shape the host runtime does not
// have (or any other registration failure) is logged and skipped.
// Returns the number of signatures registered.
func (ic *Interceptor) Register(registry ds.HookRegistry) int {
	var count int
	for _, sig := range Signatures() {
		if err := ic.registerOne(registry, sig); err != nil {
			ic.log.Debugf("hook %s not registered: %v", sig, err)
			continue
		}
		count++
	}
	ic.log.Infof("registered %d of %d log hooks", count, len(Signatures()))
	return count
}

func (ic *Interceptor) registerOne(registry ds.HookRegistry, sig ds.MethodSignature) (rtnErr error) {
	defer func() {
		if err := panichandler.PanicHandler("interceptor.register", recover()); err != nil {
			rtnErr = err
		}
	}()
	return registry.RegisterPostCallHook(sig, ic.OnIntercepted)
}

// OnIntercepted is the post-call hook. Malformed calls produce no record.
// It never panics and never returns an error to the caller.
func (ic *Interceptor) OnIntercepted(method string, args []any) {
	defer func() {
		if err := panichandler.PanicHandler("interceptor.OnIntercepted", recover()); err != nil {
			ic.failed.Add(1)
		}
	}()
	err := ic.capture(method, args)
	if err == nil {
		ic.captured.Add(1)
		return
	}
	if errors.Is(err, ErrRecorderClosed) {
		ic.failed.Add(1)
		return
	}
	ic.ignored.Add(1)
	if ic.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		ic.log.Debugf("ignoring intercepted %s call: %v", method, err)
	}
}

func (ic *Interceptor) capture(method string, args []any) error {
	rec, err := ic.BuildRecord(method, args)
	if err != nil {
		return err
	}
	if !ic.recorder.WriteAt(rec.Ts, rec.Format()) {
		return ErrRecorderClosed
	}
	return nil
}

// BuildRecord validates the raw argument vector and builds the record
func (ic *Interceptor) BuildRecord(method string, args []any) (ds.LogRecord, error) {
	level, ok := ds.LevelFromMethod(method)
	if !ok {
		return ds.LogRecord{}, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	if len(args) < 2 {
		return ds.LogRecord{}, ErrTooFewArgs
	}
	tag, ok := asText(args[0])
	if !ok {
		return ds.LogRecord{}, fmt.Errorf("%w: tag is %T", ErrNotText, args[0])
	}
	msg, ok := asText(args[1])
	if !ok {
		return ds.LogRecord{}, fmt.Errorf("%w: message is %T", ErrNotText, args[1])
	}
	rec := ds.LogRecord{
		Ts:      ic.now(),
		Level:   level,
		Tag:     tag,
		Message: msg,
	}
	if len(args) >= 3 {
		rec.StackTrace = renderFault(args[2])
	}
	return rec, nil
}

type Counts struct {
	Captured int64 `json:"captured"`
	Ignored  int64 `json:"ignored"`
	Failed   int64 `json:"failed"`
}

func (ic *Interceptor) Counts() Counts {
	return Counts{
		Captured: ic.captured.Load(),
		Ignored:  ic.ignored.Load(),
		Failed:   ic.failed.Load(),
	}
}

func asText(v any) (string, bool) {
	switch tv := v.(type) {
	case string:
		return tv, true
	case []byte:
		return string(tv), true
	case fmt.Stringer:
		return tv.String(), true
	default:
		return "", false
	}
}

// renderFault returns "" when v is not a fault. A nil fault (including a typed
// nil pointer) is no fault.
func renderFault(v any) string {
	if isNilValue(v) {
		return ""
	}
	switch tv := v.(type) {
	case StackTracer:
		return tv.StackTrace()
	case error:
		// %+v expands errors that carry a stack (pkg/errors style)
		return fmt.Sprintf("%+v", tv)
	default:
		return ""
	}
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
