// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package hostengine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/outrigdev/logscope/pkg/ds"
	"github.com/outrigdev/logscope/pkg/interceptor"
	"github.com/outrigdev/logscope/pkg/utilfn"
	"github.com/shirou/gopsutil/v4/process"
)

// LineEngine is a stand-in host engine that replays logging calls read from a
// stream. Each line is one call:
//
//	<method> <tag> <message...>
//	{"method": "e", "tag": "Db", "msg": "query failed", "err": "stack..."}
//
// The current process counts as the virtual process.
type LineEngine struct {
	processName string

	lock  sync.Mutex
	hooks map[ds.MethodSignature]ds.PostCallHook

	dispatched atomic.Int64
	unhooked   atomic.Int64
}

type lineCall struct {
	Method string `json:"method"`
	Tag    string `json:"tag"`
	// pointers so an absent key is distinguishable from an empty string
	Msg *string `json:"msg"`
	Err *string `json:"err,omitempty"`
}

// Fault is a raised-fault value carrying an already rendered stack
type Fault struct {
	Trace string
}

func (f Fault) Error() string {
	first, _, _ := strings.Cut(f.Trace, "\n")
	return first
}

func (f Fault) StackTrace() string {
	return f.Trace
}

// MakeLineEngine creates an engine. An empty processName means "ask the OS for
// the parent process name".
func MakeLineEngine(processName string) *LineEngine {
	return &LineEngine{
		processName: processName,
		hooks:       make(map[ds.MethodSignature]ds.PostCallHook),
	}
}

func (e *LineEngine) IsVirtualProcess() bool {
	return true
}

func (e *LineEngine) CurrentProcessName() (string, error) {
	if e.processName != "" {
		return e.processName, nil
	}
	return parentProcessName()
}

// the process piping logs into us is the one being observed
func parentProcessName() (string, error) {
	proc, err := process.NewProcess(int32(os.Getppid()))
	if err != nil {
		return "", fmt.Errorf("cannot inspect parent process: %w", err)
	}
	name, err := proc.Name()
	if err != nil {
		return "", fmt.Errorf("cannot read parent process name: %w", err)
	}
	return name, nil
}

func (e *LineEngine) Hooks() ds.HookRegistry {
	return e
}

func (e *LineEngine) RegisterPostCallHook(sig ds.MethodSignature, hook ds.PostCallHook) error {
	if sig.Class != interceptor.LogClass {
		return fmt.Errorf("class %s not available", sig.Class)
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	e.hooks[sig] = hook
	return nil
}

func (e *LineEngine) hookFor(method string, arity int) ds.PostCallHook {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.hooks[ds.MethodSignature{Class: interceptor.LogClass, Method: method, Arity: arity}]
}

// Dispatch delivers one call to its hook, as the engine would after the real call ran
func (e *LineEngine) Dispatch(method string, args []any) bool {
	// shapes shorter than the hooked ones still reach the 2-arg hook, like a
	// runtime with loose argument checking would
	arity := len(args)
	if arity < 2 {
		arity = 2
	}
	hook := e.hookFor(method, arity)
	if hook == nil {
		e.unhooked.Add(1)
		return false
	}
	e.dispatched.Add(1)
	hook(method, args)
	return true
}

// Run reads calls from r until EOF or ctx is done
func (e *LineEngine) Run(ctx context.Context, r io.Reader) error {
	return utilfn.StreamToLines(ctx, r, e.handleLine)
}

func (e *LineEngine) handleLine(line string) {
	method, args, ok := ParseCallLine(line)
	if !ok {
		return
	}
	e.Dispatch(method, args)
}

// ParseCallLine parses one input line into a method name and raw argument vector
func ParseCallLine(line string) (string, []any, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil, false
	}
	if strings.HasPrefix(line, "{") {
		var call lineCall
		if err := json.Unmarshal([]byte(line), &call); err != nil || call.Method == "" {
			return "", nil, false
		}
		args := []any{call.Tag}
		if call.Msg != nil || call.Err != nil {
			var msg string
			if call.Msg != nil {
				msg = *call.Msg
			}
			args = append(args, msg)
		}
		if call.Err != nil {
			args = append(args, Fault{Trace: *call.Err})
		}
		return call.Method, args, true
	}
	fields := strings.SplitN(line, " ", 3)
	args := make([]any, 0, 2)
	for _, f := range fields[1:] {
		args = append(args, f)
	}
	return fields[0], args, true
}

func (e *LineEngine) Dispatched() int64 {
	return e.dispatched.Load()
}

func (e *LineEngine) Unhooked() int64 {
	return e.unhooked.Load()
}
