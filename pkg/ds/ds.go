// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package ds

import (
	"strings"
	"time"

	"github.com/outrigdev/logscope/pkg/base"
)

type Level int

const (
	LevelVerbose Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelAssert
)

// AllLevels in severity order
var AllLevels = []Level{LevelVerbose, LevelDebug, LevelInfo, LevelWarn, LevelError, LevelAssert}

var levelNames = [...]string{"VERBOSE", "DEBUG", "INFO", "WARN", "ERROR", "ASSERT"}

// method names of the hooked logging API, indexed by Level
var levelMethods = [...]string{"v", "d", "i", "w", "e", "wtf"}

func (l Level) IsValid() bool {
	return l >= LevelVerbose && l <= LevelAssert
}

func (l Level) String() string {
	if !l.IsValid() {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// MethodName is the logging entry point for this level ("v", "d", ..., "wtf")
func (l Level) MethodName() string {
	if !l.IsValid() {
		return ""
	}
	return levelMethods[l]
}

// Code is the level tag written into formatted lines, the upper-cased method name
func (l Level) Code() string {
	return strings.ToUpper(l.MethodName())
}

// LevelFromMethod maps a logging method name back to its Level
func LevelFromMethod(method string) (Level, bool) {
	for idx, name := range levelMethods {
		if name == method {
			return Level(idx), true
		}
	}
	return 0, false
}

// LogRecord is a single captured log call. Treat as immutable once built.
type LogRecord struct {
	Ts         time.Time
	Level      Level
	Tag        string
	Message    string
	StackTrace string // optional
}

// Format renders the record part of a session line:
// [<CODE>/<tag>] <message>[\nStacktrace:\n<stack>]
func (r LogRecord) Format() string {
	var sb strings.Builder
	sb.Grow(len(r.Tag) + len(r.Message) + len(r.StackTrace) + 24)
	sb.WriteByte('[')
	sb.WriteString(r.Level.Code())
	sb.WriteByte('/')
	sb.WriteString(r.Tag)
	sb.WriteString("] ")
	sb.WriteString(r.Message)
	if r.StackTrace != "" {
		sb.WriteString(base.StacktraceHeader)
		sb.WriteString(r.StackTrace)
	}
	return sb.String()
}

type Session struct {
	Id        string    `json:"id"`
	ProcessId string    `json:"processid"`
	RootDir   string    `json:"rootdir"`
	FilePath  string    `json:"filepath"`
	StartedAt time.Time `json:"startedat"`
}

type SessionStats struct {
	Enqueued    int64 `json:"enqueued"`
	Dropped     int64 `json:"dropped"`
	Written     int64 `json:"written"`
	Flushes     int64 `json:"flushes"`
	WriteErrors int64 `json:"writeerrors"`
	QueueSize   int   `json:"queuesize"`
}

// MethodSignature identifies one hookable call shape of the logging API
type MethodSignature struct {
	Class  string `json:"class"`
	Method string `json:"method"`
	Arity  int    `json:"arity"`
}

func (s MethodSignature) String() string {
	var sb strings.Builder
	sb.WriteString(s.Class)
	sb.WriteByte('.')
	sb.WriteString(s.Method)
	sb.WriteByte('/')
	sb.WriteByte(byte('0' + s.Arity%10))
	return sb.String()
}

// PostCallHook receives the raw argument vector of a call after it has executed.
type PostCallHook = func(method string, args []any)

// HookRegistry is provided by the host engine adapter. Lookup of the real method
// happens on the engine side; callers only declare which signatures they want.
type HookRegistry interface {
	RegisterPostCallHook(sig MethodSignature, hook PostCallHook) error
}

// Recorder accepts formatted record lines stamped with their capture time
// (implemented by session.Manager)
type Recorder interface {
	WriteAt(ts time.Time, message string) bool
}
