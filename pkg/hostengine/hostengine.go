// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package hostengine is the boundary with the virtualization engine that runs the
// instrumented process: lifecycle, hook registration and install/launch.
package hostengine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/outrigdev/logscope/pkg/base"
	"github.com/outrigdev/logscope/pkg/ds"
	"github.com/outrigdev/logscope/pkg/interceptor"
	"github.com/outrigdev/logscope/pkg/logutil"
	"github.com/outrigdev/logscope/pkg/panichandler"
	"github.com/outrigdev/logscope/pkg/session"
)

var ErrNotVirtual = errors.New("not running as a virtual process")
var ErrAlreadyAttached = errors.New("session manager already attached")

// Engine is what the host virtualization engine offers this process
type Engine interface {
	IsVirtualProcess() bool
	CurrentProcessName() (string, error)
	Hooks() ds.HookRegistry
}

// Attachment is a live capture: a started session with its hooks registered
type Attachment struct {
	ProcessName string
	Manager     *session.Manager
	Interceptor *interceptor.Interceptor
	HooksActive int
}

// Attach is the lifecycle entry point, called once the engine recognizes this
// process as virtual. It starts the session, then registers the log hooks.
func Attach(engine Engine, mgr *session.Manager) (*Attachment, error) {
	if !isVirtual(engine) {
		return nil, ErrNotVirtual
	}
	// Init is a no-op on a running manager; registering again would double every line
	if mgr.IsActive() {
		return nil, ErrAlreadyAttached
	}
	name := ResolveProcessName(engine)
	if err := mgr.Init(name); err != nil {
		return nil, fmt.Errorf("cannot start log session for %s: %w", name, err)
	}
	ic := interceptor.MakeInterceptor(mgr)
	count := ic.Register(engine.Hooks())
	return &Attachment{
		ProcessName: name,
		Manager:     mgr,
		Interceptor: ic,
		HooksActive: count,
	}, nil
}

// Close drains and closes the session (process teardown)
func (a *Attachment) Close() {
	a.Manager.Shutdown()
}

func isVirtual(engine Engine) (rtn bool) {
	defer func() {
		if panichandler.PanicHandler("engine.IsVirtualProcess", recover()) != nil {
			rtn = false
		}
	}()
	return engine.IsVirtualProcess()
}

// ResolveProcessName asks the engine for the process name. Any failure falls back
// to base.UnknownProcessName so a session can always be created.
func ResolveProcessName(engine Engine) (rtn string) {
	log := logutil.For("hostengine")
	defer func() {
		if panichandler.PanicHandler("engine.CurrentProcessName", recover()) != nil {
			rtn = base.UnknownProcessName
		}
	}()
	name, err := engine.CurrentProcessName()
	if err != nil {
		log.Warnf("current process name unavailable, falling back: %v", err)
		return base.UnknownProcessName
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return base.UnknownProcessName
	}
	return name
}
