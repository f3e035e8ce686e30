// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logscope captures the log calls of a process running inside a
// virtualization engine into a per-process session file.
package logscope

import (
	"sync"

	"github.com/outrigdev/logscope/pkg/base"
	"github.com/outrigdev/logscope/pkg/config"
	"github.com/outrigdev/logscope/pkg/hostengine"
	"github.com/outrigdev/logscope/pkg/logutil"
	"github.com/outrigdev/logscope/pkg/session"
)

const Version = base.LogScopeVersion

type Config = config.Config

var (
	globalLock       sync.Mutex
	globalAttachment *hostengine.Attachment
)

// Init attaches to engine once per process. A nil cfgParam loads the
// configuration from the environment (see config.LoadConfig). Calls after a
// successful Init return the existing attachment.
func Init(engine hostengine.Engine, cfgParam *Config, opts ...session.Option) (*hostengine.Attachment, error) {
	globalLock.Lock()
	defer globalLock.Unlock()
	if globalAttachment != nil {
		return globalAttachment, nil
	}
	var cfg Config
	if cfgParam == nil {
		var err error
		cfg, err = config.LoadConfigOrDefault()
		if err != nil {
			logutil.For("logscope").Warnf("using default config: %v", err)
		}
	} else {
		cfg = cfgParam.WithDefaults()
	}
	logutil.SetQuiet(cfg.Quiet)
	logutil.SetDebug(cfg.Debug)
	att, err := hostengine.Attach(engine, session.MakeManager(cfg, opts...))
	if err != nil {
		return nil, err
	}
	globalAttachment = att
	return att, nil
}

// Write records message in the active session. False if nothing was queued.
func Write(message string) bool {
	globalLock.Lock()
	att := globalAttachment
	globalLock.Unlock()
	if att == nil {
		return false
	}
	return att.Manager.Write(message)
}

// Shutdown drains and closes the session. Init may be called again afterwards.
func Shutdown() {
	globalLock.Lock()
	att := globalAttachment
	globalAttachment = nil
	globalLock.Unlock()
	if att != nil {
		att.Close()
	}
}
