// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"

	"github.com/outrigdev/logscope/pkg/base"
	"github.com/outrigdev/logscope/pkg/utilfn"
)

type MonitorConfig struct {
	// Addr for the monitor http server (metrics, status, live stream). "" disables it.
	Addr string `yaml:"addr" json:"addr"`
}

type Config struct {
	// RootDir holds one subdirectory per process identifier. "" => ~/Documents/LogScope
	RootDir string `yaml:"rootdir" json:"rootdir"`

	// Capacity of the pipeline in lines
	Capacity int `yaml:"capacity" json:"capacity"`

	// FlushEvery is the number of written lines between flushes to stable storage
	FlushEvery int `yaml:"flushevery" json:"flushevery"`

	// BufferSize of the session file write buffer in bytes
	BufferSize int `yaml:"buffersize" json:"buffersize"`

	Quiet bool `yaml:"quiet" json:"quiet"` // only warnings and errors on the diagnostic channel
	Debug bool `yaml:"debug" json:"debug"`

	Monitor MonitorConfig `yaml:"monitor" json:"monitor"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		RootDir:    base.DefaultRootDir(),
		Capacity:   base.DefaultQueueCapacity,
		FlushEvery: base.DefaultFlushEvery,
		BufferSize: base.DefaultWriteBufferSize,
	}
}

// WithDefaults fills any zero fields from DefaultConfig
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.RootDir == "" {
		c.RootDir = def.RootDir
	}
	if c.Capacity <= 0 {
		c.Capacity = def.Capacity
	}
	if c.FlushEvery <= 0 {
		c.FlushEvery = def.FlushEvery
	}
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
	return c
}

// ResolvedRootDir is the absolute root directory. LOGSCOPE_ROOT wins over the config.
func (c Config) ResolvedRootDir() string {
	if envRoot := os.Getenv(base.RootDirEnvName); envRoot != "" {
		return utilfn.ExpandHomeDir(envRoot)
	}
	rootDir := c.RootDir
	if rootDir == "" {
		rootDir = base.DefaultRootDir()
	}
	return utilfn.ExpandHomeDir(rootDir)
}
