// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/outrigdev/logscope/pkg/base"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDefaults(t *testing.T) {
	cfg := Config{RootDir: "/data/logs", FlushEvery: 10}.WithDefaults()
	assert.Equal(t, "/data/logs", cfg.RootDir)
	assert.Equal(t, 10, cfg.FlushEvery)
	assert.Equal(t, base.DefaultQueueCapacity, cfg.Capacity)
	assert.Equal(t, base.DefaultWriteBufferSize, cfg.BufferSize)
}

func TestResolvedRootDir(t *testing.T) {
	t.Setenv(base.RootDirEnvName, "")
	cfg := DefaultConfig()
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Documents", "LogScope"), cfg.ResolvedRootDir())

	t.Setenv(base.RootDirEnvName, "/tmp/override")
	assert.Equal(t, "/tmp/override", cfg.ResolvedRootDir())
}

func TestLoadConfigFromInlineEnv(t *testing.T) {
	t.Setenv(base.ConfigJsonEnvName, `{"rootdir": "/srv/logscope", "capacity": 10, "monitor": {"addr": "127.0.0.1:9100"}}`)
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "/srv/logscope", cfg.RootDir)
	assert.Equal(t, 10, cfg.Capacity)
	assert.Equal(t, "127.0.0.1:9100", cfg.Monitor.Addr)
}

func TestLoadConfigFromFileEnv(t *testing.T) {
	t.Setenv(base.ConfigJsonEnvName, "")
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rootdir: /var/logscope\nflushevery: 25\nquiet: true\n"), 0644))
	t.Setenv(base.ConfigFileEnvName, path)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/var/logscope", cfg.RootDir)
	assert.Equal(t, 25, cfg.FlushEvery)
	assert.True(t, cfg.Quiet)

	t.Setenv(base.ConfigFileEnvName, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = LoadConfig()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfigWalksParents(t *testing.T) {
	t.Setenv(base.ConfigJsonEnvName, "")
	t.Setenv(base.ConfigFileEnvName, "")
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte("capacity: 42\n"), 0644))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 42, cfg.Capacity)
}

func TestLoadConfigBadYaml(t *testing.T) {
	t.Setenv(base.ConfigJsonEnvName, "capacity: [unterminated")
	cfg, err := LoadConfigOrDefault()
	assert.Error(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
