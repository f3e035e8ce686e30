// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/outrigdev/logscope/pkg/base"
	"github.com/outrigdev/logscope/pkg/utilfn"
	"gopkg.in/yaml.v3"
)

const ConfigFileName = "logscope.yaml"

// LoadConfig finds and parses the configuration. Returns (nil, nil) when there is none.
// Order: inline env var, config file env var, logscope.yaml in cwd or a parent.
func LoadConfig() (*Config, error) {
	if configJson := os.Getenv(base.ConfigJsonEnvName); configJson != "" {
		cfg, err := parseConfig([]byte(configJson))
		if err != nil {
			return nil, fmt.Errorf("error parsing %s: %w", base.ConfigJsonEnvName, err)
		}
		return cfg, nil
	}

	if configFile := os.Getenv(base.ConfigFileEnvName); configFile != "" {
		return LoadConfigFile(configFile)
	}

	return findConfigInParents()
}

// LoadConfigOrDefault never fails to produce a usable config; the error is informational
func LoadConfigOrDefault() (Config, error) {
	cfg, err := LoadConfig()
	if err != nil || cfg == nil {
		return DefaultConfig(), err
	}
	return cfg.WithDefaults(), nil
}

// LoadConfigFile loads an explicitly named file; unlike the parent walk a missing file is an error
func LoadConfigFile(path string) (*Config, error) {
	cfg, err := tryLoadConfig(utilfn.ExpandHomeDir(path))
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("config file %s: %w", path, os.ErrNotExist)
	}
	return cfg, nil
}

func findConfigInParents() (*Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	homeDir, _ := os.UserHomeDir()

	for {
		cfg, err := tryLoadConfig(filepath.Join(dir, ConfigFileName))
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			return cfg, nil
		}
		if hasProjectRoot(dir) {
			break
		}
		if homeDir != "" && dir == homeDir {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return nil, nil
}

func hasProjectRoot(dir string) bool {
	markers := []string{".git", "go.mod"}
	for _, marker := range markers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

func tryLoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	cfg, err := parseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", path, err)
	}
	return cfg, nil
}

// parseConfig accepts yaml (and therefore json)
func parseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
