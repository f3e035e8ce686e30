// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package hostengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/outrigdev/logscope/pkg/logutil"
)

var (
	ErrInstallFailed = errors.New("install failed")
	ErrLaunchFailed  = errors.New("launch failed")
)

type InstallResult struct {
	Success bool
	Msg     string
}

// Installer installs and launches target apps inside the engine
type Installer interface {
	IsInstalled(pkgName string) bool
	Install(pkgName string) (InstallResult, error)
	Launch(pkgName string) (bool, error)
}

// InstallAndLaunch launches pkgName, installing it first if needed.
// notify receives short user facing status messages and may be nil.
func InstallAndLaunch(ctx context.Context, inst Installer, pkgName string, notify func(string)) error {
	log := logutil.For("installer").WithField("package", pkgName)
	if notify == nil {
		notify = func(string) {}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if inst.IsInstalled(pkgName) {
		log.Info("already installed, launching directly")
		notify("Launching " + pkgName + "...")
		return launch(inst, pkgName, notify)
	}

	notify("Installing inside LogScope...")
	result, err := inst.Install(pkgName)
	if err != nil {
		notify("System Error: " + err.Error())
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}
	if !result.Success {
		msg := "Install Failed: " + result.Msg
		log.Error(msg)
		notify(msg)
		return fmt.Errorf("%w: %s", ErrInstallFailed, result.Msg)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	notify("Install Success! Launching...")
	return launch(inst, pkgName, notify)
}

func launch(inst Installer, pkgName string, notify func(string)) error {
	launched, err := inst.Launch(pkgName)
	if err != nil {
		notify("Launch Failed: " + err.Error())
		return fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}
	if !launched {
		logutil.For("installer").Errorf("engine failed to launch %s", pkgName)
		notify("Failed to launch app.")
		return ErrLaunchFailed
	}
	return nil
}
