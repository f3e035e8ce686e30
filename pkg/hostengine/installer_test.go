// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package hostengine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeInstaller struct {
	installed  bool
	installRes InstallResult
	installErr error
	launchOk   bool
	launchErr  error
	installs   int
	launches   int
}

func (f *fakeInstaller) IsInstalled(pkgName string) bool { return f.installed }

func (f *fakeInstaller) Install(pkgName string) (InstallResult, error) {
	f.installs++
	return f.installRes, f.installErr
}

func (f *fakeInstaller) Launch(pkgName string) (bool, error) {
	f.launches++
	return f.launchOk, f.launchErr
}

func TestInstallAndLaunch(t *testing.T) {
	tests := []struct {
		name      string
		inst      *fakeInstaller
		wantErr   error
		installs  int
		launches  int
		lastNotif string
	}{
		{
			name:      "already installed",
			inst:      &fakeInstaller{installed: true, launchOk: true},
			launches:  1,
			lastNotif: "Launching com.example.app...",
		},
		{
			name:      "install then launch",
			inst:      &fakeInstaller{installRes: InstallResult{Success: true}, launchOk: true},
			installs:  1,
			launches:  1,
			lastNotif: "Install Success! Launching...",
		},
		{
			name:      "install rejected",
			inst:      &fakeInstaller{installRes: InstallResult{Msg: "INSTALL_FAILED_INVALID_APK"}},
			wantErr:   ErrInstallFailed,
			installs:  1,
			lastNotif: "Install Failed: INSTALL_FAILED_INVALID_APK",
		},
		{
			name:      "install error",
			inst:      &fakeInstaller{installErr: errors.New("engine not ready")},
			wantErr:   ErrInstallFailed,
			installs:  1,
			lastNotif: "System Error: engine not ready",
		},
		{
			name:      "launch refused",
			inst:      &fakeInstaller{installed: true},
			wantErr:   ErrLaunchFailed,
			launches:  1,
			lastNotif: "Failed to launch app.",
		},
		{
			name:      "launch error",
			inst:      &fakeInstaller{installed: true, launchErr: errors.New("no activity")},
			wantErr:   ErrLaunchFailed,
			launches:  1,
			lastNotif: "Launch Failed: no activity",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var notes []string
			err := InstallAndLaunch(context.Background(), tt.inst, "com.example.app", func(msg string) {
				notes = append(notes, msg)
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.installs, tt.inst.installs)
			assert.Equal(t, tt.launches, tt.inst.launches)
			if assert.NotEmpty(t, notes) {
				assert.Equal(t, tt.lastNotif, notes[len(notes)-1])
			}
		})
	}
}

func TestInstallAndLaunchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inst := &fakeInstaller{installed: true, launchOk: true}
	err := InstallAndLaunch(ctx, inst, "com.example.app", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, inst.launches)
}
