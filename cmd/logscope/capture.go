// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/outrigdev/logscope"
	"github.com/outrigdev/logscope/pkg/ds"
	"github.com/outrigdev/logscope/pkg/hostengine"
	"github.com/outrigdev/logscope/pkg/interceptor"
	"github.com/outrigdev/logscope/pkg/logutil"
	"github.com/outrigdev/logscope/pkg/metrics"
	"github.com/outrigdev/logscope/pkg/monitor"
	"github.com/outrigdev/logscope/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const monitorShutdownTimeout = 2 * time.Second

type CaptureStatus struct {
	ProcessName string             `json:"processname"`
	Active      bool               `json:"active"`
	Session     *ds.Session        `json:"session,omitempty"`
	Stats       ds.SessionStats    `json:"stats"`
	HooksActive int                `json:"hooksactive"`
	Calls       interceptor.Counts `json:"calls"`
	Dispatched  int64              `json:"dispatched"`
	Unhooked    int64              `json:"unhooked"`
	StreamPeers int                `json:"streampeers"`
}

func runCapture(cmd *cobra.Command, args []string) error {
	log := logutil.For("capture")
	cfg, err := loadCliConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	processName, _ := flags.GetString("process")
	if flags.Changed("capacity") {
		cfg.Capacity, _ = flags.GetInt("capacity")
	}
	if flags.Changed("flush-every") {
		cfg.FlushEvery, _ = flags.GetInt("flush-every")
	}
	if flags.Changed("monitor") {
		cfg.Monitor.Addr, _ = flags.GetString("monitor")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	sessionMetrics, err := metrics.MakeSessionMetrics(reg)
	if err != nil {
		return err
	}
	hub := monitor.MakeHub()
	engine := hostengine.MakeLineEngine(processName)
	att, err := logscope.Init(engine, &cfg, session.WithMetrics(sessionMetrics), session.WithLineObserver(hub.Publish))
	if err != nil {
		return err
	}
	defer logscope.Shutdown()
	if sess, ok := att.Manager.Session(); ok {
		log.Infof("capturing %s into %s", att.ProcessName, sess.FilePath)
	}

	if cfg.Monitor.Addr != "" {
		listener, err := monitor.Listen(cfg.Monitor.Addr)
		if err != nil {
			return err
		}
		srv := monitor.MakeServer(hub, reg, func() any {
			return captureStatus(att, engine, hub)
		})
		go func() {
			if err := srv.Serve(listener); err != nil {
				log.Errorf("monitor server: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), monitorShutdownTimeout)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- engine.Run(ctx, os.Stdin)
	}()
	select {
	case err = <-runErrCh:
	case <-ctx.Done():
		// stdin reads cannot be interrupted; shut down without waiting for the reader
		log.Infof("signal received, closing session")
		err = nil
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func captureStatus(att *hostengine.Attachment, engine *hostengine.LineEngine, hub *monitor.Hub) CaptureStatus {
	status := CaptureStatus{
		ProcessName: att.ProcessName,
		Active:      att.Manager.IsActive(),
		Stats:       att.Manager.Stats(),
		HooksActive: att.HooksActive,
		Calls:       att.Interceptor.Counts(),
		Dispatched:  engine.Dispatched(),
		Unhooked:    engine.Unhooked(),
		StreamPeers: hub.PeerCount(),
	}
	if sess, ok := att.Manager.Session(); ok {
		status.Session = &sess
	}
	return status
}
