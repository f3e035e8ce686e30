// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/nxadm/tail"
	"github.com/outrigdev/logscope/pkg/sessionfiles"
	"github.com/spf13/cobra"
)

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := loadCliConfig(cmd)
	if err != nil {
		return err
	}
	rootDir := cfg.ResolvedRootDir()
	var processId string
	if len(args) > 0 {
		processId = args[0]
	}
	sessions, err := sessionfiles.ListSessions(rootDir, processId)
	if err != nil {
		return err
	}
	if asJson, _ := cmd.Flags().GetBool("json"); asJson {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sessions)
	}
	live := make(map[string]bool)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROCESS\tSTARTED\tSIZE\tFILE")
	for idx, sf := range sessions {
		if _, checked := live[sf.ProcessId]; !checked {
			live[sf.ProcessId] = sessionfiles.IsLive(rootDir, sf.ProcessId)
		}
		name := filepath.Base(sf.Path)
		if live[sf.ProcessId] && isLatestFor(sessions, idx) {
			name += " (live)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", sf.ProcessId, sf.StartedAt.Format(time.DateTime), sf.Size, name)
	}
	return tw.Flush()
}

// isLatestFor reports whether sessions[idx] is the newest session of its process
func isLatestFor(sessions []sessionfiles.SessionFile, idx int) bool {
	for _, sf := range sessions[idx+1:] {
		if sf.ProcessId == sessions[idx].ProcessId {
			return false
		}
	}
	return true
}

// resolveSessionFile accepts a path to a session file or a process identifier
func resolveSessionFile(rootDir string, arg string) (string, error) {
	if arg != "" {
		if info, err := os.Stat(arg); err == nil && !info.IsDir() {
			return arg, nil
		}
	}
	sf, err := sessionfiles.LatestSession(rootDir, arg)
	if err != nil {
		return "", err
	}
	return sf.Path, nil
}

func runTail(cmd *cobra.Command, args []string) error {
	cfg, err := loadCliConfig(cmd)
	if err != nil {
		return err
	}
	var arg string
	if len(args) > 0 {
		arg = args[0]
	}
	path, err := resolveSessionFile(cfg.ResolvedRootDir(), arg)
	if err != nil {
		return err
	}
	follow, _ := cmd.Flags().GetBool("follow")
	tailer, err := tail.TailFile(path, tail.Config{
		Follow:    follow,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("cannot tail %s: %w", path, err)
	}
	defer tailer.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		tailer.Stop()
	}()
	for line := range tailer.Lines {
		if line.Err != nil {
			return line.Err
		}
		fmt.Println(line.Text)
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadCliConfig(cmd)
	if err != nil {
		return err
	}
	rootDir := cfg.ResolvedRootDir()
	flags := cmd.Flags()
	processId, _ := flags.GetString("process")
	fuzzy, _ := flags.GetBool("fuzzy")
	latestOnly, _ := flags.GetBool("latest")

	searchType := sessionfiles.SearchTypeExact
	if fuzzy {
		searchType = sessionfiles.SearchTypeFzf
	}
	searcher, err := sessionfiles.MakeSearcher(searchType, args[0])
	if err != nil {
		return err
	}
	var sessions []sessionfiles.SessionFile
	if latestOnly {
		sf, err := sessionfiles.LatestSession(rootDir, processId)
		if err != nil {
			return err
		}
		sessions = []sessionfiles.SessionFile{sf}
	} else {
		sessions, err = sessionfiles.ListSessions(rootDir, processId)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	count, err := sessionfiles.Search(ctx, sessions, searcher, func(m sessionfiles.Match) {
		fmt.Printf("%s/%s:%d: %s\n", m.File.ProcessId, filepath.Base(m.File.Path), m.LineNum, m.Line)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d matches in %d sessions\n", count, len(sessions))
	return nil
}
