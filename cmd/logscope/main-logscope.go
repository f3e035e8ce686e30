// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/outrigdev/logscope"
	"github.com/outrigdev/logscope/pkg/config"
	"github.com/outrigdev/logscope/pkg/logutil"
	"github.com/spf13/cobra"
)

// LogScopeBuildTime is set by the release build
var LogScopeBuildTime = ""

// loadCliConfig resolves the config (--config, then the usual search) and applies
// the persistent flags on top
func loadCliConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		loaded, err := config.LoadConfigFile(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded.WithDefaults()
	} else {
		var err error
		cfg, err = config.LoadConfigOrDefault()
		if err != nil {
			return cfg, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("root") {
		cfg.RootDir, _ = flags.GetString("root")
	}
	if flags.Changed("quiet") {
		cfg.Quiet, _ = flags.GetBool("quiet")
	}
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
	logutil.SetQuiet(cfg.Quiet)
	logutil.SetDebug(cfg.Debug)
	return cfg, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "logscope",
		Short: "LogScope captures the log output of virtualized apps",
		Long: `LogScope captures the logging calls of a process running inside a virtualization
engine and writes them to a timestamped session file per process.`,
		SilenceUsage: true,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of LogScope",
		Run: func(cmd *cobra.Command, args []string) {
			if LogScopeBuildTime != "" {
				fmt.Printf("%s+%s\n", logscope.Version, LogScopeBuildTime)
			} else {
				fmt.Printf("%s+dev\n", logscope.Version)
			}
		},
	}

	captureCmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture logging calls read from stdin into a session",
		Long: `Capture reads one logging call per line from stdin and records it in a new session.
Lines are either "<method> <tag> <message>" (method is one of v, d, i, w, e, wtf)
or JSON: {"method": "e", "tag": "Db", "msg": "query failed", "err": "stack"}.
The session is drained and closed at EOF or on SIGINT/SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: runCapture,
	}
	captureCmd.Flags().String("process", "", "process identifier (default: name of the parent process)")
	captureCmd.Flags().Int("capacity", 0, "pipeline capacity in lines (default 50000)")
	captureCmd.Flags().Int("flush-every", 0, "lines written between flushes (default 100)")
	captureCmd.Flags().String("monitor", "", "address for the monitor server, e.g. localhost:5095")

	sessionsCmd := &cobra.Command{
		Use:   "sessions [process]",
		Short: "List session files, oldest first",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSessions,
	}
	sessionsCmd.Flags().Bool("json", false, "output json")

	tailCmd := &cobra.Command{
		Use:   "tail [process | file]",
		Short: "Print the latest session file, optionally following it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTail,
	}
	tailCmd.Flags().BoolP("follow", "f", false, "keep printing lines as they are written")

	searchCmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search session files",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearch,
	}
	searchCmd.Flags().String("process", "", "only search this process's sessions")
	searchCmd.Flags().Bool("fuzzy", false, "fuzzy match (fzf) instead of substring")
	searchCmd.Flags().Bool("latest", false, "only search the latest session")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(searchCmd)

	rootCmd.PersistentFlags().String("config", "", "config file (default: search for logscope.yaml)")
	rootCmd.PersistentFlags().String("root", "", "session root directory (default ~/Documents/LogScope)")
	rootCmd.PersistentFlags().Bool("quiet", false, "only log warnings and errors")
	rootCmd.PersistentFlags().Bool("debug", false, "debug logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
