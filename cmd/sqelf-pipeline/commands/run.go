// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/datalust/sqelf-pipeline/cmd/sqelf-pipeline/cli"
	"github.com/datalust/sqelf-pipeline/history"
	"github.com/datalust/sqelf-pipeline/lib/cmdrun"
	"github.com/datalust/sqelf-pipeline/lib/config"
	"github.com/datalust/sqelf-pipeline/lib/dockercli"
	"github.com/datalust/sqelf-pipeline/pipeline"
	"github.com/datalust/sqelf-pipeline/publish"
)

func runCommand() *cli.Command {
	var (
		configPath   string
		platform     string
		shortVersion string
		branch       string
		published    bool
		noHistory    bool
		verbose      bool
	)

	return &cli.Command{
		Name:    "run",
		Summary: "Execute a full pipeline run",
		Description: `Execute a full pipeline run: verify the toolchain, build the
ingester, run it against a live log server under the synthetic
workload, verify the observation channels, and publish when the
branch gate allows.

A publish failure after successful verification exits 0 with a
warning; the artifacts are good even when distribution is not.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "configuration file (default: $SQELF_PIPELINE_CONFIG or built-ins)")
			flags.StringVar(&platform, "platform", runtime.GOOS, "build platform: linux or windows")
			flags.StringVar(&shortVersion, "shortver", pipeline.DefaultShortVersion, "MAJOR.MINOR.PATCH build version")
			flags.StringVar(&branch, "branch", defaultBranch(), "branch under build")
			flags.BoolVar(&published, "published-build", false, "this is a CI published build")
			flags.BoolVar(&noHistory, "no-history", false, "skip the local run ledger")
			flags.BoolVar(&verbose, "verbose", false, "debug-level logging")
			return flags
		},
		Examples: []cli.Example{
			{Description: "A local run with the default throwaway version", Command: "sqelf-pipeline run"},
			{Description: "A windows package build", Command: "sqelf-pipeline run --platform windows --shortver 2026.1.0"},
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("run takes no positional arguments, got %v", args)
			}

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			logger := cli.NewLogger(verbose)

			var ledger *history.Store
			if !noHistory && cfg.History.Path != "" {
				opened, err := history.Open(history.Config{Path: cfg.History.Path, Logger: logger})
				if err != nil {
					// The ledger is a convenience; a run must not die
					// for it.
					logger.Warn("run ledger unavailable", "path", cfg.History.Path, "error", err)
				} else {
					ledger = opened
					defer ledger.Close()
				}
			}

			runner := &cmdrun.Local{Logger: logger}
			driver := &pipeline.Driver{
				Config:  cfg,
				Build:   pipeline.BuildContext{Platform: platform, ShortVersion: shortVersion, IsPublishedBuild: published, Branch: branch},
				Runner:  runner,
				Docker:  dockercli.New(runner, logger),
				Logger:  logger,
				Ledger:  ledger,
				Secrets: publish.SecretsFromEnv(),
				Stream:  os.Stderr,
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = driver.Execute(ctx)
			if err == nil {
				return nil
			}
			if pipeline.IsPublishFailure(err) {
				logger.Warn("verification passed but publish failed", "error", err)
				return nil
			}
			return err
		},
	}
}

// defaultBranch resolves the branch under build from the CI
// environment, falling back to "local" for development runs, which no
// publish pattern matches.
func defaultBranch() string {
	if branch := os.Getenv("APPVEYOR_REPO_BRANCH"); branch != "" {
		return branch
	}
	return "local"
}

// loadConfig loads an explicit config file, or falls back to the
// SQELF_PIPELINE_CONFIG / built-in default chain.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
