// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/datalust/sqelf-pipeline/cmd/sqelf-pipeline/cli"
	"github.com/datalust/sqelf-pipeline/history"
)

func historyCommand() *cli.Command {
	var (
		configPath string
		limit      int
	)

	return &cli.Command{
		Name:    "history",
		Summary: "List recent pipeline runs on this host",
		Usage:   "sqelf-pipeline history [run-id] [flags]",
		Description: `List recent pipeline runs from the local run ledger, newest first.
With a run id, show that run's per-stage breakdown instead.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("history", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "configuration file (default: $SQELF_PIPELINE_CONFIG or built-ins)")
			flags.IntVar(&limit, "limit", 20, "number of runs to list")
			return flags
		},
		Run: func(args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cfg.History.Path == "" {
				return fmt.Errorf("the run ledger is disabled (history.path is empty)")
			}

			store, err := history.Open(history.Config{Path: cfg.History.Path})
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			switch len(args) {
			case 0:
				runs, err := store.RecentRuns(ctx, limit)
				if err != nil {
					return err
				}
				printRuns(runs)
				return nil
			case 1:
				runID, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("run id must be an integer, got %q", args[0])
				}
				stages, err := store.RunStages(ctx, runID)
				if err != nil {
					return err
				}
				printStages(stages)
				return nil
			default:
				return fmt.Errorf("history takes at most one run id, got %v", args)
			}
		},
	}
}

func printRuns(runs []history.Run) {
	writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintln(writer, "ID\tSTARTED\tVERSION\tPLATFORM\tBRANCH\tSTATUS\tDURATION")
	for _, run := range runs {
		status := run.Status
		if run.Failure != "" {
			status = fmt.Sprintf("%s (%s)", run.Status, run.Failure)
		}
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			run.Version,
			run.Platform,
			run.Branch,
			status,
			run.Duration.Round(time.Second),
		)
	}
	writer.Flush()
}

func printStages(stages []history.Stage) {
	writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintln(writer, "STAGE\tSTATUS\tDURATION\tDETAIL")
	for _, stage := range stages {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			stage.Name, stage.Status, stage.Duration.Round(time.Millisecond), stage.Detail)
	}
	writer.Flush()
}
