// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/datalust/sqelf-pipeline/cmd/sqelf-pipeline/cli"
	"github.com/datalust/sqelf-pipeline/staging"
	"github.com/datalust/sqelf-pipeline/verify"
	"github.com/datalust/sqelf-pipeline/workload"
)

func verifyCommand() *cli.Command {
	var (
		configPath   string
		scenarioPath string
		verbose      bool
	)

	return &cli.Command{
		Name:    "verify",
		Summary: "Re-run verification against an existing staging tree",
		Usage:   "sqelf-pipeline verify [staging-root] [flags]",
		Description: `Re-run the three-channel verification against an existing staging
tree without touching docker: the captured container logs and the
CLEF export from a previous run (or its downloaded CI artifacts) are
all it reads. Exits 1 when any channel fails.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("verify", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "configuration file (default: $SQELF_PIPELINE_CONFIG or built-ins)")
			flags.StringVar(&scenarioPath, "scenario", "", "scenario file the run was emitted from (default: the built-in scenario)")
			flags.BoolVar(&verbose, "verbose", false, "debug-level logging")
			return flags
		},
		Examples: []cli.Example{
			{Description: "Diagnose the default staging tree", Command: "sqelf-pipeline verify"},
			{Description: "Diagnose downloaded CI artifacts", Command: "sqelf-pipeline verify ./artifacts"},
		},
		Run: func(args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			logger := cli.NewLogger(verbose)

			root := cfg.Staging.Root
			if len(args) > 0 {
				root = args[0]
			}
			if len(args) > 1 {
				return fmt.Errorf("verify takes at most one staging root, got %v", args)
			}

			area, err := staging.Open(root)
			if err != nil {
				return err
			}

			scenario := workload.Default()
			if scenarioPath == "" {
				scenarioPath = cfg.Workload.ScenarioFile
			}
			if scenarioPath != "" {
				scenario, err = workload.ReadFile(scenarioPath)
				if err != nil {
					return err
				}
			}

			suite := &verify.Suite{Scenario: scenario, Logger: logger}
			results := suite.Run(verify.Inputs{
				SqelfLog: filepath.Join(area.LogsDir(), "sqelf.log"),
				SeqLog:   filepath.Join(area.LogsDir(), "seq.log"),
				CLEF:     filepath.Join(area.OutputDir(), "events.clef"),
			})

			writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			for _, result := range results {
				status := "PASS"
				if !result.Passed {
					status = "FAIL"
				}
				fmt.Fprintf(writer, "%s\t%s\t%s\n", status, result.Channel, result.Detail)
			}
			writer.Flush()

			if !results.Passed() {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}
