// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the sqelf-pipeline CLI command tree.
package commands

import (
	"fmt"

	"github.com/datalust/sqelf-pipeline/cmd/sqelf-pipeline/cli"
	"github.com/datalust/sqelf-pipeline/lib/version"
)

// Root returns the complete command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "sqelf-pipeline",
		Description: `sqelf-pipeline: build, verify and publish the GELF input for Seq.

Builds the sqelf ingester for the requested platform, runs it against
a live Seq instance under a synthetic GELF workload, verifies the
three observation channels, and conditionally publishes the artifacts.`,
		Subcommands: []*cli.Command{
			runCommand(),
			verifyCommand(),
			historyCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("sqelf-pipeline %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "A local development run on the current platform",
				Command:     "sqelf-pipeline run",
			},
			{
				Description: "A CI release run",
				Command:     "sqelf-pipeline run --shortver 2026.1.0 --branch main --published-build",
			},
			{
				Description: "Re-verify a failed run from its staging tree",
				Command:     "sqelf-pipeline verify target/pipeline",
			},
			{
				Description: "Show the last twenty runs on this host",
				Command:     "sqelf-pipeline history",
			},
		},
	}
}
