// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/datalust/sqelf-pipeline/cmd/sqelf-pipeline/commands"
	"github.com/datalust/sqelf-pipeline/lib/process"
)

func main() {
	if err := commands.Root().Execute(os.Args[1:]); err != nil {
		// Commands that print their own output return an ExitError
		// carrying the desired code; no redundant "error:" line for
		// those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		process.Fatal(err)
	}
}
