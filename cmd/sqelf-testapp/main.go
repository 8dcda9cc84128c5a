// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

// sqelf-testapp emits a synthetic GELF workload against an ingester.
// The pipeline runs it inside the test environment; it also works
// standalone against any GELF endpoint for manual poking.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/datalust/sqelf-pipeline/gelf"
	"github.com/datalust/sqelf-pipeline/lib/process"
	"github.com/datalust/sqelf-pipeline/lib/version"
	"github.com/datalust/sqelf-pipeline/workload"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	var (
		target       string
		scenarioPath string
		compression  string
		chunkSize    int
		pace         time.Duration
		verbose      bool
		showVersion  bool
	)

	flags := pflag.NewFlagSet("sqelf-testapp", pflag.ContinueOnError)
	flags.StringVar(&target, "target", "udp://127.0.0.1:12201", "GELF endpoint: udp://host:port, tcp://host:port, or host:port")
	flags.StringVar(&scenarioPath, "scenario", "", "scenario file (default: the built-in scenario)")
	flags.StringVar(&compression, "compression", "gzip", "UDP payload compression: none, gzip, or zlib")
	flags.IntVar(&chunkSize, "chunk-size", 0, "UDP datagram size cap (0 = emitter default)")
	flags.DurationVar(&pace, "pace", 0, "delay between frames (0 = as fast as the socket accepts)")
	flags.BoolVar(&verbose, "verbose", false, "per-frame debug logging")
	flags.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if showVersion {
		fmt.Printf("sqelf-testapp %s\n", version.Info())
		return nil
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	parsedTarget, err := gelf.ParseTarget(target)
	if err != nil {
		return err
	}
	parsedCompression, err := gelf.ParseCompression(compression)
	if err != nil {
		return err
	}

	scenario := workload.Default()
	if scenarioPath != "" {
		scenario, err = workload.ReadFile(scenarioPath)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := workload.Run(ctx, scenario, workload.RunConfig{
		Target:      parsedTarget,
		Compression: parsedCompression,
		ChunkSize:   chunkSize,
		Pace:        pace,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	logger.Info("workload complete",
		"scenario", scenario.Name,
		"emitted", report.Emitted,
		"faults", report.Faults)
	return nil
}
