// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package workload

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/datalust/sqelf-pipeline/gelf"
	"github.com/datalust/sqelf-pipeline/lib/clock"
)

// RunConfig tunes a workload run.
type RunConfig struct {
	// Target is the GELF endpoint to emit to.
	Target gelf.Target

	// Compression applies to UDP payloads.
	Compression gelf.Compression

	// ChunkSize caps UDP datagram size. Zero means the emitter
	// default.
	ChunkSize int

	// Pace inserts a delay between consecutive frames. Zero emits
	// as fast as the socket accepts.
	Pace time.Duration

	// Clock stamps event timestamps and drives pacing. Nil means
	// the real clock.
	Clock clock.Clock

	// Logger receives per-frame debug logging. Nil discards.
	Logger *slog.Logger
}

// RunReport summarizes what a run put on the wire.
type RunReport struct {
	// Emitted counts successfully sent events.
	Emitted int

	// Faults counts fault frames attempted. Send errors on faults
	// are tolerated, so this may exceed what actually left the
	// socket.
	Faults int
}

// Run emits the scenario's events in order, then its fault frames.
// Event send errors abort the run; a scenario is only useful to the
// verification suite if every valid event reached the wire. Fault
// frames are best-effort.
func Run(ctx context.Context, scenario *Scenario, config RunConfig) (RunReport, error) {
	if err := scenario.Validate(); err != nil {
		return RunReport{}, fmt.Errorf("workload: %w", err)
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	emitter, err := gelf.Dial(config.Target, gelf.EmitterConfig{
		Compression: config.Compression,
		ChunkSize:   config.ChunkSize,
	})
	if err != nil {
		return RunReport{}, fmt.Errorf("workload: %w", err)
	}
	defer emitter.Close()

	logger.Info("starting workload",
		"scenario", scenario.Name,
		"target", config.Target.String(),
		"events", len(scenario.Events),
		"faults", len(scenario.Faults))

	var report RunReport
	for index, event := range scenario.Events {
		if index > 0 && config.Pace > 0 {
			if err := pause(ctx, clk, config.Pace); err != nil {
				return report, err
			}
		}
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("workload interrupted: %w", err)
		}

		message := scenario.message(event)
		message.Timestamp = clk.Now()
		if err := emitter.Emit(message); err != nil {
			return report, fmt.Errorf("workload: event %q: %w", event.TestID, err)
		}
		report.Emitted++
		logger.Debug("emitted event", "test_id", event.TestID)
	}

	for _, fault := range scenario.Faults {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("workload interrupted: %w", err)
		}
		report.Faults++
		if err := emitter.EmitRaw(fault.Payload); err != nil {
			logger.Warn("fault frame not sent", "fault", fault.Name, "error", err)
		} else {
			logger.Debug("emitted fault frame", "fault", fault.Name)
		}
	}

	logger.Info("workload complete", "emitted", report.Emitted, "faults", report.Faults)
	return report, nil
}

// pause waits for the pacing interval or context cancellation,
// whichever comes first.
func pause(ctx context.Context, clk clock.Clock, interval time.Duration) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("workload interrupted: %w", ctx.Err())
	case <-clk.After(interval):
		return nil
	}
}
