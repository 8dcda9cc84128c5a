// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Report writes the run's structured JSONL record. Each line is an
// independent JSON object:
//
//   - Crash-safe: a kill mid-run preserves every completed stage
//     line. A single JSON document would be truncated and
//     unparseable.
//   - Streamable: the CI system can tail the file for stage-by-stage
//     progress.
//
// The report file lives inside the staging tree, which does not exist
// until the staging stage has run. Lines written before AttachFile
// are buffered and flushed the moment the file opens; if the run dies
// before staging exists, there is nothing durable to write to and the
// buffered lines are lost with the process, which is the same outcome
// the CI log already records.
type Report struct {
	logger *slog.Logger

	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
	pending []any
}

// NewReport returns a Report buffering in memory until AttachFile.
func NewReport(logger *slog.Logger) *Report {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Report{logger: logger}
}

// AttachFile creates the report file (truncating any previous one)
// and flushes the buffered lines to it.
func (r *Report) AttachFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating run report %s: %w", path, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.file = file
	r.encoder = json.NewEncoder(file)
	for _, entry := range r.pending {
		r.writeLocked(entry)
	}
	r.pending = nil
	return nil
}

// Close flushes and closes the report file, if one was attached.
func (r *Report) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	r.encoder = nil
	return err
}

// Start records the run's identity as the first line.
func (r *Report) Start(build BuildContext, stageCount int, startedAt time.Time) {
	r.write(reportStartEntry{
		Type:       "start",
		Version:    build.ShortVersion,
		Platform:   build.Platform,
		Branch:     build.Branch,
		Published:  build.IsPublishedBuild,
		StageCount: stageCount,
		Timestamp:  startedAt.UTC().Format(time.RFC3339),
	})
}

// Stage records one stage's outcome.
func (r *Report) Stage(index int, name, status, detail string, duration time.Duration, stageError string) {
	r.write(reportStageEntry{
		Type:       "stage",
		Index:      index,
		Name:       name,
		Status:     status,
		Detail:     detail,
		DurationMS: duration.Milliseconds(),
		Error:      stageError,
	})
}

// Complete records a successful run as the last line. Status is "ok",
// or "publish-failed" when only distribution failed.
func (r *Report) Complete(status string, duration time.Duration, uploads []string) {
	r.write(reportCompleteEntry{
		Type:       "complete",
		Status:     status,
		DurationMS: duration.Milliseconds(),
		Uploads:    uploads,
	})
}

// Failed records a fatal failure as the last line. Kind is the
// failure classification, or "error" for failures outside the
// taxonomy (an incomplete teardown, for instance).
func (r *Report) Failed(stage, kind, failureError string, duration time.Duration) {
	r.write(reportFailedEntry{
		Type:       "failed",
		Status:     "failed",
		Kind:       kind,
		Stage:      stage,
		Error:      failureError,
		DurationMS: duration.Milliseconds(),
	})
}

func (r *Report) write(entry any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.encoder == nil {
		r.pending = append(r.pending, entry)
		return
	}
	r.writeLocked(entry)
}

func (r *Report) writeLocked(entry any) {
	if err := r.encoder.Encode(entry); err != nil {
		r.logger.Warn("failed to write report entry", "error", err)
		return
	}
	// Sync per line so completed stages survive a crash and are
	// visible to a tailing reader immediately.
	if err := r.file.Sync(); err != nil {
		r.logger.Warn("failed to sync run report", "error", err)
	}
}

// JSONL entry types. Separate structs per line type keep the wire
// format explicit.

type reportStartEntry struct {
	Type       string `json:"type"`
	Version    string `json:"version"`
	Platform   string `json:"platform"`
	Branch     string `json:"branch"`
	Published  bool   `json:"published"`
	StageCount int    `json:"stage_count"`
	Timestamp  string `json:"timestamp"`
}

type reportStageEntry struct {
	Type       string `json:"type"`
	Index      int    `json:"index"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Detail     string `json:"detail,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

type reportCompleteEntry struct {
	Type       string   `json:"type"`
	Status     string   `json:"status"`
	DurationMS int64    `json:"duration_ms"`
	Uploads    []string `json:"uploads,omitempty"`
}

type reportFailedEntry struct {
	Type       string `json:"type"`
	Status     string `json:"status"`
	Kind       string `json:"kind"`
	Stage      string `json:"stage"`
	Error      string `json:"error"`
	DurationMS int64  `json:"duration_ms"`
}
