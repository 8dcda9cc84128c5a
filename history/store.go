// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/datalust/sqelf-pipeline/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY,
	version     TEXT NOT NULL,
	platform    TEXT NOT NULL,
	branch      TEXT NOT NULL,
	published   INTEGER NOT NULL,
	status      TEXT NOT NULL,
	failure     TEXT NOT NULL DEFAULT '',
	started_at  TEXT NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

CREATE TABLE IF NOT EXISTS stages (
	run_id      INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL,
	PRIMARY KEY (run_id, position)
);
`

// Run is one pipeline run's ledger row.
type Run struct {
	ID        int64
	Version   string
	Platform  string
	Branch    string
	Published bool

	// Status is "ok", "failed", or "publish-failed".
	Status string

	// Failure names the failure kind for failed runs, "" otherwise.
	Failure string

	StartedAt time.Time
	Duration  time.Duration
}

// Stage is one stage's ledger row.
type Stage struct {
	Name string

	// Status is "ok", "failed", or "skipped".
	Status string

	// Detail carries the failure diagnostic or a short outcome note.
	Detail string

	Duration time.Duration
}

// Config holds the parameters for opening a ledger.
type Config struct {
	// Path is the SQLite database file. Parent directories are
	// created as needed.
	Path string

	// Logger receives operational messages.
	Logger *slog.Logger
}

// Store is the run ledger.
type Store struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// Open opens (creating if needed) the ledger database.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("history: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("history: creating ledger directory: %w", err)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   cfg.Path,
		Logger: logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the ledger's connections.
func (s *Store) Close() error {
	return s.pool.Close()
}

// RecordRun appends a run row and its stage rows in one transaction,
// returning the run's ledger id.
func (s *Store) RecordRun(ctx context.Context, run Run, stages []Stage) (runID int64, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("history: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn, `INSERT INTO runs
		(version, platform, branch, published, status, failure, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			run.Version,
			run.Platform,
			run.Branch,
			boolToInt(run.Published),
			run.Status,
			run.Failure,
			run.StartedAt.UTC().Format(time.RFC3339Nano),
			run.Duration.Milliseconds(),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("history: inserting run: %w", err)
	}
	runID = conn.LastInsertRowID()

	for position, stage := range stages {
		err = sqlitex.Execute(conn, `INSERT INTO stages
			(run_id, position, name, status, detail, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
			Args: []any{
				runID,
				position,
				stage.Name,
				stage.Status,
				stage.Detail,
				stage.Duration.Milliseconds(),
			},
		})
		if err != nil {
			return 0, fmt.Errorf("history: inserting stage %s: %w", stage.Name, err)
		}
	}

	s.logger.Debug("run recorded", "run_id", runID, "status", run.Status)
	return runID, nil
}

// RecentRuns returns the newest runs, up to limit, most recent first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var runs []Run
	err = sqlitex.Execute(conn, `SELECT
		id, version, platform, branch, published, status, failure, started_at, duration_ms
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, &sqlitex.ExecOptions{
		Args: []any{limit},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			startedAt, err := time.Parse(time.RFC3339Nano, stmt.ColumnText(7))
			if err != nil {
				return fmt.Errorf("run %d: bad started_at: %w", stmt.ColumnInt64(0), err)
			}
			runs = append(runs, Run{
				ID:        stmt.ColumnInt64(0),
				Version:   stmt.ColumnText(1),
				Platform:  stmt.ColumnText(2),
				Branch:    stmt.ColumnText(3),
				Published: stmt.ColumnInt64(4) != 0,
				Status:    stmt.ColumnText(5),
				Failure:   stmt.ColumnText(6),
				StartedAt: startedAt,
				Duration:  time.Duration(stmt.ColumnInt64(8)) * time.Millisecond,
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("history: listing runs: %w", err)
	}
	return runs, nil
}

// RunStages returns a run's stage rows in execution order.
func (s *Store) RunStages(ctx context.Context, runID int64) ([]Stage, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var stages []Stage
	err = sqlitex.Execute(conn, `SELECT name, status, detail, duration_ms
		FROM stages WHERE run_id = ? ORDER BY position`, &sqlitex.ExecOptions{
		Args: []any{runID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			stages = append(stages, Stage{
				Name:     stmt.ColumnText(0),
				Status:   stmt.ColumnText(1),
				Detail:   stmt.ColumnText(2),
				Duration: time.Duration(stmt.ColumnInt64(3)) * time.Millisecond,
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("history: listing stages for run %d: %w", runID, err)
	}
	return stages, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
