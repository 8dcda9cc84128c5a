// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the SQLite connection pool backing the
// pipeline's run-history ledger.
//
// It wraps zombiezen.com/go/sqlite with defaults suited to a small
// local ledger: WAL journal mode, NORMAL synchronous for
// process-crash durability without fsync-per-commit overhead, a busy
// timeout so concurrent pipeline invocations on one host queue
// instead of failing, and foreign keys enforced (stage rows reference
// their run).
//
// Callers [Pool.Take] a connection, perform work, and [Pool.Put] it
// back. Connections are NOT safe for concurrent use — each goroutine
// must hold its own connection for the duration of its work.
//
// # Usage
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   "/home/ci/.cache/sqelf-pipeline/history.db",
//	    Logger: logger,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
// This package is intentionally thin: it applies standard pragmas and
// exposes the underlying zombiezen types directly. Callers write SQL
// and use sqlitex.Execute; there is no query builder.
package sqlitepool
