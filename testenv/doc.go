// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

// Package testenv stands up and tears down the containerized test
// topology: an isolated docker network carrying the log server, the
// GELF ingester under test, and the workload emitter.
//
// The Controller walks a small state machine. Start brings the three
// containers up in dependency order, gating each on a readiness
// signal: an HTTP health probe for the log server and a listener log
// marker for the ingester. RunWorkload waits for the emitter to
// finish, Settle covers asynchronous ingestion, and ExportCLEF and
// CaptureLogs spool the evidence the verification suite reads into
// the staging area. Stop releases everything and is safe to call
// after a partial start.
package testenv
