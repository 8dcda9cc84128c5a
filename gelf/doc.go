// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

// Package gelf implements the emitting side of the GELF 1.1 wire
// format: JSON payload encoding, optional gzip/zlib payload
// compression, UDP chunking, and NUL-delimited TCP framing.
//
// The pipeline uses it to drive a known workload through the
// ingestion component under test. Only emission is implemented; the
// receiving side is the component under test itself and stays a black
// box.
//
// A payload that fits the datagram budget is sent as a bare JSON
// datagram. A larger payload is split into chunks, each carrying the
// 12-byte chunk header: the 0x1e 0x0f magic, an 8-byte message ID,
// the chunk's sequence number, and the sequence count. A message may
// occupy at most 128 chunks; emitting more is an error rather than a
// silent truncation.
//
// Targets use the same bind syntax the server accepts:
// "udp://host:port", "tcp://host:port", or a bare "host:port" which
// means UDP.
package gelf
