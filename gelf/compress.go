// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package gelf

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Compression identifies the payload compression applied to a UDP
// datagram. The receiver detects it from the payload's leading bytes,
// so no framing carries it.
type Compression uint8

const (
	// CompressionNone sends the JSON payload as-is.
	CompressionNone Compression = 0

	// CompressionGzip wraps the payload in a gzip stream.
	CompressionGzip Compression = 1

	// CompressionZlib wraps the payload in a zlib stream.
	CompressionZlib Compression = 2
)

// String returns the human-readable name of a compression mode.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZlib:
		return "zlib"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a compression mode from its string
// representation.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none", "":
		return CompressionNone, nil
	case "gzip":
		return CompressionGzip, nil
	case "zlib":
		return CompressionZlib, nil
	default:
		return 0, fmt.Errorf("gelf: unknown compression %q", name)
	}
}

// compress applies the compression mode to a payload. For
// CompressionNone the input is returned unchanged (no copy).
func compress(payload []byte, mode Compression) ([]byte, error) {
	switch mode {
	case CompressionNone:
		return payload, nil

	case CompressionGzip:
		var buffer bytes.Buffer
		writer := gzip.NewWriter(&buffer)
		if _, err := writer.Write(payload); err != nil {
			return nil, fmt.Errorf("gelf: gzip compress: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("gelf: gzip compress: %w", err)
		}
		return buffer.Bytes(), nil

	case CompressionZlib:
		var buffer bytes.Buffer
		writer := zlib.NewWriter(&buffer)
		if _, err := writer.Write(payload); err != nil {
			return nil, fmt.Errorf("gelf: zlib compress: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("gelf: zlib compress: %w", err)
		}
		return buffer.Bytes(), nil

	default:
		return nil, fmt.Errorf("gelf: unsupported compression %d", mode)
	}
}
