// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package gelf

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

func TestCompressNoneReturnsPayloadUnchanged(t *testing.T) {
	payload := []byte(`{"version":"1.1","host":"a","short_message":"b"}`)
	compressed, err := compress(payload, CompressionNone)
	if err != nil {
		t.Fatalf("compressing: %v", err)
	}
	if !bytes.Equal(compressed, payload) {
		t.Error("none mode should leave the payload unchanged")
	}
}

func TestCompressGzipRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("sqelf "), 200)
	compressed, err := compress(payload, CompressionGzip)
	if err != nil {
		t.Fatalf("compressing: %v", err)
	}
	if len(compressed) >= len(payload) {
		t.Errorf("gzip did not shrink a repetitive payload: %d >= %d", len(compressed), len(payload))
	}

	reader, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("opening gzip stream: %v", err)
	}
	decompressed, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("reading gzip stream: %v", err)
	}
	if !bytes.Equal(decompressed, payload) {
		t.Error("gzip round trip lost data")
	}
}

func TestCompressZlibRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("sqelf "), 200)
	compressed, err := compress(payload, CompressionZlib)
	if err != nil {
		t.Fatalf("compressing: %v", err)
	}

	reader, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("opening zlib stream: %v", err)
	}
	decompressed, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("reading zlib stream: %v", err)
	}
	if !bytes.Equal(decompressed, payload) {
		t.Error("zlib round trip lost data")
	}
}

func TestParseCompression(t *testing.T) {
	cases := []struct {
		name string
		want Compression
		ok   bool
	}{
		{"none", CompressionNone, true},
		{"", CompressionNone, true},
		{"gzip", CompressionGzip, true},
		{"zlib", CompressionZlib, true},
		{"lz4", 0, false},
		{"GZIP", 0, false},
	}
	for _, c := range cases {
		got, err := ParseCompression(c.name)
		if c.ok && err != nil {
			t.Errorf("ParseCompression(%q): %v", c.name, err)
			continue
		}
		if !c.ok {
			if err == nil {
				t.Errorf("ParseCompression(%q) should fail", c.name)
			}
			continue
		}
		if got != c.want {
			t.Errorf("ParseCompression(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}
