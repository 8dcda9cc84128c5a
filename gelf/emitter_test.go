// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package gelf

import (
	"bytes"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
)

func TestParseTarget(t *testing.T) {
	cases := []struct {
		raw  string
		want Target
		ok   bool
	}{
		{"udp://localhost:12201", Target{"udp", "localhost:12201"}, true},
		{"tcp://seq-ingest:12202", Target{"tcp", "seq-ingest:12202"}, true},
		{"localhost:9000", Target{"udp", "localhost:9000"}, true},
		{"localhost", Target{"udp", "localhost:12201"}, true},
		{"tcp://ingest", Target{"tcp", "ingest:12201"}, true},
		{"udp://[::1]:12201", Target{"udp", "[::1]:12201"}, true},
		{"http://localhost:12201", Target{}, false},
		{"udp://", Target{}, false},
		{"", Target{}, false},
	}
	for _, c := range cases {
		got, err := ParseTarget(c.raw)
		if c.ok && err != nil {
			t.Errorf("ParseTarget(%q): %v", c.raw, err)
			continue
		}
		if !c.ok {
			if err == nil {
				t.Errorf("ParseTarget(%q) should fail, got %v", c.raw, got)
			}
			continue
		}
		if got != c.want {
			t.Errorf("ParseTarget(%q) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestTargetString(t *testing.T) {
	target, err := ParseTarget("tcp://ingest:12202")
	if err != nil {
		t.Fatalf("parsing target: %v", err)
	}
	if target.String() != "tcp://ingest:12202" {
		t.Errorf("String() = %q", target.String())
	}
}

// udpSink binds a loopback UDP socket and returns it with a target
// pointing at it.
func udpSink(t *testing.T) (net.PacketConn, Target) {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("binding udp sink: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, Target{Network: "udp", Address: conn.LocalAddr().String()}
}

func readDatagram(t *testing.T, conn net.PacketConn) []byte {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("setting read deadline: %v", err)
	}
	buffer := make([]byte, 64*1024)
	n, _, err := conn.ReadFrom(buffer)
	if err != nil {
		t.Fatalf("reading datagram: %v", err)
	}
	return buffer[:n]
}

func TestEmitterUDPRoundTrip(t *testing.T) {
	sink, target := udpSink(t)

	emitter, err := Dial(target, EmitterConfig{})
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer emitter.Close()

	message := &Message{
		Host:         "builder-01",
		ShortMessage: "round trip",
		Level:        LevelInformational,
		Fields:       map[string]any{"test_id": "evt-0001"},
	}
	if err := emitter.Emit(message); err != nil {
		t.Fatalf("emitting: %v", err)
	}

	decoded := decodePayload(t, readDatagram(t, sink))
	if decoded["short_message"] != "round trip" {
		t.Errorf("short_message = %v", decoded["short_message"])
	}
	if decoded["_test_id"] != "evt-0001" {
		t.Errorf("_test_id = %v", decoded["_test_id"])
	}
}

func TestEmitterUDPChunksLargeMessages(t *testing.T) {
	sink, target := udpSink(t)

	emitter, err := Dial(target, EmitterConfig{ChunkSize: 128})
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer emitter.Close()

	message := &Message{
		Host:         "builder-01",
		ShortMessage: strings.Repeat("chunked payload ", 40),
	}
	if err := emitter.Emit(message); err != nil {
		t.Fatalf("emitting: %v", err)
	}

	first := readDatagram(t, sink)
	if first[0] != 0x1e || first[1] != 0x0f {
		t.Fatalf("first datagram is not chunked: %x", first[:2])
	}
	count := int(first[11])
	if count < 2 {
		t.Fatalf("count byte = %d, expected a multi-chunk message", count)
	}

	id := first[2:10]
	bodies := make([][]byte, count)
	bodies[first[10]] = first[chunkHeaderSize:]
	for range count - 1 {
		datagram := readDatagram(t, sink)
		if !bytes.Equal(datagram[2:10], id) {
			t.Fatalf("datagram carries a different message id")
		}
		bodies[datagram[10]] = datagram[chunkHeaderSize:]
	}

	var payload []byte
	for _, body := range bodies {
		payload = append(payload, body...)
	}
	decoded := decodePayload(t, payload)
	if decoded["host"] != "builder-01" {
		t.Errorf("host = %v", decoded["host"])
	}
}

func TestEmitterUDPGzipCompression(t *testing.T) {
	sink, target := udpSink(t)

	emitter, err := Dial(target, EmitterConfig{Compression: CompressionGzip})
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer emitter.Close()

	message := &Message{Host: "builder-01", ShortMessage: "compressed"}
	if err := emitter.Emit(message); err != nil {
		t.Fatalf("emitting: %v", err)
	}

	datagram := readDatagram(t, sink)
	reader, err := gzip.NewReader(bytes.NewReader(datagram))
	if err != nil {
		t.Fatalf("datagram is not a gzip stream: %v", err)
	}
	payload, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("reading gzip stream: %v", err)
	}
	decoded := decodePayload(t, payload)
	if decoded["short_message"] != "compressed" {
		t.Errorf("short_message = %v", decoded["short_message"])
	}
}

func TestEmitterTCPDelimitsWithNUL(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("binding tcp sink: %v", err)
	}
	defer listener.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	target := Target{Network: "tcp", Address: listener.Addr().String()}
	emitter, err := Dial(target, EmitterConfig{})
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	if err := emitter.Emit(&Message{Host: "a", ShortMessage: "first"}); err != nil {
		t.Fatalf("emitting first: %v", err)
	}
	if err := emitter.Emit(&Message{Host: "a", ShortMessage: "second"}); err != nil {
		t.Fatalf("emitting second: %v", err)
	}
	emitter.Close()

	var data []byte
	select {
	case data = <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the tcp sink")
	}

	frames := bytes.Split(data, []byte{0x00})
	// A trailing NUL leaves one empty element after the split.
	if len(frames) != 3 || len(frames[2]) != 0 {
		t.Fatalf("got %d frames, want 2 NUL-terminated messages", len(frames)-1)
	}
	first := decodePayload(t, frames[0])
	second := decodePayload(t, frames[1])
	if first["short_message"] != "first" || second["short_message"] != "second" {
		t.Errorf("frames out of order: %v / %v", first["short_message"], second["short_message"])
	}
}

func TestEmitterTCPRejectsCompression(t *testing.T) {
	target := Target{Network: "tcp", Address: "127.0.0.1:1"}
	if _, err := Dial(target, EmitterConfig{Compression: CompressionZlib}); err == nil {
		t.Fatal("tcp with compression should be rejected before dialing")
	}
}

func TestEmitRawSendsPayloadVerbatim(t *testing.T) {
	sink, target := udpSink(t)

	emitter, err := Dial(target, EmitterConfig{})
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer emitter.Close()

	malformed := []byte(`{"version":"1.1","host":`)
	if err := emitter.EmitRaw(malformed); err != nil {
		t.Fatalf("emitting raw: %v", err)
	}
	if got := readDatagram(t, sink); !bytes.Equal(got, malformed) {
		t.Errorf("raw payload arrived as %q", got)
	}
}

func TestEmitRejectsOversizedMessages(t *testing.T) {
	_, target := udpSink(t)

	emitter, err := Dial(target, EmitterConfig{})
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer emitter.Close()

	message := &Message{
		Host:         "builder-01",
		ShortMessage: strings.Repeat("x", MaxMessageSize+1),
	}
	err = emitter.Emit(message)
	if err == nil {
		t.Fatal("expected an error for an oversized message")
	}
	if !strings.Contains(err.Error(), "limit") {
		t.Errorf("error %q does not mention the size limit", err)
	}
}
