// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package gelf

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPort is the conventional GELF ingestion port.
const DefaultPort = 12201

// Target names a GELF endpoint. The zero value is not usable; build
// one with ParseTarget.
type Target struct {
	// Network is "udp" or "tcp".
	Network string

	// Address is the host:port to dial.
	Address string
}

// ParseTarget parses an endpoint of the form "udp://host:port" or
// "tcp://host:port". A bare "host:port" means UDP, and a missing port
// means DefaultPort.
func ParseTarget(raw string) (Target, error) {
	scheme, rest, found := strings.Cut(raw, "://")
	if !found {
		scheme, rest = "udp", raw
	}
	switch scheme {
	case "udp", "tcp":
	default:
		return Target{}, fmt.Errorf("gelf: unsupported scheme %q in target %q", scheme, raw)
	}
	if rest == "" {
		return Target{}, fmt.Errorf("gelf: target %q has no address", raw)
	}
	if _, _, err := net.SplitHostPort(rest); err != nil {
		rest = net.JoinHostPort(rest, strconv.Itoa(DefaultPort))
	}
	return Target{Network: scheme, Address: rest}, nil
}

// String renders the target back into scheme://host:port form.
func (t Target) String() string {
	return t.Network + "://" + t.Address
}

// EmitterConfig tunes how an Emitter puts messages on the wire.
type EmitterConfig struct {
	// Compression applies to UDP payloads. TCP framing delimits
	// messages with NUL bytes and cannot carry compressed streams,
	// so TCP targets require CompressionNone.
	Compression Compression

	// ChunkSize caps the size of each UDP datagram, header
	// included. Zero means DefaultChunkSize.
	ChunkSize int
}

// Emitter sends encoded messages to a single GELF endpoint over a
// dialed connection. It is not safe for concurrent use.
type Emitter struct {
	conn        net.Conn
	target      Target
	compression Compression
	chunkSize   int
}

// Dial connects to a GELF endpoint.
func Dial(target Target, config EmitterConfig) (*Emitter, error) {
	if target.Network == "tcp" && config.Compression != CompressionNone {
		return nil, fmt.Errorf("gelf: tcp targets cannot carry %s compression", config.Compression)
	}
	chunkSize := config.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize <= chunkHeaderSize {
		return nil, fmt.Errorf("gelf: chunk size %d does not fit the %d-byte header", chunkSize, chunkHeaderSize)
	}

	conn, err := net.Dial(target.Network, target.Address)
	if err != nil {
		return nil, fmt.Errorf("gelf: dial %s: %w", target, err)
	}
	return &Emitter{
		conn:        conn,
		target:      target,
		compression: config.Compression,
		chunkSize:   chunkSize,
	}, nil
}

// Target reports the endpoint this emitter is connected to.
func (e *Emitter) Target() Target {
	return e.target
}

// Emit encodes and sends a message.
func (e *Emitter) Emit(message *Message) error {
	payload, err := message.Encode()
	if err != nil {
		return err
	}
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("gelf: encoded message is %d bytes, above the %d-byte limit", len(payload), MaxMessageSize)
	}
	return e.send(payload)
}

// EmitRaw sends a pre-encoded payload without validating it. Use it
// to put deliberately malformed traffic on the wire; receivers are
// expected to discard such payloads without acknowledgement.
func (e *Emitter) EmitRaw(payload []byte) error {
	return e.send(payload)
}

// Close releases the connection.
func (e *Emitter) Close() error {
	return e.conn.Close()
}

func (e *Emitter) send(payload []byte) error {
	if e.target.Network == "tcp" {
		framed := make([]byte, 0, len(payload)+1)
		framed = append(framed, payload...)
		framed = append(framed, 0x00)
		if _, err := e.conn.Write(framed); err != nil {
			return fmt.Errorf("gelf: send to %s: %w", e.target, err)
		}
		return nil
	}

	body, err := compress(payload, e.compression)
	if err != nil {
		return err
	}
	id, err := NewMessageID()
	if err != nil {
		return err
	}
	datagrams, err := Chunk(body, e.chunkSize, id)
	if err != nil {
		return err
	}
	for _, datagram := range datagrams {
		if _, err := e.conn.Write(datagram); err != nil {
			return fmt.Errorf("gelf: send to %s: %w", e.target, err)
		}
	}
	return nil
}
