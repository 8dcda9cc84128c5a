// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package gelf

import (
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	// chunkMagicFirst and chunkMagicSecond open every chunked
	// datagram. A payload that does not start with them is treated
	// as a complete unchunked message by receivers.
	chunkMagicFirst  = 0x1e
	chunkMagicSecond = 0x0f

	// chunkHeaderSize is the fixed header length of a chunked
	// datagram: two magic bytes, an eight-byte message ID, a
	// sequence number and a sequence count.
	chunkHeaderSize = 12

	// MaxChunks is the protocol limit on chunks per message.
	// Receivers discard messages that claim more.
	MaxChunks = 128

	// DefaultChunkSize is the datagram budget used when none is
	// configured. It fits an Ethernet-sized MTU with headroom for
	// IP and UDP headers.
	DefaultChunkSize = 1420

	// MaxMessageSize is the largest encoded message the server side
	// accepts. Emitting anything larger is a caller bug.
	MaxMessageSize = 256 * 1024
)

// ErrTooManyChunks reports a payload that cannot fit the protocol's
// 128-chunk limit at the configured datagram budget.
var ErrTooManyChunks = errors.New("gelf: message needs more than 128 chunks")

// MessageID is the random identifier correlating the chunks of one
// message on the receiving side.
type MessageID [8]byte

// NewMessageID draws a random message ID.
func NewMessageID() (MessageID, error) {
	var id MessageID
	if _, err := rand.Read(id[:]); err != nil {
		return MessageID{}, fmt.Errorf("gelf: generate message id: %w", err)
	}
	return id, nil
}

// Chunk splits a payload into chunked datagrams of at most budget
// bytes each, including the 12-byte header. Payloads that already fit
// the budget are returned as a single bare datagram with no header.
func Chunk(payload []byte, budget int, id MessageID) ([][]byte, error) {
	if budget <= chunkHeaderSize {
		return nil, fmt.Errorf("gelf: chunk budget %d does not fit the %d-byte header", budget, chunkHeaderSize)
	}
	if len(payload) <= budget {
		return [][]byte{payload}, nil
	}

	body := budget - chunkHeaderSize
	count := (len(payload) + body - 1) / body
	if count > MaxChunks {
		return nil, fmt.Errorf("%w: %d bytes need %d chunks at budget %d", ErrTooManyChunks, len(payload), count, budget)
	}

	datagrams := make([][]byte, 0, count)
	for sequence := 0; sequence < count; sequence++ {
		start := sequence * body
		end := min(start+body, len(payload))

		datagram := make([]byte, 0, chunkHeaderSize+end-start)
		datagram = append(datagram, chunkMagicFirst, chunkMagicSecond)
		datagram = append(datagram, id[:]...)
		datagram = append(datagram, byte(sequence), byte(count))
		datagram = append(datagram, payload[start:end]...)
		datagrams = append(datagrams, datagram)
	}
	return datagrams, nil
}
