// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package gelf

import (
	"bytes"
	"errors"
	"testing"
)

func TestChunkSmallPayloadPassesThrough(t *testing.T) {
	payload := []byte(`{"version":"1.1"}`)
	datagrams, err := Chunk(payload, DefaultChunkSize, MessageID{1, 2, 3, 4, 5, 6, 7, 8})
	if err != nil {
		t.Fatalf("chunking: %v", err)
	}
	if len(datagrams) != 1 {
		t.Fatalf("got %d datagrams, want 1", len(datagrams))
	}
	if !bytes.Equal(datagrams[0], payload) {
		t.Errorf("small payload should be sent bare, got %x", datagrams[0])
	}
}

func TestChunkHeaderLayout(t *testing.T) {
	// 100 bytes at a 52-byte budget leaves 40 bytes of body per
	// chunk, so three chunks.
	payload := bytes.Repeat([]byte{0xab}, 100)
	id := MessageID{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02, 0x03, 0x04}

	datagrams, err := Chunk(payload, 52, id)
	if err != nil {
		t.Fatalf("chunking: %v", err)
	}
	if len(datagrams) != 3 {
		t.Fatalf("got %d datagrams, want 3", len(datagrams))
	}

	var reassembled []byte
	for sequence, datagram := range datagrams {
		if len(datagram) > 52 {
			t.Errorf("datagram %d is %d bytes, above the 52-byte budget", sequence, len(datagram))
		}
		if datagram[0] != 0x1e || datagram[1] != 0x0f {
			t.Errorf("datagram %d magic = %x %x", sequence, datagram[0], datagram[1])
		}
		if !bytes.Equal(datagram[2:10], id[:]) {
			t.Errorf("datagram %d message id = %x, want %x", sequence, datagram[2:10], id)
		}
		if datagram[10] != byte(sequence) {
			t.Errorf("datagram %d sequence byte = %d", sequence, datagram[10])
		}
		if datagram[11] != 3 {
			t.Errorf("datagram %d count byte = %d, want 3", sequence, datagram[11])
		}
		reassembled = append(reassembled, datagram[chunkHeaderSize:]...)
	}
	if !bytes.Equal(reassembled, payload) {
		t.Error("reassembled chunk bodies do not match the payload")
	}
}

func TestChunkBudgetBoundary(t *testing.T) {
	exact := bytes.Repeat([]byte{0x01}, 64)
	datagrams, err := Chunk(exact, 64, MessageID{})
	if err != nil {
		t.Fatalf("chunking payload at budget: %v", err)
	}
	if len(datagrams) != 1 {
		t.Errorf("payload equal to budget should stay bare, got %d datagrams", len(datagrams))
	}

	over := bytes.Repeat([]byte{0x01}, 65)
	datagrams, err = Chunk(over, 64, MessageID{})
	if err != nil {
		t.Fatalf("chunking payload above budget: %v", err)
	}
	if len(datagrams) != 2 {
		t.Errorf("got %d datagrams, want 2", len(datagrams))
	}
}

func TestChunkRefusesMoreThanProtocolLimit(t *testing.T) {
	// 13-byte budget leaves one body byte per chunk, so 129 bytes
	// exceed the 128-chunk limit.
	payload := bytes.Repeat([]byte{0x01}, 129)
	_, err := Chunk(payload, 13, MessageID{})
	if !errors.Is(err, ErrTooManyChunks) {
		t.Fatalf("got %v, want ErrTooManyChunks", err)
	}

	fits := bytes.Repeat([]byte{0x01}, 128)
	datagrams, err := Chunk(fits, 13, MessageID{})
	if err != nil {
		t.Fatalf("chunking at the limit: %v", err)
	}
	if len(datagrams) != MaxChunks {
		t.Errorf("got %d datagrams, want %d", len(datagrams), MaxChunks)
	}
}

func TestChunkRejectsBudgetBelowHeader(t *testing.T) {
	if _, err := Chunk([]byte("abc"), chunkHeaderSize, MessageID{}); err == nil {
		t.Error("budget equal to the header size should be rejected")
	}
	if _, err := Chunk([]byte("abc"), 0, MessageID{}); err == nil {
		t.Error("zero budget should be rejected")
	}
}

func TestNewMessageIDVaries(t *testing.T) {
	first, err := NewMessageID()
	if err != nil {
		t.Fatalf("generating id: %v", err)
	}
	second, err := NewMessageID()
	if err != nil {
		t.Fatalf("generating id: %v", err)
	}
	if first == second {
		t.Error("consecutive message ids should differ")
	}
}
