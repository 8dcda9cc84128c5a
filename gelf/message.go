// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package gelf

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// Version is the GELF payload version emitted in every message.
const Version = "1.1"

// Level is a syslog severity level as used by the GELF level field.
type Level int

// Syslog severity levels.
const (
	LevelEmergency     Level = 0
	LevelAlert         Level = 1
	LevelCritical      Level = 2
	LevelError         Level = 3
	LevelWarning       Level = 4
	LevelNotice        Level = 5
	LevelInformational Level = 6
	LevelDebug         Level = 7
)

// fieldNamePattern is the set of additional-field names the format
// permits.
var fieldNamePattern = regexp.MustCompile(`^[\w\.\-]+$`)

// Message is one GELF event. Host and ShortMessage are required by
// the format; everything else is optional.
type Message struct {
	// Host names the emitting node.
	Host string

	// ShortMessage is the event text.
	ShortMessage string

	// FullMessage optionally carries a long form (backtraces,
	// payload dumps).
	FullMessage string

	// Timestamp is the event time. The zero value omits the field,
	// leaving the receiver to stamp arrival time.
	Timestamp time.Time

	// Level is the syslog severity.
	Level Level

	// Fields are additional fields, serialized with the "_" name
	// prefix the format requires. Names must match [\w.-]+ and must
	// not be "id".
	Fields map[string]any
}

// Encode renders the message as a GELF 1.1 JSON payload. Keys are
// emitted in sorted order, so encoding is deterministic for a given
// message.
func (m *Message) Encode() ([]byte, error) {
	if m.Host == "" {
		return nil, fmt.Errorf("gelf: message host is required")
	}
	if m.ShortMessage == "" {
		return nil, fmt.Errorf("gelf: message short_message is required")
	}

	payload := map[string]any{
		"version":       Version,
		"host":          m.Host,
		"short_message": m.ShortMessage,
		"level":         int(m.Level),
	}
	if m.FullMessage != "" {
		payload["full_message"] = m.FullMessage
	}
	if !m.Timestamp.IsZero() {
		payload["timestamp"] = unixSeconds(m.Timestamp)
	}
	for name, value := range m.Fields {
		if name == "id" {
			return nil, fmt.Errorf("gelf: additional field name %q is reserved", name)
		}
		if !fieldNamePattern.MatchString(name) {
			return nil, fmt.Errorf("gelf: invalid additional field name %q", name)
		}
		payload["_"+name] = value
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gelf: encoding message: %w", err)
	}
	return encoded, nil
}

// unixSeconds renders a time as seconds since the epoch with
// fractional precision, the GELF timestamp convention.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
