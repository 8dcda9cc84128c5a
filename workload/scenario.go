// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package workload

import (
	"errors"
	"fmt"
	"strings"

	"github.com/datalust/sqelf-pipeline/gelf"
)

// Event is one well-formed workload event.
type Event struct {
	// TestID uniquely identifies the event within its scenario. It
	// is sent as the _test_id additional field and matched against
	// the exported record stream.
	TestID string

	// Message is the event text.
	Message string

	// FullMessage optionally carries a long form.
	FullMessage string

	// Level is the syslog severity to send.
	Level gelf.Level

	// Fields are additional properties beyond test_id.
	Fields map[string]any

	// Exact marks events whose message the verification suite must
	// reconstruct byte-for-byte from the export, not merely count.
	Exact bool
}

// Fault is a deliberately malformed frame. Healthy servers drop
// faults without acknowledgement, so they never produce records.
type Fault struct {
	// Name identifies the fault in logs and diagnostics.
	Name string

	// Payload is put on the wire as-is.
	Payload []byte
}

// Scenario is a deterministic workload: the same scenario always
// produces the same frames in the same order.
type Scenario struct {
	// Name identifies the scenario in the run report.
	Name string

	// Host is the GELF source host stamped on every event.
	Host string

	// Events are emitted in order.
	Events []Event

	// Faults are emitted after the events.
	Faults []Fault
}

// ExpectedRecords is the number of records the server must export
// for this scenario. Faults do not count.
func (s *Scenario) ExpectedRecords() int {
	return len(s.Events)
}

// ExactEvents returns the events whose messages must survive the
// trip byte-for-byte.
func (s *Scenario) ExactEvents() []Event {
	var exact []Event
	for _, event := range s.Events {
		if event.Exact {
			exact = append(exact, event)
		}
	}
	return exact
}

// Validate checks the scenario for problems that would make its
// verification ambiguous. All problems are reported, not just the
// first.
func (s *Scenario) Validate() error {
	var problems []error
	if s.Name == "" {
		problems = append(problems, errors.New("scenario name is required"))
	}
	if s.Host == "" {
		problems = append(problems, errors.New("scenario host is required"))
	}
	if len(s.Events) == 0 {
		problems = append(problems, errors.New("scenario has no events"))
	}

	seen := make(map[string]bool, len(s.Events))
	for index, event := range s.Events {
		if event.TestID == "" {
			problems = append(problems, fmt.Errorf("event %d has no test_id", index))
			continue
		}
		if seen[event.TestID] {
			problems = append(problems, fmt.Errorf("duplicate test_id %q", event.TestID))
		}
		seen[event.TestID] = true

		// A trial encode catches empty messages, bad field names
		// and unserializable values before anything hits the wire.
		if _, err := s.message(event).Encode(); err != nil {
			problems = append(problems, fmt.Errorf("event %q: %w", event.TestID, err))
		}
	}

	for index, fault := range s.Faults {
		if fault.Name == "" {
			problems = append(problems, fmt.Errorf("fault %d has no name", index))
		}
		if len(fault.Payload) == 0 {
			problems = append(problems, fmt.Errorf("fault %q has no payload", fault.Name))
		}
	}
	return errors.Join(problems...)
}

// message assembles the wire form of an event. The test_id rides as
// an additional field next to the event's own.
func (s *Scenario) message(event Event) *gelf.Message {
	fields := make(map[string]any, len(event.Fields)+1)
	for name, value := range event.Fields {
		fields[name] = value
	}
	fields["test_id"] = event.TestID

	return &gelf.Message{
		Host:         s.Host,
		ShortMessage: event.Message,
		FullMessage:  event.FullMessage,
		Level:        event.Level,
		Fields:       fields,
	}
}

// DefaultEventCount is the size of the built-in scenario.
const DefaultEventCount = 50

// Slots in the default scenario claimed by edge-case events.
const (
	defaultUnicodeSlot    = 17
	defaultOversizedSlot  = 23
	defaultManyFieldsSlot = 31
)

// unicodeMessage mixes scripts, an emoji and a combining sequence so
// a byte-level comparison catches any re-encoding on the way through.
const unicodeMessage = "Übergabe bestätigt — журнал принят, ログ取り込み完了 ✅ (naïve café, á)"

// Default builds the built-in scenario: fifty events cycling through
// the lower severities, with a unicode message, a message large
// enough to need chunking, and a wide property map at fixed slots,
// followed by two fault frames.
func Default() *Scenario {
	severities := []gelf.Level{
		gelf.LevelDebug,
		gelf.LevelInformational,
		gelf.LevelNotice,
		gelf.LevelWarning,
	}

	scenario := &Scenario{
		Name: "default",
		Host: "sqelf-testapp",
	}
	for sequence := 1; sequence <= DefaultEventCount; sequence++ {
		event := Event{
			TestID:  fmt.Sprintf("evt-%04d", sequence),
			Message: fmt.Sprintf("workload event %d of %d", sequence, DefaultEventCount),
			Level:   severities[sequence%len(severities)],
			Fields: map[string]any{
				"sequence": sequence,
				"facility": "sqelf-workload",
			},
		}

		switch sequence {
		case defaultUnicodeSlot:
			event.Message = unicodeMessage
			event.Exact = true
		case defaultOversizedSlot:
			event.Message = oversizedMessage()
			event.FullMessage = "deliberately larger than one datagram"
			event.Exact = true
		case defaultManyFieldsSlot:
			for field := 1; field <= 32; field++ {
				event.Fields[fmt.Sprintf("field_%02d", field)] = field * 7
			}
			event.Exact = true
		}
		scenario.Events = append(scenario.Events, event)
	}

	scenario.Faults = []Fault{
		{Name: "truncated-chunk-header", Payload: TruncatedChunkHeader()},
		{Name: "garbage-bytes", Payload: GarbageBytes()},
	}
	return scenario
}

// oversizedMessage builds a deterministic message comfortably past
// the default datagram budget, so it always travels chunked.
func oversizedMessage() string {
	const sentence = "The quick brown fox jumps over the lazy dog while the ingestion pipeline keeps every byte intact. "
	var builder strings.Builder
	for builder.Len() < 8*1024 {
		builder.WriteString(sentence)
	}
	return builder.String()
}

// TruncatedChunkHeader returns a frame that opens with the chunk
// magic but ends before the header completes.
func TruncatedChunkHeader() []byte {
	return []byte{0x1e, 0x0f, 0xde, 0xad, 0xbe}
}

// GarbageBytes returns a frame that is neither valid JSON nor a
// recognizable compressed stream.
func GarbageBytes() []byte {
	return []byte{0x00, 0xff, 0xfe, 'n', 'o', 't', ' ', 'g', 'e', 'l', 'f', 0x07}
}
