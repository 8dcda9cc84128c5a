// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package verify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/datalust/sqelf-pipeline/workload"
)

// Channel identifies one observation point.
type Channel string

const (
	// ChannelSqelfLog is the ingester's own diagnostic log.
	ChannelSqelfLog Channel = "sqelf-log"

	// ChannelSeqLog is the log server's diagnostic log.
	ChannelSeqLog Channel = "seq-log"

	// ChannelCLEF is the exported record stream.
	ChannelCLEF Channel = "clef-output"
)

// CheckResult is one channel's verdict. Detail is human-readable and
// carries the diagnosis on failure; on success it summarizes what was
// confirmed.
type CheckResult struct {
	Channel Channel
	Passed  bool
	Detail  string
}

// Results holds the verdicts of all three channels, in channel order.
type Results []CheckResult

// Passed reports whether every channel passed.
func (r Results) Passed() bool {
	for _, result := range r {
		if !result.Passed {
			return false
		}
	}
	return true
}

// Summary renders the failing channels' details as one line per
// channel, for the pipeline failure message.
func (r Results) Summary() string {
	var lines []string
	for _, result := range r {
		if !result.Passed {
			lines = append(lines, fmt.Sprintf("%s: %s", result.Channel, result.Detail))
		}
	}
	return strings.Join(lines, "; ")
}

// listenerMarker is the line the ingester emits once its socket is
// bound ("Setting up for UDP" / "Setting up for TCP").
const listenerMarker = "Setting up for"

// processedCounter is the ingester's per-flush counter of messages
// processed into the log server.
const processedCounter = "process_ok"

// acceptanceMarker selects the log server's ingestion acceptance
// events; their "count" properties must sum to the workload size.
const acceptanceMarker = "ingested"

// Inputs names the files a verification run reads. Paths come from
// the environment controller's log capture and CLEF export.
type Inputs struct {
	SqelfLog string
	SeqLog   string
	CLEF     string
}

// Suite verifies one workload run. The scenario defines what must
// have arrived.
type Suite struct {
	// Scenario is the workload that was emitted.
	Scenario *workload.Scenario

	// Logger receives per-check results. Nil discards.
	Logger *slog.Logger
}

// Run executes all three checks. Every check runs regardless of
// earlier failures so a broken run yields its full diagnosis in one
// CI round trip.
func (s *Suite) Run(inputs Inputs) Results {
	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	results := Results{
		s.checkSqelfLog(inputs.SqelfLog),
		s.checkSeqLog(inputs.SeqLog),
		s.checkCLEF(inputs.CLEF),
	}
	for _, result := range results {
		if result.Passed {
			logger.Info("verification check passed", "channel", string(result.Channel), "detail", result.Detail)
		} else {
			logger.Error("verification check failed", "channel", string(result.Channel), "detail", result.Detail)
		}
	}
	return results
}

// checkSqelfLog scans the ingester's log: no error-level entries, the
// listener marker present, and the processed counters summing to the
// number of events sent.
func (s *Suite) checkSqelfLog(path string) CheckResult {
	fail := func(format string, args ...any) CheckResult {
		return CheckResult{Channel: ChannelSqelfLog, Detail: fmt.Sprintf(format, args...)}
	}

	records, parseErrors, err := readRecords(path)
	if err != nil {
		return fail("reading ingester log: %v", err)
	}

	var problems []string
	for _, parseError := range parseErrors {
		problems = append(problems, fmt.Sprintf("unparseable entry: %v", parseError))
	}

	marker := false
	processed := int64(0)
	var errorLines []string
	for _, entry := range records {
		if entry.IsError() {
			errorLines = append(errorLines, fmt.Sprintf("line %d: %s", entry.Line, entry.Rendered()))
		}
		if strings.Contains(entry.Rendered(), listenerMarker) {
			marker = true
		}
		if count, ok := numberValue(entry.Properties[processedCounter]); ok {
			processed += count
		}
	}

	if len(errorLines) > 0 {
		problems = append(problems, fmt.Sprintf("%d error-level entries (first: %s)",
			len(errorLines), errorLines[0]))
	}
	if !marker {
		problems = append(problems, fmt.Sprintf("listener marker %q never logged", listenerMarker))
	}
	expected := int64(s.Scenario.ExpectedRecords())
	if processed != expected {
		problems = append(problems, fmt.Sprintf("processed counters sum to %d, want %d", processed, expected))
	}

	if len(problems) > 0 {
		return fail("%s", strings.Join(problems, "; "))
	}
	return CheckResult{
		Channel: ChannelSqelfLog,
		Passed:  true,
		Detail:  fmt.Sprintf("clean log, %d messages processed", processed),
	}
}

// checkSeqLog scans the log server's log: no error-level entries and
// acceptance events accounting for every event sent.
func (s *Suite) checkSeqLog(path string) CheckResult {
	fail := func(format string, args ...any) CheckResult {
		return CheckResult{Channel: ChannelSeqLog, Detail: fmt.Sprintf(format, args...)}
	}

	records, parseErrors, err := readRecords(path)
	if err != nil {
		return fail("reading log server log: %v", err)
	}

	var problems []string
	for _, parseError := range parseErrors {
		problems = append(problems, fmt.Sprintf("unparseable entry: %v", parseError))
	}

	accepted := int64(0)
	markers := 0
	var errorLines []string
	for _, entry := range records {
		if entry.IsError() {
			errorLines = append(errorLines, fmt.Sprintf("line %d: %s", entry.Line, entry.Rendered()))
		}
		if !strings.Contains(strings.ToLower(entry.Rendered()), acceptanceMarker) {
			continue
		}
		markers++
		if count, ok := numberValue(entry.Properties["count"]); ok {
			accepted += count
		}
	}

	if len(errorLines) > 0 {
		problems = append(problems, fmt.Sprintf("%d error-level entries (first: %s)",
			len(errorLines), errorLines[0]))
	}
	expected := int64(s.Scenario.ExpectedRecords())
	if markers == 0 {
		problems = append(problems, "no ingestion acceptance markers logged")
	} else if accepted != expected {
		problems = append(problems, fmt.Sprintf("acceptance markers account for %d events, want %d", accepted, expected))
	}

	if len(problems) > 0 {
		return fail("%s", strings.Join(problems, "; "))
	}
	return CheckResult{
		Channel: ChannelSeqLog,
		Passed:  true,
		Detail:  fmt.Sprintf("clean log, %d events accepted over %d batches", accepted, markers),
	}
}

// detailLimit caps how many individual record problems one check
// detail enumerates.
const detailLimit = 5

// checkCLEF validates the exported record stream: the count matches
// the scenario, every record is well-formed, every event's test_id
// appears exactly once, and the edge-case messages survived
// byte-for-byte.
func (s *Suite) checkCLEF(path string) CheckResult {
	fail := func(format string, args ...any) CheckResult {
		return CheckResult{Channel: ChannelCLEF, Detail: fmt.Sprintf(format, args...)}
	}

	records, parseErrors, err := readRecords(path)
	if err != nil {
		return fail("reading export: %v", err)
	}

	var problems []string
	for _, parseError := range parseErrors {
		problems = append(problems, fmt.Sprintf("unparseable record: %v", parseError))
	}

	expected := s.Scenario.ExpectedRecords()
	if len(records) != expected {
		problems = append(problems, fmt.Sprintf("export holds %d records, want %d", len(records), expected))
	}

	var malformed []string
	byTestID := make(map[string][]record, len(records))
	for _, entry := range records {
		if !validTimestamp(entry.Timestamp) {
			malformed = append(malformed, fmt.Sprintf("line %d: bad @t %q", entry.Line, entry.Timestamp))
		}
		if entry.Level == "" {
			malformed = append(malformed, fmt.Sprintf("line %d: empty @l", entry.Line))
		}
		if entry.Template == "" && entry.Message == "" {
			malformed = append(malformed, fmt.Sprintf("line %d: no message template", entry.Line))
		}
		if id := entry.TestID(); id != "" {
			byTestID[id] = append(byTestID[id], entry)
		} else {
			malformed = append(malformed, fmt.Sprintf("line %d: no test_id property", entry.Line))
		}
	}
	problems = append(problems, truncated(malformed, "malformed records")...)

	var missing, duplicated []string
	for _, event := range s.Scenario.Events {
		switch len(byTestID[event.TestID]) {
		case 0:
			missing = append(missing, event.TestID)
		case 1:
		default:
			duplicated = append(duplicated, event.TestID)
		}
		delete(byTestID, event.TestID)
	}
	if len(missing) > 0 {
		problems = append(problems, fmt.Sprintf("%d events missing from export: %s",
			len(missing), strings.Join(head(missing, detailLimit), ", ")))
	}
	if len(duplicated) > 0 {
		problems = append(problems, fmt.Sprintf("events exported more than once: %s",
			strings.Join(head(duplicated, detailLimit), ", ")))
	}
	if len(byTestID) > 0 {
		var extras []string
		for id := range byTestID {
			extras = append(extras, id)
		}
		problems = append(problems, fmt.Sprintf("%d records carry unknown test_ids", len(extras)))
	}

	// Byte-identical reconstruction for the edge-case events. The
	// mismatch detail reports lengths, not content: an oversized
	// payload would swamp the diagnostic.
	var mismatched []string
	for _, event := range s.Scenario.ExactEvents() {
		matches := exactMatches(records, event.TestID)
		if len(matches) != 1 {
			// Already reported as missing or duplicated.
			continue
		}
		if got := matches[0].Rendered(); got != event.Message {
			mismatched = append(mismatched, fmt.Sprintf(
				"%s: message altered in transit (%d bytes exported, %d sent)",
				event.TestID, len(got), len(event.Message)))
		}
	}
	problems = append(problems, mismatched...)

	if len(problems) > 0 {
		return fail("%s", strings.Join(problems, "; "))
	}
	return CheckResult{
		Channel: ChannelCLEF,
		Passed:  true,
		Detail:  fmt.Sprintf("%d records, all well-formed, edge cases byte-identical", len(records)),
	}
}

// exactMatches finds the records carrying a test_id.
func exactMatches(records []record, testID string) []record {
	var matches []record
	for _, entry := range records {
		if entry.TestID() == testID {
			matches = append(matches, entry)
		}
	}
	return matches
}

// truncated folds a long problem list into at most detailLimit
// entries plus a count.
func truncated(problems []string, label string) []string {
	if len(problems) == 0 {
		return nil
	}
	if len(problems) <= detailLimit {
		return problems
	}
	return append(head(problems, detailLimit),
		fmt.Sprintf("(and %d more %s)", len(problems)-detailLimit, label))
}

func head(values []string, limit int) []string {
	if len(values) <= limit {
		return values
	}
	return values[:limit]
}

// numberValue extracts an integer from a decoded JSON value.
func numberValue(value any) (int64, bool) {
	switch number := value.(type) {
	case json.Number:
		parsed, err := number.Int64()
		return parsed, err == nil
	case float64:
		return int64(number), true
	default:
		return 0, false
	}
}
