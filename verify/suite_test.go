// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package verify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/datalust/sqelf-pipeline/gelf"
	"github.com/datalust/sqelf-pipeline/workload"
)

// clefLine renders one scenario event the way the log server exports
// it.
func clefLine(t *testing.T, event workload.Event) string {
	t.Helper()
	line := map[string]any{
		"@t":      "2026-03-01T12:00:00.0000000Z",
		"@l":      "Information",
		"@mt":     event.Message,
		"test_id": event.TestID,
	}
	for name, value := range event.Fields {
		line[name] = value
	}
	encoded, err := json.Marshal(line)
	if err != nil {
		t.Fatalf("encoding CLEF line: %v", err)
	}
	return string(encoded)
}

// writeChannels lays down passing fixtures for all three channels and
// returns their Inputs. Tests mutate individual files afterwards.
func writeChannels(t *testing.T, scenario *workload.Scenario) Inputs {
	t.Helper()
	dir := t.TempDir()

	var clef []string
	for _, event := range scenario.Events {
		clef = append(clef, clefLine(t, event))
	}

	expected := scenario.ExpectedRecords()
	sqelf := []string{
		`{"@t":"2026-03-01T12:00:00Z","@m":"Starting GELF server"}`,
		`{"@t":"2026-03-01T12:00:00Z","@m":"Setting up for UDP"}`,
		fmt.Sprintf(`{"@t":"2026-03-01T12:01:00Z","@m":"Metrics","receive_ok":%d,"process_ok":%d}`,
			expected+len(scenario.Faults), expected),
	}
	seq := []string{
		`{"@t":"2026-03-01T12:00:00Z","@m":"Seq listening on http://localhost:80"}`,
		fmt.Sprintf(`{"@t":"2026-03-01T12:01:00Z","@mt":"Ingested {count} events","count":%d}`, expected),
	}

	inputs := Inputs{
		SqelfLog: filepath.Join(dir, "sqelf.log"),
		SeqLog:   filepath.Join(dir, "seq.log"),
		CLEF:     filepath.Join(dir, "events.clef"),
	}
	writeLines(t, inputs.SqelfLog, sqelf)
	writeLines(t, inputs.SeqLog, seq)
	writeLines(t, inputs.CLEF, clef)
	return inputs
}

func writeLines(t *testing.T, path string, lines []string) {
	t.Helper()
	body := strings.Join(lines, "\n")
	if body != "" {
		body += "\n"
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func resultFor(t *testing.T, results Results, channel Channel) CheckResult {
	t.Helper()
	for _, result := range results {
		if result.Channel == channel {
			return result
		}
	}
	t.Fatalf("no result for channel %s", channel)
	return CheckResult{}
}

func TestSuitePassesOnCleanRun(t *testing.T) {
	scenario := workload.Default()
	suite := &Suite{Scenario: scenario}

	results := suite.Run(writeChannels(t, scenario))
	if !results.Passed() {
		t.Fatalf("clean run failed: %s", results.Summary())
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	clef := resultFor(t, results, ChannelCLEF)
	if !strings.Contains(clef.Detail, fmt.Sprintf("%d records", scenario.ExpectedRecords())) {
		t.Fatalf("CLEF detail %q does not carry the record count", clef.Detail)
	}
}

func TestMissingRecordFailsOnlyTheExportCheck(t *testing.T) {
	scenario := workload.Default()
	inputs := writeChannels(t, scenario)

	// Drop one record from the middle of the export.
	var clef []string
	for index, event := range scenario.Events {
		if index == 30 {
			continue
		}
		clef = append(clef, clefLine(t, event))
	}
	writeLines(t, inputs.CLEF, clef)

	suite := &Suite{Scenario: scenario}
	results := suite.Run(inputs)
	if results.Passed() {
		t.Fatal("suite passed with a record missing")
	}

	export := resultFor(t, results, ChannelCLEF)
	if export.Passed {
		t.Fatal("export check passed with a record missing")
	}
	dropped := scenario.Events[30].TestID
	if !strings.Contains(export.Detail, dropped) {
		t.Fatalf("detail %q does not name the missing event %s", export.Detail, dropped)
	}
	want := fmt.Sprintf("%d records, want %d", scenario.ExpectedRecords()-1, scenario.ExpectedRecords())
	if !strings.Contains(export.Detail, want) {
		t.Fatalf("detail %q does not carry the count mismatch", export.Detail)
	}

	// The other channels still pass: the suite never short-circuits.
	if !resultFor(t, results, ChannelSqelfLog).Passed {
		t.Fatal("ingester log check should still pass")
	}
	if !resultFor(t, results, ChannelSeqLog).Passed {
		t.Fatal("log server check should still pass")
	}
}

func TestAlteredEdgeCaseMessageIsDetected(t *testing.T) {
	scenario := workload.Default()
	inputs := writeChannels(t, scenario)

	exact := scenario.ExactEvents()[0]
	var clef []string
	for _, event := range scenario.Events {
		if event.TestID == exact.TestID {
			// One byte off: the re-encoding a byte-level comparison
			// must catch.
			event.Message = event.Message[:len(event.Message)-1] + "?"
		}
		clef = append(clef, clefLine(t, event))
	}
	writeLines(t, inputs.CLEF, clef)

	suite := &Suite{Scenario: scenario}
	export := resultFor(t, suite.Run(inputs), ChannelCLEF)
	if export.Passed {
		t.Fatal("export check passed with an altered message")
	}
	if !strings.Contains(export.Detail, exact.TestID) || !strings.Contains(export.Detail, "altered in transit") {
		t.Fatalf("detail %q does not diagnose the alteration", export.Detail)
	}
}

func TestErrorEntryFailsIngesterCheck(t *testing.T) {
	scenario := workload.Default()
	inputs := writeChannels(t, scenario)

	appendLine(t, inputs.SqelfLog,
		`{"@t":"2026-03-01T12:00:30Z","@l":"ERROR","@m":"GELF processing failed"}`)

	suite := &Suite{Scenario: scenario}
	results := suite.Run(inputs)

	ingester := resultFor(t, results, ChannelSqelfLog)
	if ingester.Passed {
		t.Fatal("ingester check passed with an error-level entry")
	}
	if !strings.Contains(ingester.Detail, "GELF processing failed") {
		t.Fatalf("detail %q does not carry the error line", ingester.Detail)
	}
	if !resultFor(t, results, ChannelCLEF).Passed {
		t.Fatal("export check should be unaffected")
	}
}

func TestMissingListenerMarkerFailsIngesterCheck(t *testing.T) {
	scenario := workload.Default()
	inputs := writeChannels(t, scenario)
	writeLines(t, inputs.SqelfLog, []string{
		fmt.Sprintf(`{"@m":"Metrics","process_ok":%d}`, scenario.ExpectedRecords()),
	})

	suite := &Suite{Scenario: scenario}
	ingester := resultFor(t, suite.Run(inputs), ChannelSqelfLog)
	if ingester.Passed || !strings.Contains(ingester.Detail, "listener marker") {
		t.Fatalf("ingester result = %+v", ingester)
	}
}

func TestAcceptanceShortfallFailsServerCheck(t *testing.T) {
	scenario := workload.Default()
	inputs := writeChannels(t, scenario)
	writeLines(t, inputs.SeqLog, []string{
		fmt.Sprintf(`{"@mt":"Ingested {count} events","count":%d}`, scenario.ExpectedRecords()-3),
	})

	suite := &Suite{Scenario: scenario}
	server := resultFor(t, suite.Run(inputs), ChannelSeqLog)
	if server.Passed {
		t.Fatal("server check passed with an acceptance shortfall")
	}
	want := fmt.Sprintf("account for %d events, want %d",
		scenario.ExpectedRecords()-3, scenario.ExpectedRecords())
	if !strings.Contains(server.Detail, want) {
		t.Fatalf("detail %q does not carry the shortfall", server.Detail)
	}
}

func TestMissingFilesFailTheirChannels(t *testing.T) {
	scenario := workload.Default()
	suite := &Suite{Scenario: scenario}

	results := suite.Run(Inputs{
		SqelfLog: "/nonexistent/sqelf.log",
		SeqLog:   "/nonexistent/seq.log",
		CLEF:     "/nonexistent/events.clef",
	})
	if results.Passed() {
		t.Fatal("suite passed with no input files")
	}
	for _, result := range results {
		if result.Passed {
			t.Fatalf("channel %s passed with its file missing", result.Channel)
		}
	}
}

func TestFaultFramesAreExcludedFromExpectedCounts(t *testing.T) {
	// The default scenario carries fault frames; a server that drops
	// them silently still passes every check.
	scenario := workload.Default()
	if len(scenario.Faults) == 0 {
		t.Fatal("default scenario carries no faults")
	}
	suite := &Suite{Scenario: scenario}
	results := suite.Run(writeChannels(t, scenario))
	if !results.Passed() {
		t.Fatalf("faulted scenario failed verification: %s", results.Summary())
	}
}

// TestRecordCountConservation checks, across generated workload
// sizes, that the export check passes exactly when the export holds
// one record per event.
func TestRecordCountConservation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(1)
	properties := gopter.NewProperties(parameters)

	buildScenario := func(n int) *workload.Scenario {
		scenario := &workload.Scenario{Name: "generated", Host: "prop-test"}
		for i := 0; i < n; i++ {
			scenario.Events = append(scenario.Events, workload.Event{
				TestID:  fmt.Sprintf("gen-%04d", i),
				Message: fmt.Sprintf("generated event %d", i),
				Level:   gelf.LevelInformational,
			})
		}
		return scenario
	}

	properties.Property("count matches exactly when lossless", prop.ForAll(
		func(n int, drop bool) bool {
			scenario := buildScenario(n)
			dir, err := os.MkdirTemp("", "verify-prop-*")
			if err != nil {
				return true
			}
			defer os.RemoveAll(dir)

			var clef []string
			for index, event := range scenario.Events {
				if drop && index == n/2 {
					continue
				}
				line, err := json.Marshal(map[string]any{
					"@t":      "2026-03-01T12:00:00Z",
					"@mt":     event.Message,
					"test_id": event.TestID,
				})
				if err != nil {
					return false
				}
				clef = append(clef, string(line))
			}
			path := filepath.Join(dir, "events.clef")
			body := strings.Join(clef, "\n")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				return true
			}

			suite := &Suite{Scenario: scenario}
			result := suite.checkCLEF(path)
			lossless := !drop || n == 0
			return result.Passed == lossless
		},
		gen.IntRange(0, 1000),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer file.Close()
	if _, err := file.WriteString(line + "\n"); err != nil {
		t.Fatalf("appending to %s: %v", path, err)
	}
}
