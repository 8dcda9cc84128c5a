// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package workload

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/datalust/sqelf-pipeline/gelf"
)

const sampleScenario = `{
	// A minimal smoke scenario.
	"name": "smoke",
	"host": "smoke-host",
	"events": [
		{
			"test_id": "evt-0001",
			"message": "plain event",
			"level": 6,
			"fields": {"facility": "smoke"},
		},
		{
			"test_id": "evt-0002",
			"message": "exact event",
			"level": 4,
			"exact": true,
		},
	],
	"faults": [
		{"name": "trunc", "kind": "truncated-chunk-header"},
		{"name": "noise", "text": "not gelf"},
	],
}`

func TestParseScenarioWithComments(t *testing.T) {
	scenario, err := Parse([]byte(sampleScenario))
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	if scenario.Name != "smoke" || scenario.Host != "smoke-host" {
		t.Errorf("header = %q/%q", scenario.Name, scenario.Host)
	}
	if len(scenario.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(scenario.Events))
	}
	if scenario.Events[0].Level != gelf.LevelInformational {
		t.Errorf("event 0 level = %d", scenario.Events[0].Level)
	}
	if !scenario.Events[1].Exact {
		t.Error("event 1 should be exact")
	}
	if len(scenario.Faults) != 2 {
		t.Fatalf("got %d faults, want 2", len(scenario.Faults))
	}
	if string(scenario.Faults[1].Payload) != "not gelf" {
		t.Errorf("text fault payload = %q", scenario.Faults[1].Payload)
	}
	if len(scenario.Faults[0].Payload) == 0 {
		t.Error("builtin fault payload is empty")
	}
}

func TestParseRejectsUnknownFaultKind(t *testing.T) {
	_, err := Parse([]byte(`{
		"name": "bad", "host": "h",
		"events": [{"test_id": "a", "message": "m"}],
		"faults": [{"name": "x", "kind": "emp-burst"}]
	}`))
	if err == nil || !strings.Contains(err.Error(), "unknown kind") {
		t.Fatalf("got %v, want an unknown-kind error", err)
	}
}

func TestParseRejectsFaultWithKindAndText(t *testing.T) {
	_, err := Parse([]byte(`{
		"name": "bad", "host": "h",
		"events": [{"test_id": "a", "message": "m"}],
		"faults": [{"name": "x", "kind": "garbage-bytes", "text": "boom"}]
	}`))
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("got %v, want a mutual-exclusion error", err)
	}
}

func TestParseRejectsOutOfRangeLevel(t *testing.T) {
	_, err := Parse([]byte(`{
		"name": "bad", "host": "h",
		"events": [{"test_id": "a", "message": "m", "level": 9}]
	}`))
	if err == nil || !strings.Contains(err.Error(), "syslog severity") {
		t.Fatalf("got %v, want a severity-range error", err)
	}
}

func TestParseRejectsInvalidScenario(t *testing.T) {
	_, err := Parse([]byte(`{"name": "empty", "host": "h", "events": []}`))
	if err == nil || !strings.Contains(err.Error(), "no events") {
		t.Fatalf("got %v, want a no-events error", err)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.jsonc")
	if err := os.WriteFile(path, []byte(sampleScenario), 0o644); err != nil {
		t.Fatalf("writing scenario file: %v", err)
	}

	scenario, err := ReadFile(path)
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if scenario.Name != "smoke" {
		t.Errorf("name = %q", scenario.Name)
	}
}

func TestReadFileMissingNamesPath(t *testing.T) {
	_, err := ReadFile("/nonexistent/scenario.jsonc")
	if err == nil || !strings.Contains(err.Error(), "/nonexistent/scenario.jsonc") {
		t.Fatalf("got %v, want the path in the error", err)
	}
}
