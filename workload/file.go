// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package workload

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/datalust/sqelf-pipeline/gelf"
)

// scenarioFile is the on-disk shape of a scenario. Files are JSONC,
// the same JSON the code builds extended with // line comments,
// /* block comments */, and trailing commas.
type scenarioFile struct {
	Name   string      `json:"name"`
	Host   string      `json:"host"`
	Events []eventFile `json:"events"`
	Faults []faultFile `json:"faults"`
}

type eventFile struct {
	TestID      string         `json:"test_id"`
	Message     string         `json:"message"`
	FullMessage string         `json:"full_message"`
	Level       int            `json:"level"`
	Fields      map[string]any `json:"fields"`
	Exact       bool           `json:"exact"`
}

type faultFile struct {
	Name string `json:"name"`
	// Kind selects a built-in payload: "truncated-chunk-header" or
	// "garbage-bytes". Mutually exclusive with Text.
	Kind string `json:"kind"`
	// Text is an arbitrary payload sent byte-for-byte.
	Text string `json:"text"`
}

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals and validates the scenario.
func Parse(data []byte) (*Scenario, error) {
	stripped := jsonc.ToJSON(data)

	var file scenarioFile
	if err := json.Unmarshal(stripped, &file); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}

	scenario := &Scenario{Name: file.Name, Host: file.Host}
	for _, event := range file.Events {
		if event.Level < 0 || event.Level > 7 {
			return nil, fmt.Errorf("event %q: level %d is not a syslog severity (0-7)", event.TestID, event.Level)
		}
		scenario.Events = append(scenario.Events, Event{
			TestID:      event.TestID,
			Message:     event.Message,
			FullMessage: event.FullMessage,
			Level:       gelf.Level(event.Level),
			Fields:      event.Fields,
			Exact:       event.Exact,
		})
	}
	for _, fault := range file.Faults {
		payload, err := faultPayload(fault)
		if err != nil {
			return nil, err
		}
		scenario.Faults = append(scenario.Faults, Fault{Name: fault.Name, Payload: payload})
	}

	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %q: %w", scenario.Name, err)
	}
	return scenario, nil
}

// ReadFile reads a JSONC scenario from disk.
func ReadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	scenario, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scenario, nil
}

func faultPayload(fault faultFile) ([]byte, error) {
	switch {
	case fault.Kind != "" && fault.Text != "":
		return nil, fmt.Errorf("fault %q: kind and text are mutually exclusive", fault.Name)
	case fault.Text != "":
		return []byte(fault.Text), nil
	case fault.Kind == "truncated-chunk-header":
		return TruncatedChunkHeader(), nil
	case fault.Kind == "garbage-bytes":
		return GarbageBytes(), nil
	case fault.Kind != "":
		return nil, fmt.Errorf("fault %q: unknown kind %q", fault.Name, fault.Kind)
	default:
		return nil, fmt.Errorf("fault %q: needs a kind or a text payload", fault.Name)
	}
}
