// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package verify

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// record is one parsed CLEF line. Reified keys (@t, @l, @mt, @m) are
// lifted out; everything else stays in Properties.
type record struct {
	// Line is the record's 1-based position in the file.
	Line int

	Timestamp string
	Level     string
	Template  string
	Message   string

	Properties map[string]any
}

// Rendered returns the record's message text: the rendered form when
// the server stored one, otherwise the template. The workload sends
// plain text with no holes, so the two are interchangeable.
func (r record) Rendered() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Template
}

// TestID returns the record's test_id property, or "".
func (r record) TestID() string {
	value, ok := r.Properties["test_id"].(string)
	if !ok {
		return ""
	}
	return value
}

// errorLevels are the CLEF level names that count as error-level
// output in the log checks.
var errorLevels = map[string]bool{
	"Error": true, "Fatal": true,
	"ERROR": true, "FATAL": true,
}

// IsError reports whether the record is error-level or worse.
func (r record) IsError() bool {
	return errorLevels[r.Level]
}

// parseRecord decodes one CLEF line. An absent @l means Information,
// per the format.
func parseRecord(line []byte, number int) (record, error) {
	var raw map[string]any
	decoder := json.NewDecoder(bytes.NewReader(line))
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		return record{}, fmt.Errorf("line %d: %w", number, err)
	}

	parsed := record{
		Line:       number,
		Level:      "Information",
		Properties: make(map[string]any),
	}
	for key, value := range raw {
		switch key {
		case "@t":
			parsed.Timestamp, _ = value.(string)
		case "@l":
			parsed.Level, _ = value.(string)
		case "@mt":
			parsed.Template, _ = value.(string)
		case "@m":
			parsed.Message, _ = value.(string)
		default:
			if strings.HasPrefix(key, "@") {
				// Other reified keys (@i, @x, @r) are not checked.
				continue
			}
			parsed.Properties[key] = value
		}
	}
	return parsed, nil
}

// validTimestamp reports whether a CLEF @t value is a well-formed
// ISO-8601 instant.
func validTimestamp(value string) bool {
	if value == "" {
		return false
	}
	_, err := time.Parse(time.RFC3339Nano, value)
	return err == nil
}

// readRecords parses a newline-delimited CLEF file. Unparseable lines
// are returned as errors alongside the records that did parse.
func readRecords(path string) ([]record, []error, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	var records []record
	var problems []error
	scanner := bufio.NewScanner(file)
	// An oversized event's record is far past the default token
	// limit.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	number := 0
	for scanner.Scan() {
		number++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		parsed, err := parseRecord(line, number)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		records = append(records, parsed)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return records, problems, nil
}
