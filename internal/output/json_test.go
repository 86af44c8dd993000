// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package output

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestJSON verifies that JSONTo produces indented output.
func TestJSON(t *testing.T) {
	var buf bytes.Buffer

	data := map[string]any{
		"source_id":    "src:abc",
		"observations": 42,
	}

	if err := JSONTo(&buf, data); err != nil {
		t.Fatalf("JSONTo failed: %v", err)
	}

	output := buf.String()

	if !strings.Contains(output, "  \"observations\"") {
		t.Errorf("Expected 2-space indentation, got: %s", output)
	}
	if !strings.Contains(output, `"source_id": "src:abc"`) {
		t.Errorf("Missing source_id field, got: %s", output)
	}
	if !strings.HasSuffix(output, "}\n") {
		t.Errorf("Expected trailing newline, got: %q", output)
	}
}

// TestJSONCompact verifies that JSONCompact produces single-line output.
func TestJSONCompact(t *testing.T) {
	var buf bytes.Buffer

	if err := JSONCompactTo(&buf, map[string]any{"next_row": 10000}); err != nil {
		t.Fatalf("JSONCompactTo failed: %v", err)
	}

	if got := buf.String(); got != "{\"next_row\":10000}\n" {
		t.Errorf("JSONCompactTo = %q", got)
	}
}

// TestJSON_Unencodable verifies that encoding failures are reported.
func TestJSON_Unencodable(t *testing.T) {
	var buf bytes.Buffer
	if err := JSONTo(&buf, map[string]any{"ch": make(chan int)}); err == nil {
		t.Error("expected an error for a channel value")
	}
}

// TestJSONError verifies that JSONError produces properly formatted error JSON.
func TestJSONError(t *testing.T) {
	var buf bytes.Buffer

	if encErr := JSONErrorTo(&buf, errors.New("store unreachable")); encErr != nil {
		t.Fatalf("JSONErrorTo failed: %v", encErr)
	}

	output := buf.String()
	if !strings.Contains(output, `"error": "store unreachable"`) {
		t.Errorf("Missing error field, got: %s", output)
	}
	if strings.Contains(output, `"row"`) {
		t.Errorf("Unexpected row field, got: %s", output)
	}
}

type positioned struct {
	index int64
	line  int
}

func (p *positioned) Error() string             { return fmt.Sprintf("row %d", p.index) }
func (p *positioned) RowPosition() (int64, int) { return p.index, p.line }

// TestJSONError_RowPosition verifies that row errors report their position,
// including row zero.
func TestJSONError_RowPosition(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantRow  string
		wantLine string
	}{
		{"direct", &positioned{index: 1203, line: 1205}, `"row": 1203`, `"line": 1205`},
		{"wrapped", fmt.Errorf("import: %w", &positioned{index: 0, line: 2}), `"row": 0`, `"line": 2`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := JSONErrorTo(&buf, tt.err); err != nil {
				t.Fatalf("JSONErrorTo failed: %v", err)
			}
			output := buf.String()
			if !strings.Contains(output, tt.wantRow) || !strings.Contains(output, tt.wantLine) {
				t.Errorf("expected %s and %s, got: %s", tt.wantRow, tt.wantLine, output)
			}
		})
	}
}

// TestJSONStructWithTags verifies that struct JSON tags are respected.
func TestJSONStructWithTags(t *testing.T) {
	type Result struct {
		RunID    string `json:"run_id"`
		Rows     int64  `json:"rows"`
		Taxonomy *int   `json:"taxonomy,omitempty"`
		internal string
	}

	var buf bytes.Buffer
	if err := JSONTo(&buf, Result{RunID: "r1", Rows: 100, internal: "hidden"}); err != nil {
		t.Fatalf("JSONTo failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, `"run_id": "r1"`) {
		t.Errorf("Expected run_id, got: %s", output)
	}
	if strings.Contains(output, `"taxonomy"`) {
		t.Errorf("Expected taxonomy to be omitted, got: %s", output)
	}
	if strings.Contains(output, "hidden") {
		t.Errorf("Expected unexported field to be excluded, got: %s", output)
	}
}
