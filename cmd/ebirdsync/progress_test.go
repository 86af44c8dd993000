// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

func TestNewProgressConfig(t *testing.T) {
	tests := []struct {
		name            string
		globals         GlobalFlags
		expectedEnabled bool
		expectedNoColor bool
	}{
		{
			name:            "default flags - progress disabled in test (not a TTY)",
			globals:         GlobalFlags{},
			expectedEnabled: false, // stderr is not a TTY in test environment
			expectedNoColor: false,
		},
		{
			name:            "quiet mode - progress disabled",
			globals:         GlobalFlags{Quiet: true},
			expectedEnabled: false,
			expectedNoColor: false,
		},
		{
			name:            "JSON mode - progress disabled (quiet auto-set)",
			globals:         GlobalFlags{JSON: true, Quiet: true},
			expectedEnabled: false,
			expectedNoColor: false,
		},
		{
			name:            "noColor flag propagates to config",
			globals:         GlobalFlags{NoColor: true},
			expectedEnabled: false, // stderr not a TTY in test
			expectedNoColor: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewProgressConfig(tt.globals)
			if cfg.Enabled != tt.expectedEnabled {
				t.Errorf("NewProgressConfig().Enabled = %v, want %v", cfg.Enabled, tt.expectedEnabled)
			}
			if cfg.NoColor != tt.expectedNoColor {
				t.Errorf("NewProgressConfig().NoColor = %v, want %v", cfg.NoColor, tt.expectedNoColor)
			}
			if cfg.Writer != os.Stderr {
				t.Error("NewProgressConfig().Writer should be os.Stderr")
			}
		})
	}
}

func TestNewByteBar(t *testing.T) {
	t.Run("disabled config returns nil", func(t *testing.T) {
		cfg := ProgressConfig{Enabled: false}
		if bar := NewByteBar(cfg, 100, "Test"); bar != nil {
			t.Error("NewByteBar() should return nil when disabled")
		}
	})

	t.Run("enabled config returns non-nil", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := ProgressConfig{Enabled: true, Writer: &buf, NoColor: true}
		bar := NewByteBar(cfg, 100, "Test")
		if bar == nil {
			t.Fatal("NewByteBar() should return non-nil when enabled")
		}
		_ = bar.Set(50)
		_ = bar.Finish()
	})
}

func TestNewSpinner(t *testing.T) {
	if s := NewSpinner(ProgressConfig{Enabled: false}, "Test"); s != nil {
		t.Error("NewSpinner() should return nil when disabled")
	}

	var buf bytes.Buffer
	s := NewSpinner(ProgressConfig{Enabled: true, Writer: &buf}, "Test")
	if s == nil {
		t.Fatal("NewSpinner() should return non-nil when enabled")
	}
	_ = s.Add(1)
	_ = s.Finish()
}

func TestInputProgress(t *testing.T) {
	const data = "GLOBAL UNIQUE IDENTIFIER\tCOMMON NAME\n"

	t.Run("disabled passes the reader through", func(t *testing.T) {
		hook, finish := inputProgress(ProgressConfig{Enabled: false}, "Importing")
		r := strings.NewReader(data)
		if got := hook(r, int64(len(data))); got != io.Reader(r) {
			t.Error("hook should return the original reader when progress is disabled")
		}
		finish()
	})

	for _, size := range []int64{int64(len(data)), -1} {
		var buf bytes.Buffer
		hook, finish := inputProgress(ProgressConfig{Enabled: true, Writer: &buf, NoColor: true}, "Importing")
		got, err := io.ReadAll(hook(strings.NewReader(data), size))
		if err != nil {
			t.Fatalf("read through progress hook: %v", err)
		}
		if string(got) != data {
			t.Errorf("hook changed the stream: got %q", got)
		}
		finish()
	}
}
