// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestUserError_Error verifies the Error() method implementation.
func TestUserError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *UserError
		want string
	}{
		{
			name: "with underlying error",
			err:  &UserError{Message: "Cannot open store", Err: fmt.Errorf("database is locked")},
			want: "Cannot open store: database is locked",
		},
		{
			name: "without underlying error",
			err:  &UserError{Message: "Invalid --offset"},
			want: "Invalid --offset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("UserError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestExitCodes verifies that exit code constants have the correct values.
func TestExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		want     int
	}{
		{"ExitSuccess", ExitSuccess, 0},
		{"ExitConfig", ExitConfig, 1},
		{"ExitDatabase", ExitDatabase, 2},
		{"ExitNetwork", ExitNetwork, 3},
		{"ExitInput", ExitInput, 4},
		{"ExitPermission", ExitPermission, 5},
		{"ExitNotFound", ExitNotFound, 6},
		{"ExitInternal", ExitInternal, 10},
		{"ExitInterrupted", ExitInterrupted, 130},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.exitCode != tt.want {
				t.Errorf("%s = %d, want %d", tt.name, tt.exitCode, tt.want)
			}
		})
	}
}

// TestConstructors verifies that each constructor sets its exit code and
// keeps the underlying error.
func TestConstructors(t *testing.T) {
	underlying := fmt.Errorf("underlying error")

	tests := []struct {
		name string
		fn   func(msg, cause, fix string, err error) *UserError
		want int
	}{
		{"NewConfigError", NewConfigError, ExitConfig},
		{"NewDatabaseError", NewDatabaseError, ExitDatabase},
		{"NewNetworkError", NewNetworkError, ExitNetwork},
		{"NewInputError", NewInputError, ExitInput},
		{"NewPermissionError", NewPermissionError, ExitPermission},
		{"NewNotFoundError", NewNotFoundError, ExitNotFound},
		{"NewInternalError", NewInternalError, ExitInternal},
		{"NewInterruptedError", NewInterruptedError, ExitInterrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn("msg", "cause", "fix", underlying)
			if err.ExitCode != tt.want {
				t.Errorf("ExitCode = %d, want %d", err.ExitCode, tt.want)
			}
			if err.Message != "msg" || err.Cause != "cause" || err.Fix != "fix" {
				t.Errorf("fields = %q/%q/%q", err.Message, err.Cause, err.Fix)
			}
			if !errors.Is(err, underlying) {
				t.Error("errors.Is should find the underlying error")
			}
		})
	}
}

// rowFailure stands in for a row-scoped error from the ingestion layer.
type rowFailure struct{ index int64 }

func (r *rowFailure) Error() string { return fmt.Sprintf("row %d failed", r.index) }

// TestErrorChain verifies UserError interoperates with wrapped errors.
func TestErrorChain(t *testing.T) {
	t.Run("row error is recoverable through UserError", func(t *testing.T) {
		ue := NewInputError("Row could not be imported", "bad count", "fix the row", &rowFailure{index: 41})

		var rf *rowFailure
		if !errors.As(ue, &rf) {
			t.Fatal("errors.As should find the row error")
		}
		if rf.index != 41 {
			t.Errorf("index = %d, want 41", rf.index)
		}
	})

	t.Run("As finds a wrapped UserError", func(t *testing.T) {
		inner := NewDatabaseError("commit failed", "", "", nil)
		wrapped := fmt.Errorf("import: %w", inner)

		ue, ok := As(wrapped)
		if !ok {
			t.Fatal("As should find the UserError")
		}
		if ue != inner {
			t.Error("As returned a different UserError")
		}
	})

	t.Run("As on plain error", func(t *testing.T) {
		if _, ok := As(fmt.Errorf("plain")); ok {
			t.Error("As should not find a UserError")
		}
	})
}

// TestExitCode verifies exit code selection for arbitrary errors.
func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", fmt.Errorf("boom"), ExitInternal},
		{"user error", NewNotFoundError("missing", "", "", nil), ExitNotFound},
		{"wrapped user error", fmt.Errorf("ctx: %w", NewConfigError("bad", "", "", nil)), ExitConfig},
		{"joined errors", errors.Join(fmt.Errorf("a"), NewInputError("bad row", "", "", nil)), ExitInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestUserError_Format verifies the Format() method implementation.
func TestUserError_Format(t *testing.T) {
	tests := []struct {
		name    string
		err     *UserError
		want    []string
		notWant []string
	}{
		{
			name: "full error",
			err: &UserError{
				Message:  "Row 1204 could not be imported",
				Cause:    `field "OBSERVATION COUNT": cannot read "many" as count`,
				Fix:      "Correct the row, or rerun with --skip-bad-rows and --resume",
				ExitCode: ExitInput,
			},
			want: []string{
				"Error: Row 1204 could not be imported",
				`Cause: field "OBSERVATION COUNT"`,
				"Fix:   Correct the row",
			},
		},
		{
			name:    "message only",
			err:     &UserError{Message: "Something failed", ExitCode: ExitInternal},
			want:    []string{"Error: Something failed"},
			notWant: []string{"Cause:", "Fix:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Format(true)
			for _, substr := range tt.want {
				if !strings.Contains(got, substr) {
					t.Errorf("Format() output missing %q\nGot: %s", substr, got)
				}
			}
			for _, substr := range tt.notWant {
				if strings.Contains(got, substr) {
					t.Errorf("Format() output should not contain %q\nGot: %s", substr, got)
				}
			}
			if strings.Contains(got, "\x1b[") {
				t.Error("Format(true) output contains ANSI codes")
			}
		})
	}
}

// TestUserError_Format_NoColorEnv verifies that NO_COLOR is respected.
func TestUserError_Format_NoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	err := &UserError{Message: "Test error", Cause: "Test cause", Fix: "Test fix", ExitCode: ExitConfig}
	if out := err.Format(false); strings.Contains(out, "\x1b[") {
		t.Error("Format() output contains ANSI codes despite NO_COLOR being set")
	}
}

// TestUserError_ToJSON verifies the ToJSON() method implementation.
func TestUserError_ToJSON(t *testing.T) {
	err := NewConfigError("Invalid configuration", "store.driver is empty", "Run: ebirdsync init", nil)
	got := err.ToJSON()

	want := ErrorJSON{
		Error:    "Invalid configuration",
		Cause:    "store.driver is empty",
		Fix:      "Run: ebirdsync init",
		ExitCode: ExitConfig,
	}
	if got != want {
		t.Errorf("ToJSON() = %+v, want %+v", got, want)
	}
}

// TestFatalError_Nil verifies FatalError ignores nil. Non-nil errors call
// os.Exit and are not exercised here.
func TestFatalError_Nil(t *testing.T) {
	FatalError(nil, false)
}
