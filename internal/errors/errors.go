// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package errors provides structured error handling for the ebirdsync CLI.
//
// This package defines UserError, a type that carries structured error information
// including what went wrong, why it happened, and how to fix it. It also defines
// consistent exit codes for different error categories.
//
// # Usage Example
//
//	err := errors.NewConfigError(
//	    "Cannot load ebirdsync configuration",
//	    "The config file .ebirdsync/config.yaml is missing",
//	    "Run 'ebirdsync init' to create one",
//	    underlyingErr,
//	)
//	errors.FatalError(err, false)
//
// # Formatted Output
//
// The Format() method provides colored terminal output:
//
//	// Error: Row 1204 could not be imported
//	// Cause: field "OBSERVATION COUNT": cannot read "many" as count
//	// Fix:   Correct the row, or rerun with --skip-bad-rows and --resume
//
// For JSON output, ToJSON returns the same fields plus the exit code.
//
// # Exit Codes
//
//   - ExitSuccess (0): Successful execution
//   - ExitConfig (1): Configuration errors (missing/invalid config, bad header)
//   - ExitDatabase (2): Store errors (connection, constraint, commit)
//   - ExitNetwork (3): Remote input errors (HTTP, S3)
//   - ExitInput (4): Bad input data (field coercion, taxonomy lookups)
//   - ExitPermission (5): Permission denied
//   - ExitNotFound (6): Input file or resource not found
//   - ExitInternal (10): Internal errors (bugs, panics)
//   - ExitInterrupted (130): Stopped by a signal; progress up to the last
//     commit is kept
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes for different error categories.
const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0

	// ExitConfig indicates configuration errors, including an input whose
	// header lacks required columns.
	ExitConfig = 1

	// ExitDatabase indicates store errors (unreachable, constraint
	// violation, failed commit).
	ExitDatabase = 2

	// ExitNetwork indicates a remote input could not be fetched.
	ExitNetwork = 3

	// ExitInput indicates bad input data: a field that cannot be coerced or
	// a taxonomy reference that cannot be resolved.
	ExitInput = 4

	// ExitPermission indicates permission denied errors (file access, etc.).
	ExitPermission = 5

	// ExitNotFound indicates a missing input file or resource.
	ExitNotFound = 6

	// ExitInternal indicates internal errors (bugs, unexpected panics).
	// Exit code 10 signals "this is a bug that should be reported".
	ExitInternal = 10

	// ExitInterrupted indicates the run was stopped by SIGINT or SIGTERM
	// after committing the rows it had buffered.
	ExitInterrupted = 130
)

// UserError represents an error with structured context for end users.
//
// It provides three levels of information:
//   - Message: What went wrong (user-facing error description)
//   - Cause: Why it happened (diagnostic information)
//   - Fix: How to fix it (actionable suggestion)
type UserError struct {
	// Message describes what went wrong in user-friendly language.
	Message string

	// Cause explains why the error occurred (diagnostic information).
	Cause string

	// Fix provides an actionable suggestion on how to resolve the error.
	Fix string

	// ExitCode is the exit code that should be used when exiting due to this error.
	ExitCode int

	// Err is the underlying error, available to errors.Is and errors.As.
	Err error
}

// Error implements the error interface.
func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *UserError) Unwrap() error {
	return e.Err
}

func newUserError(code int, msg, cause, fix string, err error) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: code,
		Err:      err,
	}
}

// NewConfigError creates a configuration error with exit code ExitConfig.
//
// Example:
//
//	return NewConfigError(
//	    "Input is missing required columns",
//	    "SAMPLING EVENT IDENTIFIER, LATITUDE",
//	    "Check that the file is an eBird observation export",
//	    err,
//	)
func NewConfigError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitConfig, msg, cause, fix, err)
}

// NewDatabaseError creates a store error with exit code ExitDatabase.
func NewDatabaseError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitDatabase, msg, cause, fix, err)
}

// NewNetworkError creates a remote input error with exit code ExitNetwork.
func NewNetworkError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitNetwork, msg, cause, fix, err)
}

// NewInputError creates a bad-data error with exit code ExitInput. err is
// usually the *ingestion.RowError carrying the failing row.
func NewInputError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitInput, msg, cause, fix, err)
}

// NewPermissionError creates a permission denied error with exit code ExitPermission.
func NewPermissionError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitPermission, msg, cause, fix, err)
}

// NewNotFoundError creates a resource not found error with exit code ExitNotFound.
//
// Example:
//
//	return NewNotFoundError(
//	    "Input not found",
//	    "No file at ebd_US_relAug-2016.txt",
//	    "Check the path passed to -f",
//	    err,
//	)
func NewNotFoundError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitNotFound, msg, cause, fix, err)
}

// NewInterruptedError creates an error with exit code ExitInterrupted.
func NewInterruptedError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitInterrupted, msg, cause, fix, err)
}

// NewInternalError creates an internal error with exit code ExitInternal.
// Internal errors indicate bugs and should be reported.
func NewInternalError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitInternal, msg, cause, fix, err)
}

// As returns the first UserError in err's chain.
func As(err error) (*UserError, bool) {
	var ue *UserError
	if stderrors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// ExitCode returns the exit code for err: ExitSuccess for nil, the
// UserError's code if one is in the chain, ExitInternal otherwise.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if ue, ok := As(err); ok {
		return ue.ExitCode
	}
	return ExitInternal
}

// Color definitions for error formatting.
var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format returns a formatted error message for terminal display.
//
// The output includes colored sections for Error (red/bold), Cause (yellow),
// and Fix (green). Color output respects the NO_COLOR environment variable
// and can be explicitly disabled with the noColor parameter. Empty Cause or
// Fix fields are omitted.
//
// Note: This method temporarily modifies the global color.NoColor state
// and restores it after formatting.
func (e *UserError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}

	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}

	return out.String()
}

// ErrorJSON represents error information in JSON format.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// ToJSON converts the UserError to a JSON-serializable structure.
func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Error:    e.Message,
		Cause:    e.Cause,
		Fix:      e.Fix,
		ExitCode: e.ExitCode,
	}
}

// FatalError prints the error and exits with the appropriate code.
//
// A UserError anywhere in the chain is printed with Format() or, in JSON
// mode, ToJSON(). Any other error is printed as-is and exits with
// ExitInternal. This function never returns for a non-nil err.
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}

	if ue, ok := As(err); ok {
		if jsonOutput {
			enc := json.NewEncoder(os.Stderr)
			enc.SetIndent("", "  ")
			_ = enc.Encode(ue.ToJSON())
		} else {
			fmt.Fprint(os.Stderr, ue.Format(false))
		}
		os.Exit(ue.ExitCode)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(ExitInternal)
}
