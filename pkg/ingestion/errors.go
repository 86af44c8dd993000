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

package ingestion

import (
	"fmt"
	"strings"

	"github.com/kraklabs/ebirdsync/pkg/model"
)

// LookupError reports a reference that cannot be resolved. Always fatal.
type LookupError = model.LookupError

// StoreError reports a failure of the target store: a constraint
// violation, a lost connection, or a failed commit.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// RemoteError reports an http(s) or s3 input that could not be fetched.
type RemoteError struct {
	Location string
	Err      error
}

func (e *RemoteError) Error() string { return e.Err.Error() }
func (e *RemoteError) Unwrap() error { return e.Err }

// RowError carries the position and content of the row that failed.
// The cause is available through errors.As.
type RowError struct {
	Index int64
	Line  int
	Raw   string
	Err   error
}

func (e *RowError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "row %d", e.Index)
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *RowError) Unwrap() error { return e.Err }

// RowPosition returns the row index and input line of the failure.
func (e *RowError) RowPosition() (int64, int) { return e.Index, e.Line }

// ErrorPolicy decides what happens to a row whose fields cannot be coerced.
type ErrorPolicy string

const (
	// PolicyFail stops the run at the first bad row.
	PolicyFail ErrorPolicy = "fail"
	// PolicySkip logs the row and continues. Lookup and store errors are
	// still fatal.
	PolicySkip ErrorPolicy = "skip"
)

// ParseErrorPolicy validates a configured policy. Empty means PolicyFail.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch p := ErrorPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyFail, nil
	case PolicyFail, PolicySkip:
		return p, nil
	}
	return "", fmt.Errorf("unknown row error policy %q (want fail or skip)", s)
}
