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

package coerce

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind names the target type of a coercion.
type Kind string

const (
	KindInt        Kind = "integer"
	KindFloat      Kind = "float"
	KindDecimal    Kind = "decimal"
	KindBool       Kind = "boolean"
	KindDate       Kind = "date"
	KindClock      Kind = "time"
	KindDateTime   Kind = "timestamp"
	KindMinutes    Kind = "duration"
	KindIdentifier Kind = "identifier"
	KindCount      Kind = "count"
	KindCategory   Kind = "category"
)

// ErrRequired is the cause recorded when a required field is empty.
var ErrRequired = errors.New("value is required")

// FieldError reports a non-empty field that could not be coerced.
type FieldError struct {
	// Field is the column name. Empty until the caller attaches it with Named.
	Field string
	Kind  Kind
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("field %q: cannot read %q as %s: %v", e.Field, e.Value, e.Kind, e.Err)
	}
	return fmt.Sprintf("cannot read %q as %s: %v", e.Value, e.Kind, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Named attaches a column name to err if it is a *FieldError.
func Named(field string, err error) error {
	var fe *FieldError
	if errors.As(err, &fe) && fe.Field == "" {
		fe.Field = field
	}
	return err
}

// Required returns a FieldError for an empty required field.
func Required(field string, kind Kind) error {
	return &FieldError{Field: field, Kind: kind, Err: ErrRequired}
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func fail(kind Kind, s string, err error) *FieldError {
	return &FieldError{Kind: kind, Value: s, Err: err}
}

// Int parses a base-10 integer.
func Int(s string) (*int64, error) {
	if blank(s) {
		return nil, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, fail(KindInt, s, err)
	}
	return &n, nil
}

// Float parses a finite floating point number. Used for coordinates.
func Float(s string) (*float64, error) {
	if blank(s) {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, fail(KindFloat, s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fail(KindFloat, s, errors.New("value is not finite"))
	}
	return &f, nil
}

// InRange returns a FieldError if v lies outside [lo, hi].
func InRange(kind Kind, s string, v, lo, hi float64) error {
	if v < lo || v > hi {
		return fail(kind, s, fmt.Errorf("out of range [%g, %g]", lo, hi))
	}
	return nil
}

// Decimal parses an exact decimal value.
func Decimal(s string) (*decimal.Decimal, error) {
	if blank(s) {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fail(KindDecimal, s, err)
	}
	return &d, nil
}

// Bool01 parses the 0/1 flags used by the export. Empty input is false.
func Bool01(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return false, nil
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	}
	return false, fail(KindBool, s, errors.New("expected 0 or 1"))
}

// Date parses a calendar date. Accepted layouts are YYYY-MM-DD, YYYY/MM/DD,
// M/D/YYYY and M-D-YYYY. The result is midnight UTC.
func Date(s string) (*time.Time, error) {
	if blank(s) {
		return nil, nil
	}
	raw := strings.TrimSpace(s)
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == '/' || r == '-' })
	if len(parts) != 3 {
		return nil, fail(KindDate, s, errors.New("expected three date components"))
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fail(KindDate, s, err)
		}
		nums[i] = n
	}
	year, month, day := nums[2], nums[0], nums[1]
	if len(parts[0]) == 4 {
		year, month, day = nums[0], nums[1], nums[2]
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return nil, fail(KindDate, s, errors.New("date out of range"))
	}
	return &t, nil
}

// Clock parses HH:MM or HH:MM:SS into an offset from midnight.
func Clock(s string) (*time.Duration, error) {
	if blank(s) {
		return nil, nil
	}
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, fail(KindClock, s, errors.New("expected HH:MM[:SS]"))
	}
	limits := []int{23, 59, 59}
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fail(KindClock, s, err)
		}
		if n < 0 || n > limits[i] {
			return nil, fail(KindClock, s, errors.New("time out of range"))
		}
		d += time.Duration(n) * units[i]
	}
	return &d, nil
}

// Timestamp combines a date and a time of day. A missing clock means
// midnight; a missing date means no timestamp at all.
func Timestamp(date, clock string) (*time.Time, error) {
	d, err := Date(date)
	if err != nil || d == nil {
		return nil, err
	}
	c, err := Clock(clock)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return d, nil
	}
	t := d.Add(*c)
	return &t, nil
}

var dateTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
}

// DateTime parses a full timestamp such as the last-edited column.
func DateTime(s string) (*time.Time, error) {
	if blank(s) {
		return nil, nil
	}
	raw := strings.TrimSpace(s)
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return &t, nil
		}
	}
	return nil, fail(KindDateTime, s, errors.New("unrecognized layout"))
}

// Minutes parses a non-negative duration expressed in whole minutes.
func Minutes(s string) (*time.Duration, error) {
	n, err := Int(s)
	if err != nil {
		return nil, fail(KindMinutes, s, errors.Unwrap(err))
	}
	if n == nil {
		return nil, nil
	}
	if *n < 0 {
		return nil, fail(KindMinutes, s, errors.New("negative duration"))
	}
	if *n > math.MaxInt64/int64(time.Minute) {
		return nil, fail(KindMinutes, s, errors.New("duration too large"))
	}
	d := time.Duration(*n) * time.Minute
	return &d, nil
}

// PrefixedID extracts the numeric part of identifiers such as S12345,
// G678, obsr42, L99, or URN:CornellLabOfOrnithology:EBIRD:OBS123. Only the
// last colon-separated segment is considered. The prefix match ignores case.
func PrefixedID(s, prefix string) (*int64, error) {
	if blank(s) {
		return nil, nil
	}
	seg := strings.TrimSpace(s)
	if i := strings.LastIndexByte(seg, ':'); i >= 0 {
		seg = seg[i+1:]
	}
	if len(seg) <= len(prefix) || !strings.EqualFold(seg[:len(prefix)], prefix) {
		return nil, fail(KindIdentifier, s, fmt.Errorf("expected prefix %q", prefix))
	}
	n, err := strconv.ParseInt(seg[len(prefix):], 10, 64)
	if err != nil {
		return nil, fail(KindIdentifier, s, err)
	}
	return &n, nil
}

// Count parses an observation count. "X" means the species was present but
// not counted and yields a nil count with present set. Empty input yields
// neither a count nor presence.
func Count(s string) (count *int64, present bool, err error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil, false, nil
	}
	if strings.EqualFold(raw, "X") {
		return nil, true, nil
	}
	n, perr := strconv.ParseInt(raw, 10, 64)
	if perr != nil {
		return nil, false, fail(KindCount, s, perr)
	}
	if n < 0 {
		return nil, false, fail(KindCount, s, errors.New("negative count"))
	}
	return &n, n > 0, nil
}
