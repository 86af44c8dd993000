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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyInputIsAbsent(t *testing.T) {
	for _, in := range []string{"", "   ", "\t"} {
		i, err := Int(in)
		require.NoError(t, err)
		assert.Nil(t, i)

		d, err := Decimal(in)
		require.NoError(t, err)
		assert.Nil(t, d)

		b, err := Bool01(in)
		require.NoError(t, err)
		assert.False(t, b)

		date, err := Date(in)
		require.NoError(t, err)
		assert.Nil(t, date)

		c, err := Clock(in)
		require.NoError(t, err)
		assert.Nil(t, c)

		m, err := Minutes(in)
		require.NoError(t, err)
		assert.Nil(t, m)

		id, err := PrefixedID(in, "S")
		require.NoError(t, err)
		assert.Nil(t, id)

		ts, err := DateTime(in)
		require.NoError(t, err)
		assert.Nil(t, ts)
	}
}

func TestInt(t *testing.T) {
	n, err := Int(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), *n)

	_, err = Int("4x2")
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindInt, fe.Kind)
	assert.Equal(t, "4x2", fe.Value)
}

func TestFloat(t *testing.T) {
	f, err := Float("-73.9654")
	require.NoError(t, err)
	assert.Equal(t, -73.9654, *f)

	for _, in := range []string{"NaN", "nan", "Inf", "-Inf", "+inf", "1e400", "north"} {
		_, err := Float(in)
		var fe *FieldError
		require.ErrorAs(t, err, &fe, in)
		assert.Equal(t, KindFloat, fe.Kind, in)
	}
}

func TestInRange(t *testing.T) {
	assert.NoError(t, InRange(KindFloat, "90", 90, -90, 90))
	assert.NoError(t, InRange(KindFloat, "-90", -90, -90, 90))

	err := InRange(KindFloat, "90.5", 90.5, -90, 90)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "90.5", fe.Value)
}

func TestDecimal(t *testing.T) {
	d, err := Decimal("1583.60")
	require.NoError(t, err)
	assert.Equal(t, "1583.6", d.String())

	_, err = Decimal("abc")
	assert.Error(t, err)
}

func TestBool01(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"1", true, false},
		{"0", false, false},
		{"true", true, false},
		{"FALSE", false, false},
		{"2", false, true},
		{"yes", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Bool01(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDate(t *testing.T) {
	want := time.Date(2016, 8, 9, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2016-08-09", "2016/8/9", "8/9/2016", "08-09-2016"} {
		t.Run(in, func(t *testing.T) {
			got, err := Date(in)
			require.NoError(t, err)
			assert.True(t, want.Equal(*got), "got %v", got)
		})
	}

	for _, in := range []string{"2016-13-01", "2/30/2016", "yesterday", "2016-08"} {
		t.Run("bad "+in, func(t *testing.T) {
			_, err := Date(in)
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, KindDate, fe.Kind)
		})
	}
}

func TestClock(t *testing.T) {
	c, err := Clock("07:30")
	require.NoError(t, err)
	assert.Equal(t, 7*time.Hour+30*time.Minute, *c)

	c, err = Clock("23:59:59")
	require.NoError(t, err)
	assert.Equal(t, 23*time.Hour+59*time.Minute+59*time.Second, *c)

	_, err = Clock("24:00")
	assert.Error(t, err)
	_, err = Clock("7")
	assert.Error(t, err)
}

func TestTimestamp(t *testing.T) {
	ts, err := Timestamp("2016-08-09", "06:15:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2016, 8, 9, 6, 15, 0, 0, time.UTC), *ts)

	ts, err = Timestamp("2016-08-09", "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2016, 8, 9, 0, 0, 0, 0, time.UTC), *ts, "missing time defaults to midnight")

	ts, err = Timestamp("", "06:15:00")
	require.NoError(t, err)
	assert.Nil(t, ts, "missing date means no timestamp")

	_, err = Timestamp("2016-08-09", "6h15")
	assert.Error(t, err)
}

func TestDateTime(t *testing.T) {
	ts, err := DateTime("2017-01-02 03:04:05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2017, 1, 2, 3, 4, 5, 0, time.UTC), *ts)

	_, err = DateTime("02/01/2017")
	assert.Error(t, err)
}

func TestMinutes(t *testing.T) {
	d, err := Minutes("90")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, *d)

	_, err = Minutes("-5")
	assert.Error(t, err)

	_, err = Minutes("1.5")
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindMinutes, fe.Kind)

	_, err = Minutes("999999999999")
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindMinutes, fe.Kind)

	d, err = Minutes("153722867")
	require.NoError(t, err)
	assert.Positive(t, int64(*d))
}

func TestPrefixedID(t *testing.T) {
	tests := []struct {
		in     string
		prefix string
		want   int64
	}{
		{"S12345", "S", 12345},
		{"G678", "G", 678},
		{"obsr42", "obsr", 42},
		{"L99", "L", 99},
		{"URN:CornellLabOfOrnithology:EBIRD:OBS123456", "OBS", 123456},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := PrefixedID(tt.in, tt.prefix)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}

	for _, in := range []string{"12345", "Sabc", "S", "X12"} {
		_, err := PrefixedID(in, "S")
		assert.Error(t, err, in)
	}
}

func TestCount(t *testing.T) {
	n, present, err := Count("X")
	require.NoError(t, err)
	assert.Nil(t, n)
	assert.True(t, present)

	n, present, err = Count("3")
	require.NoError(t, err)
	assert.Equal(t, int64(3), *n)
	assert.True(t, present)

	n, present, err = Count("0")
	require.NoError(t, err)
	assert.Equal(t, int64(0), *n)
	assert.False(t, present)

	n, present, err = Count("")
	require.NoError(t, err)
	assert.Nil(t, n)
	assert.False(t, present)

	_, _, err = Count("many")
	assert.Error(t, err)
}

func TestNamedAttachesField(t *testing.T) {
	_, err := Int("nope")
	err = Named("NUMBER OBSERVERS", err)

	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "NUMBER OBSERVERS", fe.Field)
	assert.Contains(t, err.Error(), `field "NUMBER OBSERVERS"`)

	assert.Nil(t, Named("X", nil))
	assert.True(t, errors.Is(Required("LATITUDE", KindFloat), ErrRequired))
}
