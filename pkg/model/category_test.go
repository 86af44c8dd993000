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

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"species", CategorySpecies},
		{" Spuh ", CategorySpuh},
		{"intergr", CategoryIntergrade},
		{"intergrade", CategoryIntergrade},
		{"ISSF", CategoryISSF},
	}
	for _, tt := range tests {
		got, err := ParseCategory(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseCategory("genus")
	assert.Error(t, err)
}

func TestCategoryRules(t *testing.T) {
	assert.False(t, CategorySpecies.IsSubspecies())
	assert.True(t, CategoryHybrid.IsSubspecies())

	assert.True(t, CategorySlash.RequiresParent())
	assert.True(t, CategoryIntergrade.RequiresParent())
	assert.False(t, CategorySpuh.RequiresParent())

	for _, c := range []Category{CategorySpuh, CategorySlash, CategoryHybrid} {
		assert.True(t, c.AlwaysNested(), c)
	}
	assert.True(t, CategoryForm.NestedIfKnown())
	assert.True(t, CategoryDomestic.NestedIfKnown())
	assert.False(t, CategoryISSF.AlwaysNested())

	assert.Equal(t, 0, CategoryISSF.Code())
	assert.Equal(t, 6, CategoryHybrid.Code())
	assert.Equal(t, -1, CategorySpecies.Code())
}
