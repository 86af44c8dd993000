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
	"fmt"
	"strings"
)

// Category is a taxon category as written in the export and the taxonomy.
type Category string

const (
	CategorySpecies    Category = "species"
	CategoryISSF       Category = "issf"
	CategoryForm       Category = "form"
	CategoryDomestic   Category = "domestic"
	CategorySlash      Category = "slash"
	CategoryIntergrade Category = "intergrade"
	CategorySpuh       Category = "spuh"
	CategoryHybrid     Category = "hybrid"
)

// subspeciesCategories is ordered by the stored enum code.
var subspeciesCategories = []Category{
	CategoryISSF,
	CategoryForm,
	CategoryDomestic,
	CategorySlash,
	CategoryIntergrade,
	CategorySpuh,
	CategoryHybrid,
}

// ParseCategory normalizes a raw category. Older taxonomy files abbreviate
// intergrade as "intergr".
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c == "intergr" {
		return CategoryIntergrade, nil
	}
	if c == CategorySpecies {
		return c, nil
	}
	for _, sc := range subspeciesCategories {
		if c == sc {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown taxon category %q", s)
}

// IsSubspecies reports whether taxa of this category live in the
// subspecies tier of the taxonomy.
func (c Category) IsSubspecies() bool { return c != CategorySpecies && c != "" }

// RequiresParent reports whether a taxonomy entry of this category must
// name a parent species.
func (c Category) RequiresParent() bool {
	return c == CategorySlash || c == CategoryIntergrade
}

// AlwaysNested reports whether an observation row of this category always
// refers to a subspecies-tier taxon, regardless of prior knowledge.
func (c Category) AlwaysNested() bool {
	return c == CategorySpuh || c == CategorySlash || c == CategoryHybrid
}

// NestedIfKnown reports whether an observation row of this category refers
// to a subspecies-tier taxon when its name is already known as one.
func (c Category) NestedIfKnown() bool {
	return c == CategoryDomestic || c == CategoryForm
}

// Code returns the stable enum code for subspecies categories, or -1.
func (c Category) Code() int {
	for i, sc := range subspeciesCategories {
		if c == sc {
			return i
		}
	}
	return -1
}
