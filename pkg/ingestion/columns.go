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
)

// Column names of the observation export. Older exports use these names;
// newer ones are mapped onto them through columnAliases.
const (
	ColGlobalID        = "GLOBAL UNIQUE IDENTIFIER"
	ColLastEdited      = "LAST EDITED DATE"
	ColTaxonomicOrder  = "TAXONOMIC ORDER"
	ColCategory        = "CATEGORY"
	ColCommonName      = "COMMON NAME"
	ColSciName         = "SCIENTIFIC NAME"
	ColSubCommonName   = "SUBSPECIES COMMON NAME"
	ColSubSciName      = "SUBSPECIES SCIENTIFIC NAME"
	ColCount           = "OBSERVATION COUNT"
	ColBreedingCode    = "BREEDING BIRD ATLAS CODE"
	ColAgeSex          = "AGE/SEX"
	ColCountry         = "COUNTRY"
	ColCountryCode     = "COUNTRY_CODE"
	ColStateProvince   = "STATE_PROVINCE"
	ColStateCode       = "SUBNATIONAL1_CODE"
	ColCounty          = "COUNTY"
	ColCountyCode      = "SUBNATIONAL2_CODE"
	ColIBACode         = "IBA CODE"
	ColBCRCode         = "BCR CODE"
	ColLocality        = "LOCALITY"
	ColLocalityID      = "LOCALITY ID"
	ColLocalityType    = "LOCALITY TYPE"
	ColLatitude        = "LATITUDE"
	ColLongitude       = "LONGITUDE"
	ColDate            = "OBSERVATION DATE"
	ColTimeStarted     = "TIME OBSERVATIONS STARTED"
	ColObserverID      = "OBSERVER ID"
	ColFirstName       = "FIRST NAME"
	ColLastName        = "LAST NAME"
	ColChecklistID     = "SAMPLING EVENT IDENTIFIER"
	ColProtocolType    = "PROTOCOL TYPE"
	ColProtocolCode    = "PROTOCOL CODE"
	ColProjectCode     = "PROJECT CODE"
	ColDuration        = "DURATION MINUTES"
	ColDistance        = "EFFORT DISTANCE KM"
	ColArea            = "EFFORT AREA HA"
	ColObserverCount   = "NUMBER OBSERVERS"
	ColComplete        = "ALL SPECIES REPORTED"
	ColGroupID         = "GROUP IDENTIFIER"
	ColHasMedia        = "HAS MEDIA"
	ColApproved        = "APPROVED"
	ColReviewed        = "REVIEWED"
	ColReason          = "REASON"
	ColTripComments    = "TRIP COMMENTS"
	ColSpeciesComments = "SPECIES COMMENTS"
)

// RequiredColumns must be present in the header before any row is read.
var RequiredColumns = []string{
	ColGlobalID,
	ColChecklistID,
	ColCategory,
	ColSciName,
	ColCount,
	ColLatitude,
	ColLongitude,
	ColDate,
}

var columnAliases = map[string]string{
	"STATE":             ColStateProvince,
	"STATE CODE":        ColStateCode,
	"SUBNATIONAL1 CODE": ColStateCode,
	"COUNTY CODE":       ColCountyCode,
	"SUBNATIONAL2 CODE": ColCountyCode,
	"COUNTRY CODE":      ColCountryCode,
	"BREEDING CODE":     ColBreedingCode,
	"LAST EDIT DATE":    ColLastEdited,
}

// canonicalColumn maps a raw header cell to the name used by this package.
func canonicalColumn(raw string) string {
	s := strings.TrimPrefix(raw, "\ufeff")
	s = strings.ToUpper(strings.Join(strings.Fields(s), " "))
	if alias, ok := columnAliases[s]; ok {
		return alias
	}
	return s
}

// Header indexes the columns of an export by canonical name.
type Header struct {
	names []string
	index map[string]int
}

// NewHeader builds a header from the raw first line of an export. When a
// column appears twice the first occurrence wins.
func NewHeader(fields []string) *Header {
	h := &Header{names: make([]string, len(fields)), index: make(map[string]int, len(fields))}
	for i, f := range fields {
		name := canonicalColumn(f)
		h.names[i] = name
		if _, dup := h.index[name]; !dup {
			h.index[name] = i
		}
	}
	return h
}

// Index returns the position of col.
func (h *Header) Index(col string) (int, bool) {
	i, ok := h.index[col]
	return i, ok
}

// Has reports whether col is present.
func (h *Header) Has(col string) bool {
	_, ok := h.index[col]
	return ok
}

// Names returns the canonical column names in file order.
func (h *Header) Names() []string { return h.names }

// Validate returns a *HeaderError listing every required column that is
// absent.
func (h *Header) Validate() error {
	var missing []string
	for _, c := range RequiredColumns {
		if !h.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &HeaderError{Missing: missing}
	}
	return nil
}

// HeaderError reports required columns missing from an export.
type HeaderError struct {
	Missing []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("input is missing required columns: %s", strings.Join(e.Missing, ", "))
}
