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

// Package model defines the entities produced by ingestion.
//
// Dimension entities (Country, StateProvince, County, Locality, Protocol,
// Project, Observer, Location, Species, Subspecies) are created on first
// sight and never updated. Fact entities (Checklist, Observation) are
// written once per natural id.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Country is keyed by its (code, name) pair.
type Country struct {
	Code string
	Name string
}

// StateProvince is keyed by its (code, name) pair.
type StateProvince struct {
	Code string
	Name string
}

// County is keyed by its (code, name) pair.
type County struct {
	Code string
	Name string
}

// Empty reports whether neither code nor name is set.
func (c Country) Empty() bool       { return c.Code == "" && c.Name == "" }
func (s StateProvince) Empty() bool { return s.Code == "" && s.Name == "" }
func (c County) Empty() bool        { return c.Code == "" && c.Name == "" }

// Locality uses the numeric part of the export's L-prefixed id as its key.
type Locality struct {
	ID   int64
	Name string
	// Type is the short locality type code (H hotspot, P personal, ...).
	Type string
}

// Protocol is keyed by Code. When the export only carries the protocol
// name, the name doubles as the code.
type Protocol struct {
	Code string
	Name string
}

// Project is keyed by Code.
type Project struct {
	Code string
}

// Observer uses the numeric part of the obsr-prefixed id as its key.
type Observer struct {
	ID        int64
	FirstName string
	LastName  string
}

// Point is an opaque coordinate pair. Location identity is the point alone.
type Point struct {
	Lon float64
	Lat float64
}

// Location is a unique point plus the dimensions attached on first sight.
type Location struct {
	Point           Point
	LocalityID      *int64
	CountryID       *int64
	StateProvinceID *int64
	CountyID        *int64
	IBACode         string
	BCRCode         string
}

// Species is keyed by ScientificName.
type Species struct {
	ScientificName string
	CommonName     string
	TaxonomicOrder *decimal.Decimal
	Category       Category
	SpeciesCode    string
	OrderName      string
	Family         string
}

// Subspecies is keyed by ScientificName. ParentName is used by the taxonomy
// loader before species ids exist; ParentID is what the store persists.
type Subspecies struct {
	ScientificName string
	CommonName     string
	TaxonomicOrder *decimal.Decimal
	Category       Category
	SpeciesCode    string
	ParentName     string
	ParentID       *int64
}

// Checklist is one sampling event.
type Checklist struct {
	ID            int64
	LocationID    int64
	Start         *time.Time
	Comments      string
	Duration      *time.Duration
	DistanceKm    *decimal.Decimal
	AreaHa        *decimal.Decimal
	ObserverCount *int64
	Complete      bool
	GroupID       *int64
	Approved      bool
	Reviewed      bool
	Reason        string
	ProtocolID    *int64
	ProjectID     *int64
	ObserverID    *int64
}

// Observation is one taxon count within a checklist. Exactly one of
// SpeciesID and SubspeciesID is set.
type Observation struct {
	ID           int64
	ChecklistID  int64
	SpeciesID    *int64
	SubspeciesID *int64
	// Count is nil when the taxon was reported present but not counted.
	Count        *int64
	Present      bool
	AgeSex       string
	Comments     string
	BreedingCode *string
	HasMedia     bool
	LastEdit     *time.Time
	ObserverID   *int64
}
