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
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kraklabs/ebirdsync/pkg/cache"
	"github.com/kraklabs/ebirdsync/pkg/coerce"
	"github.com/kraklabs/ebirdsync/pkg/model"
	"github.com/kraklabs/ebirdsync/pkg/storage"
)

// Record is one export row with every field coerced. It is produced
// without touching the store.
type Record struct {
	Index int64
	Line  int

	ObservationID int64
	ChecklistID   int64
	LastEdit      *time.Time

	Category       model.Category
	CommonName     string
	SciName        string
	TaxonomicOrder *decimal.Decimal
	SubCommonName  string
	SubSciName     string

	Count           *int64
	Present         bool
	BreedingCode    *string
	AgeSex          string
	SpeciesComments string
	HasMedia        bool

	Country  model.Country
	State    model.StateProvince
	County   model.County
	IBACode  string
	BCRCode  string
	Locality *model.Locality
	Point    model.Point

	Start         *time.Time
	Duration      *time.Duration
	Distance      *decimal.Decimal
	Area          *decimal.Decimal
	ObserverCount *int64
	Complete      bool
	GroupID       *int64
	Approved      bool
	Reviewed      bool
	Reason        string
	TripComments  string
	Observer      *model.Observer
	Protocol      *model.Protocol
	Project       *model.Project
}

// Outcome reports what Apply wrote.
type Outcome struct {
	ChecklistCreated   bool
	ObservationCreated bool
	// Nested is set when the row's scientific name was stored as a
	// subspecies-tier taxon.
	Nested bool
}

// CacheConfig sets the capacity of each identity cache.
type CacheConfig struct {
	// Dimension covers countries, regions, counties, localities,
	// protocols, projects and observers.
	Dimension int
	Location  int
	Taxon     int
	Checklist int
}

// DefaultCacheConfig returns capacities sized for a full national export.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Dimension: 50_000,
		Location:  200_000,
		Taxon:     20_000,
		Checklist: 10_000,
	}
}

func (c CacheConfig) withDefaults() CacheConfig {
	d := DefaultCacheConfig()
	if c.Dimension <= 0 {
		c.Dimension = d.Dimension
	}
	if c.Location <= 0 {
		c.Location = d.Location
	}
	if c.Taxon <= 0 {
		c.Taxon = d.Taxon
	}
	if c.Checklist <= 0 {
		c.Checklist = d.Checklist
	}
	return c
}

// Normalizer maps rows onto the entity graph. It owns one identity cache
// per dimension and is not safe for concurrent use.
type Normalizer struct {
	countries  *cache.Resolver[model.Country]
	states     *cache.Resolver[model.StateProvince]
	counties   *cache.Resolver[model.County]
	localities *cache.Resolver[int64]
	protocols  *cache.Resolver[string]
	projects   *cache.Resolver[string]
	observers  *cache.Resolver[int64]
	locations  *cache.Resolver[model.Point]
	species    *cache.Resolver[string]
	subspecies *cache.Resolver[string]
	checklists *cache.Resolver[int64]

	// known holds every subspecies-tier scientific name, seeded from the
	// store and extended as rows create new ones.
	known *cache.NameSet
	set   cache.Set
}

// NewNormalizer builds a normalizer whose reclassification rules treat
// knownSubspecies as already-nested taxa.
func NewNormalizer(cfg CacheConfig, knownSubspecies []string) (*Normalizer, error) {
	cfg = cfg.withDefaults()
	n := &Normalizer{known: cache.NewNameSet(knownSubspecies...)}

	var err error
	if n.countries, err = cache.NewResolver[model.Country]("country", cfg.Dimension); err != nil {
		return nil, err
	}
	if n.states, err = cache.NewResolver[model.StateProvince]("state_province", cfg.Dimension); err != nil {
		return nil, err
	}
	if n.counties, err = cache.NewResolver[model.County]("county", cfg.Dimension); err != nil {
		return nil, err
	}
	if n.localities, err = cache.NewResolver[int64]("locality", cfg.Dimension); err != nil {
		return nil, err
	}
	if n.protocols, err = cache.NewResolver[string]("protocol", cfg.Dimension); err != nil {
		return nil, err
	}
	if n.projects, err = cache.NewResolver[string]("project", cfg.Dimension); err != nil {
		return nil, err
	}
	if n.observers, err = cache.NewResolver[int64]("observer", cfg.Dimension); err != nil {
		return nil, err
	}
	if n.locations, err = cache.NewResolver[model.Point]("location", cfg.Location); err != nil {
		return nil, err
	}
	if n.species, err = cache.NewResolver[string]("species", cfg.Taxon); err != nil {
		return nil, err
	}
	if n.subspecies, err = cache.NewResolver[string]("subspecies", cfg.Taxon); err != nil {
		return nil, err
	}
	if n.checklists, err = cache.NewResolver[int64]("checklist", cfg.Checklist); err != nil {
		return nil, err
	}

	n.set.Add(n.countries, n.states, n.counties, n.localities, n.protocols, n.projects,
		n.observers, n.locations, n.species, n.subspecies, n.checklists, n.known)
	return n, nil
}

// Caches exposes the normalizer's caches for journaling and stats.
func (n *Normalizer) Caches() *cache.Set { return &n.set }

// IsKnownSubspecies reports whether name is a known subspecies-tier taxon.
func (n *Normalizer) IsKnownSubspecies(name string) bool { return n.known.Has(name) }

// Extract coerces every field of row. Errors carry the column name.
func (n *Normalizer) Extract(row *Row) (*Record, error) {
	rec := &Record{Index: row.Index, Line: row.Line}

	id, err := coerce.PrefixedID(row.Get(ColGlobalID), "OBS")
	if err != nil {
		return nil, coerce.Named(ColGlobalID, err)
	}
	if id == nil {
		return nil, coerce.Required(ColGlobalID, coerce.KindIdentifier)
	}
	rec.ObservationID = *id

	cl, err := coerce.PrefixedID(row.Get(ColChecklistID), "S")
	if err != nil {
		return nil, coerce.Named(ColChecklistID, err)
	}
	if cl == nil {
		return nil, coerce.Required(ColChecklistID, coerce.KindIdentifier)
	}
	rec.ChecklistID = *cl

	if rec.LastEdit, err = coerce.DateTime(row.Get(ColLastEdited)); err != nil {
		return nil, coerce.Named(ColLastEdited, err)
	}

	rawCat := row.Get(ColCategory)
	if rawCat == "" {
		return nil, coerce.Required(ColCategory, coerce.KindCategory)
	}
	if rec.Category, err = model.ParseCategory(rawCat); err != nil {
		return nil, &coerce.FieldError{Field: ColCategory, Kind: coerce.KindCategory, Value: rawCat, Err: err}
	}
	rec.SciName = row.Get(ColSciName)
	if rec.SciName == "" {
		return nil, coerce.Required(ColSciName, coerce.KindIdentifier)
	}
	rec.CommonName = row.Get(ColCommonName)
	rec.SubSciName = row.Get(ColSubSciName)
	rec.SubCommonName = row.Get(ColSubCommonName)
	if rec.TaxonomicOrder, err = coerce.Decimal(row.Get(ColTaxonomicOrder)); err != nil {
		return nil, coerce.Named(ColTaxonomicOrder, err)
	}

	if rec.Count, rec.Present, err = coerce.Count(row.Get(ColCount)); err != nil {
		return nil, coerce.Named(ColCount, err)
	}
	if v := row.Get(ColBreedingCode); v != "" {
		rec.BreedingCode = &v
	}
	rec.AgeSex = row.Get(ColAgeSex)
	rec.SpeciesComments = row.Get(ColSpeciesComments)
	if rec.HasMedia, err = coerce.Bool01(row.Get(ColHasMedia)); err != nil {
		return nil, coerce.Named(ColHasMedia, err)
	}

	if err := n.extractLocation(row, rec); err != nil {
		return nil, err
	}
	if err := n.extractChecklist(row, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (n *Normalizer) extractLocation(row *Row, rec *Record) error {
	rec.Country = model.Country{Code: row.Get(ColCountryCode), Name: row.Get(ColCountry)}
	rec.State = model.StateProvince{Code: row.Get(ColStateCode), Name: row.Get(ColStateProvince)}
	rec.County = model.County{Code: row.Get(ColCountyCode), Name: row.Get(ColCounty)}
	rec.IBACode = row.Get(ColIBACode)
	rec.BCRCode = row.Get(ColBCRCode)

	lat, err := coerce.Float(row.Get(ColLatitude))
	if err != nil {
		return coerce.Named(ColLatitude, err)
	}
	if lat == nil {
		return coerce.Required(ColLatitude, coerce.KindFloat)
	}
	if err := coerce.InRange(coerce.KindFloat, row.Get(ColLatitude), *lat, -90, 90); err != nil {
		return coerce.Named(ColLatitude, err)
	}
	lon, err := coerce.Float(row.Get(ColLongitude))
	if err != nil {
		return coerce.Named(ColLongitude, err)
	}
	if lon == nil {
		return coerce.Required(ColLongitude, coerce.KindFloat)
	}
	if err := coerce.InRange(coerce.KindFloat, row.Get(ColLongitude), *lon, -180, 180); err != nil {
		return coerce.Named(ColLongitude, err)
	}
	rec.Point = model.Point{Lon: *lon, Lat: *lat}

	locID, err := coerce.PrefixedID(row.Get(ColLocalityID), "L")
	if err != nil {
		return coerce.Named(ColLocalityID, err)
	}
	if locID != nil {
		rec.Locality = &model.Locality{ID: *locID, Name: row.Get(ColLocality), Type: row.Get(ColLocalityType)}
	}
	return nil
}

func (n *Normalizer) extractChecklist(row *Row, rec *Record) error {
	var err error
	if rec.Start, err = coerce.Timestamp(row.Get(ColDate), row.Get(ColTimeStarted)); err != nil {
		var fe *coerce.FieldError
		col := ColDate
		if errors.As(err, &fe) && fe.Kind == coerce.KindClock {
			col = ColTimeStarted
		}
		return coerce.Named(col, err)
	}
	if rec.Duration, err = coerce.Minutes(row.Get(ColDuration)); err != nil {
		return coerce.Named(ColDuration, err)
	}
	if rec.Distance, err = coerce.Decimal(row.Get(ColDistance)); err != nil {
		return coerce.Named(ColDistance, err)
	}
	if rec.Area, err = coerce.Decimal(row.Get(ColArea)); err != nil {
		return coerce.Named(ColArea, err)
	}
	if rec.ObserverCount, err = coerce.Int(row.Get(ColObserverCount)); err != nil {
		return coerce.Named(ColObserverCount, err)
	}
	if rec.Complete, err = coerce.Bool01(row.Get(ColComplete)); err != nil {
		return coerce.Named(ColComplete, err)
	}
	if rec.GroupID, err = coerce.PrefixedID(row.Get(ColGroupID), "G"); err != nil {
		return coerce.Named(ColGroupID, err)
	}
	if rec.Approved, err = coerce.Bool01(row.Get(ColApproved)); err != nil {
		return coerce.Named(ColApproved, err)
	}
	if rec.Reviewed, err = coerce.Bool01(row.Get(ColReviewed)); err != nil {
		return coerce.Named(ColReviewed, err)
	}
	rec.Reason = row.Get(ColReason)
	rec.TripComments = row.Get(ColTripComments)

	obsr, err := coerce.PrefixedID(row.Get(ColObserverID), "obsr")
	if err != nil {
		return coerce.Named(ColObserverID, err)
	}
	if obsr != nil {
		rec.Observer = &model.Observer{ID: *obsr, FirstName: row.Get(ColFirstName), LastName: row.Get(ColLastName)}
	}

	protoName := row.Get(ColProtocolType)
	protoCode := row.Get(ColProtocolCode)
	if protoCode == "" {
		protoCode = protoName
	}
	if protoCode != "" {
		rec.Protocol = &model.Protocol{Code: protoCode, Name: protoName}
	}
	if code := row.Get(ColProjectCode); code != "" {
		rec.Project = &model.Project{Code: code}
	}
	return nil
}

// Apply resolves every reference of rec and writes its checklist and
// observation. Store failures are returned as *StoreError.
func (n *Normalizer) Apply(ctx context.Context, tx storage.Tx, rec *Record) (Outcome, error) {
	var out Outcome

	loc, err := n.resolveLocation(ctx, tx, rec)
	if err != nil {
		return out, err
	}

	speciesID, subspeciesID, nested, err := n.resolveTaxon(ctx, tx, rec)
	if err != nil {
		return out, err
	}
	out.Nested = nested

	observerID, err := optional(rec.Observer != nil, func() (int64, error) {
		o := *rec.Observer
		return n.observers.Resolve(ctx, o.ID, func(ctx context.Context) (int64, error) {
			id, err := tx.GetOrCreateObserver(ctx, o)
			return id, storeErr("observer", err)
		})
	})
	if err != nil {
		return out, err
	}
	protocolID, err := optional(rec.Protocol != nil, func() (int64, error) {
		p := *rec.Protocol
		return n.protocols.Resolve(ctx, p.Code, func(ctx context.Context) (int64, error) {
			id, err := tx.GetOrCreateProtocol(ctx, p)
			return id, storeErr("protocol", err)
		})
	})
	if err != nil {
		return out, err
	}
	projectID, err := optional(rec.Project != nil, func() (int64, error) {
		p := *rec.Project
		return n.projects.Resolve(ctx, p.Code, func(ctx context.Context) (int64, error) {
			id, err := tx.GetOrCreateProject(ctx, p)
			return id, storeErr("project", err)
		})
	})
	if err != nil {
		return out, err
	}

	_, err = n.checklists.Resolve(ctx, rec.ChecklistID, func(ctx context.Context) (int64, error) {
		created, err := tx.CreateChecklist(ctx, model.Checklist{
			ID:            rec.ChecklistID,
			LocationID:    loc,
			Start:         rec.Start,
			Comments:      rec.TripComments,
			Duration:      rec.Duration,
			DistanceKm:    rec.Distance,
			AreaHa:        rec.Area,
			ObserverCount: rec.ObserverCount,
			Complete:      rec.Complete,
			GroupID:       rec.GroupID,
			Approved:      rec.Approved,
			Reviewed:      rec.Reviewed,
			Reason:        rec.Reason,
			ProtocolID:    protocolID,
			ProjectID:     projectID,
			ObserverID:    observerID,
		})
		if err != nil {
			return 0, storeErr("checklist", err)
		}
		out.ChecklistCreated = created
		return rec.ChecklistID, nil
	})
	if err != nil {
		return out, err
	}

	created, err := tx.CreateObservation(ctx, model.Observation{
		ID:           rec.ObservationID,
		ChecklistID:  rec.ChecklistID,
		SpeciesID:    speciesID,
		SubspeciesID: subspeciesID,
		Count:        rec.Count,
		Present:      rec.Present,
		AgeSex:       rec.AgeSex,
		Comments:     rec.SpeciesComments,
		BreedingCode: rec.BreedingCode,
		HasMedia:     rec.HasMedia,
		LastEdit:     rec.LastEdit,
		ObserverID:   observerID,
	})
	if err != nil {
		return out, storeErr("observation", err)
	}
	out.ObservationCreated = created
	return out, nil
}

func (n *Normalizer) resolveLocation(ctx context.Context, tx storage.Tx, rec *Record) (int64, error) {
	countryID, err := optional(!rec.Country.Empty(), func() (int64, error) {
		return n.countries.Resolve(ctx, rec.Country, func(ctx context.Context) (int64, error) {
			id, err := tx.GetOrCreateCountry(ctx, rec.Country)
			return id, storeErr("country", err)
		})
	})
	if err != nil {
		return 0, err
	}
	stateID, err := optional(!rec.State.Empty(), func() (int64, error) {
		return n.states.Resolve(ctx, rec.State, func(ctx context.Context) (int64, error) {
			id, err := tx.GetOrCreateStateProvince(ctx, rec.State)
			return id, storeErr("state_province", err)
		})
	})
	if err != nil {
		return 0, err
	}
	countyID, err := optional(!rec.County.Empty(), func() (int64, error) {
		return n.counties.Resolve(ctx, rec.County, func(ctx context.Context) (int64, error) {
			id, err := tx.GetOrCreateCounty(ctx, rec.County)
			return id, storeErr("county", err)
		})
	})
	if err != nil {
		return 0, err
	}
	localityID, err := optional(rec.Locality != nil, func() (int64, error) {
		l := *rec.Locality
		return n.localities.Resolve(ctx, l.ID, func(ctx context.Context) (int64, error) {
			id, err := tx.GetOrCreateLocality(ctx, l)
			return id, storeErr("locality", err)
		})
	})
	if err != nil {
		return 0, err
	}

	// Identity is the point alone; the rest only fills a new row.
	return n.locations.Resolve(ctx, rec.Point, func(ctx context.Context) (int64, error) {
		id, err := tx.GetOrCreateLocation(ctx, model.Location{
			Point:           rec.Point,
			LocalityID:      localityID,
			CountryID:       countryID,
			StateProvinceID: stateID,
			CountyID:        countyID,
			IBACode:         rec.IBACode,
			BCRCode:         rec.BCRCode,
		})
		return id, storeErr("location", err)
	})
}

// resolveTaxon applies the reclassification rules and returns exactly one
// of species or subspecies id.
func (n *Normalizer) resolveTaxon(ctx context.Context, tx storage.Tx, rec *Record) (*int64, *int64, bool, error) {
	cat := rec.Category
	if cat.AlwaysNested() || (cat.NestedIfKnown() && n.known.Has(rec.SciName)) {
		id, err := n.resolveSubspecies(ctx, tx, model.Subspecies{
			ScientificName: rec.SciName,
			CommonName:     rec.CommonName,
			TaxonomicOrder: rec.TaxonomicOrder,
			Category:       cat,
		})
		if err != nil {
			return nil, nil, false, err
		}
		return nil, &id, true, nil
	}

	sp := model.Species{ScientificName: rec.SciName, CommonName: rec.CommonName, Category: cat}
	if rec.SubSciName == "" {
		sp.TaxonomicOrder = rec.TaxonomicOrder
	}
	if cat == model.CategoryISSF || cat == model.CategoryIntergrade {
		sp.Category = model.CategorySpecies
	}
	speciesID, err := n.species.Resolve(ctx, sp.ScientificName, func(ctx context.Context) (int64, error) {
		id, err := tx.GetOrCreateSpecies(ctx, sp)
		return id, storeErr("species", err)
	})
	if err != nil {
		return nil, nil, false, err
	}
	if rec.SubSciName == "" {
		return &speciesID, nil, false, nil
	}

	subCat := cat
	if !subCat.IsSubspecies() {
		subCat = model.CategoryISSF
	}
	id, err := n.resolveSubspecies(ctx, tx, model.Subspecies{
		ScientificName: rec.SubSciName,
		CommonName:     rec.SubCommonName,
		TaxonomicOrder: rec.TaxonomicOrder,
		Category:       subCat,
		ParentName:     sp.ScientificName,
		ParentID:       &speciesID,
	})
	if err != nil {
		return nil, nil, false, err
	}
	return nil, &id, false, nil
}

func (n *Normalizer) resolveSubspecies(ctx context.Context, tx storage.Tx, ss model.Subspecies) (int64, error) {
	id, err := n.subspecies.Resolve(ctx, ss.ScientificName, func(ctx context.Context) (int64, error) {
		id, err := tx.GetOrCreateSubspecies(ctx, ss)
		return id, storeErr("subspecies", err)
	})
	if err != nil {
		return 0, err
	}
	n.known.Add(ss.ScientificName)
	return id, nil
}

// optional runs resolve only when present is true.
func optional(present bool, resolve func() (int64, error)) (*int64, error) {
	if !present {
		return nil, nil
	}
	id, err := resolve()
	if err != nil {
		return nil, err
	}
	return &id, nil
}
