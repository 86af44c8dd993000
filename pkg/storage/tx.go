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

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kraklabs/ebirdsync/pkg/model"
)

type sqlTx struct {
	tx *sql.Tx
	d  dialect
}

// getOrCreate selects by natural key, inserts with ON CONFLICT DO NOTHING
// when absent, then selects again so a concurrent or earlier insert of the
// same key resolves to the stored row.
func (t *sqlTx) getOrCreate(ctx context.Context, entity, sel string, selArgs []any, ins string, insArgs []any) (int64, error) {
	sel = t.d.rebind(sel)
	var id int64
	err := t.tx.QueryRowContext(ctx, sel, selArgs...).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("select %s: %w", entity, err)
	}
	if _, err := t.tx.ExecContext(ctx, t.d.rebind(ins), insArgs...); err != nil {
		return 0, fmt.Errorf("insert %s: %w", entity, err)
	}
	if err := t.tx.QueryRowContext(ctx, sel, selArgs...).Scan(&id); err != nil {
		return 0, fmt.Errorf("reselect %s: %w", entity, err)
	}
	return id, nil
}

func (t *sqlTx) GetOrCreateCountry(ctx context.Context, c model.Country) (int64, error) {
	return t.getOrCreate(ctx, "country",
		`SELECT id FROM country WHERE code = ? AND name = ?`, []any{c.Code, c.Name},
		`INSERT INTO country (code, name) VALUES (?, ?) ON CONFLICT DO NOTHING`, []any{c.Code, c.Name})
}

func (t *sqlTx) GetOrCreateStateProvince(ctx context.Context, s model.StateProvince) (int64, error) {
	return t.getOrCreate(ctx, "state_province",
		`SELECT id FROM state_province WHERE code = ? AND name = ?`, []any{s.Code, s.Name},
		`INSERT INTO state_province (code, name) VALUES (?, ?) ON CONFLICT DO NOTHING`, []any{s.Code, s.Name})
}

func (t *sqlTx) GetOrCreateCounty(ctx context.Context, c model.County) (int64, error) {
	return t.getOrCreate(ctx, "county",
		`SELECT id FROM county WHERE code = ? AND name = ?`, []any{c.Code, c.Name},
		`INSERT INTO county (code, name) VALUES (?, ?) ON CONFLICT DO NOTHING`, []any{c.Code, c.Name})
}

func (t *sqlTx) GetOrCreateLocality(ctx context.Context, l model.Locality) (int64, error) {
	return t.getOrCreate(ctx, "locality",
		`SELECT id FROM locality WHERE id = ?`, []any{l.ID},
		`INSERT INTO locality (id, name, type) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`, []any{l.ID, l.Name, l.Type})
}

func (t *sqlTx) GetOrCreateProtocol(ctx context.Context, p model.Protocol) (int64, error) {
	return t.getOrCreate(ctx, "protocol",
		`SELECT id FROM protocol WHERE code = ?`, []any{p.Code},
		`INSERT INTO protocol (code, name) VALUES (?, ?) ON CONFLICT DO NOTHING`, []any{p.Code, p.Name})
}

func (t *sqlTx) GetOrCreateProject(ctx context.Context, p model.Project) (int64, error) {
	return t.getOrCreate(ctx, "project",
		`SELECT id FROM project WHERE code = ?`, []any{p.Code},
		`INSERT INTO project (code) VALUES (?) ON CONFLICT DO NOTHING`, []any{p.Code})
}

func (t *sqlTx) GetOrCreateObserver(ctx context.Context, o model.Observer) (int64, error) {
	return t.getOrCreate(ctx, "observer",
		`SELECT id FROM observer WHERE id = ?`, []any{o.ID},
		`INSERT INTO observer (id, first_name, last_name) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
		[]any{o.ID, o.FirstName, o.LastName})
}

func (t *sqlTx) GetOrCreateLocation(ctx context.Context, l model.Location) (int64, error) {
	return t.getOrCreate(ctx, "location",
		`SELECT id FROM location WHERE longitude = ? AND latitude = ?`, []any{l.Point.Lon, l.Point.Lat},
		`INSERT INTO location (longitude, latitude, locality_id, country_id, state_province_id, county_id, iba_code, bcr_code)
VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		[]any{
			l.Point.Lon, l.Point.Lat,
			nullInt(l.LocalityID), nullInt(l.CountryID), nullInt(l.StateProvinceID), nullInt(l.CountyID),
			l.IBACode, l.BCRCode,
		})
}

func (t *sqlTx) GetOrCreateSpecies(ctx context.Context, s model.Species) (int64, error) {
	return t.getOrCreate(ctx, "species",
		`SELECT id FROM species WHERE scientific_name = ?`, []any{s.ScientificName},
		`INSERT INTO species (scientific_name, common_name, taxonomic_order, category, species_code, order_name, family)
VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		[]any{
			s.ScientificName, s.CommonName, nullDecimal(s.TaxonomicOrder), string(s.Category),
			s.SpeciesCode, s.OrderName, s.Family,
		})
}

func (t *sqlTx) GetOrCreateSubspecies(ctx context.Context, s model.Subspecies) (int64, error) {
	return t.getOrCreate(ctx, "subspecies",
		`SELECT id FROM subspecies WHERE scientific_name = ?`, []any{s.ScientificName},
		`INSERT INTO subspecies (scientific_name, common_name, taxonomic_order, category, category_code, species_code, parent_species_id)
VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		[]any{
			s.ScientificName, s.CommonName, nullDecimal(s.TaxonomicOrder), string(s.Category),
			s.Category.Code(), s.SpeciesCode, nullInt(s.ParentID),
		})
}

func (t *sqlTx) CreateChecklist(ctx context.Context, c model.Checklist) (bool, error) {
	q := `INSERT INTO checklist (id, location_id, start_time, comments, duration_minutes, distance_km, area_ha,
observer_count, complete, group_id, approved, reviewed, reason, protocol_id, project_id, observer_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`
	return t.create(ctx, "checklist", q,
		c.ID, c.LocationID, nullTime(c.Start), c.Comments, nullMinutes(c.Duration),
		nullDecimal(c.DistanceKm), nullDecimal(c.AreaHa), nullInt(c.ObserverCount), c.Complete,
		nullInt(c.GroupID), c.Approved, c.Reviewed, c.Reason,
		nullInt(c.ProtocolID), nullInt(c.ProjectID), nullInt(c.ObserverID),
	)
}

func (t *sqlTx) CreateObservation(ctx context.Context, o model.Observation) (bool, error) {
	q := `INSERT INTO observation (id, checklist_id, species_id, subspecies_id, observed_count, present, age_sex,
comments, breeding_code, has_media, last_edit, observer_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`
	return t.create(ctx, "observation", q,
		o.ID, o.ChecklistID, nullInt(o.SpeciesID), nullInt(o.SubspeciesID), nullInt(o.Count), o.Present,
		o.AgeSex, o.Comments, nullString(o.BreedingCode), o.HasMedia, nullTime(o.LastEdit), nullInt(o.ObserverID),
	)
}

func (t *sqlTx) create(ctx context.Context, entity, q string, args ...any) (bool, error) {
	res, err := t.tx.ExecContext(ctx, t.d.rebind(q), args...)
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", entity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert %s: rows affected: %w", entity, err)
	}
	return n == 1, nil
}

func (t *sqlTx) SaveCheckpoint(ctx context.Context, cp Checkpoint) error {
	q := `INSERT INTO ingest_checkpoint (source_id, location, next_row, batches, run_id, start_time, last_update_time)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (source_id) DO UPDATE SET
	location = excluded.location,
	next_row = excluded.next_row,
	batches = excluded.batches,
	run_id = excluded.run_id,
	start_time = excluded.start_time,
	last_update_time = excluded.last_update_time`
	_, err := t.tx.ExecContext(ctx, t.d.rebind(q),
		cp.SourceID, cp.Location, cp.NextRow, cp.Batches, cp.RunID, cp.StartTime, cp.LastUpdateTime)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

var savepointName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func (t *sqlTx) savepointExec(ctx context.Context, stmt, name string) error {
	if !savepointName.MatchString(name) {
		return fmt.Errorf("invalid savepoint name %q", name)
	}
	if _, err := t.tx.ExecContext(ctx, stmt+name); err != nil {
		return fmt.Errorf("%s%s: %w", stmt, name, err)
	}
	return nil
}

func (t *sqlTx) Savepoint(ctx context.Context, name string) error {
	return t.savepointExec(ctx, "SAVEPOINT ", name)
}

func (t *sqlTx) RollbackTo(ctx context.Context, name string) error {
	return t.savepointExec(ctx, "ROLLBACK TO SAVEPOINT ", name)
}

func (t *sqlTx) Release(ctx context.Context, name string) error {
	return t.savepointExec(ctx, "RELEASE SAVEPOINT ", name)
}

func (t *sqlTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *sqlTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullDecimal(p *decimal.Decimal) any {
	if p == nil {
		return nil
	}
	return p.String()
}

func nullTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

func nullMinutes(p *time.Duration) any {
	if p == nil {
		return nil
	}
	return int64(*p / time.Minute)
}
