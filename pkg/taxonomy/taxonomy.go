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

package taxonomy

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/kraklabs/ebirdsync/pkg/coerce"
	"github.com/kraklabs/ebirdsync/pkg/model"
)

// LookupError reports a taxonomy reference that cannot be resolved.
type LookupError = model.LookupError

// Column names of the reference file.
const (
	ColTaxonOrder = "TAXON_ORDER"
	ColCategory   = "CATEGORY"
	ColCode       = "SPECIES_CODE"
	ColCommonName = "PRIMARY_COM_NAME"
	ColSciName    = "SCI_NAME"
	ColReportAs   = "REPORT_AS"
	ColOrder      = "ORDER1"
	ColOrderAlt   = "ORDER"
	ColFamily     = "FAMILY"
)

var requiredColumns = []string{ColTaxonOrder, ColCategory, ColCode, ColCommonName, ColSciName}

// Options configures Load.
type Options struct {
	// Encoding of the file, e.g. "windows-1252". Empty means UTF-8.
	Encoding string
	// Corrections to apply. Nil means DefaultCorrections.
	Corrections *Corrections
	Logger      *slog.Logger
}

// Taxonomy is a loaded reference taxonomy. Both maps are keyed by the
// canonical taxonomic order string.
type Taxonomy struct {
	Species    map[string]model.Species
	Subspecies map[string]model.Subspecies
	// Corrected is the number of rows changed by the corrections table.
	Corrected int
}

type entry struct {
	line     int
	order    decimal.Decimal
	category model.Category
	code     string
	common   string
	sci      string
	reportAs string
	ordName  string
	family   string
}

// LoadFile opens path and calls Load.
func LoadFile(path string, opts Options) (*Taxonomy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open taxonomy: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Load(f, opts)
}

// Load reads a reference file and resolves every parent link.
//
// All rows are read before any REPORT_AS code is resolved, so parents may
// appear anywhere in the file.
func Load(r io.Reader, opts Options) (*Taxonomy, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	corr := opts.Corrections
	if corr == nil {
		corr = DefaultCorrections()
	}
	r, err := decode(r, opts.Encoding)
	if err != nil {
		return nil, err
	}

	entries, corrected, err := readEntries(r, corr)
	if err != nil {
		return nil, err
	}

	t := &Taxonomy{
		Species:    make(map[string]model.Species),
		Subspecies: make(map[string]model.Subspecies),
		Corrected:  corrected,
	}
	if err := t.build(entries); err != nil {
		return nil, err
	}

	logger.Info("taxonomy.load.complete",
		"species", len(t.Species),
		"subspecies", len(t.Subspecies),
		"corrected", corrected,
	)
	return t, nil
}

func decode(r io.Reader, name string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return r, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported taxonomy encoding %q: %w", name, err)
	}
	return enc.NewDecoder().Reader(r), nil
}

func readEntries(r io.Reader, corr *Corrections) ([]*entry, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, errors.New("taxonomy file is empty")
		}
		return nil, 0, fmt.Errorf("read taxonomy header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, 0, fmt.Errorf("taxonomy file is missing column %s", c)
		}
	}
	orderCol := ColOrder
	if _, ok := cols[orderCol]; !ok {
		orderCol = ColOrderAlt
	}
	get := func(rec []string, col string) string {
		i, ok := cols[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var (
		entries   []*entry
		corrected int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read taxonomy: %w", err)
		}
		line, _ := cr.FieldPos(0)

		rawOrder := get(rec, ColTaxonOrder)
		order, err := coerce.Decimal(rawOrder)
		if err != nil {
			return nil, 0, fmt.Errorf("taxonomy line %d: %w", line, coerce.Named(ColTaxonOrder, err))
		}
		if order == nil {
			return nil, 0, fmt.Errorf("taxonomy line %d: %w", line, coerce.Required(ColTaxonOrder, coerce.KindDecimal))
		}
		cat, err := model.ParseCategory(get(rec, ColCategory))
		if err != nil {
			fe := &coerce.FieldError{Field: ColCategory, Kind: coerce.KindCategory, Value: get(rec, ColCategory), Err: err}
			return nil, 0, fmt.Errorf("taxonomy line %d: %w", line, fe)
		}

		fixedOrder, sci, changed, err := corr.apply(*order, get(rec, ColSciName))
		if err != nil {
			return nil, 0, fmt.Errorf("taxonomy line %d: %w", line, err)
		}
		if changed {
			corrected++
		}
		entries = append(entries, &entry{
			line:     line,
			order:    fixedOrder,
			category: cat,
			code:     get(rec, ColCode),
			common:   get(rec, ColCommonName),
			sci:      sci,
			reportAs: get(rec, ColReportAs),
			ordName:  get(rec, orderCol),
			family:   get(rec, ColFamily),
		})
	}
	return entries, corrected, nil
}

func (t *Taxonomy) build(entries []*entry) error {
	byCode := make(map[string]*entry, len(entries))
	byOrder := make(map[string]*entry, len(entries))
	byName := make(map[string]*entry, len(entries))
	for _, e := range entries {
		key := e.order.String()
		if prev, ok := byOrder[key]; ok {
			return &LookupError{Entity: "taxonomic order", Key: key, Line: e.line,
				Reason: fmt.Sprintf("already used by line %d", prev.line)}
		}
		byOrder[key] = e
		if prev, ok := byName[e.sci]; ok {
			return &LookupError{Entity: "scientific name", Key: e.sci, Line: e.line,
				Reason: fmt.Sprintf("already used by line %d", prev.line)}
		}
		byName[e.sci] = e
		if e.code != "" {
			if prev, ok := byCode[e.code]; ok {
				return &LookupError{Entity: "species code", Key: e.code, Line: e.line,
					Reason: fmt.Sprintf("already used by line %d", prev.line)}
			}
			byCode[e.code] = e
		}
	}

	for _, e := range entries {
		order := e.order
		if e.category == model.CategorySpecies {
			t.Species[order.String()] = model.Species{
				ScientificName: e.sci,
				CommonName:     e.common,
				TaxonomicOrder: &order,
				Category:       e.category,
				SpeciesCode:    e.code,
				OrderName:      e.ordName,
				Family:         e.family,
			}
			continue
		}
		parent, err := resolveParent(e, byCode)
		if err != nil {
			return err
		}
		if parent == "" && e.category.RequiresParent() {
			return &LookupError{Entity: "parent species", Key: e.sci, Line: e.line,
				Reason: fmt.Sprintf("%s taxa must report as a species", e.category)}
		}
		t.Subspecies[order.String()] = model.Subspecies{
			ScientificName: e.sci,
			CommonName:     e.common,
			TaxonomicOrder: &order,
			Category:       e.category,
			SpeciesCode:    e.code,
			ParentName:     parent,
		}
	}
	return nil
}

// resolveParent follows REPORT_AS to the nearest species-tier taxon.
func resolveParent(e *entry, byCode map[string]*entry) (string, error) {
	code := e.reportAs
	if code == "" {
		return "", nil
	}
	seen := map[string]bool{e.code: true}
	for {
		if seen[code] {
			return "", &LookupError{Entity: "parent species", Key: code, Line: e.line, Reason: "report-as cycle"}
		}
		seen[code] = true
		p, ok := byCode[code]
		if !ok {
			return "", &LookupError{Entity: "parent species", Key: code, Line: e.line, Reason: "no taxon has this species code"}
		}
		if p.category == model.CategorySpecies {
			return p.sci, nil
		}
		if p.reportAs == "" {
			return "", &LookupError{Entity: "parent species", Key: code, Line: e.line,
				Reason: fmt.Sprintf("reports as a %s taxon with no species above it", p.category)}
		}
		code = p.reportAs
	}
}

// SortedSpecies returns species in taxonomic order.
func (t *Taxonomy) SortedSpecies() []model.Species {
	out := make([]model.Species, 0, len(t.Species))
	for _, s := range t.Species {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaxonomicOrder.LessThan(*out[j].TaxonomicOrder) })
	return out
}

// SortedSubspecies returns subspecies in taxonomic order.
func (t *Taxonomy) SortedSubspecies() []model.Subspecies {
	out := make([]model.Subspecies, 0, len(t.Subspecies))
	for _, s := range t.Subspecies {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaxonomicOrder.LessThan(*out[j].TaxonomicOrder) })
	return out
}

// SubspeciesNames returns the scientific name of every subspecies-tier taxon.
func (t *Taxonomy) SubspeciesNames() []string {
	out := make([]string, 0, len(t.Subspecies))
	for _, s := range t.Subspecies {
		out = append(out, s.ScientificName)
	}
	sort.Strings(out)
	return out
}
