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
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Corrections holds the data fixes applied while loading a taxonomy.
//
// Names maps a taxonomic order to the scientific name that row must carry;
// the reference exports contain duplicate scientific names for a handful of
// orders. Orders maps a scientific name to the taxonomic order it must
// carry; some exports truncate order values, producing collisions.
type Corrections struct {
	Names  map[string]string `yaml:"names"`
	Orders map[string]string `yaml:"orders"`
}

// DefaultCorrections returns the built-in fixes for the published exports.
func DefaultCorrections() *Corrections {
	return &Corrections{
		Names: map[string]string{
			"734":    "Crax blumenbachii",
			"1330":   "Crossoptilon crossoptilon [crossoptilon Group]",
			"1583.6": "Tachybaptus ruficollis tricolor/vulcanorum",
		},
		Orders: map[string]string{
			"Tachybaptus ruficollis tricolor/vulcanorum": "1583.6",
		},
	}
}

// LoadCorrections reads a YAML corrections file and layers it over the
// built-in table. Entries in the file win.
//
//	names:
//	  "734": Crax blumenbachii
//	orders:
//	  "Tachybaptus ruficollis tricolor/vulcanorum": "1583.6"
func LoadCorrections(path string) (*Corrections, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corrections %s: %w", path, err)
	}
	var file Corrections
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse corrections %s: %w", path, err)
	}
	c := DefaultCorrections()
	if err := c.merge(&file); err != nil {
		return nil, fmt.Errorf("corrections %s: %w", path, err)
	}
	return c, nil
}

func (c *Corrections) merge(o *Corrections) error {
	for order, name := range o.Names {
		key, err := canonicalOrder(order)
		if err != nil {
			return fmt.Errorf("names: %w", err)
		}
		c.Names[key] = name
	}
	for name, order := range o.Orders {
		key, err := canonicalOrder(order)
		if err != nil {
			return fmt.Errorf("orders[%q]: %w", name, err)
		}
		c.Orders[name] = key
	}
	return nil
}

// apply returns the corrected name and order for a row and whether either
// changed.
func (c *Corrections) apply(order decimal.Decimal, name string) (decimal.Decimal, string, bool, error) {
	if c == nil {
		return order, name, false, nil
	}
	changed := false
	if fixed, ok := c.Names[order.String()]; ok && fixed != name {
		name = fixed
		changed = true
	}
	if fixed, ok := c.Orders[name]; ok {
		d, err := decimal.NewFromString(fixed)
		if err != nil {
			return order, name, false, fmt.Errorf("order correction for %q: %w", name, err)
		}
		if !d.Equal(order) {
			order = d
			changed = true
		}
	}
	return order, name, changed, nil
}

// canonicalOrder normalizes "734.0" and "734" to the same key.
func canonicalOrder(s string) (string, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", fmt.Errorf("invalid taxonomic order %q", s)
	}
	return d.String(), nil
}
