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

package cache

// Member is a journal that also reports stats.
type Member interface {
	Journal
	Stats() Stats
}

// Set applies journal operations to a group of caches at once.
type Set struct {
	members []Member
}

// Add registers members with the set.
func (s *Set) Add(m ...Member) { s.members = append(s.members, m...) }

func (s *Set) Keep() {
	for _, m := range s.members {
		m.Keep()
	}
}

func (s *Set) Discard() {
	for _, m := range s.members {
		m.Discard()
	}
}

func (s *Set) Commit() {
	for _, m := range s.members {
		m.Commit()
	}
}

func (s *Set) Purge() {
	for _, m := range s.members {
		m.Purge()
	}
}

// Stats returns stats for every member in registration order.
func (s *Set) Stats() []Stats {
	out := make([]Stats, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m.Stats())
	}
	return out
}

// Occupancy is the total number of cached entries.
func (s *Set) Occupancy() int {
	n := 0
	for _, m := range s.members {
		n += m.Stats().Len
	}
	return n
}

// NameSet is a journaled set of strings, used for the known subspecies
// names that drive reclassification. Seeded names are treated as committed.
type NameSet struct {
	names map[string]struct{}
	batch []string
	row   []string
}

// NewNameSet returns a set seeded with names.
func NewNameSet(names ...string) *NameSet {
	s := &NameSet{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		s.names[n] = struct{}{}
	}
	return s
}

// Has reports whether name is in the set.
func (s *NameSet) Has(name string) bool {
	_, ok := s.names[name]
	return ok
}

// Add inserts name as part of the current row.
func (s *NameSet) Add(name string) {
	if s.Has(name) {
		return
	}
	s.names[name] = struct{}{}
	s.row = append(s.row, name)
}

func (s *NameSet) Keep() {
	s.batch = append(s.batch, s.row...)
	s.row = s.row[:0]
}

func (s *NameSet) Discard() {
	for _, n := range s.row {
		delete(s.names, n)
	}
	s.row = s.row[:0]
}

func (s *NameSet) Commit() { s.batch = s.batch[:0] }

// Purge drops every name added since the last Commit.
func (s *NameSet) Purge() {
	s.Discard()
	for _, n := range s.batch {
		delete(s.names, n)
	}
	s.batch = s.batch[:0]
}

func (s *NameSet) Stats() Stats {
	return Stats{Name: "subspecies_names", Len: len(s.names)}
}
