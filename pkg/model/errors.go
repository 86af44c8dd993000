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

import "fmt"

// LookupError reports a reference that cannot be resolved, such as a
// taxonomy parent code that names no known taxon. It is always fatal.
type LookupError struct {
	// Entity is what was being resolved ("taxon", "parent species", ...).
	Entity string
	// Key is the unresolved reference.
	Key string
	// Line is the 1-based source line, when known.
	Line   int
	Reason string
}

func (e *LookupError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: cannot resolve %s %q: %s", e.Line, e.Entity, e.Key, e.Reason)
	}
	return fmt.Sprintf("cannot resolve %s %q: %s", e.Entity, e.Key, e.Reason)
}
