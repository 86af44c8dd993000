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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// SourceID derives the checkpoint key for an input location. Local paths
// are made absolute first so that "dump.txt" and "./dump.txt" from the
// same directory share progress. Remote locations are used as given.
func SourceID(location string) string {
	if location == "-" {
		return "stdin"
	}
	key := location
	if !strings.Contains(location, "://") {
		if abs, err := filepath.Abs(location); err == nil {
			key = abs
		}
		key = normalizePath(key)
	}
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("src:%s", hex.EncodeToString(hash[:16]))
}

// normalizePath normalizes a file path for consistent ID generation.
// Ensures cross-platform consistency by:
//   - Removing leading ./
//   - Cleaning the path (removing redundant separators, etc.)
//   - Normalizing path separators to forward slashes
func normalizePath(path string) string {
	path = strings.TrimPrefix(path, "./")
	path = filepath.Clean(path)
	path = filepath.ToSlash(path)
	return strings.TrimPrefix(path, "/")
}
