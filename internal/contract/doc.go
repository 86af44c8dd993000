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

// Package contract provides limits and validation for ebirdsync.
//
// # Batch Size
//
// Rows are committed in batches of DefaultBatchSize unless configured
// otherwise:
//
//	size := contract.BatchSize()
//
//	if r := contract.ValidateBatchSize(flagBatchSize); !r.OK {
//	    return errors.NewInputError("Invalid --batch-size", r.Message, "", nil)
//	}
//
// # Configuration via Environment
//
//	export EBIRDSYNC_BATCH_SIZE=50000
//	export EBIRDSYNC_CACHE_CAPACITY=500000
//
// Invalid or non-positive values are ignored. EBIRDSYNC_CACHE_CAPACITY sets
// every identity cache that the config file leaves unset.
package contract
