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
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"

	"github.com/kraklabs/ebirdsync/internal/bootstrap"
	"github.com/kraklabs/ebirdsync/internal/errors"
	"github.com/kraklabs/ebirdsync/pkg/coerce"
	"github.com/kraklabs/ebirdsync/pkg/ingestion"
)

const resumeFix = "Fix the cause, then rerun with --resume to continue from the last committed row"

// classifyError maps an ingestion or store failure to a UserError with an
// exit code. nextRow is the first uncommitted row, or -1 when unknown.
func classifyError(err error, nextRow int64) *errors.UserError {
	if err == nil {
		return nil
	}
	if ue, ok := errors.As(err); ok {
		return ue
	}

	var (
		headerErr *ingestion.HeaderError
		fieldErr  *coerce.FieldError
		lookupErr *ingestion.LookupError
		storeErr  *ingestion.StoreError
		remoteErr *ingestion.RemoteError
		rowErr    *ingestion.RowError
	)
	row := ""
	if stderrors.As(err, &rowErr) {
		row = fmt.Sprintf("Row %d", rowErr.Index)
		if rowErr.Line > 0 {
			row += fmt.Sprintf(" (line %d)", rowErr.Line)
		}
	}

	switch {
	case stderrors.Is(err, context.Canceled):
		fix := "Rerun with --resume to continue"
		if nextRow >= 0 {
			fix = fmt.Sprintf("Rerun with --resume to continue from row %d", nextRow)
		}
		return errors.NewInterruptedError("Import interrupted",
			"Rows buffered before the signal were committed", fix, err)

	case stderrors.As(err, &headerErr):
		return errors.NewConfigError("Input is not an eBird export",
			headerErr.Error(),
			"Check that -f points at an eBird Basic Dataset export with its header line", err)

	case stderrors.Is(err, bootstrap.ErrStoreNotFound):
		return errors.NewNotFoundError("Store not found", err.Error(),
			"Run 'ebirdsync init' to create the store", err)

	case stderrors.As(err, &remoteErr):
		return errors.NewNetworkError("Cannot fetch "+remoteErr.Location, remoteErr.Err.Error(),
			"Check the URL, network access and credentials", err)

	case stderrors.Is(err, fs.ErrNotExist):
		return errors.NewNotFoundError("Input not found", err.Error(),
			"Check the path passed to -f", err)

	case stderrors.Is(err, fs.ErrPermission):
		return errors.NewPermissionError("Permission denied", err.Error(),
			"Check file permissions", err)

	case stderrors.As(err, &fieldErr):
		msg := "Row could not be imported"
		if row != "" {
			msg = row + " could not be imported"
		}
		return errors.NewInputError(msg, fieldErr.Error(),
			"Correct the row, or rerun with --skip-bad-rows and --resume", err)

	case stderrors.As(err, &lookupErr):
		return errors.NewInputError("Taxonomy reference could not be resolved", lookupErr.Error(),
			"Check the taxonomy file, or add an entry to the corrections file", err)

	case stderrors.As(err, &storeErr):
		fix := resumeFix
		if row != "" {
			fix = row + " failed. " + resumeFix
		}
		return errors.NewDatabaseError("Store operation failed", storeErr.Error(), fix, err)
	}

	return errors.NewInternalError("Unexpected error", err.Error(),
		"Please report this issue with the command you ran", err)
}

// classifyWith is classifyError for failures outside a row, with fallback
// used in place of an internal error when the caller can name it better.
func classifyWith(err error, fallback func(error) *errors.UserError) *errors.UserError {
	ue := classifyError(err, -1)
	if ue.ExitCode == errors.ExitInternal {
		return fallback(err)
	}
	return ue
}

func storeOpenError(err error) *errors.UserError {
	return errors.NewDatabaseError("Cannot open store", err.Error(),
		"Check store.dsn and that the database is reachable", err)
}
