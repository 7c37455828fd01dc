// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package factory selects a metadata store backend from process
// configuration.
package factory

import (
	"context"

	"github.com/stacklok/datahive/pkg/store"
	"github.com/stacklok/datahive/pkg/store/postgres"
	"github.com/stacklok/datahive/pkg/store/sqlite"
)

// New creates a metadata store. A non-empty databaseURL selects the
// production PostgreSQL backend; otherwise the embedded SQLite store at
// sqlitePath is used (standalone and development mode).
func New(ctx context.Context, databaseURL, sqlitePath string) (store.Store, error) {
	if databaseURL != "" {
		return postgres.New(ctx, databaseURL)
	}
	return sqlite.New(ctx, sqlitePath)
}
