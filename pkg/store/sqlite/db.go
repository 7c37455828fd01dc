// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package sqlite implements the metadata store on an embedded SQLite
// database.
//
// This backend serves standalone and development deployments and doubles as
// the integration-test store: the compare-and-swap and counting semantics are
// real, not mocked. Production deployments use the postgres backend.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

// open creates the database handle and applies pending migrations. SQLite is
// limited to a single connection to serialize writers; the busy timeout
// covers the brief contention that remains.
func open(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		path = "datahive.db"
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		url.PathEscape(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating sqlite database: %w", err)
	}

	return db, nil
}
