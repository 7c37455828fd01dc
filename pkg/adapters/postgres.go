// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package adapters

import (
	"fmt"
	"net"
	"net/url"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/stacklok/datahive/pkg/services"
	"github.com/stacklok/datahive/pkg/sqlguard"
)

// NewPostgresAdapter creates the PostgreSQL adapter.
func NewPostgresAdapter() Adapter {
	return &sqlAdapter{service: services.Postgres, dialect: postgresDialect{}}
}

type postgresDialect struct{}

func (postgresDialect) guardDialect() sqlguard.Dialect {
	return sqlguard.DialectPostgres
}

func (postgresDialect) driverName() string {
	return "pgx"
}

// dsn builds a postgres:// URL. sslmode=require encrypts without chain
// validation, which is what managed providers with self-signed certificates
// need; see the README for the trade-off.
func (postgresDialect) dsn(cfg map[string]string) (string, error) {
	if err := requireConfig(cfg, "host", "port", "database", "username", "password"); err != nil {
		return "", err
	}

	sslmode := "disable"
	if truthy(cfg["ssl"]) {
		sslmode = "require"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg["username"], cfg["password"]),
		Host:     net.JoinHostPort(cfg["host"], cfg["port"]),
		Path:     "/" + cfg["database"],
		RawQuery: "sslmode=" + sslmode + "&connect_timeout=10",
	}
	return u.String(), nil
}

func (postgresDialect) placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (postgresDialect) listTablesQuery() string {
	return `SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name`
}

func (postgresDialect) describeQuery(table string) (string, []any) {
	return `SELECT column_name, data_type, is_nullable, column_default, character_maximum_length
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, []any{table}
}

func (postgresDialect) pagingClause(limit, offset int, _ bool) string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
}
