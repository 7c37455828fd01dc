// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package adapters

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	// Registers the "sqlserver" database/sql driver.
	_ "github.com/microsoft/go-mssqldb"

	"github.com/stacklok/datahive/pkg/services"
	"github.com/stacklok/datahive/pkg/sqlguard"
)

// NewMSSQLAdapter creates the Microsoft SQL Server adapter.
func NewMSSQLAdapter() Adapter {
	return &sqlAdapter{service: services.MSSQL, dialect: mssqlDialect{}}
}

type mssqlDialect struct{}

func (mssqlDialect) guardDialect() sqlguard.Dialect {
	return sqlguard.DialectMSSQL
}

func (mssqlDialect) driverName() string {
	return "sqlserver"
}

// dsn builds a sqlserver:// URL. trustservercertificate=true encrypts
// without chain validation when SSL is requested; the driver-level dial
// timeout backs up the context deadline.
func (mssqlDialect) dsn(cfg map[string]string) (string, error) {
	if err := requireConfig(cfg, "host", "port", "database", "username", "password"); err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("database", cfg["database"])
	q.Set("dial timeout", "10")
	if truthy(cfg["ssl"]) {
		q.Set("encrypt", "true")
		q.Set("trustservercertificate", "true")
	} else {
		q.Set("encrypt", "disable")
	}

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg["username"], cfg["password"]),
		Host:     net.JoinHostPort(cfg["host"], cfg["port"]),
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}

func (mssqlDialect) placeholder(n int) string {
	return fmt.Sprintf("@p%d", n)
}

// listTablesQuery enumerates every non-system schema, prefixing names as
// schema.table because SQL Server has no single default user schema.
func (mssqlDialect) listTablesQuery() string {
	return `SELECT TABLE_SCHEMA + '.' + TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA NOT IN ('sys', 'INFORMATION_SCHEMA')
		ORDER BY TABLE_SCHEMA, TABLE_NAME`
}

func (mssqlDialect) describeQuery(table string) (string, []any) {
	// Accept both "table" and "schema.table" spellings.
	if schema, name, ok := strings.Cut(table, "."); ok {
		return `SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, COLUMN_DEFAULT, CHARACTER_MAXIMUM_LENGTH
			FROM INFORMATION_SCHEMA.COLUMNS
			WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
			ORDER BY ORDINAL_POSITION`, []any{schema, name}
	}
	return `SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, COLUMN_DEFAULT, CHARACTER_MAXIMUM_LENGTH
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_NAME = @p1
		ORDER BY ORDINAL_POSITION`, []any{table}
}

// pagingClause uses OFFSET/FETCH, which requires an ORDER BY; when the
// caller gave none, a constant ordering is synthesized.
func (mssqlDialect) pagingClause(limit, offset int, hasOrder bool) string {
	clause := fmt.Sprintf("OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", offset, limit)
	if !hasOrder {
		return "ORDER BY (SELECT NULL) " + clause
	}
	return clause
}
