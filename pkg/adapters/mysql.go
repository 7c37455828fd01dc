// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package adapters

import (
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"

	"github.com/stacklok/datahive/pkg/services"
	"github.com/stacklok/datahive/pkg/sqlguard"
)

// NewMySQLAdapter creates the MySQL adapter.
func NewMySQLAdapter() Adapter {
	return &sqlAdapter{service: services.MySQL, dialect: mysqlDialect{}}
}

type mysqlDialect struct{}

func (mysqlDialect) guardDialect() sqlguard.Dialect {
	return sqlguard.DialectMySQL
}

func (mysqlDialect) driverName() string {
	return "mysql"
}

// dsn builds the DSN through the driver's own config type. skip-verify
// encrypts without chain validation for managed providers with self-signed
// certificates.
func (mysqlDialect) dsn(cfg map[string]string) (string, error) {
	if err := requireConfig(cfg, "host", "port", "database", "username", "password"); err != nil {
		return "", err
	}

	mc := mysql.NewConfig()
	mc.User = cfg["username"]
	mc.Passwd = cfg["password"]
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg["host"], cfg["port"])
	mc.DBName = cfg["database"]
	mc.Timeout = connectTimeout
	mc.ReadTimeout = statementTimeout
	if truthy(cfg["ssl"]) {
		mc.TLSConfig = "skip-verify"
	}
	return mc.FormatDSN(), nil
}

func (mysqlDialect) placeholder(int) string {
	return "?"
}

func (mysqlDialect) listTablesQuery() string {
	return `SELECT table_name FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name`
}

func (mysqlDialect) describeQuery(table string) (string, []any) {
	return `SELECT column_name, data_type, is_nullable, column_default, character_maximum_length
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`, []any{table}
}

func (mysqlDialect) pagingClause(limit, offset int, _ bool) string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
}
