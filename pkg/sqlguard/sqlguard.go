// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package sqlguard is the read-only boundary for tenant-supplied SQL.
//
// Database drivers bind values as parameters but cannot bind identifiers, so
// every identifier an adapter interpolates passes through SanitizeIdentifier
// and every raw statement passes through CheckReadOnly. The guard is a closed
// whitelist, not a SQL parser: anything it cannot prove harmless is rejected.
package sqlguard

import (
	"fmt"
	"regexp"
	"strings"
)

// Dialect selects the identifier quoting style of an upstream database.
type Dialect string

// Supported SQL dialects.
const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectMSSQL    Dialect = "mssql"
)

var (
	identifierRe = regexp.MustCompile(`^[A-Za-z0-9_.]{1,128}$`)

	// Whole-word keywords that can mutate state or escape into procedural
	// execution. Matched case-insensitively anywhere in the statement.
	blockedKeywordRe = regexp.MustCompile(
		`(?i)\b(INSERT|UPDATE|DELETE|DROP|TRUNCATE|ALTER|CREATE|GRANT|REVOKE|EXEC|EXECUTE)\b`)
)

// CheckReadOnly accepts only a single read-only statement. The returned error
// names the violated rule or keyword so the client can see why a statement
// was refused.
func CheckReadOnly(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return fmt.Errorf("empty SQL statement")
	}

	// Semicolons are rejected everywhere, string literals included. A guard
	// that understood quoting would have to be a full parser.
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("Multiple statements not allowed")
	}
	if strings.Contains(trimmed, "--") || strings.Contains(trimmed, "/*") {
		return fmt.Errorf("SQL comments are not allowed")
	}

	first := strings.ToUpper(strings.Fields(trimmed)[0])
	if first != "SELECT" && first != "WITH" {
		return fmt.Errorf("Only SELECT statements are allowed")
	}

	if keyword := blockedKeywordRe.FindString(trimmed); keyword != "" {
		return fmt.Errorf("Forbidden keyword: %s", strings.ToUpper(keyword))
	}
	return nil
}

// SanitizeIdentifier validates a table or column identifier. The dot is
// permitted so callers can address schema.table. The input is returned
// unchanged on success.
func SanitizeIdentifier(name string) (string, error) {
	if !identifierRe.MatchString(name) {
		return "", fmt.Errorf("invalid identifier: %q", name)
	}
	return name, nil
}

// QuoteIdentifier wraps an already-sanitized identifier in the dialect's
// native quoting, segment by segment around dots. Quoting complements
// sanitization; it never replaces it.
func QuoteIdentifier(dialect Dialect, name string) string {
	segments := strings.Split(name, ".")
	for i, segment := range segments {
		switch dialect {
		case DialectMySQL:
			segments[i] = "`" + strings.ReplaceAll(segment, "`", "``") + "`"
		case DialectMSSQL:
			segments[i] = "[" + strings.ReplaceAll(segment, "]", "]]") + "]"
		default:
			segments[i] = `"` + strings.ReplaceAll(segment, `"`, `""`) + `"`
		}
	}
	return strings.Join(segments, ".")
}
