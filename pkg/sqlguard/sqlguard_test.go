// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlguard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckReadOnlyAccepts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sql  string
	}{
		{"plain select", "SELECT 1"},
		{"lowercase", "select id, name from users"},
		{"mixed case", "SeLeCt * FROM orders"},
		{"leading whitespace", "   \n\t SELECT 1"},
		{"cte", "WITH recent AS (SELECT * FROM orders) SELECT count(1) FROM recent"},
		{"keyword inside word", "SELECT * FROM updates"},
		{"keyword as suffix", "SELECT created_at, deleted_flag FROM audit"},
		{"subquery", "SELECT * FROM (SELECT id FROM t) sub WHERE id > 10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.NoError(t, CheckReadOnly(tt.sql))
		})
	}
}

func TestCheckReadOnlyRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		sql         string
		msgContains string
	}{
		{"empty", "", "empty"},
		{"whitespace only", "   \n ", "empty"},
		{"multi statement", "SELECT 1; DROP TABLE users", "Multiple statements not allowed"},
		{"trailing semicolon", "SELECT 1;", "Multiple statements not allowed"},
		{"semicolon in literal", "SELECT 'a;b'", "Multiple statements not allowed"},
		{"line comment", "SELECT 1 -- hidden", "comments"},
		{"block comment", "SELECT /* smuggled */ 1", "comments"},
		{"insert", "INSERT INTO users VALUES (1)", "Only SELECT statements are allowed"},
		{"update first", "UPDATE users SET name = 'x'", "Only SELECT statements are allowed"},
		{"show", "SHOW TABLES", "Only SELECT statements are allowed"},
		{"delete in subclause", "SELECT * FROM t WHERE EXISTS (DELETE FROM t)", "Forbidden keyword: DELETE"},
		{"drop lowercase", "select * from t where drop", "Forbidden keyword: DROP"},
		{"truncate", "WITH x AS (SELECT 1) SELECT TRUNCATE", "Forbidden keyword: TRUNCATE"},
		{"exec", "SELECT exec('xp_cmdshell')", "Forbidden keyword: EXEC"},
		{"execute", "SELECT 1 WHERE EXECUTE", "Forbidden keyword: EXECUTE"},
		{"grant", "select grant from t", "Forbidden keyword: GRANT"},
		{"revoke", "select REVOKE from t", "Forbidden keyword: REVOKE"},
		{"alter", "select 1 union alter table", "Forbidden keyword: ALTER"},
		{"create", "select 1 where create", "Forbidden keyword: CREATE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := CheckReadOnly(tt.sql)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msgContains)
		})
	}
}

// TestCheckReadOnlySoundness asserts the published property: every accepted
// statement is semicolon-free, comment-free, keyword-free, and starts with
// SELECT or WITH after trimming.
func TestCheckReadOnlySoundness(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"SELECT 1",
		"  select a, b from t where a = 'x' ",
		"WITH c AS (SELECT 1) SELECT * FROM c",
		"SELECT 1; DROP TABLE t",
		"DROP TABLE t",
		"SELECT -- c",
		"INSERT INTO t VALUES (1)",
		"",
	}

	for _, sql := range inputs {
		if err := CheckReadOnly(sql); err != nil {
			continue
		}
		trimmed := strings.TrimSpace(sql)
		first := strings.ToUpper(strings.Fields(trimmed)[0])

		assert.NotContains(t, trimmed, ";")
		assert.NotContains(t, trimmed, "--")
		assert.NotContains(t, trimmed, "/*")
		assert.Contains(t, []string{"SELECT", "WITH"}, first)
		assert.Empty(t, blockedKeywordRe.FindString(trimmed))
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	t.Parallel()

	valid := []string{
		"users",
		"Users_2024",
		"public.users",
		"dbo.Orders",
		"a",
		strings.Repeat("a", 128),
		"9starts_with_digit",
	}
	for _, name := range valid {
		got, err := SanitizeIdentifier(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, got, "identifier must be returned unchanged")
	}

	invalid := []string{
		"",
		strings.Repeat("a", 129),
		"users; drop table users",
		"users--",
		`us"ers`,
		"us`ers",
		"us ers",
		"users\n",
		"таблица",
		"users()",
		"$users",
	}
	for _, name := range invalid {
		_, err := SanitizeIdentifier(name)
		assert.Error(t, err, name)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dialect Dialect
		name    string
		want    string
	}{
		{DialectPostgres, "users", `"users"`},
		{DialectPostgres, "public.users", `"public"."users"`},
		{DialectMySQL, "users", "`users`"},
		{DialectMySQL, "shop.orders", "`shop`.`orders`"},
		{DialectMSSQL, "users", "[users]"},
		{DialectMSSQL, "dbo.users", "[dbo].[users]"},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect)+"/"+tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, QuoteIdentifier(tt.dialect, tt.name))
		})
	}
}
