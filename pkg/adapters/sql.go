// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package adapters

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stacklok/datahive/pkg/sqlguard"
)

const (
	// connectTimeout bounds the dial plus initial ping.
	connectTimeout = 10 * time.Second
	// statementTimeout bounds each statement. The edge deadline still
	// applies; the shorter of the two wins.
	statementTimeout = 30 * time.Second

	// defaultQueryLimit and maxQueryLimit clamp query_table row counts.
	defaultQueryLimit = 50
	maxQueryLimit     = 500
)

// sqlDialect captures the per-database differences between the three SQL
// adapters: DSN construction, parameter placeholders, catalog queries and
// paging syntax. Everything else is shared.
type sqlDialect interface {
	guardDialect() sqlguard.Dialect
	driverName() string
	// dsn builds the connection string from the decrypted credential. A
	// missing required field is a configuration fault.
	dsn(cfg map[string]string) (string, error)
	// placeholder returns the 1-based bound-parameter marker.
	placeholder(n int) string
	// listTablesQuery enumerates base tables of the default user schema.
	listTablesQuery() string
	// describeQuery returns the information_schema column query and its
	// bound arguments for a sanitized table name.
	describeQuery(table string) (string, []any)
	// pagingClause renders LIMIT/OFFSET in dialect syntax. hasOrder tells
	// MSSQL whether it must synthesize an ORDER BY.
	pagingClause(limit, offset int, hasOrder bool) string
}

// sqlAdapter implements the four read-only SQL tools over a dialect.
type sqlAdapter struct {
	service string
	dialect sqlDialect
}

func (a *sqlAdapter) Service() string {
	return a.service
}

func (a *sqlAdapter) Tools() []mcp.Tool {
	return sqlTools()
}

func (a *sqlAdapter) Handle(
	ctx context.Context, req mcp.CallToolRequest, cfg map[string]string,
) (*mcp.CallToolResult, error) {
	dsn, err := a.dialect.dsn(cfg)
	if err != nil {
		return nil, err
	}

	// Fresh connection per request, closed on every path. Connections are
	// deliberately not pooled across requests: each one belongs to exactly
	// one tenant credential for exactly one call.
	db, err := sqlx.Open(a.dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database handle: %w", err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return errorResult("Connection failed: %v", err), nil
	}

	switch req.Params.Name {
	case "list_tables":
		return a.listTables(ctx, db)
	case "describe_table":
		return a.describeTable(ctx, db, req)
	case "query_table":
		return a.queryTable(ctx, db, req)
	case "execute_sql":
		return a.executeSQL(ctx, db, req)
	default:
		return errorResult("Unknown tool: %s", req.Params.Name), nil
	}
}

func (a *sqlAdapter) listTables(ctx context.Context, db *sqlx.DB) (*mcp.CallToolResult, error) {
	queryCtx, cancel := context.WithTimeout(ctx, statementTimeout)
	defer cancel()

	rows, err := db.QueryContext(queryCtx, a.dialect.listTablesQuery())
	if err != nil {
		return errorResult("Query failed: %v", err), nil
	}
	defer func() { _ = rows.Close() }()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return errorResult("Query failed: %v", err), nil
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return errorResult("Query failed: %v", err), nil
	}

	return jsonResult(map[string]any{"tables": tables})
}

// columnInfo matches the describe_table contract across all SQL dialects.
type columnInfo struct {
	ColumnName             string  `json:"column_name"`
	DataType               string  `json:"data_type"`
	IsNullable             string  `json:"is_nullable"`
	ColumnDefault          *string `json:"column_default"`
	CharacterMaximumLength *int64  `json:"character_maximum_length"`
}

func (a *sqlAdapter) describeTable(
	ctx context.Context, db *sqlx.DB, req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	args := struct {
		TableName string `json:"table_name"`
	}{}
	if err := req.BindArguments(&args); err != nil {
		return errorResult("Invalid arguments: %v", err), nil
	}
	table, err := sqlguard.SanitizeIdentifier(args.TableName)
	if err != nil {
		return errorResult("%v", err), nil
	}

	query, queryArgs := a.dialect.describeQuery(table)
	queryCtx, cancel := context.WithTimeout(ctx, statementTimeout)
	defer cancel()

	rows, err := db.QueryContext(queryCtx, query, queryArgs...)
	if err != nil {
		return errorResult("Query failed: %v", err), nil
	}
	defer func() { _ = rows.Close() }()

	var columns []columnInfo
	for rows.Next() {
		var col columnInfo
		if err := rows.Scan(
			&col.ColumnName, &col.DataType, &col.IsNullable,
			&col.ColumnDefault, &col.CharacterMaximumLength,
		); err != nil {
			return errorResult("Query failed: %v", err), nil
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return errorResult("Query failed: %v", err), nil
	}
	if len(columns) == 0 {
		return errorResult("Table not found: %s", table), nil
	}

	return jsonResult(map[string]any{"table": table, "columns": columns})
}

// queryTableArgs are the query_table tool inputs.
type queryTableArgs struct {
	TableName      string         `json:"table_name"`
	Select         []string       `json:"select,omitempty"`
	Filters        map[string]any `json:"filters,omitempty"`
	Limit          *int           `json:"limit,omitempty"`
	Offset         *int           `json:"offset,omitempty"`
	OrderBy        string         `json:"order_by,omitempty"`
	OrderDirection string         `json:"order_direction,omitempty"`
}

func (a *sqlAdapter) queryTable(
	ctx context.Context, db *sqlx.DB, req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	var args queryTableArgs
	if err := req.BindArguments(&args); err != nil {
		return errorResult("Invalid arguments: %v", err), nil
	}

	query, bindArgs, err := buildSelect(a.dialect, args)
	if err != nil {
		return errorResult("%v", err), nil
	}
	return a.runQuery(ctx, db, query, bindArgs)
}

func (a *sqlAdapter) executeSQL(
	ctx context.Context, db *sqlx.DB, req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	args := struct {
		SQL string `json:"sql"`
	}{}
	if err := req.BindArguments(&args); err != nil {
		return errorResult("Invalid arguments: %v", err), nil
	}
	if err := sqlguard.CheckReadOnly(args.SQL); err != nil {
		return errorResult("%v", err), nil
	}
	return a.runQuery(ctx, db, args.SQL, nil)
}

// runQuery executes one SELECT and decodes rows generically.
func (a *sqlAdapter) runQuery(
	ctx context.Context, db *sqlx.DB, query string, args []any,
) (*mcp.CallToolResult, error) {
	queryCtx, cancel := context.WithTimeout(ctx, statementTimeout)
	defer cancel()

	rows, err := db.QueryxContext(queryCtx, query, args...)
	if err != nil {
		return errorResult("Query failed: %v", err), nil
	}
	defer func() { _ = rows.Close() }()

	result := []map[string]any{}
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return errorResult("Query failed: %v", err), nil
		}
		// Drivers surface text columns as []byte; JSON would base64 them.
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return errorResult("Query failed: %v", err), nil
	}

	return jsonResult(map[string]any{"rows": result, "row_count": len(result)})
}

// buildSelect renders the parameterized query_table statement. Identifiers
// pass the SQL guard and are dialect-quoted; values always bind as
// positional parameters.
func buildSelect(d sqlDialect, args queryTableArgs) (string, []any, error) {
	table, err := sqlguard.SanitizeIdentifier(args.TableName)
	if err != nil {
		return "", nil, err
	}

	columns := "*"
	if len(args.Select) > 0 {
		quoted := make([]string, 0, len(args.Select))
		for _, col := range args.Select {
			name, err := sqlguard.SanitizeIdentifier(col)
			if err != nil {
				return "", nil, err
			}
			quoted = append(quoted, sqlguard.QuoteIdentifier(d.guardDialect(), name))
		}
		columns = strings.Join(quoted, ", ")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", columns, sqlguard.QuoteIdentifier(d.guardDialect(), table))

	var bindArgs []any
	if len(args.Filters) > 0 {
		keys := make([]string, 0, len(args.Filters))
		for k := range args.Filters {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		clauses := make([]string, 0, len(keys))
		for _, k := range keys {
			name, err := sqlguard.SanitizeIdentifier(k)
			if err != nil {
				return "", nil, err
			}
			quoted := sqlguard.QuoteIdentifier(d.guardDialect(), name)
			if args.Filters[k] == nil {
				clauses = append(clauses, quoted+" IS NULL")
				continue
			}
			bindArgs = append(bindArgs, args.Filters[k])
			clauses = append(clauses, fmt.Sprintf("%s = %s", quoted, d.placeholder(len(bindArgs))))
		}
		sb.WriteString(" WHERE " + strings.Join(clauses, " AND "))
	}

	hasOrder := args.OrderBy != ""
	if hasOrder {
		name, err := sqlguard.SanitizeIdentifier(args.OrderBy)
		if err != nil {
			return "", nil, err
		}
		direction := "ASC"
		switch strings.ToLower(args.OrderDirection) {
		case "", "asc":
		case "desc":
			direction = "DESC"
		default:
			return "", nil, fmt.Errorf("invalid order_direction: %q", args.OrderDirection)
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s", sqlguard.QuoteIdentifier(d.guardDialect(), name), direction)
	}

	sb.WriteString(" " + d.pagingClause(clampLimit(args.Limit), clampOffset(args.Offset), hasOrder))

	return sb.String(), bindArgs, nil
}

// clampLimit applies the default and hard ceiling: absent, zero or negative
// selects the default; anything above the cap is clamped.
func clampLimit(limit *int) int {
	if limit == nil || *limit <= 0 {
		return defaultQueryLimit
	}
	if *limit > maxQueryLimit {
		return maxQueryLimit
	}
	return *limit
}

func clampOffset(offset *int) int {
	if offset == nil || *offset < 0 {
		return 0
	}
	return *offset
}

// sqlTools returns the shared tool definitions for the SQL adapters.
func sqlTools() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "list_tables",
			Description: "List all tables in the database",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{},
			},
		},
		{
			Name:        "describe_table",
			Description: "Describe the columns of a table",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"table_name": map[string]any{
						"type":        "string",
						"description": "Name of the table to describe",
					},
				},
				Required: []string{"table_name"},
			},
		},
		{
			Name:        "query_table",
			Description: "Query rows from a table with optional filters, ordering and pagination",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"table_name": map[string]any{
						"type":        "string",
						"description": "Name of the table to query",
					},
					"select": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Columns to return (default all)",
					},
					"filters": map[string]any{
						"type":        "object",
						"description": "Equality filters; a null value matches SQL NULL",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum rows to return (default 50, max 500)",
					},
					"offset": map[string]any{
						"type":        "integer",
						"description": "Rows to skip (default 0)",
					},
					"order_by": map[string]any{
						"type":        "string",
						"description": "Column to order by",
					},
					"order_direction": map[string]any{
						"type":        "string",
						"enum":        []string{"asc", "desc"},
						"description": "Sort direction (default asc)",
					},
				},
				Required: []string{"table_name"},
			},
		},
		{
			Name:        "execute_sql",
			Description: "Execute a read-only SQL statement (SELECT or WITH only)",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"sql": map[string]any{
						"type":        "string",
						"description": "The SQL statement to execute",
					},
				},
				Required: []string{"sql"},
			},
		},
	}
}
