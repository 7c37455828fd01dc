// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tidwall/gjson"

	"github.com/stacklok/datahive/pkg/services"
	"github.com/stacklok/datahive/pkg/sqlguard"
)

// executeReadonlyRPC is the helper function execute_sql expects in the
// tenant's own database. The gateway never installs it; when PostgREST
// reports it missing, the tool answers with a hint instead of an error.
const executeReadonlyRPC = "execute_readonly_query"

// supabaseAdapter speaks PostgREST to a Supabase project.
type supabaseAdapter struct {
	client *http.Client
}

// NewSupabaseAdapter creates the Supabase REST adapter.
func NewSupabaseAdapter(client *http.Client) Adapter {
	return &supabaseAdapter{client: client}
}

func (*supabaseAdapter) Service() string {
	return services.Supabase
}

func (*supabaseAdapter) Tools() []mcp.Tool {
	// The tool surface mirrors the SQL adapters; the dialect is PostgREST.
	return sqlTools()
}

func (a *supabaseAdapter) Handle(
	ctx context.Context, req mcp.CallToolRequest, cfg map[string]string,
) (*mcp.CallToolResult, error) {
	if err := requireConfig(cfg, "url", "api_key"); err != nil {
		return nil, err
	}
	base := strings.TrimRight(cfg["url"], "/")

	switch req.Params.Name {
	case "list_tables":
		return a.listTables(ctx, base, cfg)
	case "describe_table":
		return a.describeTable(ctx, base, cfg, req)
	case "query_table":
		return a.queryTable(ctx, base, cfg, req)
	case "execute_sql":
		return a.executeSQL(ctx, base, cfg, req)
	default:
		return errorResult("Unknown tool: %s", req.Params.Name), nil
	}
}

// fetchSpec retrieves the project's OpenAPI document from /rest/v1/.
func (a *supabaseAdapter) fetchSpec(ctx context.Context, base string, cfg map[string]string) ([]byte, *mcp.CallToolResult) {
	status, body, err := a.do(ctx, http.MethodGet, base+"/rest/v1/", cfg, nil)
	if err != nil {
		return nil, errorResult("Supabase API error: %v", err)
	}
	if status != http.StatusOK {
		return nil, errorResult("Supabase API error: %s", upstreamMessage(body, status))
	}
	return body, nil
}

func (a *supabaseAdapter) listTables(ctx context.Context, base string, cfg map[string]string) (*mcp.CallToolResult, error) {
	spec, errRes := a.fetchSpec(ctx, base, cfg)
	if errRes != nil {
		return errRes, nil
	}

	tables := []string{}
	gjson.GetBytes(spec, "paths").ForEach(func(key, _ gjson.Result) bool {
		name := strings.TrimPrefix(key.String(), "/")
		if name == "" || strings.Contains(name, "{") || strings.HasPrefix(name, "rpc/") {
			return true
		}
		tables = append(tables, name)
		return true
	})
	sort.Strings(tables)

	return jsonResult(map[string]any{"tables": tables})
}

func (a *supabaseAdapter) describeTable(
	ctx context.Context, base string, cfg map[string]string, req mcp.CallToolRequest,
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

	spec, errRes := a.fetchSpec(ctx, base, cfg)
	if errRes != nil {
		return errRes, nil
	}

	var definition gjson.Result
	gjson.GetBytes(spec, "definitions").ForEach(func(key, value gjson.Result) bool {
		if key.String() == table {
			definition = value
			return false
		}
		return true
	})
	if !definition.Exists() {
		return errorResult("Table not found: %s", table), nil
	}

	required := map[string]bool{}
	for _, r := range definition.Get("required").Array() {
		required[r.String()] = true
	}

	columns := []map[string]any{}
	definition.Get("properties").ForEach(func(key, value gjson.Result) bool {
		dataType := value.Get("format").String()
		if dataType == "" {
			dataType = value.Get("type").String()
		}
		nullable := "YES"
		if required[key.String()] {
			nullable = "NO"
		}
		var columnDefault any
		if d := value.Get("default"); d.Exists() {
			columnDefault = d.Value()
		}
		columns = append(columns, map[string]any{
			"column_name":    key.String(),
			"data_type":      dataType,
			"is_nullable":    nullable,
			"column_default": columnDefault,
		})
		return true
	})

	return jsonResult(map[string]any{"table": table, "columns": columns})
}

func (a *supabaseAdapter) queryTable(
	ctx context.Context, base string, cfg map[string]string, req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	var args queryTableArgs
	if err := req.BindArguments(&args); err != nil {
		return errorResult("Invalid arguments: %v", err), nil
	}
	table, err := sqlguard.SanitizeIdentifier(args.TableName)
	if err != nil {
		return errorResult("%v", err), nil
	}

	params := url.Values{}
	if len(args.Select) > 0 {
		cols := make([]string, 0, len(args.Select))
		for _, col := range args.Select {
			name, err := sqlguard.SanitizeIdentifier(col)
			if err != nil {
				return errorResult("%v", err), nil
			}
			cols = append(cols, name)
		}
		params.Set("select", strings.Join(cols, ","))
	}

	if len(args.Filters) > 0 {
		keys := make([]string, 0, len(args.Filters))
		for k := range args.Filters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			name, err := sqlguard.SanitizeIdentifier(k)
			if err != nil {
				return errorResult("%v", err), nil
			}
			if args.Filters[k] == nil {
				params.Set(name, "is.null")
				continue
			}
			params.Set(name, fmt.Sprintf("eq.%v", args.Filters[k]))
		}
	}

	if args.OrderBy != "" {
		name, err := sqlguard.SanitizeIdentifier(args.OrderBy)
		if err != nil {
			return errorResult("%v", err), nil
		}
		direction := "asc"
		switch strings.ToLower(args.OrderDirection) {
		case "", "asc":
		case "desc":
			direction = "desc"
		default:
			return errorResult("invalid order_direction: %q", args.OrderDirection), nil
		}
		params.Set("order", name+"."+direction)
	}

	limit := clampLimit(args.Limit)
	offset := clampOffset(args.Offset)

	endpoint := base + "/rest/v1/" + table
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errorResult("Supabase API error: %v", err), nil
	}
	a.setAuth(httpReq, cfg)
	httpReq.Header.Set("Range-Unit", "items")
	httpReq.Header.Set("Range", fmt.Sprintf("%d-%d", offset, offset+limit-1))

	status, body, err := a.send(httpReq)
	if err != nil {
		return errorResult("Supabase API error: %v", err), nil
	}
	if status < 200 || status > 299 {
		return errorResult("Supabase API error: %s", upstreamMessage(body, status)), nil
	}

	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return errorResult("Supabase API error: unexpected response shape"), nil
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return jsonResult(map[string]any{"rows": rows, "row_count": len(rows)})
}

func (a *supabaseAdapter) executeSQL(
	ctx context.Context, base string, cfg map[string]string, req mcp.CallToolRequest,
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

	payload, err := json.Marshal(map[string]string{"query_text": args.SQL})
	if err != nil {
		return nil, fmt.Errorf("marshaling rpc payload: %w", err)
	}

	status, body, err := a.do(ctx, http.MethodPost,
		base+"/rest/v1/rpc/"+executeReadonlyRPC, cfg, bytes.NewReader(payload))
	if err != nil {
		return errorResult("Supabase API error: %v", err), nil
	}

	// PGRST202: the helper function does not exist in the project. This is
	// the documented contract: answer with a hint, not an error.
	if status == http.StatusNotFound || gjson.GetBytes(body, "code").String() == "PGRST202" {
		return jsonResult(map[string]any{
			"hint": fmt.Sprintf(
				"The %s helper function is not installed in this Supabase project; use the query_table tool instead",
				executeReadonlyRPC),
		})
	}
	if status < 200 || status > 299 {
		return errorResult("Supabase API error: %s", upstreamMessage(body, status)), nil
	}

	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		// The helper may return a scalar or object; pass it through.
		return rawResult(body), nil
	}
	return jsonResult(map[string]any{"rows": rows, "row_count": len(rows)})
}

func (a *supabaseAdapter) setAuth(req *http.Request, cfg map[string]string) {
	req.Header.Set("apikey", cfg["api_key"])
	req.Header.Set("Authorization", "Bearer "+cfg["api_key"])
	req.Header.Set("Accept", "application/json")
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
}

func (a *supabaseAdapter) do(
	ctx context.Context, method, endpoint string, cfg map[string]string, body io.Reader,
) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, err
	}
	a.setAuth(req, cfg)
	return a.send(req)
}

func (a *supabaseAdapter) send(req *http.Request) (int, []byte, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// upstreamMessage extracts a provider-supplied error message without echoing
// anything else from the exchange.
func upstreamMessage(body []byte, status int) string {
	for _, path := range []string{"message", "error.message", "error", "msg"} {
		if m := gjson.GetBytes(body, path); m.Type == gjson.String && m.String() != "" {
			return m.String()
		}
	}
	return fmt.Sprintf("HTTP %d", status)
}
