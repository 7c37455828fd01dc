// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stacklok/datahive/pkg/services"
)

const (
	mixpanelAPIBase = "https://mixpanel.com/api"

	mixpanelDefaultPageSize = 100
	mixpanelMaxPageSize     = 1000
)

// mixpanelAdapter is a thin read-only wrapper over the Mixpanel query API,
// authenticated with a service account over HTTP Basic.
type mixpanelAdapter struct {
	client  *http.Client
	baseURL string
}

// NewMixpanelAdapter creates the Mixpanel adapter.
func NewMixpanelAdapter(client *http.Client) Adapter {
	return &mixpanelAdapter{client: client, baseURL: mixpanelAPIBase}
}

func (*mixpanelAdapter) Service() string {
	return services.Mixpanel
}

func (a *mixpanelAdapter) Handle(
	ctx context.Context, req mcp.CallToolRequest, cfg map[string]string,
) (*mcp.CallToolResult, error) {
	if err := requireConfig(cfg, "project_id", "service_account_username", "service_account_secret"); err != nil {
		return nil, err
	}

	switch req.Params.Name {
	case "list_events":
		params := url.Values{}
		params.Set("project_id", cfg["project_id"])
		return a.call(ctx, cfg, http.MethodGet, "/query/events/names", params)
	case "query_segmentation":
		return a.querySegmentation(ctx, cfg, req)
	case "query_retention":
		return a.queryRetention(ctx, cfg, req)
	case "query_profiles":
		return a.queryProfiles(ctx, cfg, req)
	default:
		return errorResult("Unknown tool: %s", req.Params.Name), nil
	}
}

func (a *mixpanelAdapter) querySegmentation(
	ctx context.Context, cfg map[string]string, req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	args := struct {
		Event    string `json:"event"`
		FromDate string `json:"from_date"`
		ToDate   string `json:"to_date"`
		Unit     string `json:"unit,omitempty"`
	}{}
	if err := req.BindArguments(&args); err != nil {
		return errorResult("Invalid arguments: %v", err), nil
	}
	if args.Event == "" {
		return errorResult("event is required"), nil
	}
	if err := validateDateRange(args.FromDate, args.ToDate); err != nil {
		return errorResult("%v", err), nil
	}

	params := url.Values{}
	params.Set("project_id", cfg["project_id"])
	params.Set("event", args.Event)
	params.Set("from_date", args.FromDate)
	params.Set("to_date", args.ToDate)
	if args.Unit != "" {
		params.Set("unit", args.Unit)
	}
	return a.call(ctx, cfg, http.MethodGet, "/query/segmentation", params)
}

func (a *mixpanelAdapter) queryRetention(
	ctx context.Context, cfg map[string]string, req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	args := struct {
		FromDate  string `json:"from_date"`
		ToDate    string `json:"to_date"`
		BornEvent string `json:"born_event,omitempty"`
		Event     string `json:"event,omitempty"`
		Unit      string `json:"unit,omitempty"`
	}{}
	if err := req.BindArguments(&args); err != nil {
		return errorResult("Invalid arguments: %v", err), nil
	}
	if err := validateDateRange(args.FromDate, args.ToDate); err != nil {
		return errorResult("%v", err), nil
	}

	params := url.Values{}
	params.Set("project_id", cfg["project_id"])
	params.Set("from_date", args.FromDate)
	params.Set("to_date", args.ToDate)
	if args.BornEvent != "" {
		params.Set("born_event", args.BornEvent)
	}
	if args.Event != "" {
		params.Set("event", args.Event)
	}
	if args.Unit != "" {
		params.Set("unit", args.Unit)
	}
	return a.call(ctx, cfg, http.MethodGet, "/query/retention", params)
}

func (a *mixpanelAdapter) queryProfiles(
	ctx context.Context, cfg map[string]string, req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	args := struct {
		PageSize  *int   `json:"page_size,omitempty"`
		SessionID string `json:"session_id,omitempty"`
		Page      *int   `json:"page,omitempty"`
	}{}
	if err := req.BindArguments(&args); err != nil {
		return errorResult("Invalid arguments: %v", err), nil
	}

	params := url.Values{}
	params.Set("project_id", cfg["project_id"])
	params.Set("page_size", strconv.Itoa(clampWithin(args.PageSize, mixpanelDefaultPageSize, mixpanelMaxPageSize)))
	// The session cursor forwards verbatim; both halves travel together.
	if args.SessionID != "" {
		params.Set("session_id", args.SessionID)
	}
	if args.Page != nil && *args.Page > 0 {
		params.Set("page", strconv.Itoa(*args.Page))
	}
	return a.call(ctx, cfg, http.MethodPost, "/query/engage", params)
}

// call performs one authenticated request. GET carries params in the query
// string; POST sends them form-encoded, keeping project_id in the URL as
// the engage endpoint expects.
func (a *mixpanelAdapter) call(
	ctx context.Context, cfg map[string]string, method, path string, params url.Values,
) (*mcp.CallToolResult, error) {
	var (
		endpoint = a.baseURL + path
		body     io.Reader
	)
	switch method {
	case http.MethodPost:
		endpoint += "?project_id=" + url.QueryEscape(cfg["project_id"])
		params.Del("project_id")
		body = strings.NewReader(params.Encode())
	default:
		if len(params) > 0 {
			endpoint += "?" + params.Encode()
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return errorResult("Mixpanel API error: %v", err), nil
	}
	req.SetBasicAuth(cfg["service_account_username"], cfg["service_account_secret"])
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return errorResult("Mixpanel API error: %v", err), nil
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorResult("Mixpanel API error: %v", err), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorResult("Mixpanel API error: %s", upstreamMessage(respBody, resp.StatusCode)), nil
	}
	return rawResult(respBody), nil
}

// validateDateRange enforces the required YYYY-MM-DD date pair.
func validateDateRange(from, to string) error {
	for _, d := range []struct{ name, value string }{
		{"from_date", from},
		{"to_date", to},
	} {
		if d.value == "" {
			return fmt.Errorf("%s is required (YYYY-MM-DD)", d.name)
		}
		if _, err := time.Parse("2006-01-02", d.value); err != nil {
			return fmt.Errorf("invalid %s %q: expected YYYY-MM-DD", d.name, d.value)
		}
	}
	return nil
}

func (*mixpanelAdapter) Tools() []mcp.Tool {
	dateProp := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc + " (YYYY-MM-DD)"}
	}
	unitProp := map[string]any{
		"type":        "string",
		"enum":        []string{"day", "week", "month"},
		"description": "Bucketing unit",
	}

	return []mcp.Tool{
		{
			Name:        "list_events",
			Description: "List the names of events tracked in the project",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{},
			},
		},
		{
			Name:        "query_segmentation",
			Description: "Segment an event's counts over a date range",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"event":     map[string]any{"type": "string", "description": "Event name to segment"},
					"from_date": dateProp("Start of the range"),
					"to_date":   dateProp("End of the range"),
					"unit":      unitProp,
				},
				Required: []string{"event", "from_date", "to_date"},
			},
		},
		{
			Name:        "query_retention",
			Description: "Compute cohort retention over a date range",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"from_date":  dateProp("Start of the range"),
					"to_date":    dateProp("End of the range"),
					"born_event": map[string]any{"type": "string", "description": "Cohort-defining event"},
					"event":      map[string]any{"type": "string", "description": "Retention event"},
					"unit":       unitProp,
				},
				Required: []string{"from_date", "to_date"},
			},
		},
		{
			Name:        "query_profiles",
			Description: "Page through user profiles",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"page_size": map[string]any{
						"type":        "integer",
						"description": "Profiles per page (default 100, max 1000)",
					},
					"session_id": map[string]any{
						"type":        "string",
						"description": "Pagination session from a previous response",
					},
					"page": map[string]any{
						"type":        "integer",
						"description": "Page number within the session",
					},
				},
			},
		},
	}
}
