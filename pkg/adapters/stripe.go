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

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stacklok/datahive/pkg/services"
)

const (
	stripeAPIBase = "https://api.stripe.com/v1"

	stripeDefaultLimit = 10
	stripeMaxLimit     = 100
)

// stripeAdapter is a thin read-only wrapper over the Stripe REST API.
type stripeAdapter struct {
	client  *http.Client
	baseURL string
}

// NewStripeAdapter creates the Stripe adapter.
func NewStripeAdapter(client *http.Client) Adapter {
	return &stripeAdapter{client: client, baseURL: stripeAPIBase}
}

func (*stripeAdapter) Service() string {
	return services.Stripe
}

// stripeListArgs are the shared inputs of the list_* tools; unknown fields
// for a given tool are simply never set by its schema.
type stripeListArgs struct {
	Limit         *int   `json:"limit,omitempty"`
	StartingAfter string `json:"starting_after,omitempty"`
	Email         string `json:"email,omitempty"`
	Customer      string `json:"customer,omitempty"`
	Status        string `json:"status,omitempty"`
}

func (a *stripeAdapter) Handle(
	ctx context.Context, req mcp.CallToolRequest, cfg map[string]string,
) (*mcp.CallToolResult, error) {
	if err := requireConfig(cfg, "secret_key"); err != nil {
		return nil, err
	}

	if req.Params.Name == "get_balance" {
		return a.get(ctx, cfg, "/balance", nil)
	}

	var args stripeListArgs
	if err := req.BindArguments(&args); err != nil {
		return errorResult("Invalid arguments: %v", err), nil
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(clampWithin(args.Limit, stripeDefaultLimit, stripeMaxLimit)))
	if args.StartingAfter != "" {
		params.Set("starting_after", args.StartingAfter)
	}

	switch req.Params.Name {
	case "list_customers":
		if args.Email != "" {
			params.Set("email", args.Email)
		}
		return a.get(ctx, cfg, "/customers", params)
	case "list_charges":
		if args.Customer != "" {
			params.Set("customer", args.Customer)
		}
		return a.get(ctx, cfg, "/charges", params)
	case "list_invoices":
		if args.Customer != "" {
			params.Set("customer", args.Customer)
		}
		if args.Status != "" {
			params.Set("status", args.Status)
		}
		return a.get(ctx, cfg, "/invoices", params)
	case "list_subscriptions":
		if args.Customer != "" {
			params.Set("customer", args.Customer)
		}
		if args.Status != "" {
			params.Set("status", args.Status)
		}
		return a.get(ctx, cfg, "/subscriptions", params)
	default:
		return errorResult("Unknown tool: %s", req.Params.Name), nil
	}
}

// get performs one authenticated GET and passes the response body through
// untransformed.
func (a *stripeAdapter) get(
	ctx context.Context, cfg map[string]string, path string, params url.Values,
) (*mcp.CallToolResult, error) {
	endpoint := a.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errorResult("Stripe API error: %v", err), nil
	}
	req.Header.Set("Authorization", "Bearer "+cfg["secret_key"])
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return errorResult("Stripe API error: %v", err), nil
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorResult("Stripe API error: %v", err), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorResult("Stripe API error: %s", upstreamMessage(body, resp.StatusCode)), nil
	}
	return rawResult(body), nil
}

// clampWithin applies a default and a hard ceiling to a pagination limit.
func clampWithin(limit *int, def, maxv int) int {
	if limit == nil || *limit <= 0 {
		return def
	}
	if *limit > maxv {
		return maxv
	}
	return *limit
}

func (*stripeAdapter) Tools() []mcp.Tool {
	limitProp := func(maxv int) map[string]any {
		return map[string]any{
			"type":        "integer",
			"description": fmt.Sprintf("Maximum objects to return (default %d, max %d)", stripeDefaultLimit, maxv),
		}
	}
	cursorProp := map[string]any{
		"type":        "string",
		"description": "Pagination cursor: object ID to start after",
	}
	customerProp := map[string]any{
		"type":        "string",
		"description": "Filter by customer ID",
	}

	return []mcp.Tool{
		{
			Name:        "list_customers",
			Description: "List customers",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"limit":          limitProp(stripeMaxLimit),
					"starting_after": cursorProp,
					"email":          map[string]any{"type": "string", "description": "Filter by exact email"},
				},
			},
		},
		{
			Name:        "list_charges",
			Description: "List charges",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"limit":          limitProp(stripeMaxLimit),
					"starting_after": cursorProp,
					"customer":       customerProp,
				},
			},
		},
		{
			Name:        "list_invoices",
			Description: "List invoices",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"limit":          limitProp(stripeMaxLimit),
					"starting_after": cursorProp,
					"customer":       customerProp,
					"status": map[string]any{
						"type":        "string",
						"enum":        []string{"draft", "open", "paid", "uncollectible", "void"},
						"description": "Filter by invoice status",
					},
				},
			},
		},
		{
			Name:        "list_subscriptions",
			Description: "List subscriptions",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"limit":          limitProp(stripeMaxLimit),
					"starting_after": cursorProp,
					"customer":       customerProp,
					"status": map[string]any{
						"type":        "string",
						"description": "Filter by subscription status (e.g. active, canceled, all)",
					},
				},
			},
		},
		{
			Name:        "get_balance",
			Description: "Retrieve the current account balance",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{},
			},
		},
	}
}
