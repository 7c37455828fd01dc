// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package adapters implements the per-service tool adapters the gateway
// dispatches to.
//
// Every adapter exposes a static tool list and a Handle method. Tool-level
// failures (driver errors, upstream 4xx/5xx, SQL guard rejections, bad tool
// arguments) come back as a *mcp.CallToolResult with IsError set, so the
// dispatcher can reply with a JSON-RPC success per the MCP convention. A Go
// error escapes Handle only for configuration and credential faults, which
// the dispatcher maps to an RPC-level error.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stacklok/datahive/pkg/networking"
)

// Adapter is one upstream service's tool surface.
type Adapter interface {
	// Service returns the service slug this adapter handles.
	Service() string
	// Tools returns the static tool definitions.
	Tools() []mcp.Tool
	// Handle runs one tool against the upstream using the decrypted
	// credential config. The dispatcher guarantees the tool name is in
	// Tools() before calling.
	Handle(ctx context.Context, req mcp.CallToolRequest, cfg map[string]string) (*mcp.CallToolResult, error)
}

// Registry maps service slugs to adapters. It is built once at start and
// read-only afterwards.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a registry from explicit adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Service()] = a
	}
	return &Registry{adapters: m}
}

// DefaultRegistry builds the production registry with all supported
// services. The shared HTTP client serves the REST-based adapters.
func DefaultRegistry() (*Registry, error) {
	client, err := networking.NewHttpClientBuilder().Build()
	if err != nil {
		return nil, fmt.Errorf("building upstream HTTP client: %w", err)
	}
	return NewRegistry(
		NewPostgresAdapter(),
		NewMySQLAdapter(),
		NewMSSQLAdapter(),
		NewSupabaseAdapter(client),
		NewStripeAdapter(client),
		NewMixpanelAdapter(client),
	), nil
}

// Get returns the adapter for a service slug.
func (r *Registry) Get(service string) (Adapter, bool) {
	a, ok := r.adapters[service]
	return a, ok
}

// Services returns the registered service slugs, sorted.
func (r *Registry) Services() []string {
	out := make([]string, 0, len(r.adapters))
	for slug := range r.adapters {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}

// HasTool reports whether an adapter declares a tool name.
func HasTool(a Adapter, name string) bool {
	for _, t := range a.Tools() {
		if t.Name == name {
			return true
		}
	}
	return false
}

// errorResult builds the tool-error shape: a text content item carrying
// {"error": "..."} with IsError set.
func errorResult(format string, a ...any) *mcp.CallToolResult {
	msg := fmt.Sprintf(format, a...)
	payload, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		payload = []byte(`{"error":"internal error"}`)
	}
	res := mcp.NewToolResultText(string(payload))
	res.IsError = true
	return res
}

// jsonResult marshals a success payload into a text content item.
func jsonResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// rawResult wraps an upstream JSON body untransformed.
func rawResult(body []byte) *mcp.CallToolResult {
	return mcp.NewToolResultText(string(body))
}

// requireConfig checks that the decrypted credential carries every listed
// field. A failure here is a configuration fault, not a tool error: the
// tenant needs to re-add the credential.
func requireConfig(cfg map[string]string, keys ...string) error {
	for _, k := range keys {
		if strings.TrimSpace(cfg[k]) == "" {
			return fmt.Errorf("credential is missing required field %q", k)
		}
	}
	return nil
}

// truthy interprets checkbox-style config values.
func truthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "on":
		return true
	default:
		return false
	}
}
