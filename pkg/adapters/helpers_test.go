// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package adapters

import (
	"net/http"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/datahive/pkg/networking"
)

// callReq builds a tool call request the way the dispatcher does.
func callReq(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

// textContent extracts the single text content item of a tool result.
func textContent(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is not text")
	return tc.Text
}

// plainClient builds an HTTP client that accepts the plain-HTTP URLs
// httptest servers listen on.
func plainClient(t *testing.T) *http.Client {
	t.Helper()
	client, err := networking.NewHttpClientBuilder().WithPlainHTTP().Build()
	require.NoError(t, err)
	return client
}
