// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package rpc implements the gateway's JSON-RPC 2.0 message model and the
// MCP method dispatcher. The gateway is stateless per request: no sessions,
// no long-lived transports, just one message in and one message (or a bare
// 204) out.
package rpc

import (
	"encoding/json"
	"fmt"
)

// JSON-RPC error codes used by the gateway. The -32000 range below the
// reserved block carries gateway-specific outcomes.
const (
	// CodeParseError signals a body that is not valid JSON.
	CodeParseError = -32700
	// CodeInvalidRequest signals a malformed envelope (jsonrpc != "2.0").
	CodeInvalidRequest = -32600
	// CodeMethodNotFound signals an unknown method or tool.
	CodeMethodNotFound = -32601
	// CodeInvalidParams signals missing or malformed parameters.
	CodeInvalidParams = -32602
	// CodeServerError signals a generic server or configuration fault.
	CodeServerError = -32000
	// CodeEndpointNotFound signals an unknown or deleted endpoint.
	CodeEndpointNotFound = -32001
	// CodeEndpointInactive signals a paused endpoint.
	CodeEndpointInactive = -32002
	// CodeQuotaExceeded signals a quota denial.
	CodeQuotaExceeded = -32003
)

// Message represents a JSON-RPC 2.0 message, request or response.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents a JSON-RPC error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ValidateEnvelope checks the request envelope version.
func (m *Message) ValidateEnvelope() bool {
	return m.JSONRPC == "2.0"
}

// NewResponse creates a success response echoing the request ID verbatim.
func NewResponse(id any, result any) (*Message, error) {
	var resultJSON json.RawMessage
	if result != nil {
		var err error
		resultJSON, err = json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
	}
	return &Message{JSONRPC: "2.0", ID: id, Result: resultJSON}, nil
}

// NewError creates an error response echoing the request ID verbatim.
func NewError(id any, code int, format string, a ...any) *Message {
	return &Message{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: fmt.Sprintf(format, a...)},
	}
}
