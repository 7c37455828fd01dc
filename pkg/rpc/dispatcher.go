// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tidwall/gjson"

	"github.com/stacklok/datahive/pkg/adapters"
	"github.com/stacklok/datahive/pkg/crypto"
	"github.com/stacklok/datahive/pkg/logger"
	"github.com/stacklok/datahive/pkg/quota"
	"github.com/stacklok/datahive/pkg/services"
	"github.com/stacklok/datahive/pkg/store"
	"github.com/stacklok/datahive/pkg/telemetry"
	"github.com/stacklok/datahive/pkg/usage"
	"github.com/stacklok/datahive/pkg/versions"
)

// protocolVersion is the MCP protocol revision the gateway speaks.
const protocolVersion = "2025-03-26"

// serverName identifies the gateway in initialize replies.
const serverName = "datahive-gateway"

// Dispatcher routes validated JSON-RPC messages for one resolved endpoint.
type Dispatcher struct {
	store    store.Store
	registry *adapters.Registry
	cipher   *crypto.Cipher
	gate     *quota.Gate
	recorder *usage.Recorder
	metrics  *telemetry.GatewayMetrics
}

// NewDispatcher wires the dispatcher. metrics may be nil.
func NewDispatcher(
	st store.Store,
	registry *adapters.Registry,
	cipher *crypto.Cipher,
	gate *quota.Gate,
	recorder *usage.Recorder,
	metrics *telemetry.GatewayMetrics,
) *Dispatcher {
	return &Dispatcher{
		store:    st,
		registry: registry,
		cipher:   cipher,
		gate:     gate,
		recorder: recorder,
		metrics:  metrics,
	}
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// initializeResult pins capabilities.tools present-and-empty: clients probe
// for the key, not its contents.
type initializeResult struct {
	ProtocolVersion string `json:"protocolVersion"`
	Capabilities    struct {
		Tools struct{} `json:"tools"`
	} `json:"capabilities"`
	ServerInfo serverInfo `json:"serverInfo"`
}

// Dispatch handles one request message against a resolved endpoint. A nil
// return means the message was a notification and the edge should reply 204.
func (d *Dispatcher) Dispatch(ctx context.Context, resolved *store.ResolvedEndpoint, msg *Message) *Message {
	switch msg.Method {
	case "initialize":
		result := initializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo: serverInfo{
				Name:    serverName,
				Version: versions.GetVersionInfo().Version,
			},
		}
		return mustResponse(msg.ID, result)
	case "notifications/initialized":
		return nil
	case "ping":
		return mustResponse(msg.ID, struct{}{})
	case "tools/list":
		return d.listTools(resolved, msg)
	case "tools/call":
		return d.callTool(ctx, resolved, msg)
	default:
		return NewError(msg.ID, CodeMethodNotFound, "Method not found: %s", msg.Method)
	}
}

func (d *Dispatcher) listTools(resolved *store.ResolvedEndpoint, msg *Message) *Message {
	adapter, ok := d.registry.Get(resolved.Endpoint.Service)
	if !ok {
		return NewError(msg.ID, CodeServerError, "Unsupported service: %s", resolved.Endpoint.Service)
	}

	tools := adapter.Tools()
	if len(resolved.Endpoint.AllowedTools) > 0 {
		allowed := make(map[string]bool, len(resolved.Endpoint.AllowedTools))
		for _, name := range resolved.Endpoint.AllowedTools {
			allowed[name] = true
		}
		filtered := make([]mcp.Tool, 0, len(tools))
		for _, t := range tools {
			if allowed[t.Name] {
				filtered = append(filtered, t)
			}
		}
		tools = filtered
	}

	return mustResponse(msg.ID, mcp.ListToolsResult{Tools: tools})
}

// callToolParams is the wire shape of tools/call parameters.
type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (d *Dispatcher) callTool(ctx context.Context, resolved *store.ResolvedEndpoint, msg *Message) *Message {
	var params callToolParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return NewError(msg.ID, CodeInvalidParams, "Invalid params: %v", err)
		}
	}
	if params.Name == "" {
		return NewError(msg.ID, CodeInvalidParams, "Missing tool name")
	}

	adapter, ok := d.registry.Get(resolved.Endpoint.Service)
	if !ok {
		return NewError(msg.ID, CodeServerError, "Unsupported service: %s", resolved.Endpoint.Service)
	}
	if !adapters.HasTool(adapter, params.Name) {
		return NewError(msg.ID, CodeMethodNotFound, "Unknown tool: %s", params.Name)
	}
	if !toolAllowed(resolved.Endpoint.AllowedTools, params.Name) {
		return NewError(msg.ID, CodeMethodNotFound, "Unknown tool: %s", params.Name)
	}

	cfg, err := d.unsealConfig(ctx, &resolved.Credential)
	if err != nil {
		logger.Warnw("credential unseal failed",
			"credential_id", resolved.Credential.ID, "service", resolved.Endpoint.Service)
		return NewError(msg.ID, CodeServerError,
			"Credential configuration is invalid; please re-add credentials")
	}

	if err := d.gate.CheckDaily(ctx, resolved.OrgID); err != nil {
		var denied *quota.DeniedError
		if errors.As(err, &denied) {
			return NewError(msg.ID, CodeQuotaExceeded, "%s", denied.Reason)
		}
		return NewError(msg.ID, CodeServerError, "Internal error")
	}

	result, elapsed, invokeErr := d.invoke(ctx, adapter, params, cfg)
	d.recordCall(resolved.Endpoint.Service, params, resolved, result, invokeErr, elapsed)
	d.metrics.RecordToolCall(ctx, resolved.Endpoint.Service, params.Name,
		callStatus(result, invokeErr), elapsed.Seconds())

	if invokeErr != nil {
		return NewError(msg.ID, CodeServerError,
			"Credential configuration is invalid; please re-add credentials")
	}
	return mustResponse(msg.ID, result)
}

// invoke runs the adapter and measures wall-clock duration.
func (d *Dispatcher) invoke(
	ctx context.Context, adapter adapters.Adapter, params callToolParams, cfg map[string]string,
) (*mcp.CallToolResult, time.Duration, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = params.Name
	req.Params.Arguments = params.Arguments

	start := time.Now()
	result, err := adapter.Handle(ctx, req, cfg)
	return result, time.Since(start), err
}

// recordCall submits the usage record. It runs only when the adapter was
// actually invoked: denials and validation failures leave no usage trace.
func (d *Dispatcher) recordCall(
	service string, params callToolParams, resolved *store.ResolvedEndpoint,
	result *mcp.CallToolResult, invokeErr error, elapsed time.Duration,
) {
	record := store.UsageRecord{
		OrgID:        resolved.OrgID,
		CredentialID: resolved.Credential.ID,
		Service:      service,
		Tool:         params.Name,
		RequestArgs:  usage.RedactArgs(params.Arguments),
		Status:       callStatus(result, invokeErr),
		DurationMS:   elapsed.Milliseconds(),
	}
	if record.Status == store.UsageStatusError {
		record.Error = callErrorText(result, invokeErr)
	}
	d.recorder.Record(record)
}

// unsealConfig decrypts the credential's encrypted fields. The field schema
// comes from the metadata store, falling back to the compiled-in defaults
// when the service row is absent. Values without the envelope shape pass
// through: they predate encryption of the field.
func (d *Dispatcher) unsealConfig(ctx context.Context, cred *store.Credential) (map[string]string, error) {
	fields, err := d.store.LookupService(ctx, cred.Service)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up service schema: %w", err)
	}
	if len(fields) == 0 {
		fields = services.DefaultFields(cred.Service)
	}
	encrypted := services.EncryptedKeys(fields)

	cfg := make(map[string]string, len(cred.Config))
	for key, value := range cred.Config {
		if encrypted[key] && crypto.IsSealed(value) {
			plaintext, err := d.cipher.Decrypt(value)
			if err != nil {
				return nil, fmt.Errorf("unsealing field %q: %w", key, err)
			}
			cfg[key] = plaintext
			continue
		}
		cfg[key] = value
	}
	return cfg, nil
}

func toolAllowed(allowedTools []string, name string) bool {
	if len(allowedTools) == 0 {
		return true
	}
	for _, t := range allowedTools {
		if t == name {
			return true
		}
	}
	return false
}

func callStatus(result *mcp.CallToolResult, invokeErr error) string {
	if invokeErr != nil || (result != nil && result.IsError) {
		return store.UsageStatusError
	}
	return store.UsageStatusSuccess
}

// callErrorText extracts the error message of a failed call for the usage
// log, without echoing upstream payloads.
func callErrorText(result *mcp.CallToolResult, invokeErr error) string {
	if invokeErr != nil {
		return invokeErr.Error()
	}
	if result == nil || len(result.Content) == 0 {
		return "tool error"
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "tool error"
	}
	if msg := gjson.Get(tc.Text, "error"); msg.Exists() {
		return msg.String()
	}
	return tc.Text
}

// mustResponse wraps NewResponse for results that marshal by construction.
func mustResponse(id any, result any) *Message {
	msg, err := NewResponse(id, result)
	if err != nil {
		logger.Errorf("failed to marshal RPC result: %v", err)
		return NewError(id, CodeServerError, "Internal error")
	}
	return msg
}
