// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stacklok/datahive/pkg/adapters"
	"github.com/stacklok/datahive/pkg/quota"
	"github.com/stacklok/datahive/pkg/services"
	"github.com/stacklok/datahive/pkg/store"
)

// TestResult is the outcome of a connection test.
type TestResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// TestConnection verifies a credential end to end by invoking a cheap read
// against the upstream. It is the only caller of the trial gate. An empty
// tool selects the service's default test tool. Store faults return a Go
// error; denials and upstream failures come back as a failed TestResult.
func (d *Dispatcher) TestConnection(ctx context.Context, credentialID, tool string) (*TestResult, error) {
	cred, err := d.store.ResolveCredential(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	adapter, ok := d.registry.Get(cred.Service)
	if !ok {
		return nil, fmt.Errorf("unsupported service: %s", cred.Service)
	}
	if tool == "" {
		tool = services.DefaultTestTool(cred.Service)
	}
	if !adapters.HasTool(adapter, tool) {
		return nil, fmt.Errorf("unknown tool: %s", tool)
	}

	if err := d.gate.CheckDaily(ctx, cred.OrgID); err != nil {
		return deniedResult(err)
	}

	sub, err := d.store.LookupSubscription(ctx, cred.OrgID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up subscription: %w", err)
	}
	if err := d.gate.ConsumeTrial(ctx, credentialID, sub); err != nil {
		return deniedResult(err)
	}

	cfg, err := d.unsealConfig(ctx, cred)
	if err != nil {
		return &TestResult{
			Success: false,
			Error:   "Credential configuration is invalid; please re-add credentials",
		}, nil
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = tool

	start := time.Now()
	result, invokeErr := adapter.Handle(ctx, req, cfg)
	elapsed := time.Since(start)

	record := store.UsageRecord{
		OrgID:        cred.OrgID,
		CredentialID: cred.ID,
		Service:      cred.Service,
		Tool:         tool,
		Status:       callStatus(result, invokeErr),
		DurationMS:   elapsed.Milliseconds(),
	}
	if record.Status == store.UsageStatusError {
		record.Error = callErrorText(result, invokeErr)
	}
	d.recorder.Record(record)
	d.metrics.RecordToolCall(ctx, cred.Service, tool, record.Status, elapsed.Seconds())

	out := &TestResult{DurationMS: elapsed.Milliseconds()}
	if record.Status == store.UsageStatusError {
		out.Error = callErrorText(result, invokeErr)
		return out, nil
	}
	out.Success = true
	out.Message = "Connection successful"
	return out, nil
}

func deniedResult(err error) (*TestResult, error) {
	var denied *quota.DeniedError
	if errors.As(err, &denied) {
		return &TestResult{Success: false, Error: denied.Reason}, nil
	}
	return nil, err
}
