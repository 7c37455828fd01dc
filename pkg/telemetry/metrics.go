// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// instrumentationName is the name of this instrumentation package.
const instrumentationName = "github.com/stacklok/datahive/pkg/telemetry"

// toolCallDurationBuckets covers the spread between a cached metadata read
// and a slow upstream query.
var toolCallDurationBuckets = []float64{
	0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10, 30, 60,
}

// GatewayMetrics records per-tool-call measurements. A nil receiver is a
// no-op, so callers without telemetry wired pass nil and move on.
type GatewayMetrics struct {
	toolCalls    metric.Int64Counter
	toolDuration metric.Float64Histogram
}

// NewGatewayMetrics creates the tool call instruments on a meter provider.
func NewGatewayMetrics(provider metric.MeterProvider) (*GatewayMetrics, error) {
	meter := provider.Meter(instrumentationName)

	toolCalls, err := meter.Int64Counter(
		"datahive_tool_calls", // the exporter adds the _total suffix
		metric.WithDescription("Total number of MCP tool calls"),
	)
	if err != nil {
		return nil, err
	}

	toolDuration, err := meter.Float64Histogram(
		"datahive_tool_call_duration",
		metric.WithDescription("Duration of MCP tool calls in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(toolCallDurationBuckets...),
	)
	if err != nil {
		return nil, err
	}

	return &GatewayMetrics{toolCalls: toolCalls, toolDuration: toolDuration}, nil
}

// RecordToolCall records one tool invocation outcome.
func (m *GatewayMetrics) RecordToolCall(ctx context.Context, service, tool, status string, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("tool", tool),
		attribute.String("status", status),
	)
	m.toolCalls.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, seconds, attrs)
}
