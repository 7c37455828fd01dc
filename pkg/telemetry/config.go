// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides OpenTelemetry instrumentation for the gateway.
package telemetry

import (
	"fmt"

	"github.com/stacklok/datahive/pkg/versions"
)

// Config holds the configuration for OpenTelemetry instrumentation.
type Config struct {
	// Endpoint is the OTLP endpoint URL. Empty disables OTLP export.
	Endpoint string `json:"endpoint"`

	// ServiceName is the service name for telemetry.
	ServiceName string `json:"serviceName"`

	// ServiceVersion is the service version for telemetry.
	ServiceVersion string `json:"serviceVersion"`

	// TracingEnabled controls whether distributed tracing is enabled.
	// When false, no tracer provider is created even if an endpoint is
	// configured.
	TracingEnabled bool `json:"tracingEnabled"`

	// MetricsEnabled controls whether OTLP metrics are enabled. This is
	// independent of EnablePrometheusMetricsPath.
	MetricsEnabled bool `json:"metricsEnabled"`

	// SamplingRate is the trace sampling rate (0.0-1.0).
	SamplingRate float64 `json:"samplingRate"`

	// Headers contains authentication headers for the OTLP endpoint.
	Headers map[string]string `json:"headers"`

	// Insecure indicates whether to use HTTP instead of HTTPS for the
	// OTLP endpoint.
	Insecure bool `json:"insecure"`

	// EnablePrometheusMetricsPath controls whether to expose a
	// Prometheus-style /metrics endpoint on the main listener. This is
	// separate from OTLP metrics which are sent to the Endpoint.
	EnablePrometheusMetricsPath bool `json:"enablePrometheusMetricsPath"`
}

// DefaultConfig returns a default telemetry configuration.
func DefaultConfig() Config {
	versionInfo := versions.GetVersionInfo()
	return Config{
		ServiceName:    "datahive-gateway",
		ServiceVersion: versionInfo.Version,
		TracingEnabled: true,
		MetricsEnabled: true,
		SamplingRate:   0.05, // 5% sampling by default
		Headers:        make(map[string]string),
	}
}

func validateConfig(config Config) error {
	if config.ServiceName == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if config.SamplingRate < 0.0 || config.SamplingRate > 1.0 {
		return fmt.Errorf("sampling rate must be between 0.0 and 1.0, got %f", config.SamplingRate)
	}
	return nil
}
