// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware returns a chi middleware that counts requests and records
// their duration against the provider's meter. Route patterns, not raw
// paths, go into the attributes to keep cardinality bounded.
func Middleware(provider *Provider) func(http.Handler) http.Handler {
	meter := provider.MeterProvider().Meter(instrumentationName)

	requestCounter, _ := meter.Int64Counter(
		"datahive_gateway_requests", // the exporter adds the _total suffix
		metric.WithDescription("Total number of gateway HTTP requests"),
	)
	requestDuration, _ := meter.Float64Histogram(
		"datahive_gateway_request_duration",
		metric.WithDescription("Duration of gateway HTTP requests in seconds"),
		metric.WithUnit("s"),
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			pattern := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					pattern = p
				}
			}

			attrs := metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("path", pattern),
				attribute.String("status", strconv.Itoa(rec.status)),
			)
			requestCounter.Add(r.Context(), 1, attrs)
			requestDuration.Record(r.Context(), time.Since(start).Seconds(), attrs)
		})
	}
}
