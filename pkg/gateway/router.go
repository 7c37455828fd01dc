// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package gateway implements the HTTP edge: the public MCP endpoint routes,
// the liveness and metrics routes, and the token-gated internal API.
package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/datahive/pkg/logger"
	"github.com/stacklok/datahive/pkg/rpc"
	"github.com/stacklok/datahive/pkg/store"
	"github.com/stacklok/datahive/pkg/telemetry"
	"github.com/stacklok/datahive/pkg/usage"
	"github.com/stacklok/datahive/pkg/versions"
)

const (
	// gatewayName identifies the gateway in health and probe replies.
	gatewayName = "datahive-gateway"

	// maxBodyBytes caps JSON-RPC request bodies.
	maxBodyBytes = 1 << 20

	// requestTimeout bounds one request end to end.
	requestTimeout = 60 * time.Second
)

// endpointIDRe is the cheap shape check applied before any store lookup.
// IDs failing it are treated as not found.
var endpointIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{8,128}$`)

// RouterConfig carries the router's collaborators.
type RouterConfig struct {
	Store      store.Store
	Dispatcher *rpc.Dispatcher
	Recorder   *usage.Recorder

	// InternalToken gates the internal API; empty leaves it unmounted.
	InternalToken string

	// Telemetry enables the HTTP middleware and /metrics when set.
	Telemetry *telemetry.Provider
}

// NewRouter builds the gateway's chi router.
func NewRouter(cfg RouterConfig) http.Handler {
	g := &edge{
		store:      cfg.Store,
		dispatcher: cfg.Dispatcher,
		recorder:   cfg.Recorder,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	if cfg.Telemetry != nil {
		r.Use(telemetry.Middleware(cfg.Telemetry))
	}

	r.Get("/health", handleHealth)
	if cfg.Telemetry != nil {
		if h := cfg.Telemetry.PrometheusHandler(); h != nil {
			r.Handle("/metrics", h)
		}
	}

	r.Get("/gateway/{endpointID}", g.handleProbe)
	r.Post("/gateway/{endpointID}", g.handleRPC)

	if cfg.InternalToken != "" {
		r.Mount("/internal/v1", internalRouter(cfg.InternalToken, cfg.Dispatcher))
	}

	return r
}

// edge serves the per-endpoint gateway routes.
type edge struct {
	store      store.Store
	dispatcher *rpc.Dispatcher
	recorder   *usage.Recorder
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": versions.GetVersionInfo().Version,
	})
}

// handleProbe answers the public health probe for one endpoint. It reveals
// nothing beyond what the endpoint ID, a bearer capability, already grants.
func (g *edge) handleProbe(w http.ResponseWriter, r *http.Request) {
	endpointID := chi.URLParam(r, "endpointID")
	if !endpointIDRe.MatchString(endpointID) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Endpoint not found"})
		return
	}

	resolved, err := g.store.ResolveEndpoint(r.Context(), endpointID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Endpoint not found"})
			return
		}
		logger.Errorf("endpoint probe lookup failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal error"})
		return
	}
	if !resolved.Endpoint.Active {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Endpoint is inactive"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"name":     gatewayName,
		"version":  versions.GetVersionInfo().Version,
		"status":   "active",
		"service":  resolved.Endpoint.Service,
		"endpoint": resolved.Endpoint.EndpointID,
	})
}

// handleRPC is the JSON-RPC entry point. Every reply is HTTP 200 except the
// bare 204 notification path; failures travel as JSON-RPC errors.
func (g *edge) handleRPC(w http.ResponseWriter, r *http.Request) {
	endpointID := chi.URLParam(r, "endpointID")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeMessage(w, rpc.NewError(nil, rpc.CodeInvalidRequest, "Request body too large"))
		return
	}

	var msg rpc.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		writeMessage(w, rpc.NewError(nil, rpc.CodeParseError, "Parse error"))
		return
	}
	if !msg.ValidateEnvelope() {
		writeMessage(w, rpc.NewError(msg.ID, rpc.CodeInvalidRequest, "Invalid Request"))
		return
	}

	if !endpointIDRe.MatchString(endpointID) {
		writeMessage(w, rpc.NewError(msg.ID, rpc.CodeEndpointNotFound, "Endpoint not found"))
		return
	}

	resolved, err := g.store.ResolveEndpoint(r.Context(), endpointID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeMessage(w, rpc.NewError(msg.ID, rpc.CodeEndpointNotFound, "Endpoint not found"))
			return
		}
		logger.Errorf("endpoint lookup failed: %v", err)
		writeMessage(w, rpc.NewError(msg.ID, rpc.CodeServerError, "Internal error"))
		return
	}
	if !resolved.Endpoint.Active {
		writeMessage(w, rpc.NewError(msg.ID, rpc.CodeEndpointInactive, "Endpoint is inactive"))
		return
	}

	g.recorder.Touch(resolved.Endpoint.EndpointID)

	reply := g.dispatcher.Dispatch(r.Context(), resolved, &msg)
	if reply == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeMessage(w, reply)
}

func writeMessage(w http.ResponseWriter, msg *rpc.Message) {
	writeJSON(w, http.StatusOK, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorf("failed to write response: %v", err)
	}
}
