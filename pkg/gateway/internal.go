// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/datahive/pkg/logger"
	"github.com/stacklok/datahive/pkg/rpc"
	"github.com/stacklok/datahive/pkg/store"
)

// internalRouter serves the control plane's private routes. It is mounted
// only when an internal token is configured; there is no tenant-facing
// mutation here.
func internalRouter(token string, dispatcher *rpc.Dispatcher) http.Handler {
	r := chi.NewRouter()
	r.Use(requireBearer(token))
	r.Post("/credentials/{credentialID}/test", testCredential(dispatcher))
	return r
}

// requireBearer enforces the shared internal token in constant time.
func requireBearer(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// testCredentialRequest is the optional body of the test route.
type testCredentialRequest struct {
	Tool string `json:"tool,omitempty"`
}

func testCredential(dispatcher *rpc.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		credentialID := chi.URLParam(r, "credentialID")

		var req testCredentialRequest
		if r.ContentLength > 0 {
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
				return
			}
		}

		result, err := dispatcher.TestConnection(r.Context(), credentialID, req.Tool)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "Credential not found"})
				return
			}
			logger.Errorf("connection test failed: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal error"})
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
