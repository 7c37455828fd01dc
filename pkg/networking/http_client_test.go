// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	client, err := NewHttpClientBuilder().Build()
	require.NoError(t, err)
	assert.Equal(t, HttpTimeout, client.Timeout)
	assert.IsType(t, &ValidatingTransport{}, client.Transport)
}

func TestValidatingTransportRejectsPlainHTTP(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client, err := NewHttpClientBuilder().Build()
	require.NoError(t, err)

	_, err = client.Get(srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not HTTPS scheme")
}

func TestWithPlainHTTPAllowsLocalFakes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	client, err := NewHttpClientBuilder().WithPlainHTTP().WithTimeout(5 * time.Second).Build()
	require.NoError(t, err)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
