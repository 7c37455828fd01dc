// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package networking builds the HTTP clients the gateway uses to reach SaaS
// upstreams (Supabase REST, Stripe, Mixpanel).
//
// Upstream API calls never use http.DefaultClient: every client carries an
// overall timeout and per-phase transport timeouts, and refuses plain HTTP
// unless explicitly allowed (tests only). Connections pool per adapter, not
// per tenant credential; response bodies are never cached.
package networking

import (
	"fmt"
	"net/http"
	"time"
)

// HttpTimeout is the overall timeout for outgoing HTTP requests.
const HttpTimeout = 30 * time.Second

// ValidatingTransport rejects non-HTTPS request URLs before forwarding.
type ValidatingTransport struct {
	Transport http.RoundTripper
}

// RoundTrip validates the request URL prior to forwarding.
func (t *ValidatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return nil, fmt.Errorf("the supplied URL %s is not HTTPS scheme", req.URL.String())
	}
	return t.Transport.RoundTrip(req)
}

// HttpClientBuilder provides a fluent interface for building HTTP clients.
type HttpClientBuilder struct {
	clientTimeout         time.Duration
	tlsHandshakeTimeout   time.Duration
	responseHeaderTimeout time.Duration
	allowPlainHTTP        bool
}

// NewHttpClientBuilder returns a new HttpClientBuilder.
func NewHttpClientBuilder() *HttpClientBuilder {
	return &HttpClientBuilder{
		clientTimeout:         HttpTimeout,
		tlsHandshakeTimeout:   10 * time.Second,
		responseHeaderTimeout: 10 * time.Second,
	}
}

// WithTimeout overrides the overall client timeout.
func (b *HttpClientBuilder) WithTimeout(timeout time.Duration) *HttpClientBuilder {
	b.clientTimeout = timeout
	return b
}

// WithPlainHTTP allows non-HTTPS URLs. Used by tests against local fakes;
// production adapters never set this.
func (b *HttpClientBuilder) WithPlainHTTP() *HttpClientBuilder {
	b.allowPlainHTTP = true
	return b
}

// Build creates the configured HTTP client.
func (b *HttpClientBuilder) Build() (*http.Client, error) {
	transport := &http.Transport{
		TLSHandshakeTimeout:   b.tlsHandshakeTimeout,
		ResponseHeaderTimeout: b.responseHeaderTimeout,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}

	client := &http.Client{Timeout: b.clientTimeout}
	if b.allowPlainHTTP {
		client.Transport = transport
	} else {
		client.Transport = &ValidatingTransport{Transport: transport}
	}
	return client, nil
}
