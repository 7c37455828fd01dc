// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package store defines the narrow interface through which the gateway
// consumes the tenant metadata store.
//
// The store holds endpoints, sealed credentials, subscriptions and usage
// logs. The gateway reads with an elevated principal that bypasses tenant
// row filters, so this interface is the authorization boundary: every lookup
// fails closed on absence, and ResolveEndpoint is the only way to reach a
// credential from the public request path.
package store

import (
	"context"
	"time"

	"github.com/stacklok/datahive/pkg/services"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go Store

// Store is the metadata store consumed by the gateway request path.
type Store interface {
	// ResolveEndpoint returns an endpoint and its bound credential (sealed)
	// atomically. Inactive endpoints are returned with Active=false so the
	// edge can distinguish 403 from 404; a missing endpoint or a dangling
	// credential is ErrNotFound.
	ResolveEndpoint(ctx context.Context, endpointID string) (*ResolvedEndpoint, error)
	// ResolveCredential returns a credential (sealed) by row ID. Serves the
	// internal test-connection path, which runs before an endpoint exists.
	ResolveCredential(ctx context.Context, credentialID string) (*Credential, error)
	// LookupService returns the credential field schema stored for a service
	// slug, or ErrNotFound when no row exists (callers fall back to the
	// compiled-in defaults).
	LookupService(ctx context.Context, slug string) ([]services.Field, error)
	// LookupSubscription returns the newest subscription row for an
	// organization, or ErrNotFound.
	LookupSubscription(ctx context.Context, orgID string) (*Subscription, error)
	// CountRequestsSince counts usage-log entries for an organization with
	// created_at >= since.
	CountRequestsSince(ctx context.Context, orgID string, since time.Time) (int64, error)
	// TrialCount returns the credential's trial_queries_used counter.
	TrialCount(ctx context.Context, credentialID string) (int, error)
	// IncrementTrialCounter increments trial_queries_used by one iff the
	// stored value still equals expected, returning the new value. A moved
	// value is ErrConflict. This is a true compare-and-swap, never a
	// select-then-update.
	IncrementTrialCounter(ctx context.Context, credentialID string, expected int) (int, error)
	// AppendUsage inserts a usage-log record. Synchronous primitive; the
	// fire-and-forget discipline lives in pkg/usage.
	AppendUsage(ctx context.Context, record UsageRecord) error
	// TouchEndpoint updates the endpoint's last_accessed_at timestamp.
	TouchEndpoint(ctx context.Context, endpointID string, now time.Time) error
	// Close releases the underlying connection pool.
	Close() error
}

// Endpoint is the gateway-visible slice of an mcp_endpoints row.
type Endpoint struct {
	// ID is the row identifier.
	ID string
	// EndpointID is the opaque public identifier in the gateway URL.
	EndpointID string
	// CredentialID is the bound credential's row ID.
	CredentialID string
	// OrgID is the owning organization.
	OrgID string
	// Service is the upstream service slug.
	Service string
	// Active gates all use of the endpoint.
	Active bool
	// AllowedTools restricts the tool set when non-empty.
	AllowedTools []string
	// RateLimitPerMinute is carried as data; enforcement belongs to the
	// control plane.
	RateLimitPerMinute int
	// LastAccessedAt is the last touch timestamp, nil when never used.
	LastAccessedAt *time.Time
}

// Credential is a stored upstream credential. Config values for fields the
// service schema declares encrypted are sealed envelopes; the store never
// sees plaintext secrets.
type Credential struct {
	ID               string
	OrgID            string
	Service          string
	Name             string
	Config           map[string]string
	TrialQueriesUsed int
}

// ResolvedEndpoint is the joined result of an endpoint lookup.
type ResolvedEndpoint struct {
	Endpoint   Endpoint
	Credential Credential
	OrgID      string
}

// Subscription plans.
const (
	PlanFree     = "free"
	PlanStarter  = "starter"
	PlanPro      = "pro"
	PlanTeam     = "team"
	PlanLifetime = "lifetime"
)

// SubscriptionActive is the only subscription status that counts as paid.
const SubscriptionActive = "active"

// Subscription is the gateway-visible slice of a subscriptions row. The
// gateway reads plan and status; it never mutates billing state.
type Subscription struct {
	Plan   string
	Status string
	// ExternalSubscriptionID is the billing provider's identifier, empty
	// when the row was created without one.
	ExternalSubscriptionID string
}

// IsActive reports whether the subscription counts as a paid plan.
func (s *Subscription) IsActive() bool {
	return s != nil && s.Status == SubscriptionActive
}

// Usage record statuses.
const (
	UsageStatusSuccess = "success"
	UsageStatusError   = "error"
)

// UsageRecord is one append-only usage-log entry.
type UsageRecord struct {
	ID           string
	OrgID        string
	CredentialID string
	Service      string
	Tool         string
	// RequestArgs carries the redacted tool arguments.
	RequestArgs map[string]any
	Status      string
	Error       string
	DurationMS  int64
	CreatedAt   time.Time
}
