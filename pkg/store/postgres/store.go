// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package postgres implements the metadata store against the production
// PostgreSQL schema.
//
// The pool connects with an elevated principal that bypasses the store's
// row-level security; nothing below this package re-checks tenant ownership,
// which makes the store.Store interface the authorization boundary.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/datahive/pkg/logger"
	"github.com/stacklok/datahive/pkg/services"
	"github.com/stacklok/datahive/pkg/store"
)

const connectMaxTries = 5

// Store implements store.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// New connects to the metadata database. The initial ping retries with
// exponential backoff so the gateway survives a database that is still
// booting; nothing on the request path ever retries.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	ping := func() (struct{}, error) {
		return struct{}{}, pool.Ping(ctx)
	}
	_, err = backoff.Retry(ctx, ping,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(connectMaxTries),
		backoff.WithNotify(func(err error, d time.Duration) {
			logger.Warnf("Metadata store not ready, retrying in %s: %v", d, err)
		}),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to metadata store: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ResolveEndpoint returns the endpoint and its bound credential from one
// joined query, so the pair is read atomically.
func (s *Store) ResolveEndpoint(ctx context.Context, endpointID string) (*store.ResolvedEndpoint, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT e.id, e.endpoint_id, e.credential_id, e.organization_id, e.service,
		       e.is_active, e.allowed_tools, e.rate_limit_per_minute, e.last_accessed_at,
		       c.id, c.organization_id, c.service, c.name, c.config, c.trial_queries_used
		FROM mcp_endpoints e
		JOIN credentials c ON c.id = e.credential_id
		WHERE e.endpoint_id = $1`,
		endpointID,
	)

	var (
		ep           store.Endpoint
		cred         store.Credential
		allowedBlob  []byte
		lastAccessed *time.Time
		configBlob   []byte
	)
	err := row.Scan(
		&ep.ID, &ep.EndpointID, &ep.CredentialID, &ep.OrgID, &ep.Service,
		&ep.Active, &allowedBlob, &ep.RateLimitPerMinute, &lastAccessed,
		&cred.ID, &cred.OrgID, &cred.Service, &cred.Name, &configBlob, &cred.TrialQueriesUsed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("resolving endpoint: %w", err)
	}

	ep.LastAccessedAt = lastAccessed
	if len(allowedBlob) > 0 {
		if err := json.Unmarshal(allowedBlob, &ep.AllowedTools); err != nil {
			return nil, fmt.Errorf("decoding allowed tools: %w", err)
		}
	}
	if err := json.Unmarshal(configBlob, &cred.Config); err != nil {
		return nil, fmt.Errorf("decoding credential config: %w", err)
	}

	return &store.ResolvedEndpoint{Endpoint: ep, Credential: cred, OrgID: ep.OrgID}, nil
}

// ResolveCredential returns a sealed credential by row ID.
func (s *Store) ResolveCredential(ctx context.Context, credentialID string) (*store.Credential, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, organization_id, service, name, config, trial_queries_used
		FROM credentials WHERE id = $1`,
		credentialID,
	)

	var (
		cred       store.Credential
		configBlob []byte
	)
	err := row.Scan(&cred.ID, &cred.OrgID, &cred.Service, &cred.Name, &configBlob, &cred.TrialQueriesUsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("resolving credential: %w", err)
	}
	if err := json.Unmarshal(configBlob, &cred.Config); err != nil {
		return nil, fmt.Errorf("decoding credential config: %w", err)
	}
	return &cred, nil
}

// LookupService returns the stored field schema for a service slug.
func (s *Store) LookupService(ctx context.Context, slug string) ([]services.Field, error) {
	var fieldsBlob []byte
	err := s.pool.QueryRow(ctx,
		`SELECT fields FROM supported_services WHERE slug = $1`, slug,
	).Scan(&fieldsBlob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("looking up service: %w", err)
	}

	var fields []services.Field
	if err := json.Unmarshal(fieldsBlob, &fields); err != nil {
		return nil, fmt.Errorf("decoding service fields: %w", err)
	}
	return fields, nil
}

// LookupSubscription returns the newest subscription row for an organization.
func (s *Store) LookupSubscription(ctx context.Context, orgID string) (*store.Subscription, error) {
	var sub store.Subscription
	err := s.pool.QueryRow(ctx, `
		SELECT plan, status, COALESCE(external_subscription_id, '')
		FROM subscriptions
		WHERE organization_id = $1
		ORDER BY created_at DESC LIMIT 1`,
		orgID,
	).Scan(&sub.Plan, &sub.Status, &sub.ExternalSubscriptionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("looking up subscription: %w", err)
	}
	return &sub, nil
}

// CountRequestsSince counts usage-log entries for an organization since the
// given instant.
func (s *Store) CountRequestsSince(ctx context.Context, orgID string, since time.Time) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM usage_logs
		WHERE organization_id = $1 AND created_at >= $2`,
		orgID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting usage logs: %w", err)
	}
	return count, nil
}

// TrialCount returns the credential's trial counter.
func (s *Store) TrialCount(ctx context.Context, credentialID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT trial_queries_used FROM credentials WHERE id = $1`, credentialID,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, fmt.Errorf("reading trial counter: %w", err)
	}
	return count, nil
}

// IncrementTrialCounter performs the compare-and-swap increment; the UPDATE
// predicate carries the expected value so concurrent increments cannot both
// pass the cap.
func (s *Store) IncrementTrialCounter(ctx context.Context, credentialID string, expected int) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE credentials SET trial_queries_used = $1
		WHERE id = $2 AND trial_queries_used = $3`,
		expected+1, credentialID, expected,
	)
	if err != nil {
		return 0, fmt.Errorf("incrementing trial counter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.TrialCount(ctx, credentialID); err != nil {
			return 0, err
		}
		return 0, store.ErrConflict
	}
	return expected + 1, nil
}

// AppendUsage inserts one usage-log record.
func (s *Store) AppendUsage(ctx context.Context, record store.UsageRecord) error {
	argsBlob, err := json.Marshal(record.RequestArgs)
	if err != nil {
		return fmt.Errorf("encoding request args: %w", err)
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO usage_logs (
			id, organization_id, credential_id, service, tool,
			request_args, status, error, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.ID, record.OrgID, record.CredentialID, record.Service, record.Tool,
		argsBlob, record.Status, record.Error, record.DurationMS, createdAt,
	)
	if err != nil {
		return fmt.Errorf("inserting usage log: %w", err)
	}
	return nil
}

// TouchEndpoint updates the endpoint's last_accessed_at timestamp.
func (s *Store) TouchEndpoint(ctx context.Context, endpointID string, now time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE mcp_endpoints SET last_accessed_at = $1 WHERE endpoint_id = $2`,
		now, endpointID,
	)
	if err != nil {
		return fmt.Errorf("touching endpoint: %w", err)
	}
	return nil
}
