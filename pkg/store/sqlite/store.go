// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stacklok/datahive/pkg/services"
	"github.com/stacklok/datahive/pkg/store"
)

// timeFormat is the stored timestamp layout. The fractional part is fixed at
// three digits so lexicographic comparison matches chronological order,
// matching SQLite's own strftime('%Y-%m-%dT%H:%M:%fZ', 'now').
const timeFormat = "2006-01-02T15:04:05.000Z"

// Store implements store.Store on an embedded SQLite database.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// New opens (or creates) the SQLite metadata store at path and applies
// pending migrations. An empty path selects ./datahive.db.
func New(ctx context.Context, path string) (*Store, error) {
	db, err := open(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ResolveEndpoint returns the endpoint and its bound credential in a single
// joined query. A missing endpoint or a dangling credential is ErrNotFound;
// inactive endpoints are returned so the edge can answer 403 rather than 404.
func (s *Store) ResolveEndpoint(ctx context.Context, endpointID string) (*store.ResolvedEndpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT e.id, e.endpoint_id, e.credential_id, e.organization_id, e.service,
		       e.is_active, e.allowed_tools, e.rate_limit_per_minute, e.last_accessed_at,
		       c.id, c.organization_id, c.service, c.name, c.config, c.trial_queries_used
		FROM mcp_endpoints e
		JOIN credentials c ON c.id = e.credential_id
		WHERE e.endpoint_id = ?`,
		endpointID,
	)

	var (
		ep           store.Endpoint
		cred         store.Credential
		active       int64
		allowedBlob  []byte
		lastAccessed sql.NullString
		configBlob   []byte
	)
	err := row.Scan(
		&ep.ID, &ep.EndpointID, &ep.CredentialID, &ep.OrgID, &ep.Service,
		&active, &allowedBlob, &ep.RateLimitPerMinute, &lastAccessed,
		&cred.ID, &cred.OrgID, &cred.Service, &cred.Name, &configBlob, &cred.TrialQueriesUsed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("resolving endpoint: %w", err)
	}

	ep.Active = active != 0
	if ep.AllowedTools, err = decodeStringList(allowedBlob); err != nil {
		return nil, fmt.Errorf("decoding allowed tools: %w", err)
	}
	if lastAccessed.Valid {
		t, parseErr := time.Parse(timeFormat, lastAccessed.String)
		if parseErr != nil {
			return nil, fmt.Errorf("parsing last_accessed_at: %w", parseErr)
		}
		ep.LastAccessedAt = &t
	}
	if cred.Config, err = decodeConfig(configBlob); err != nil {
		return nil, fmt.Errorf("decoding credential config: %w", err)
	}

	return &store.ResolvedEndpoint{Endpoint: ep, Credential: cred, OrgID: ep.OrgID}, nil
}

// ResolveCredential returns a sealed credential by row ID.
func (s *Store) ResolveCredential(ctx context.Context, credentialID string) (*store.Credential, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, organization_id, service, name, config, trial_queries_used
		FROM credentials WHERE id = ?`,
		credentialID,
	)

	var (
		cred       store.Credential
		configBlob []byte
	)
	err := row.Scan(&cred.ID, &cred.OrgID, &cred.Service, &cred.Name, &configBlob, &cred.TrialQueriesUsed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("resolving credential: %w", err)
	}
	if cred.Config, err = decodeConfig(configBlob); err != nil {
		return nil, fmt.Errorf("decoding credential config: %w", err)
	}
	return &cred, nil
}

// LookupService returns the stored field schema for a service slug.
func (s *Store) LookupService(ctx context.Context, slug string) ([]services.Field, error) {
	var fieldsBlob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT fields FROM supported_services WHERE slug = ?`, slug,
	).Scan(&fieldsBlob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	err := s.db.QueryRowContext(ctx, `
		SELECT plan, status, external_subscription_id FROM subscriptions
		WHERE organization_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`,
		orgID,
	).Scan(&sub.Plan, &sub.Status, &sub.ExternalSubscriptionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM usage_logs
		WHERE organization_id = ? AND created_at >= ?`,
		orgID, since.UTC().Format(timeFormat),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting usage logs: %w", err)
	}
	return count, nil
}

// TrialCount returns the credential's trial counter.
func (s *Store) TrialCount(ctx context.Context, credentialID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT trial_queries_used FROM credentials WHERE id = ?`, credentialID,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, fmt.Errorf("reading trial counter: %w", err)
	}
	return count, nil
}

// IncrementTrialCounter performs the compare-and-swap increment: the UPDATE
// predicate carries the expected value, so a concurrent increment makes the
// statement affect zero rows and the caller sees ErrConflict.
func (s *Store) IncrementTrialCounter(ctx context.Context, credentialID string, expected int) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE credentials SET trial_queries_used = ?
		WHERE id = ? AND trial_queries_used = ?`,
		expected+1, credentialID, expected,
	)
	if err != nil {
		return 0, fmt.Errorf("incrementing trial counter: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a moved counter from a missing credential.
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

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO usage_logs (
			id, organization_id, credential_id, service, tool,
			request_args, status, error, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.OrgID, record.CredentialID, record.Service, record.Tool,
		argsBlob, record.Status, record.Error, record.DurationMS,
		createdAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting usage log: %w", err)
	}
	return nil
}

// TouchEndpoint updates the endpoint's last_accessed_at timestamp. A missing
// endpoint is not an error; the write is advisory.
func (s *Store) TouchEndpoint(ctx context.Context, endpointID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE mcp_endpoints SET last_accessed_at = ? WHERE endpoint_id = ?`,
		now.UTC().Format(timeFormat), endpointID,
	)
	if err != nil {
		return fmt.Errorf("touching endpoint: %w", err)
	}
	return nil
}

func decodeConfig(blob []byte) (map[string]string, error) {
	if len(blob) == 0 {
		return map[string]string{}, nil
	}
	var config map[string]string
	if err := json.Unmarshal(blob, &config); err != nil {
		return nil, err
	}
	return config, nil
}

func decodeStringList(blob []byte) ([]string, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(blob, &list); err != nil {
		return nil, err
	}
	return list, nil
}
