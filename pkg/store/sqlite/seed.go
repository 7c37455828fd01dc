// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/stacklok/datahive/pkg/services"
	"github.com/stacklok/datahive/pkg/store"
)

// Seed helpers populate the embedded store in standalone mode, where no
// external dashboard owns the metadata. The gateway request path never calls
// these.

// CreateOrganization inserts an organization row.
func (s *Store) CreateOrganization(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name) VALUES (?, ?)`, id, name)
	if err != nil {
		return fmt.Errorf("inserting organization: %w", err)
	}
	return nil
}

// PutService upserts a supported-service row with its field schema.
func (s *Store) PutService(ctx context.Context, slug, name string, fields []services.Field) error {
	fieldsBlob, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding service fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO supported_services (slug, name, fields) VALUES (?, ?, ?)
		ON CONFLICT (slug) DO UPDATE SET name = excluded.name, fields = excluded.fields`,
		slug, name, fieldsBlob)
	if err != nil {
		return fmt.Errorf("upserting service: %w", err)
	}
	return nil
}

// CreateCredential inserts a credential row. Config values must already be
// sealed where the service schema requires it; the store never encrypts.
func (s *Store) CreateCredential(ctx context.Context, cred store.Credential) error {
	configBlob, err := json.Marshal(cred.Config)
	if err != nil {
		return fmt.Errorf("encoding credential config: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (id, organization_id, service, name, config, trial_queries_used)
		VALUES (?, ?, ?, ?, ?, ?)`,
		cred.ID, cred.OrgID, cred.Service, cred.Name, configBlob, cred.TrialQueriesUsed)
	if err != nil {
		return fmt.Errorf("inserting credential: %w", err)
	}
	return nil
}

// CreateEndpoint inserts an endpoint row bound to an existing credential.
func (s *Store) CreateEndpoint(ctx context.Context, ep store.Endpoint) error {
	var allowedBlob []byte
	if ep.AllowedTools != nil {
		var err error
		if allowedBlob, err = json.Marshal(ep.AllowedTools); err != nil {
			return fmt.Errorf("encoding allowed tools: %w", err)
		}
	}

	id := ep.ID
	if id == "" {
		id = uuid.NewString()
	}
	rateLimit := ep.RateLimitPerMinute
	if rateLimit == 0 {
		rateLimit = 60
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mcp_endpoints (
			id, endpoint_id, credential_id, organization_id, service,
			is_active, allowed_tools, rate_limit_per_minute
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, ep.EndpointID, ep.CredentialID, ep.OrgID, ep.Service,
		boolToInt(ep.Active), allowedBlob, rateLimit)
	if err != nil {
		return fmt.Errorf("inserting endpoint: %w", err)
	}
	return nil
}

// PutSubscription inserts a subscription row for an organization.
func (s *Store) PutSubscription(ctx context.Context, orgID string, sub store.Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, organization_id, plan, status, external_subscription_id)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), orgID, sub.Plan, sub.Status, sub.ExternalSubscriptionID)
	if err != nil {
		return fmt.Errorf("inserting subscription: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
