// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package quota implements the gateway's admission gates: the plan-derived
// daily request cap and the per-credential trial counter.
//
// The two gates are independent. Every MCP call passes the daily gate; the
// trial gate runs only on the internal test-connection path, because the
// trial exists to unblock sign-up, not to meter live traffic.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stacklok/datahive/pkg/store"
)

// TrialQueryLimit caps trial_queries_used for organizations without an
// active paid subscription.
const TrialQueryLimit = 10

// ReasonLimitReached is the denial reason when the trial counter is spent.
const ReasonLimitReached = "limit_reached"

// dailyLimits maps plans to requests per day. Absent plans fall back to free.
var dailyLimits = map[string]int64{
	store.PlanFree:     100,
	store.PlanStarter:  10_000,
	store.PlanLifetime: 10_000,
	store.PlanPro:      100_000,
}

// unlimitedPlans short-circuit the daily gate without counting.
var unlimitedPlans = map[string]bool{
	store.PlanTeam: true,
}

// DeniedError is a quota denial. It is a structured outcome, not a fault:
// the dispatcher translates it to JSON-RPC code -32003.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return e.Reason
}

// Gate evaluates admission against the metadata store.
type Gate struct {
	store store.Store
	now   func() time.Time
}

// New creates a quota gate.
func New(st store.Store) *Gate {
	return &Gate{store: st, now: time.Now}
}

// EffectivePlan resolves the plan used for limits: the subscription's plan
// when its status is active, free otherwise (including an absent row).
func EffectivePlan(sub *store.Subscription) string {
	if sub.IsActive() {
		return sub.Plan
	}
	return store.PlanFree
}

// CheckDaily enforces the organization's per-day request limit, counting
// usage-log entries since local midnight of the request clock. A nil return
// admits the request; a *DeniedError rejects it.
func (g *Gate) CheckDaily(ctx context.Context, orgID string) error {
	sub, err := g.store.LookupSubscription(ctx, orgID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("looking up subscription: %w", err)
	}

	plan := EffectivePlan(sub)
	if unlimitedPlans[plan] {
		return nil
	}
	limit, ok := dailyLimits[plan]
	if !ok {
		limit = dailyLimits[store.PlanFree]
	}

	now := g.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	count, err := g.store.CountRequestsSince(ctx, orgID, midnight)
	if err != nil {
		return fmt.Errorf("counting requests: %w", err)
	}
	if count >= limit {
		return &DeniedError{
			Reason: fmt.Sprintf("daily request limit reached (%d/%d on the %s plan)", count, limit, plan),
		}
	}
	return nil
}

// ConsumeTrial spends one trial query for a credential. Organizations with
// an active paid subscription bypass the gate. The increment is a
// compare-and-swap against the read value; one conflicted retry is allowed,
// then the call is denied rather than looping.
func (g *Gate) ConsumeTrial(ctx context.Context, credentialID string, sub *store.Subscription) error {
	if sub.IsActive() {
		return nil
	}

	current, err := g.store.TrialCount(ctx, credentialID)
	if err != nil {
		return fmt.Errorf("reading trial counter: %w", err)
	}
	if current >= TrialQueryLimit {
		return &DeniedError{Reason: ReasonLimitReached}
	}

	if _, err = g.store.IncrementTrialCounter(ctx, credentialID, current); err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("incrementing trial counter: %w", err)
	}

	// The counter moved under us; re-read and retry exactly once.
	current, err = g.store.TrialCount(ctx, credentialID)
	if err != nil {
		return fmt.Errorf("re-reading trial counter: %w", err)
	}
	if current >= TrialQueryLimit {
		return &DeniedError{Reason: ReasonLimitReached}
	}
	if _, err = g.store.IncrementTrialCounter(ctx, credentialID, current); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return &DeniedError{Reason: ReasonLimitReached}
		}
		return fmt.Errorf("incrementing trial counter: %w", err)
	}
	return nil
}
