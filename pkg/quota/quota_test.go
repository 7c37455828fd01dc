// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package quota

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/datahive/pkg/services"
	"github.com/stacklok/datahive/pkg/store"
	"github.com/stacklok/datahive/pkg/store/mocks"
	"github.com/stacklok/datahive/pkg/store/sqlite"
)

func TestEffectivePlan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sub  *store.Subscription
		want string
	}{
		{name: "no subscription row", sub: nil, want: store.PlanFree},
		{
			name: "active pro",
			sub:  &store.Subscription{Plan: store.PlanPro, Status: store.SubscriptionActive},
			want: store.PlanPro,
		},
		{
			name: "canceled pro falls back to free",
			sub:  &store.Subscription{Plan: store.PlanPro, Status: "canceled"},
			want: store.PlanFree,
		},
		{
			name: "trialing is not active",
			sub:  &store.Subscription{Plan: store.PlanStarter, Status: "trialing"},
			want: store.PlanFree,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, EffectivePlan(tt.sub))
		})
	}
}

func TestCheckDailyAtLimit(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	st.EXPECT().LookupSubscription(gomock.Any(), "org-1").Return(nil, store.ErrNotFound)
	st.EXPECT().CountRequestsSince(gomock.Any(), "org-1", gomock.Any()).Return(int64(100), nil)

	g := New(st)
	err := g.CheckDaily(context.Background(), "org-1")

	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Contains(t, denied.Reason, "daily request limit reached")
	assert.Contains(t, denied.Reason, "free")
}

func TestCheckDailyUnderLimit(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	st.EXPECT().LookupSubscription(gomock.Any(), "org-1").Return(nil, store.ErrNotFound)
	st.EXPECT().CountRequestsSince(gomock.Any(), "org-1", gomock.Any()).Return(int64(99), nil)

	g := New(st)
	assert.NoError(t, g.CheckDaily(context.Background(), "org-1"))
}

func TestCheckDailyCountsFromLocalMidnight(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	fixed := time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC)
	st.EXPECT().LookupSubscription(gomock.Any(), "org-1").Return(nil, store.ErrNotFound)
	st.EXPECT().
		CountRequestsSince(gomock.Any(), "org-1", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)).
		Return(int64(0), nil)

	g := New(st)
	g.now = func() time.Time { return fixed }
	assert.NoError(t, g.CheckDaily(context.Background(), "org-1"))
}

func TestCheckDailyUnlimitedPlanSkipsCounting(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	st.EXPECT().LookupSubscription(gomock.Any(), "org-1").Return(&store.Subscription{
		Plan: store.PlanTeam, Status: store.SubscriptionActive,
	}, nil)
	// No CountRequestsSince expectation: team plans never count.

	g := New(st)
	assert.NoError(t, g.CheckDaily(context.Background(), "org-1"))
}

func TestConsumeTrialPaidBypasses(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	g := New(st)
	err := g.ConsumeTrial(context.Background(), "cred-1", &store.Subscription{
		Plan: store.PlanPro, Status: store.SubscriptionActive,
	})
	assert.NoError(t, err)
}

func TestConsumeTrialAtLimit(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	st.EXPECT().TrialCount(gomock.Any(), "cred-1").Return(TrialQueryLimit, nil)

	g := New(st)
	err := g.ConsumeTrial(context.Background(), "cred-1", nil)

	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, ReasonLimitReached, denied.Reason)
}

func TestConsumeTrialRetriesOnceOnConflict(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	gomock.InOrder(
		st.EXPECT().TrialCount(gomock.Any(), "cred-1").Return(5, nil),
		st.EXPECT().IncrementTrialCounter(gomock.Any(), "cred-1", 5).Return(0, store.ErrConflict),
		st.EXPECT().TrialCount(gomock.Any(), "cred-1").Return(6, nil),
		st.EXPECT().IncrementTrialCounter(gomock.Any(), "cred-1", 6).Return(7, nil),
	)

	g := New(st)
	assert.NoError(t, g.ConsumeTrial(context.Background(), "cred-1", nil))
}

func TestConsumeTrialSecondConflictDenies(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	gomock.InOrder(
		st.EXPECT().TrialCount(gomock.Any(), "cred-1").Return(5, nil),
		st.EXPECT().IncrementTrialCounter(gomock.Any(), "cred-1", 5).Return(0, store.ErrConflict),
		st.EXPECT().TrialCount(gomock.Any(), "cred-1").Return(6, nil),
		st.EXPECT().IncrementTrialCounter(gomock.Any(), "cred-1", 6).Return(0, store.ErrConflict),
	)

	g := New(st)
	err := g.ConsumeTrial(context.Background(), "cred-1", nil)

	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, ReasonLimitReached, denied.Reason)
}

// TestConsumeTrialConcurrent exercises the CAS against the real embedded
// store: with one trial query remaining, N racing test-connections admit
// exactly one caller and the counter lands at the limit, never past it.
func TestConsumeTrialConcurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "quota.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.CreateOrganization(ctx, "org-1", "Acme"))
	require.NoError(t, st.CreateCredential(ctx, store.Credential{
		ID:               "cred-1",
		OrgID:            "org-1",
		Service:          services.Postgres,
		Name:             "trial db",
		Config:           map[string]string{},
		TrialQueriesUsed: TrialQueryLimit - 1,
	}))

	g := New(st)

	const racers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		denied    int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.ConsumeTrial(ctx, "cred-1", nil)
			mu.Lock()
			defer mu.Unlock()
			var d *DeniedError
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorAs(t, err, &d):
				denied++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, racers-1, denied)

	count, err := st.TrialCount(ctx, "cred-1")
	require.NoError(t, err)
	assert.Equal(t, TrialQueryLimit, count)
}
