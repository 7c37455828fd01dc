// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mixpanelCfg() map[string]string {
	return map[string]string{
		"project_id":               "12345",
		"service_account_username": "svc.user",
		"service_account_secret":   "svc-secret",
	}
}

func mixpanelTestAdapter(t *testing.T, handler http.HandlerFunc) (*mixpanelAdapter, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	return &mixpanelAdapter{client: plainClient(t), baseURL: srv.URL}, srv.Close
}

func TestMixpanelListEvents(t *testing.T) {
	t.Parallel()

	adapter, stop := mixpanelTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/query/events/names", r.URL.Path)
		assert.Equal(t, "12345", r.URL.Query().Get("project_id"))
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "svc.user", user)
		assert.Equal(t, "svc-secret", pass)
		_, _ = w.Write([]byte(`["signup","purchase"]`))
	})
	defer stop()

	res, err := adapter.Handle(context.Background(), callReq("list_events", nil), mixpanelCfg())
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.JSONEq(t, `["signup","purchase"]`, textContent(t, res))
}

func TestMixpanelQuerySegmentation(t *testing.T) {
	t.Parallel()

	adapter, stop := mixpanelTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query/segmentation", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "purchase", q.Get("event"))
		assert.Equal(t, "2026-01-01", q.Get("from_date"))
		assert.Equal(t, "2026-01-31", q.Get("to_date"))
		assert.Equal(t, "week", q.Get("unit"))
		_, _ = w.Write([]byte(`{"data":{"series":[]}}`))
	})
	defer stop()

	res, err := adapter.Handle(context.Background(), callReq("query_segmentation", map[string]any{
		"event":     "purchase",
		"from_date": "2026-01-01",
		"to_date":   "2026-01-31",
		"unit":      "week",
	}), mixpanelCfg())
	require.NoError(t, err)
	require.False(t, res.IsError)
}

func TestMixpanelDateValidation(t *testing.T) {
	t.Parallel()

	adapter := &mixpanelAdapter{client: plainClient(t), baseURL: "http://mixpanel.invalid"}

	tests := []struct {
		name    string
		args    map[string]any
		wantMsg string
	}{
		{
			name:    "missing to_date",
			args:    map[string]any{"event": "purchase", "from_date": "2026-01-01"},
			wantMsg: "to_date is required",
		},
		{
			name:    "malformed from_date",
			args:    map[string]any{"event": "purchase", "from_date": "01/02/2026", "to_date": "2026-01-31"},
			wantMsg: "expected YYYY-MM-DD",
		},
		{
			name:    "missing event",
			args:    map[string]any{"from_date": "2026-01-01", "to_date": "2026-01-31"},
			wantMsg: "event is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := adapter.Handle(context.Background(),
				callReq("query_segmentation", tt.args), mixpanelCfg())
			require.NoError(t, err)
			require.True(t, res.IsError)
			assert.Contains(t, textContent(t, res), tt.wantMsg)
		})
	}
}

func TestMixpanelQueryRetention(t *testing.T) {
	t.Parallel()

	adapter, stop := mixpanelTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query/retention", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "2026-01-01", q.Get("from_date"))
		assert.Equal(t, "2026-02-01", q.Get("to_date"))
		assert.Equal(t, "signup", q.Get("born_event"))
		assert.Equal(t, "purchase", q.Get("event"))
		assert.Empty(t, q.Get("unit"))
		_, _ = w.Write([]byte(`{"2026-01-01":{"counts":[10,4,2]}}`))
	})
	defer stop()

	res, err := adapter.Handle(context.Background(), callReq("query_retention", map[string]any{
		"from_date":  "2026-01-01",
		"to_date":    "2026-02-01",
		"born_event": "signup",
		"event":      "purchase",
	}), mixpanelCfg())
	require.NoError(t, err)
	require.False(t, res.IsError)
}

func TestMixpanelQueryProfiles(t *testing.T) {
	t.Parallel()

	adapter, stop := mixpanelTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/query/engage", r.URL.Path)
		assert.Equal(t, "12345", r.URL.Query().Get("project_id"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "1000", r.PostForm.Get("page_size"))
		assert.Equal(t, "sess-1", r.PostForm.Get("session_id"))
		assert.Equal(t, "2", r.PostForm.Get("page"))
		assert.Empty(t, r.PostForm.Get("project_id"))
		_, _ = w.Write([]byte(`{"results":[],"session_id":"sess-1","page":2}`))
	})
	defer stop()

	res, err := adapter.Handle(context.Background(), callReq("query_profiles", map[string]any{
		"page_size":  4000,
		"session_id": "sess-1",
		"page":       2,
	}), mixpanelCfg())
	require.NoError(t, err)
	require.False(t, res.IsError)
}

func TestMixpanelQueryProfilesDefaults(t *testing.T) {
	t.Parallel()

	adapter, stop := mixpanelTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "100", r.PostForm.Get("page_size"))
		assert.Empty(t, r.PostForm.Get("session_id"))
		assert.Empty(t, r.PostForm.Get("page"))
		_, _ = w.Write([]byte(`{"results":[]}`))
	})
	defer stop()

	res, err := adapter.Handle(context.Background(), callReq("query_profiles", nil), mixpanelCfg())
	require.NoError(t, err)
	require.False(t, res.IsError)
}

func TestMixpanelUpstreamError(t *testing.T) {
	t.Parallel()

	adapter, stop := mixpanelTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Unable to authenticate request"}`))
	})
	defer stop()

	res, err := adapter.Handle(context.Background(), callReq("list_events", nil), mixpanelCfg())
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.JSONEq(t, `{"error":"Mixpanel API error: Unable to authenticate request"}`, textContent(t, res))
}

func TestMixpanelMissingConfigIsGoError(t *testing.T) {
	t.Parallel()

	adapter := NewMixpanelAdapter(plainClient(t))
	cfg := mixpanelCfg()
	delete(cfg, "service_account_secret")
	_, err := adapter.Handle(context.Background(), callReq("list_events", nil), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"service_account_secret"`)
}
