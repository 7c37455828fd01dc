// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func supabaseCfg(baseURL string) map[string]string {
	return map[string]string{"url": baseURL, "api_key": "anon-key"}
}

func TestSupabaseListTables(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"paths":{"/":{},"/users":{},"/orders":{},"/rpc/do_thing":{}}}`))
	}))
	defer srv.Close()

	adapter := NewSupabaseAdapter(plainClient(t))
	res, err := adapter.Handle(context.Background(), callReq("list_tables", nil), supabaseCfg(srv.URL))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.JSONEq(t, `{"tables":["orders","users"]}`, textContent(t, res))
}

func TestSupabaseDescribeTable(t *testing.T) {
	t.Parallel()

	spec := `{"definitions":{"users":{
		"required":["id"],
		"properties":{
			"id":{"format":"bigint","type":"integer"},
			"email":{"type":"string","default":"n/a"}
		}
	}}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(spec))
	}))
	defer srv.Close()

	adapter := NewSupabaseAdapter(plainClient(t))

	res, err := adapter.Handle(context.Background(),
		callReq("describe_table", map[string]any{"table_name": "users"}), supabaseCfg(srv.URL))
	require.NoError(t, err)
	require.False(t, res.IsError)

	body := textContent(t, res)
	assert.Equal(t, "users", gjson.Get(body, "table").String())
	cols := gjson.Get(body, "columns").Array()
	require.Len(t, cols, 2)
	byName := map[string]gjson.Result{}
	for _, c := range cols {
		byName[c.Get("column_name").String()] = c
	}
	assert.Equal(t, "bigint", byName["id"].Get("data_type").String())
	assert.Equal(t, "NO", byName["id"].Get("is_nullable").String())
	assert.Equal(t, "string", byName["email"].Get("data_type").String())
	assert.Equal(t, "YES", byName["email"].Get("is_nullable").String())
	assert.Equal(t, "n/a", byName["email"].Get("column_default").String())

	res, err = adapter.Handle(context.Background(),
		callReq("describe_table", map[string]any{"table_name": "ghosts"}), supabaseCfg(srv.URL))
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.JSONEq(t, `{"error":"Table not found: ghosts"}`, textContent(t, res))
}

func TestSupabaseQueryTable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/users", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "id,email", q.Get("select"))
		assert.Equal(t, "eq.active", q.Get("status"))
		assert.Equal(t, "is.null", q.Get("deleted_at"))
		assert.Equal(t, "id.desc", q.Get("order"))
		assert.Equal(t, "items", r.Header.Get("Range-Unit"))
		assert.Equal(t, "5-14", r.Header.Get("Range"))
		_, _ = w.Write([]byte(`[{"id":1,"email":"a@b.c"}]`))
	}))
	defer srv.Close()

	adapter := NewSupabaseAdapter(plainClient(t))
	res, err := adapter.Handle(context.Background(), callReq("query_table", map[string]any{
		"table_name":      "users",
		"select":          []string{"id", "email"},
		"filters":         map[string]any{"status": "active", "deleted_at": nil},
		"limit":           10,
		"offset":          5,
		"order_by":        "id",
		"order_direction": "desc",
	}), supabaseCfg(srv.URL))
	require.NoError(t, err)
	require.False(t, res.IsError)

	body := textContent(t, res)
	assert.Equal(t, int64(1), gjson.Get(body, "row_count").Int())
	assert.Equal(t, "a@b.c", gjson.Get(body, "rows.0.email").String())
}

func TestSupabaseExecuteSQL(t *testing.T) {
	t.Parallel()

	t.Run("rows come back", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/rest/v1/rpc/execute_readonly_query", r.URL.Path)
			var payload map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "SELECT 1", payload["query_text"])
			_, _ = w.Write([]byte(`[{"?column?":1}]`))
		}))
		defer srv.Close()

		adapter := NewSupabaseAdapter(plainClient(t))
		res, err := adapter.Handle(context.Background(),
			callReq("execute_sql", map[string]any{"sql": "SELECT 1"}), supabaseCfg(srv.URL))
		require.NoError(t, err)
		require.False(t, res.IsError)
		assert.Equal(t, int64(1), gjson.Get(textContent(t, res), "row_count").Int())
	})

	t.Run("missing helper yields hint", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":"PGRST202","message":"function not found"}`))
		}))
		defer srv.Close()

		adapter := NewSupabaseAdapter(plainClient(t))
		res, err := adapter.Handle(context.Background(),
			callReq("execute_sql", map[string]any{"sql": "SELECT 1"}), supabaseCfg(srv.URL))
		require.NoError(t, err)
		require.False(t, res.IsError, "a missing helper is a hint, not an error")
		assert.Contains(t, gjson.Get(textContent(t, res), "hint").String(), "query_table")
	})

	t.Run("write statement rejected locally", func(t *testing.T) {
		t.Parallel()

		adapter := NewSupabaseAdapter(plainClient(t))
		res, err := adapter.Handle(context.Background(),
			callReq("execute_sql", map[string]any{"sql": "DELETE FROM users"}),
			supabaseCfg("http://supabase.invalid"))
		require.NoError(t, err)
		require.True(t, res.IsError)
	})

	t.Run("upstream error surfaces message", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"permission denied for table users"}`))
		}))
		defer srv.Close()

		adapter := NewSupabaseAdapter(plainClient(t))
		res, err := adapter.Handle(context.Background(),
			callReq("execute_sql", map[string]any{"sql": "SELECT * FROM users"}), supabaseCfg(srv.URL))
		require.NoError(t, err)
		require.True(t, res.IsError)
		assert.JSONEq(t, `{"error":"Supabase API error: permission denied for table users"}`, textContent(t, res))
	})
}

func TestSupabaseMissingConfigIsGoError(t *testing.T) {
	t.Parallel()

	adapter := NewSupabaseAdapter(plainClient(t))
	_, err := adapter.Handle(context.Background(), callReq("list_tables", nil),
		map[string]string{"url": "http://supabase.invalid"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"api_key"`)
}

func TestUpstreamMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "boom", upstreamMessage([]byte(`{"message":"boom"}`), 500))
	assert.Equal(t, "nested", upstreamMessage([]byte(`{"error":{"message":"nested"}}`), 500))
	assert.Equal(t, "flat", upstreamMessage([]byte(`{"error":"flat"}`), 500))
	assert.Equal(t, "HTTP 502", upstreamMessage([]byte(`<html>bad gateway</html>`), 502))
	assert.Equal(t, "HTTP 500", upstreamMessage(nil, 500))
}
