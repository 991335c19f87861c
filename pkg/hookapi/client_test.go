// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package hookapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/spyglass/services/observatory/intent"
)

func TestAppendIntent_PostsRecord(t *testing.T) {
	var got intent.Record
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/intent", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(&Options{BaseURL: srv.URL})
	err := c.AppendIntent(context.Background(), intent.Record{
		SessionID: "sess-1",
		Tool:      intent.ToolRead,
		Files:     []string{"/repo/a.go:10-30"},
		Tags:      []string{"#reading"},
	})

	require.NoError(t, err)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, []string{"/repo/a.go:10-30"}, got.Files)
}

func TestPredict_ParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, "cache,eviction", r.URL.Query().Get("keywords"))
		json.NewEncoder(w).Encode(map[string]any{
			"files": []map[string]any{
				{"path": "/repo/cache/lru.go", "confidence": 1.0},
			},
		})
	}))
	defer srv.Close()

	c := New(&Options{BaseURL: srv.URL})
	preds, err := c.Predict(context.Background(), []string{"cache", "eviction"}, 5)

	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, "/repo/cache/lru.go", preds[0].Path)
	assert.Equal(t, 1.0, preds[0].Confidence)
}

func TestClient_ErrorStatusSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"keywords query parameter is required"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(&Options{BaseURL: srv.URL})
	_, err := c.Predict(context.Background(), nil, 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestClient_UnreachableFailsFast(t *testing.T) {
	// Unroutable port; the point is the bounded failure, not the exact error.
	c := New(&Options{BaseURL: "http://127.0.0.1:1", Timeout: 500 * time.Millisecond})

	start := time.Now()
	err := c.CheckPrediction(context.Background(), "sess-1", "/repo/a.go")

	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNew_EnvOverride(t *testing.T) {
	t.Setenv(EnvBaseURL, "http://127.0.0.1:9999/")

	c := New(nil)
	assert.Equal(t, "http://127.0.0.1:9999", c.baseURL)
}
