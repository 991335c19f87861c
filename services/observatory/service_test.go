// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observatory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/spyglass/services/observatory/intent"
	"github.com/AleutianAI/spyglass/services/observatory/learn"
)

// testService builds a service plus its router over temp directories.
func testService(t *testing.T, domainsJSON string) (*Service, *gin.Engine) {
	t.Helper()

	configDir := t.TempDir()
	if domainsJSON != "" {
		require.NoError(t, os.WriteFile(filepath.Join(configDir, intent.LibraryFileName), []byte(domainsJSON), 0640))
	}

	svc, err := NewService(Config{
		DataDir:    t.TempDir(),
		ConfigDir:  configDir,
		SearchPath: []string{configDir},
	})
	require.NoError(t, err)
	return svc, svc.buildRouter()
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func postIntent(t *testing.T, router *gin.Engine, req AppendIntentRequest) {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/intent", req)
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestHealth(t *testing.T) {
	_, router := testService(t, "")

	w := doJSON(t, router, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.Warnings)
}

func TestAppendIntent_MalformedBody(t *testing.T) {
	_, router := testService(t, "")

	req := httptest.NewRequest(http.MethodPost, "/intent", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_REQUEST", resp.Code)
}

func TestRecent_NewestFirst(t *testing.T) {
	_, router := testService(t, "")

	for _, f := range []string{"/repo/first.go", "/repo/second.go", "/repo/third.go"} {
		postIntent(t, router, AppendIntentRequest{
			SessionID: "sess-1",
			Tool:      intent.ToolRead,
			Files:     []string{f},
		})
	}

	w := doJSON(t, router, http.MethodGet, "/intent/recent?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp RecentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 2)

	assert.Equal(t, []string{"/repo/third.go"}, resp.Records[0].Files)
	assert.Equal(t, []string{"/repo/second.go"}, resp.Records[1].Files)
}

// Scenario: a partial Read of an auth file is captured with the line
// range token and picks up #reading plus #authentication.
func TestScenario_ReadWithRangeGetsAuthTags(t *testing.T) {
	_, router := testService(t, "")

	envelope := `{
		"tool_name": "Read",
		"session_id": "sess-1",
		"tool_input": {"file_path": "/repo/svc/auth.py", "offset": 10, "limit": 20}
	}`
	rec, searchTags := intent.ParseEnvelope([]byte(envelope))
	rec.Tags = intent.InferTags(rec.Files, rec.Tool, intent.EmptyLibrary(), searchTags)

	postIntent(t, router, AppendIntentRequest{
		SessionID: rec.SessionID,
		Tool:      rec.Tool,
		Files:     rec.Files,
		Tags:      rec.Tags,
	})

	w := doJSON(t, router, http.MethodGet, "/intent/recent?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp RecentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 1)

	assert.Equal(t, []string{"/repo/svc/auth.py:10-30"}, resp.Records[0].Files)
	assert.Contains(t, resp.Records[0].Tags, "#reading")
	assert.Contains(t, resp.Records[0].Tags, "#authentication")
}

// Scenario: a wrapped multi-and search is captured as a command token
// with hits and latency, and no extension-path tokens.
func TestScenario_WrappedSearchCommandToken(t *testing.T) {
	_, router := testService(t, "")

	envelope := `{
		"tool_name": "Bash",
		"session_id": "sess-1",
		"tool_input": {"command": "aoa grep -a user,session"},
		"tool_response": "3 hits │ 4ms"
	}`
	rec, searchTags := intent.ParseEnvelope([]byte(envelope))
	rec.Tags = intent.InferTags(rec.Files, rec.Tool, intent.EmptyLibrary(), searchTags)

	postIntent(t, router, AppendIntentRequest{
		SessionID: rec.SessionID,
		Tool:      rec.Tool,
		Files:     rec.Files,
		Tags:      rec.Tags,
	})

	w := doJSON(t, router, http.MethodGet, "/intent/recent?limit=1", nil)
	var resp RecentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 1)

	assert.Equal(t, []string{"cmd:aoa:multi-and:aoa grep -a user,session:3:4"}, resp.Records[0].Files)
	// Command tokens stay out of the file-count index.
	assert.Zero(t, resp.Stats.UniqueFiles)
}

// Scenario: after 10 accesses of one file, predicting on a matching
// keyword ranks it with full confidence.
func TestScenario_PredictAfterRepeatedAccess(t *testing.T) {
	_, router := testService(t, "")

	for i := 0; i < 10; i++ {
		postIntent(t, router, AppendIntentRequest{
			SessionID: "sess-1",
			Tool:      intent.ToolRead,
			Files:     []string{"/repo/cache/lru.go"},
		})
	}

	w := doJSON(t, router, http.MethodGet, "/predict?keywords=cache", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.NotEmpty(t, resp.Files)
	assert.Equal(t, "/repo/cache/lru.go", resp.Files[0].Path)
	assert.Equal(t, 1.0, resp.Files[0].Confidence)
}

func TestPredict_GatedBelowMinimumRecords(t *testing.T) {
	_, router := testService(t, "")

	postIntent(t, router, AppendIntentRequest{
		SessionID: "sess-1",
		Tool:      intent.ToolRead,
		Files:     []string{"/repo/cache/lru.go"},
	})

	w := doJSON(t, router, http.MethodGet, "/predict?keywords=cache", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Files)
}

func TestPredict_MissingKeywords(t *testing.T) {
	_, router := testService(t, "")

	w := doJSON(t, router, http.MethodGet, "/predict", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// Scenario: a logged prediction gains exactly one hit per predicted
// file, no matter how often the access is replayed.
func TestScenario_PredictionHitIdempotence(t *testing.T) {
	svc, router := testService(t, "")

	w := doJSON(t, router, http.MethodPost, "/predict/log", PredictLogRequest{
		SessionID:      "sess-1",
		PredictedFiles: []string{"/repo/a.py", "/repo/b.py"},
		Confidence:     0.8,
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	check := PredictCheckRequest{SessionID: "sess-1", File: "/repo/a.py"}
	require.Equal(t, http.StatusNoContent, doJSON(t, router, http.MethodPost, "/predict/check", check).Code)
	require.Equal(t, http.StatusNoContent, doJSON(t, router, http.MethodPost, "/predict/check", check).Code)

	// One hit recorded despite the replay.
	svc.predLog.Flush()
	m := svc.predLog.Snapshot()
	assert.Equal(t, 1, m.Evaluated)
}

func TestAppend_FileAccessCountsAsPredictionHit(t *testing.T) {
	svc, router := testService(t, "")

	doJSON(t, router, http.MethodPost, "/predict/log", PredictLogRequest{
		SessionID:      "sess-1",
		PredictedFiles: []string{"/repo/a.py"},
		Confidence:     0.9,
	})

	// The append itself marks the access; no explicit check needed.
	postIntent(t, router, AppendIntentRequest{
		SessionID: "sess-1",
		Tool:      intent.ToolEdit,
		Files:     []string{"/repo/a.py:10-30"},
	})

	svc.predLog.Flush()
	for i := 0; i < 2; i++ {
		svc.predLog.Add("sess-x", []string{"/x.py"}, nil, "", 0.1)
	}
	svc.predLog.Flush()

	m := svc.predLog.Snapshot()
	require.Equal(t, 3, m.Evaluated)
	assert.InDelta(t, 1.0/3.0, m.HitAt5Pct, 1e-9)
}

func TestMetrics_CalibratingUntilThreeEvaluated(t *testing.T) {
	_, router := testService(t, "")

	w := doJSON(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Rolling struct {
			HitAt5Pct any `json:"hit_at_5_pct"`
			Evaluated int `json:"evaluated"`
		} `json:"rolling"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "calibrating", resp.Rolling.HitAt5Pct)
	assert.Equal(t, 0, resp.Rolling.Evaluated)
}

// Scenario: 100 appends with enough orphan tags flip learning_pending;
// installing a proposed domain and acknowledging the cycle clears it.
func TestScenario_LearningCycle(t *testing.T) {
	_, router := testService(t, "")

	orphans := []string{"#paint", "#draw", "#frame", "#shader", "#vertex"}
	for i := 0; i < 100; i++ {
		postIntent(t, router, AppendIntentRequest{
			SessionID: "sess-1",
			Tool:      intent.ToolEdit,
			Files:     []string{fmt.Sprintf("/repo/render/f%d.go", i)},
			Tags:      []string{orphans[i%len(orphans)]},
		})
	}

	w := doJSON(t, router, http.MethodGet, "/domains/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats DomainStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.True(t, stats.LearningPending)
	assert.GreaterOrEqual(t, stats.OrphanCount, 5)

	orphansResp := doJSON(t, router, http.MethodGet, "/domains/orphans", nil)
	require.Equal(t, http.StatusOK, orphansResp.Code)
	var ol OrphansResponse
	require.NoError(t, json.Unmarshal(orphansResp.Body.Bytes(), &ol))
	assert.NotEmpty(t, ol.Orphans)
	assert.NotNil(t, ol.Snapshot)

	add := doJSON(t, router, http.MethodPost, "/domains/add", AddDomainsRequest{
		Project: "test",
		Domains: []learn.ProposedDomain{{Name: "@render", Terms: []string{"paint", "draw", "frame"}}},
	})
	require.Equal(t, http.StatusOK, add.Code)

	learned := doJSON(t, router, http.MethodPost, "/domains/learned", ProjectRequest{Project: "test"})
	require.Equal(t, http.StatusNoContent, learned.Code)

	w = doJSON(t, router, http.MethodGet, "/domains/stats", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.False(t, stats.LearningPending)

	list := doJSON(t, router, http.MethodGet, "/domains/list", nil)
	require.Equal(t, http.StatusOK, list.Code)
	var dl DomainListResponse
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &dl))
	require.Len(t, dl.Domains, 1)
	assert.Equal(t, "@render", dl.Domains[0].Name)
}

func TestDomainAdd_InvalidProposalRejected(t *testing.T) {
	_, router := testService(t, "")

	w := doJSON(t, router, http.MethodPost, "/domains/add", AddDomainsRequest{
		Project: "test",
		Domains: []learn.ProposedDomain{{Name: "render", Terms: []string{"paint", "draw", "frame"}}},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_PROPOSAL", resp.Code)
}

// Scenario: a term matching well over 30% of the cycle is pruned by
// math tuning and stops contributing tags.
func TestScenario_TuningPrunesBroadTerm(t *testing.T) {
	_, router := testService(t, `[{"name":"@logging","terms":{"logs":["log"]}}]`)

	for i := 0; i < 10; i++ {
		postIntent(t, router, AppendIntentRequest{
			SessionID: "sess-1",
			Tool:      intent.ToolRead,
			Files:     []string{"/repo/log/writer.go"},
		})
	}

	w := doJSON(t, router, http.MethodPost, "/domains/tune/math", ProjectRequest{Project: "test"})
	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		Success     bool `json:"success"`
		TermsPruned int  `json:"terms_pruned"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.GreaterOrEqual(t, res.TermsPruned, 1)

	// The pruned term no longer tags appends.
	postIntent(t, router, AppendIntentRequest{
		SessionID: "sess-1",
		Tool:      intent.ToolRead,
		Files:     []string{"/repo/log/reader.go"},
	})
	recent := doJSON(t, router, http.MethodGet, "/intent/recent?limit=1", nil)
	var resp RecentResponse
	require.NoError(t, json.Unmarshal(recent.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 1)
	assert.NotContains(t, resp.Records[0].Tags, "@logging")
}

func TestPrometheusScrape(t *testing.T) {
	_, router := testService(t, "")

	postIntent(t, router, AppendIntentRequest{
		SessionID: "sess-1",
		Tool:      intent.ToolRead,
		Files:     []string{"/repo/a.go"},
	})

	w := doJSON(t, router, http.MethodGet, "/metrics/prom", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "spyglass_intent_appends_total")
}
