// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observatory

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/spyglass/services/observatory/intent"
	"github.com/AleutianAI/spyglass/services/observatory/predict"
)

// Handlers holds the HTTP handlers for the observatory endpoints.
type Handlers struct {
	svc *Service
}

// NewHandlers creates the handler set for a service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// handlerLogger returns a request-scoped logger.
func (h *Handlers) handlerLogger(c *gin.Context, handler string) *slog.Logger {
	return h.svc.log.With("request_id", c.GetString(requestIDKey), "handler", handler)
}

// HandleHealth reports liveness plus internal warnings.
//
// GET /health
func (h *Handlers) HandleHealth(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Warnings: h.svc.Warnings()}
	if len(resp.Warnings) > 0 {
		resp.Status = "degraded"
	}
	c.JSON(http.StatusOK, resp)
}

// HandleAppendIntent appends one intent record.
//
// POST /intent
func (h *Handlers) HandleAppendIntent(c *gin.Context) {
	logger := h.handlerLogger(c, "HandleAppendIntent")

	var req AppendIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("malformed intent body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	h.svc.AppendIntent(intent.Record{
		Timestamp:  req.Timestamp,
		SessionID:  req.SessionID,
		ProjectID:  req.ProjectID,
		Tool:       req.Tool,
		ToolUseID:  req.ToolUseID,
		Files:      req.Files,
		Tags:       req.Tags,
		FileSizes:  req.FileSizes,
		OutputSize: req.OutputSize,
	})

	c.Status(http.StatusNoContent)
}

// HandleRecent returns the newest records plus store statistics.
//
// GET /intent/recent?limit=&project_id=
func (h *Handlers) HandleRecent(c *gin.Context) {
	limit := intQuery(c, "limit", 20)

	records := h.svc.store.Records(limit)
	if projectID := c.Query("project_id"); projectID != "" {
		filtered := records[:0]
		for _, rec := range records {
			if rec.ProjectID == "" || rec.ProjectID == projectID {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	if records == nil {
		records = []intent.Record{}
	}

	// The store keeps records newest last; callers read newest first.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	c.JSON(http.StatusOK, RecentResponse{
		Records: records,
		Stats:   h.svc.store.Summary(),
	})
}

// HandlePredict ranks files for a keyword set.
//
// GET /predict?keywords=csv&limit=&snippet_lines=
func (h *Handlers) HandlePredict(c *gin.Context) {
	logger := h.handlerLogger(c, "HandlePredict")

	raw := c.Query("keywords")
	if raw == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "keywords query parameter is required",
			Code:  "MISSING_KEYWORDS",
		})
		return
	}

	var keywords []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}

	preds := h.svc.Predict(keywords,
		intQuery(c, "limit", predict.DefaultLimit),
		intQuery(c, "snippet_lines", predict.DefaultSnippetLines))
	if preds == nil {
		preds = []predict.Prediction{}
	}

	logger.Debug("prediction served", "keywords", len(keywords), "results", len(preds))
	c.JSON(http.StatusOK, PredictResponse{Files: preds})
}

// HandlePredictLog records a prediction for hit tracking.
//
// POST /predict/log
func (h *Handlers) HandlePredictLog(c *gin.Context) {
	logger := h.handlerLogger(c, "HandlePredictLog")

	var req PredictLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("malformed prediction log body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	h.svc.predLog.Add(req.SessionID, req.PredictedFiles, req.Tags, req.TriggerFile, req.Confidence)
	c.Status(http.StatusNoContent)
}

// HandlePredictCheck marks a file access against outstanding
// predictions.
//
// POST /predict/check
func (h *Handlers) HandlePredictCheck(c *gin.Context) {
	logger := h.handlerLogger(c, "HandlePredictCheck")

	var req PredictCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("malformed prediction check body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	h.svc.predLog.Check(req.SessionID, req.File)
	c.Status(http.StatusNoContent)
}

// HandleMetrics returns the rolling prediction accuracy.
//
// GET /metrics
func (h *Handlers) HandleMetrics(c *gin.Context) {
	m := h.svc.RollingMetrics()

	rolling := RollingMetrics{Evaluated: m.Evaluated}
	if m.Calibrating {
		rolling.HitAt5Pct = "calibrating"
	} else {
		rolling.HitAt5Pct = m.HitAt5Pct
	}

	c.JSON(http.StatusOK, MetricsResponse{Rolling: rolling})
}

// intQuery parses an integer query parameter with a fallback.
func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
