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
	"github.com/AleutianAI/spyglass/services/observatory/intent"
	"github.com/AleutianAI/spyglass/services/observatory/learn"
	"github.com/AleutianAI/spyglass/services/observatory/predict"
	"github.com/AleutianAI/spyglass/services/observatory/store"
)

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	// Error is the human-readable message.
	Error string `json:"error"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`
}

// HealthResponse reports liveness plus any internal warnings.
type HealthResponse struct {
	Status   string   `json:"status"`
	Warnings []string `json:"warnings,omitempty"`
}

// AppendIntentRequest is the POST /intent body.
type AppendIntentRequest struct {
	SessionID  string           `json:"session_id"`
	ProjectID  string           `json:"project_id"`
	Tool       string           `json:"tool" binding:"required"`
	Files      []string         `json:"files"`
	Tags       []string         `json:"tags"`
	ToolUseID  string           `json:"tool_use_id"`
	FileSizes  map[string]int64 `json:"file_sizes"`
	OutputSize int64            `json:"output_size"`
	Timestamp  int64            `json:"timestamp"`
}

// RecentResponse is the GET /intent/recent body.
type RecentResponse struct {
	Records []intent.Record `json:"records"`
	Stats   store.Stats     `json:"stats"`
}

// PredictResponse is the GET /predict body.
type PredictResponse struct {
	Files []predict.Prediction `json:"files"`
}

// PredictLogRequest is the POST /predict/log body.
type PredictLogRequest struct {
	SessionID      string   `json:"session_id" binding:"required"`
	PredictedFiles []string `json:"predicted_files" binding:"required"`
	Tags           []string `json:"tags"`
	TriggerFile    string   `json:"trigger_file"`
	Confidence     float64  `json:"confidence"`
}

// PredictCheckRequest is the POST /predict/check body.
type PredictCheckRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	ProjectID string `json:"project_id"`
	File      string `json:"file" binding:"required"`
}

// RollingMetrics is the rolling accuracy block of GET /metrics.
// HitAt5Pct is the string "calibrating" until enough predictions have
// been evaluated, then a fraction in [0, 1].
type RollingMetrics struct {
	HitAt5Pct any `json:"hit_at_5_pct"`
	Evaluated int `json:"evaluated"`
}

// MetricsResponse is the GET /metrics body.
type MetricsResponse struct {
	Rolling RollingMetrics `json:"rolling"`
}

// DomainStatsResponse is the GET /domains/stats body.
type DomainStatsResponse struct {
	Domains         int  `json:"domains"`
	LearningPending bool `json:"learning_pending"`
	TuneCount       int  `json:"tune_count"`
	TuningPending   bool `json:"tuning_pending"`
	OrphanCount     int  `json:"orphan_count"`
}

// OrphansResponse is the GET /domains/orphans body.
type OrphansResponse struct {
	Orphans  []string        `json:"orphans"`
	Snapshot *learn.Snapshot `json:"snapshot,omitempty"`
}

// DomainListResponse is the GET /domains/list body.
type DomainListResponse struct {
	Domains []intent.Domain `json:"domains"`
}

// AddDomainsRequest is the POST /domains/add body.
type AddDomainsRequest struct {
	Project string                 `json:"project"`
	Domains []learn.ProposedDomain `json:"domains" binding:"required"`
}

// ProjectRequest is the body of the project-scoped POST endpoints
// (/domains/learned, /domains/tune/math).
type ProjectRequest struct {
	Project string `json:"project"`
}
