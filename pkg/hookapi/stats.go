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
	"fmt"
)

// StoreStats mirrors the stats block of /intent/recent.
type StoreStats struct {
	TotalRecords int      `json:"total_records"`
	UniqueFiles  int      `json:"unique_files"`
	UniqueTags   int      `json:"unique_tags"`
	TopFiles     []string `json:"top_files"`
}

// RollingMetrics mirrors the rolling block of /metrics. HitAt5Pct is
// either the string "calibrating" or a number.
type RollingMetrics struct {
	HitAt5Pct json.RawMessage `json:"hit_at_5_pct"`
	Evaluated int             `json:"evaluated"`
}

// HitRateDisplay renders the hit rate for humans, e.g. "73%".
func (m RollingMetrics) HitRateDisplay() string {
	var s string
	if err := json.Unmarshal(m.HitAt5Pct, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(m.HitAt5Pct, &f); err == nil {
		return fmt.Sprintf("%.0f%%", f*100)
	}
	return "unknown"
}

// DomainStats mirrors /domains/stats.
type DomainStats struct {
	Domains         int  `json:"domains"`
	LearningPending bool `json:"learning_pending"`
	TuneCount       int  `json:"tune_count"`
	TuningPending   bool `json:"tuning_pending"`
	OrphanCount     int  `json:"orphan_count"`
}

// recentResponse carries only what the stats view needs.
type recentResponse struct {
	Stats StoreStats `json:"stats"`
}

// metricsResponse mirrors /metrics.
type metricsResponse struct {
	Rolling RollingMetrics `json:"rolling"`
}

// StoreStats fetches capture statistics.
func (c *Client) StoreStats(ctx context.Context) (StoreStats, error) {
	var resp recentResponse
	if err := c.get(ctx, "/intent/recent?limit=0", &resp); err != nil {
		return StoreStats{}, err
	}
	return resp.Stats, nil
}

// Metrics fetches the rolling prediction accuracy.
func (c *Client) Metrics(ctx context.Context) (RollingMetrics, error) {
	var resp metricsResponse
	if err := c.get(ctx, "/metrics", &resp); err != nil {
		return RollingMetrics{}, err
	}
	return resp.Rolling, nil
}

// DomainStats fetches the learning counters.
func (c *Client) DomainStats(ctx context.Context) (DomainStats, error) {
	var resp DomainStats
	if err := c.get(ctx, "/domains/stats", &resp); err != nil {
		return DomainStats{}, err
	}
	return resp, nil
}
