// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry exposes Prometheus instrumentation for the
// observatory service.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains pre-defined metrics for the observatory service.
//
// Description:
//
//	Provides counters, histograms, and gauges for HTTP traffic,
//	intent capture, prediction, and domain learning. All metrics use
//	the "spyglass_" prefix for consistent naming.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	registry *prometheus.Registry

	// --- HTTP Metrics ---

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration *prometheus.HistogramVec

	// --- Capture Metrics ---

	// IntentAppendsTotal counts appended intent records by tool.
	IntentAppendsTotal *prometheus.CounterVec

	// StoreRecords tracks the hot-window record count.
	StoreRecords prometheus.Gauge

	// --- Prediction Metrics ---

	// PredictionsTotal counts prediction requests by outcome
	// (served, gated, empty).
	PredictionsTotal *prometheus.CounterVec

	// PredictionHitRate tracks the rolling hit-at-5 fraction.
	PredictionHitRate prometheus.Gauge

	// --- Learning Metrics ---

	// OrphanTags tracks the current orphan tag count.
	OrphanTags prometheus.Gauge

	// TuningPassesTotal counts completed math-tuning passes.
	TuningPassesTotal prometheus.Counter
}

// NewMetrics creates a Metrics instance backed by its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spyglass_http_requests_total",
			Help: "HTTP requests by method, path, and status.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spyglass_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		IntentAppendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spyglass_intent_appends_total",
			Help: "Appended intent records by tool.",
		}, []string{"tool"}),
		StoreRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spyglass_store_records",
			Help: "Records in the hot window.",
		}),
		PredictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spyglass_predictions_total",
			Help: "Prediction requests by outcome.",
		}, []string{"outcome"}),
		PredictionHitRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spyglass_prediction_hit_rate",
			Help: "Rolling hit-at-5 fraction of evaluated predictions.",
		}),
		OrphanTags: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spyglass_orphan_tags",
			Help: "Tags observed but unmapped to any domain.",
		}),
		TuningPassesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spyglass_tuning_passes_total",
			Help: "Completed math-tuning passes.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.IntentAppendsTotal,
		m.StoreRecords,
		m.PredictionsTotal,
		m.PredictionHitRate,
		m.OrphanTags,
		m.TuningPassesTotal,
	)
	return m
}

// Handler returns the scrape endpoint handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
