// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observatory is the developer-activity observatory service:
// it captures tool-call intent records, infers semantic tags, predicts
// the files a prompt will touch, tracks prediction accuracy, and
// learns new domains from unmapped activity.
package observatory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/spyglass/services/observatory/intent"
	"github.com/AleutianAI/spyglass/services/observatory/learn"
	"github.com/AleutianAI/spyglass/services/observatory/predict"
	"github.com/AleutianAI/spyglass/services/observatory/store"
	"github.com/AleutianAI/spyglass/services/observatory/telemetry"
)

// DefaultListenAddr binds the service to loopback: capture data never
// leaves the machine.
const DefaultListenAddr = "127.0.0.1:8080"

// DefaultShutdownGrace bounds the drain of in-flight handlers at
// shutdown.
const DefaultShutdownGrace = 5 * time.Second

// fileAccessTools are the tools whose appends count as file accesses
// for prediction hit tracking.
var fileAccessTools = map[string]struct{}{
	intent.ToolRead:  {},
	intent.ToolEdit:  {},
	intent.ToolWrite: {},
}

// Config configures the observatory service.
type Config struct {
	// ListenAddr is the HTTP bind address. Default: DefaultListenAddr.
	ListenAddr string

	// DataDir holds the intent document and the archive. Empty runs
	// memory-only.
	DataDir string

	// ConfigDir holds learner state and the learned domain library.
	ConfigDir string

	// SearchPath is the ordered pattern-library discovery path.
	SearchPath []string

	// MaxRecords caps the hot record window. 0 uses the store default.
	MaxRecords int

	// EnableArchive opens a badger archive under DataDir for records
	// truncated out of the hot window.
	EnableArchive bool

	// ShutdownGrace bounds handler draining at shutdown. 0 uses
	// DefaultShutdownGrace.
	ShutdownGrace time.Duration

	// Logger is the service logger. Nil uses slog.Default.
	Logger *slog.Logger
}

// DefaultConfig returns a loopback, memory-only configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr:    DefaultListenAddr,
		ShutdownGrace: DefaultShutdownGrace,
	}
}

// Service owns the three long-lived singletons (intent store,
// prediction log, domain library via the learner) and their lifecycle.
type Service struct {
	cfg Config
	log *slog.Logger

	store     *store.IntentStore
	predictor *predict.Predictor
	predLog   *predict.Log
	learner   *learn.Learner
	metrics   *telemetry.Metrics
}

// NewService builds a service from config.
//
// # Description
//
// Loads the pattern library off the search path (missing is fine,
// malformed is a startup error), opens the store and optional archive,
// and restores learner state. Nothing is served until Run.
func NewService(cfg Config) (*Service, error) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = DefaultShutdownGrace
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	lib, err := intent.LoadLibrary(cfg.SearchPath)
	if err != nil {
		return nil, fmt.Errorf("load pattern library: %w", err)
	}

	var archive *store.Archive
	if cfg.EnableArchive && cfg.DataDir != "" {
		archive, err = store.OpenArchive(filepath.Join(cfg.DataDir, "archive"))
		if err != nil {
			// The archive is an enrichment; capture continues without it.
			log.Warn("archive unavailable, hot window only", "error", err)
			archive = nil
		}
	}

	st := store.New(cfg.DataDir, &store.Options{
		MaxRecords: cfg.MaxRecords,
		Archive:    archive,
		Logger:     log,
	})

	learner := learn.New(cfg.ConfigDir, lib, &learn.Options{Logger: log})

	svc := &Service{
		cfg:       cfg,
		log:       log,
		store:     st,
		predictor: predict.NewPredictor(st, nil),
		predLog:   predict.NewLog(nil),
		learner:   learner,
		metrics:   telemetry.NewMetrics(),
	}

	log.Info("observatory ready",
		"listen", cfg.ListenAddr,
		"domains", lib.Len(),
		"records", st.Len(),
		"archive", archive != nil)
	return svc, nil
}

// AppendIntent runs the full capture path for one record: normalize,
// infer tags when the client sent none, store, feed the learner, and
// mark hits against outstanding predictions.
func (s *Service) AppendIntent(rec intent.Record) {
	rec.Normalize()
	if len(rec.Tags) == 0 {
		rec.Tags = intent.InferTags(rec.Files, rec.Tool, s.learner.Library(), nil)
	}

	s.store.Append(rec)
	s.learner.Observe(rec)

	if _, ok := fileAccessTools[rec.Tool]; ok {
		for _, f := range rec.Files {
			if intent.IsFileToken(f) {
				s.predLog.Check(rec.SessionID, f)
			}
		}
	}

	s.metrics.IntentAppendsTotal.WithLabelValues(rec.Tool).Inc()
	s.metrics.StoreRecords.Set(float64(s.store.Len()))
	s.metrics.OrphanTags.Set(float64(s.learner.Counters().OrphanCount))
}

// Predict ranks files for a keyword set, recording the outcome metric.
func (s *Service) Predict(keywords []string, limit, snippetLines int) []predict.Prediction {
	preds := s.predictor.Predict(keywords, limit, snippetLines)
	outcome := "served"
	switch {
	case s.store.Len() < predict.MinRecords:
		outcome = "gated"
	case len(preds) == 0:
		outcome = "empty"
	}
	s.metrics.PredictionsTotal.WithLabelValues(outcome).Inc()
	return preds
}

// RollingMetrics returns the hit-rate snapshot, updating the gauge.
func (s *Service) RollingMetrics() predict.Metrics {
	m := s.predLog.Snapshot()
	if !m.Calibrating {
		s.metrics.PredictionHitRate.Set(m.HitAt5Pct)
	}
	return m
}

// TuneMath runs a tuning pass on behalf of the endpoint.
func (s *Service) TuneMath() learn.TuneResult {
	res := s.learner.TuneMath()
	s.metrics.TuningPassesTotal.Inc()
	return res
}

// Warnings lists internal degradations surfaced on /health.
func (s *Service) Warnings() []string {
	var warnings []string
	if msg := s.store.WriteHealth(); msg != "" {
		warnings = append(warnings, "store: "+msg)
	}
	return warnings
}

// Run serves HTTP until ctx is canceled, then drains in-flight
// handlers within the shutdown grace, flushes the store, and finalizes
// the hit/miss window.
func (s *Service) Run(ctx context.Context) error {
	router := s.buildRouter()

	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	// The sweeper flushes outstanding predictions on cancellation.
	g.Go(func() error {
		return s.predLog.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("shutting down", "grace", s.cfg.ShutdownGrace)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("shutdown drain incomplete", "error", err)
		}
		if err := s.store.Close(); err != nil {
			s.log.Warn("store close failed", "error", err)
		}
		return nil
	})

	return g.Wait()
}

// buildRouter assembles the gin engine with middleware and routes.
func (s *Service) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestIDMiddleware(), s.metrics.Middleware())
	RegisterRoutes(router, NewHandlers(s), s.metrics)
	return router
}
