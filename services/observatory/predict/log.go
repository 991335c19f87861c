// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package predict

import (
	"context"
	"sync"
	"time"

	"github.com/AleutianAI/spyglass/services/observatory/intent"
)

// DefaultTTL is how long a logged prediction stays checkable before it
// is evaluated.
const DefaultTTL = 15 * time.Minute

// DefaultWindowSize is the rolling window of evaluated predictions the
// accuracy metric is computed over.
const DefaultWindowSize = 50

// DefaultMaxEntries is the hard ceiling on outstanding entries. The
// oldest entries are force-evaluated past it.
const DefaultMaxEntries = 200

// minEvaluated is the number of evaluated predictions below which the
// metric reports calibrating.
const minEvaluated = 3

// hitDepth is how many of the top predicted paths count toward the
// hit-at-5 metric.
const hitDepth = 5

// sweepInterval is how often the sweeper scans for expired entries.
const sweepInterval = 30 * time.Second

// Entry is one outstanding logged prediction.
type Entry struct {
	SessionID   string
	Predicted   []string
	Tags        []string
	TriggerFile string
	Confidence  float64
	CreatedAt   time.Time
	ExpiresAt   time.Time

	// hit marks predicted paths that were subsequently accessed. A
	// path hits at most once per entry.
	hit map[string]struct{}
}

// Hits returns the number of distinct predicted paths hit so far.
func (e *Entry) Hits() int {
	return len(e.hit)
}

// Metrics is the rolling accuracy report.
type Metrics struct {
	// HitAt5Pct is the fraction of evaluated predictions with at least
	// one hit among their top-5 predicted paths.
	HitAt5Pct float64 `json:"hit_at_5_pct"`

	// Evaluated is the number of evaluated predictions in the window.
	Evaluated int `json:"evaluated"`

	// Calibrating is true while fewer than 3 predictions have been
	// evaluated.
	Calibrating bool `json:"calibrating"`
}

// LogOptions configures the prediction log.
type LogOptions struct {
	// TTL before an outstanding entry is evaluated. Default: DefaultTTL.
	TTL time.Duration

	// WindowSize of the rolling metric. Default: DefaultWindowSize.
	WindowSize int

	// MaxEntries is the outstanding-entry ceiling. Default:
	// DefaultMaxEntries.
	MaxEntries int
}

// Log tracks outstanding predictions and the rolling hit-rate window.
//
// # Description
//
// In-memory only: a restart loses in-flight tracking, which is
// acceptable — the window refills within a session. The log has its
// own lock so checks never contend with store appends.
//
// # Thread Safety
//
// Safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	entries []*Entry
	// window holds evaluated outcomes (top-5 hit or not), newest last.
	window []bool

	ttl        time.Duration
	windowSize int
	maxEntries int

	// now is swappable for tests.
	now func() time.Time
}

// NewLog creates a prediction log. A nil opts uses defaults.
func NewLog(opts *LogOptions) *Log {
	if opts == nil {
		opts = &LogOptions{}
	}
	l := &Log{
		ttl:        opts.TTL,
		windowSize: opts.WindowSize,
		maxEntries: opts.MaxEntries,
		now:        time.Now,
	}
	if l.ttl <= 0 {
		l.ttl = DefaultTTL
	}
	if l.windowSize <= 0 {
		l.windowSize = DefaultWindowSize
	}
	if l.maxEntries <= 0 {
		l.maxEntries = DefaultMaxEntries
	}
	return l
}

// Add logs a prediction for hit tracking.
func (l *Log) Add(sessionID string, predicted, tags []string, triggerFile string, confidence float64) {
	now := l.now()
	entry := &Entry{
		SessionID:   sessionID,
		Predicted:   predicted,
		Tags:        tags,
		TriggerFile: triggerFile,
		Confidence:  confidence,
		CreatedAt:   now,
		ExpiresAt:   now.Add(l.ttl),
		hit:         make(map[string]struct{}),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)
	for len(l.entries) > l.maxEntries {
		l.evaluateLocked(l.entries[0])
		l.entries = l.entries[1:]
	}
}

// Check marks an accessed file against every outstanding unexpired
// entry for the session. Line ranges are stripped before matching;
// a given predicted path hits at most once per entry, so replays are
// idempotent.
//
// Returns the number of entries that gained a hit.
func (l *Log) Check(sessionID, file string) int {
	path := intent.BasePath(file)
	if path == "" {
		return 0
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	matched := 0
	for _, e := range l.entries {
		if e.SessionID != sessionID || now.After(e.ExpiresAt) {
			continue
		}
		for _, pred := range e.Predicted {
			if intent.BasePath(pred) != path {
				continue
			}
			if _, already := e.hit[pred]; already {
				continue
			}
			e.hit[pred] = struct{}{}
			matched++
		}
	}
	return matched
}

// Outstanding returns the number of unevaluated entries.
func (l *Log) Outstanding() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Snapshot returns the current rolling metrics.
func (l *Log) Snapshot() Metrics {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := Metrics{Evaluated: len(l.window)}
	if m.Evaluated < minEvaluated {
		m.Calibrating = true
		return m
	}
	hits := 0
	for _, hit := range l.window {
		if hit {
			hits++
		}
	}
	m.HitAt5Pct = float64(hits) / float64(m.Evaluated)
	return m
}

// Sweep evaluates expired entries into the rolling window. Called
// periodically by Run and from tests.
func (l *Log) Sweep() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[:0]
	for _, e := range l.entries {
		if now.After(e.ExpiresAt) {
			l.evaluateLocked(e)
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept
}

// Flush force-evaluates every outstanding entry. Called once at
// shutdown so in-flight predictions still count.
func (l *Log) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		l.evaluateLocked(e)
	}
	l.entries = nil
}

// evaluateLocked scores one finished entry into the window: did any of
// its top-5 predicted paths get hit. Caller holds l.mu.
func (l *Log) evaluateLocked(e *Entry) {
	depth := hitDepth
	if depth > len(e.Predicted) {
		depth = len(e.Predicted)
	}
	hit := false
	for _, pred := range e.Predicted[:depth] {
		if _, ok := e.hit[pred]; ok {
			hit = true
			break
		}
	}
	l.window = append(l.window, hit)
	if len(l.window) > l.windowSize {
		l.window = l.window[len(l.window)-l.windowSize:]
	}
}

// Run sweeps expired entries until ctx is canceled, then performs a
// final flush. Intended as an errgroup task owned by the service.
func (l *Log) Run(ctx context.Context) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.Flush()
			return nil
		case <-ticker.C:
			l.Sweep()
		}
	}
}
