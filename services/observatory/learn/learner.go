// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package learn grows and maintains the domain library from observed
// activity: it accumulates orphan tags until a learning cycle is due,
// exposes a frozen snapshot for an external synthesizer, validates
// proposed domains, and runs the math-only tuning pass that prunes
// over-broad terms and retires stale domains.
package learn

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/spyglass/services/observatory/intent"
)

// DefaultLearnThreshold is T_learn: appends per learning cycle.
const DefaultLearnThreshold = 100

// DefaultTuneThreshold is T_tune: appends per tuning cycle.
const DefaultTuneThreshold = 50

// minOrphansForCycle is the orphan-tag floor below which a learning
// cycle is not worth proposing.
const minOrphansForCycle = 5

// pruneMatchRate is the fraction of cycle records above which a term
// is considered too broad and pruned.
const pruneMatchRate = 0.30

// deprecateAfterStaleCycles retires a domain stale for this many
// consecutive tuning cycles.
const deprecateAfterStaleCycles = 2

// stateFile is the persisted learner document name.
const stateFile = "learn-state.json"

// snapshotFiles caps the recent file locations frozen into a snapshot.
const snapshotFiles = 50

// snapshotOrphans caps the orphan tags frozen into a snapshot.
const snapshotOrphans = 20

// Snapshot is the frozen learning-cycle input exposed to an external
// synthesizer while learning is pending.
type Snapshot struct {
	// Tags are the unique tags seen recently.
	Tags []string `json:"tags"`

	// Files are recent file locations, newest last.
	Files []string `json:"files"`

	// TopOrphans are the most frequent unmapped tags.
	TopOrphans []string `json:"top_orphans"`

	// FrozenAt is when the snapshot was taken, unix seconds.
	FrozenAt int64 `json:"frozen_at"`
}

// state is the persisted learner document.
type state struct {
	SinceLastCycle  int            `json:"since_last_cycle"`
	TuneCount       int            `json:"tune_count"`
	LearningPending bool           `json:"learning_pending"`
	OrphanTags      map[string]int `json:"orphan_tags"`
	Snapshot        *Snapshot      `json:"snapshot,omitempty"`

	// Tuning bookkeeping for the current cycle.
	RecordsInCycle int            `json:"records_in_cycle"`
	MatchCounts    map[string]int `json:"match_counts"`
	StaleCycles    map[string]int `json:"stale_cycles"`

	// RecentFiles and RecentTags feed snapshot freezing. Kept small.
	RecentFiles []string `json:"recent_files"`
	RecentTags  []string `json:"recent_tags"`
}

// TuneResult reports one math-tuning pass.
type TuneResult struct {
	Success             bool `json:"success"`
	TermsPruned         int  `json:"terms_pruned"`
	DomainsActive       int  `json:"domains_active"`
	DomainsFlaggedStale int  `json:"domains_flagged_stale"`
	DomainsDeprecated   int  `json:"domains_deprecated"`
}

// Stats is the learner counter snapshot for the stats endpoint.
type Stats struct {
	Domains         int  `json:"domains"`
	LearningPending bool `json:"learning_pending"`
	TuneCount       int  `json:"tune_count"`
	TuningPending   bool `json:"tuning_pending"`
	OrphanCount     int  `json:"orphan_count"`
}

// Options configures the learner.
type Options struct {
	// LearnThreshold is T_learn. Default: DefaultLearnThreshold.
	LearnThreshold int

	// TuneThreshold is T_tune. Default: DefaultTuneThreshold.
	TuneThreshold int

	// Logger for persistence warnings. Nil uses slog.Default.
	Logger *slog.Logger
}

// Learner owns the live domain library and the learning/tuning state.
//
// # Description
//
// The library reference is swapped atomically on mutation; readers
// (tag inference, handlers) take a consistent reference without
// locking. Learner state persists to one JSON document under the
// project config directory so pending cycles survive restarts.
//
// # Thread Safety
//
// Safe for concurrent use. Observe never blocks on more than the
// learner's own mutex.
type Learner struct {
	mu  sync.Mutex
	st  state
	lib atomic.Pointer[intent.Library]

	stateDir       string
	learnThreshold int
	tuneThreshold  int
	log            *slog.Logger
}

// New creates a learner owning lib, restoring any persisted state
// from stateDir.
func New(stateDir string, lib *intent.Library, opts *Options) *Learner {
	if opts == nil {
		opts = &Options{}
	}
	if opts.LearnThreshold <= 0 {
		opts.LearnThreshold = DefaultLearnThreshold
	}
	if opts.TuneThreshold <= 0 {
		opts.TuneThreshold = DefaultTuneThreshold
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	l := &Learner{
		stateDir:       stateDir,
		learnThreshold: opts.LearnThreshold,
		tuneThreshold:  opts.TuneThreshold,
		log:            log,
	}
	if lib == nil {
		lib = intent.EmptyLibrary()
	}
	l.lib.Store(lib)
	l.st = state{
		OrphanTags:  make(map[string]int),
		MatchCounts: make(map[string]int),
		StaleCycles: make(map[string]int),
	}
	l.restore()
	return l
}

// Library returns the current library reference for tag inference.
func (l *Learner) Library() *intent.Library {
	return l.lib.Load()
}

// restore loads persisted learner state. Missing or corrupt state
// starts fresh.
func (l *Learner) restore() {
	if l.stateDir == "" {
		return
	}
	path := filepath.Join(l.stateDir, stateFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.log.Warn("learner state unreadable, starting fresh", "path", path, "error", err)
		}
		return
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		l.log.Warn("learner state corrupt, starting fresh", "path", path, "error", err)
		return
	}
	if st.OrphanTags == nil {
		st.OrphanTags = make(map[string]int)
	}
	if st.MatchCounts == nil {
		st.MatchCounts = make(map[string]int)
	}
	if st.StaleCycles == nil {
		st.StaleCycles = make(map[string]int)
	}
	l.st = st
}

// persistLocked writes the state document. Caller holds l.mu. Write
// failures are logged; learning must not block capture.
func (l *Learner) persistLocked() {
	if l.stateDir == "" {
		return
	}
	data, err := json.MarshalIndent(l.st, "", "  ")
	if err != nil {
		l.log.Warn("learner state marshal failed", "error", err)
		return
	}
	if err := os.MkdirAll(l.stateDir, 0750); err != nil {
		l.log.Warn("learner state dir create failed", "error", err)
		return
	}
	path := filepath.Join(l.stateDir, stateFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		l.log.Warn("learner state write failed", "error", err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		l.log.Warn("learner state rename failed", "error", err)
	}
}

// Observe feeds one appended record into the learning and tuning
// counters. A due tuning pass runs at the start of the next observe,
// so tuning_pending is visible on the stats endpoint in between.
func (l *Learner) Observe(rec intent.Record) {
	lib := l.lib.Load()

	var text strings.Builder
	for _, f := range rec.Files {
		if intent.IsPatternToken(f) || intent.IsCommandToken(f) {
			continue
		}
		text.WriteByte(' ')
		text.WriteString(f)
	}
	lowered := strings.ToLower(text.String())

	matched := make([]string, 0, 4)
	for _, m := range lib.MatchStrings() {
		if strings.Contains(lowered, m) {
			matched = append(matched, m)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.st.TuneCount >= l.tuneThreshold {
		l.tuneLocked()
	}

	l.st.SinceLastCycle++
	l.st.TuneCount++
	l.st.RecordsInCycle++

	for _, m := range matched {
		l.st.MatchCounts[m]++
	}

	for _, tag := range rec.Tags {
		if tag == "" {
			continue
		}
		if lib.HasDomain(tag) {
			continue
		}
		if strings.HasPrefix(tag, "@") {
			// Domain-shaped tag for a domain we no longer carry.
			continue
		}
		if isActionTag(tag) {
			continue
		}
		l.st.OrphanTags[tag]++
	}

	l.st.RecentTags = appendBounded(l.st.RecentTags, rec.Tags, snapshotOrphans*2)
	var fileTokens []string
	for _, f := range rec.Files {
		if intent.IsFileToken(f) {
			fileTokens = append(fileTokens, intent.BasePath(f))
		}
	}
	l.st.RecentFiles = appendBounded(l.st.RecentFiles, fileTokens, snapshotFiles)

	if !l.st.LearningPending &&
		l.st.SinceLastCycle >= l.learnThreshold &&
		len(l.st.OrphanTags) >= minOrphansForCycle {
		l.freezeSnapshotLocked()
	}

	l.persistLocked()
}

// isActionTag reports whether a tag is a tool-action tag, which never
// counts as an orphan.
func isActionTag(tag string) bool {
	switch tag {
	case "#reading", "#editing", "#creating", "#executing", "#searching", "#delegating", "#predicting":
		return true
	}
	return false
}

// appendBounded appends items deduplicated against the tail and trims
// the slice to cap, keeping the newest.
func appendBounded(dst []string, items []string, max int) []string {
	for _, it := range items {
		if it == "" {
			continue
		}
		dup := false
		for i := len(dst) - 1; i >= 0 && i >= len(dst)-10; i-- {
			if dst[i] == it {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, it)
		}
	}
	if len(dst) > max {
		dst = dst[len(dst)-max:]
	}
	return dst
}

// freezeSnapshotLocked marks learning pending and freezes the cycle
// input. Caller holds l.mu.
func (l *Learner) freezeSnapshotLocked() {
	l.st.LearningPending = true
	l.st.Snapshot = &Snapshot{
		Tags:       uniqueStrings(l.st.RecentTags),
		Files:      append([]string(nil), l.st.RecentFiles...),
		TopOrphans: topOrphans(l.st.OrphanTags, snapshotOrphans),
		FrozenAt:   time.Now().Unix(),
	}
	l.st.SinceLastCycle = 0
	l.log.Info("learning cycle pending",
		"orphans", len(l.st.OrphanTags),
		"snapshot_files", len(l.st.Snapshot.Files))
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// topOrphans ranks orphan tags by count descending, tag ascending.
func topOrphans(counts map[string]int, limit int) []string {
	type pair struct {
		tag   string
		count int
	}
	pairs := make([]pair, 0, len(counts))
	for t, c := range counts {
		pairs = append(pairs, pair{t, c})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].tag < pairs[j].tag
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.tag
	}
	return out
}

// TuneMath runs the math-only tuning pass immediately and returns its
// result. Also invoked automatically when the tuning cycle is due.
func (l *Learner) TuneMath() TuneResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	res := l.tuneLocked()
	l.persistLocked()
	return res
}

// tuneLocked prunes over-broad terms, flags stale domains, and
// deprecates domains stale for two consecutive cycles. Caller holds
// l.mu.
func (l *Learner) tuneLocked() TuneResult {
	lib := l.lib.Load()
	total := l.st.RecordsInCycle

	// Prune terms that matched too large a share of the cycle.
	prune := make(map[string]struct{})
	if total > 0 {
		for _, m := range lib.MatchStrings() {
			if float64(l.st.MatchCounts[m]) > pruneMatchRate*float64(total) {
				prune[m] = struct{}{}
			}
		}
	}

	// A domain is stale when none of its terms matched this cycle.
	domainMatched := make(map[string]bool)
	for m, c := range l.st.MatchCounts {
		if c == 0 {
			continue
		}
		if name, ok := lib.DomainFor(m); ok {
			domainMatched[name] = true
		}
	}

	flagged := 0
	deprecated := make(map[string]struct{})
	for _, d := range lib.Domains() {
		if domainMatched[d.Name] {
			delete(l.st.StaleCycles, d.Name)
			continue
		}
		l.st.StaleCycles[d.Name]++
		if l.st.StaleCycles[d.Name] >= deprecateAfterStaleCycles {
			deprecated[d.Name] = struct{}{}
			delete(l.st.StaleCycles, d.Name)
		} else {
			flagged++
		}
	}

	next := lib
	if len(prune) > 0 {
		next = next.WithoutMatches(prune)
	}
	if len(deprecated) > 0 {
		var kept []intent.Domain
		for _, d := range next.Domains() {
			if _, gone := deprecated[d.Name]; gone {
				continue
			}
			kept = append(kept, d)
		}
		next = intent.NewLibrary(kept)
	}
	if next != lib {
		l.lib.Store(next)
		l.persistLibraryLocked(next)
	}

	l.st.TuneCount = 0
	l.st.RecordsInCycle = 0
	l.st.MatchCounts = make(map[string]int)

	res := TuneResult{
		Success:             true,
		TermsPruned:         len(prune),
		DomainsActive:       next.Len(),
		DomainsFlaggedStale: flagged,
		DomainsDeprecated:   len(deprecated),
	}
	l.log.Info("tuning pass complete",
		"terms_pruned", res.TermsPruned,
		"domains_active", res.DomainsActive,
		"domains_stale", res.DomainsFlaggedStale,
		"domains_deprecated", res.DomainsDeprecated)
	return res
}

// persistLibraryLocked writes the mutated library back to the project
// domains document so it survives restarts. Caller holds l.mu.
func (l *Learner) persistLibraryLocked(lib *intent.Library) {
	if l.stateDir == "" {
		return
	}
	doc := struct {
		Domains []intent.Domain `json:"domains"`
	}{Domains: lib.Domains()}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		l.log.Warn("library marshal failed", "error", err)
		return
	}
	if err := os.MkdirAll(l.stateDir, 0750); err != nil {
		l.log.Warn("library dir create failed", "error", err)
		return
	}
	path := filepath.Join(l.stateDir, intent.LibraryFileName)
	if err := os.WriteFile(path, data, 0640); err != nil {
		l.log.Warn("library write failed", "path", path, "error", err)
	}
}

// AddDomains validates and installs proposed domains. The whole
// submission is rejected on the first validation failure; on success
// the library reference is swapped atomically and learning_pending is
// cleared.
func (l *Learner) AddDomains(proposed []ProposedDomain) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	lib := l.lib.Load()
	if err := ValidateProposal(proposed, lib); err != nil {
		return err
	}

	additions := make([]intent.Domain, 0, len(proposed))
	for _, p := range proposed {
		additions = append(additions, p.toDomain())
	}
	next := lib.WithDomains(additions)
	l.lib.Store(next)
	l.persistLibraryLocked(next)

	// Orphans absorbed by the new domains stop counting.
	for tag := range l.st.OrphanTags {
		term := strings.TrimLeft(tag, "#@")
		if _, ok := next.Lookup(strings.ToLower(term)); ok {
			delete(l.st.OrphanTags, tag)
		}
	}

	l.st.LearningPending = false
	l.st.Snapshot = nil
	l.persistLocked()
	return nil
}

// ClearPending clears the learning-pending flag without installing
// domains (the synthesizer declined the cycle).
func (l *Learner) ClearPending() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.st.LearningPending = false
	l.st.Snapshot = nil
	l.st.OrphanTags = make(map[string]int)
	l.persistLocked()
}

// Counters returns the learner stats for the stats endpoint.
func (l *Learner) Counters() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Domains:         l.lib.Load().Len(),
		LearningPending: l.st.LearningPending,
		TuneCount:       l.st.TuneCount,
		TuningPending:   l.st.TuneCount >= l.tuneThreshold,
		OrphanCount:     len(l.st.OrphanTags),
	}
}

// Orphans returns the orphan snapshot: the frozen cycle input while
// learning is pending, otherwise the live top orphans.
func (l *Learner) Orphans(limit int) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.st.LearningPending && l.st.Snapshot != nil {
		orphans := l.st.Snapshot.TopOrphans
		if limit > 0 && len(orphans) > limit {
			orphans = orphans[:limit]
		}
		return append([]string(nil), orphans...)
	}
	return topOrphans(l.st.OrphanTags, limit)
}

// Pending returns the frozen snapshot, or nil when no cycle is
// pending.
func (l *Learner) Pending() *Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.st.LearningPending || l.st.Snapshot == nil {
		return nil
	}
	snap := *l.st.Snapshot
	return &snap
}

// Domains lists active domains, capped at limit (0 = all).
func (l *Learner) Domains(limit int) []intent.Domain {
	domains := l.lib.Load().Domains()
	if limit > 0 && len(domains) > limit {
		domains = domains[:limit]
	}
	return append([]intent.Domain(nil), domains...)
}

// String implements fmt.Stringer for debug logging.
func (l *Learner) String() string {
	c := l.Counters()
	return fmt.Sprintf("learner{domains=%d pending=%v orphans=%d}", c.Domains, c.LearningPending, c.OrphanCount)
}
