// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists intent records and maintains the derived
// frequency indices prediction ranks against.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/spyglass/services/observatory/intent"
)

// DefaultMaxRecords is the hot-tier cap. The oldest records beyond it
// are truncated on append (and archived when an archive is attached).
const DefaultMaxRecords = 500

// documentFile is the on-disk intent document name.
const documentFile = "intent-data.json"

// IntentStore holds the rolling window of intent records plus lifetime
// file and tag counts, persisted as a single JSON document.
//
// # Description
//
// The document is the source of truth: {records, file_counts,
// tag_counts}. Records are capped at MaxRecords; the counts are
// lifetime and survive truncation. Persistence failures degrade to
// memory-only operation — capture must never fail because a disk did.
//
// # Thread Safety
//
// Safe for concurrent use.
type IntentStore struct {
	mu         sync.RWMutex
	records    []intent.Record
	fileCounts map[string]int
	tagCounts  map[string]int

	dataDir    string
	maxRecords int
	archive    *Archive
	log        *slog.Logger

	// lastWriteErr holds the most recent persistence failure, surfaced
	// as a health warning. Cleared by the next successful write.
	lastWriteErr string
}

// Options configures the intent store.
type Options struct {
	// MaxRecords caps the hot record window. Default: DefaultMaxRecords.
	MaxRecords int

	// Archive receives records truncated out of the hot window.
	// Optional; nil disables archiving.
	Archive *Archive

	// Logger for persistence warnings. Nil uses slog.Default.
	Logger *slog.Logger
}

// document is the persisted JSON shape.
type document struct {
	Records    []intent.Record `json:"records"`
	FileCounts map[string]int  `json:"file_counts"`
	TagCounts  map[string]int  `json:"tag_counts"`
}

// New creates an intent store backed by dataDir.
//
// # Inputs
//
//   - dataDir: Directory for the JSON document. Empty for memory-only.
//   - opts: Optional configuration (nil uses defaults).
//
// # Outputs
//
//   - *IntentStore: Ready-to-use store. A missing or corrupt document
//     starts empty; corruption is logged, never fatal.
func New(dataDir string, opts *Options) *IntentStore {
	if opts == nil {
		opts = &Options{}
	}
	if opts.MaxRecords <= 0 {
		opts.MaxRecords = DefaultMaxRecords
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &IntentStore{
		fileCounts: make(map[string]int),
		tagCounts:  make(map[string]int),
		dataDir:    dataDir,
		maxRecords: opts.MaxRecords,
		archive:    opts.Archive,
		log:        log,
	}
	s.load()
	return s
}

// load reads the persisted document. Unreadable or malformed documents
// leave the store empty.
func (s *IntentStore) load() {
	if s.dataDir == "" {
		return
	}
	path := filepath.Join(s.dataDir, documentFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("intent document unreadable, starting empty", "path", path, "error", err)
		}
		return
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.log.Warn("intent document corrupt, starting empty", "path", path, "error", err)
		return
	}

	s.records = doc.Records
	if doc.FileCounts != nil {
		s.fileCounts = doc.FileCounts
	}
	if doc.TagCounts != nil {
		s.tagCounts = doc.TagCounts
	}
	if len(s.records) > s.maxRecords {
		s.records = s.records[len(s.records)-s.maxRecords:]
	}
}

// Append stores one record, updates the indices, truncates the window,
// and persists.
//
// # Description
//
// File counts accumulate for file tokens only (pattern: and cmd:
// tokens are excluded, neither is a file the agent touched). Tag
// counts accumulate for every tag. Truncated records go to the archive
// when one is attached. Persistence errors are logged and swallowed.
func (s *IntentStore) Append(rec intent.Record) {
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().Unix()
	}

	s.mu.Lock()
	s.records = append(s.records, rec)

	for _, f := range rec.Files {
		if f == "" || intent.IsPatternToken(f) || intent.IsCommandToken(f) {
			continue
		}
		s.fileCounts[f]++
	}
	for _, t := range rec.Tags {
		if t != "" {
			s.tagCounts[t]++
		}
	}

	var truncated []intent.Record
	if len(s.records) > s.maxRecords {
		n := len(s.records) - s.maxRecords
		truncated = make([]intent.Record, n)
		copy(truncated, s.records[:n])
		s.records = append(s.records[:0], s.records[n:]...)
	}

	data, err := json.MarshalIndent(document{
		Records:    s.records,
		FileCounts: s.fileCounts,
		TagCounts:  s.tagCounts,
	}, "", "  ")
	s.mu.Unlock()

	if len(truncated) > 0 && s.archive != nil {
		if aerr := s.archive.Put(truncated); aerr != nil {
			s.log.Warn("archive write failed", "records", len(truncated), "error", aerr)
		}
	}

	if s.dataDir == "" {
		return
	}
	if err != nil {
		s.log.Warn("intent document marshal failed", "error", err)
		s.setWriteErr(err)
		return
	}
	if err := s.writeDocument(data); err != nil {
		s.log.Warn("intent document write failed", "error", err)
		s.setWriteErr(err)
		return
	}
	s.setWriteErr(nil)
}

func (s *IntentStore) setWriteErr(err error) {
	s.mu.Lock()
	if err == nil {
		s.lastWriteErr = ""
	} else {
		s.lastWriteErr = err.Error()
	}
	s.mu.Unlock()
}

// WriteHealth returns the most recent persistence failure, or "" when
// the store is writing cleanly.
func (s *IntentStore) WriteHealth() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastWriteErr
}

// writeDocument writes atomically via a temp file rename.
func (s *IntentStore) writeDocument(data []byte) error {
	if err := os.MkdirAll(s.dataDir, 0750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(s.dataDir, documentFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// fileCount is a rank pair used by the query methods.
type fileCount struct {
	file  string
	count int
}

// rank sorts by count descending, path ascending for stable output,
// and applies the limit.
func rank(counts map[string]int, limit int) []string {
	pairs := make([]fileCount, 0, len(counts))
	for f, c := range counts {
		pairs = append(pairs, fileCount{f, c})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].file < pairs[j].file
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.file
	}
	return out
}

// RecentFiles returns the files touched in the last window, most
// frequently touched first. Pattern and command tokens are excluded.
func (s *IntentStore) RecentFiles(window time.Duration, limit int) []string {
	cutoff := time.Now().Add(-window).Unix()

	s.mu.RLock()
	counts := make(map[string]int)
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].Timestamp < cutoff {
			break
		}
		for _, f := range s.records[i].Files {
			if f == "" || intent.IsPatternToken(f) || intent.IsCommandToken(f) {
				continue
			}
			counts[f]++
		}
	}
	s.mu.RUnlock()

	return rank(counts, limit)
}

// FrequentFiles returns the lifetime most-touched files.
func (s *IntentStore) FrequentFiles(limit int) []string {
	s.mu.RLock()
	counts := make(map[string]int, len(s.fileCounts))
	for f, c := range s.fileCounts {
		if intent.IsCommandToken(f) {
			continue
		}
		counts[f] = c
	}
	s.mu.RUnlock()

	return rank(counts, limit)
}

// FilesByTag returns the files most associated with a tag, scanning
// the hot window.
func (s *IntentStore) FilesByTag(tag string, limit int) []string {
	s.mu.RLock()
	counts := make(map[string]int)
	for _, rec := range s.records {
		if !hasTag(rec.Tags, tag) {
			continue
		}
		for _, f := range rec.Files {
			if f == "" || intent.IsPatternToken(f) || intent.IsCommandToken(f) {
				continue
			}
			counts[f]++
		}
	}
	s.mu.RUnlock()

	return rank(counts, limit)
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Records returns a copy of the newest records, newest last, capped at
// limit (0 means the whole hot window).
func (s *IntentStore) Records(limit int) []intent.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.records)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]intent.Record, n)
	copy(out, s.records[len(s.records)-n:])
	return out
}

// PathCounts returns lifetime access counts aggregated by bare path:
// file tokens only, line ranges stripped. This is the frequency input
// to prediction scoring.
func (s *IntentStore) PathCounts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int, len(s.fileCounts))
	for f, c := range s.fileCounts {
		if !intent.IsFileToken(f) {
			continue
		}
		counts[intent.BasePath(f)] += c
	}
	return counts
}

// Len returns the hot-window record count.
func (s *IntentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// TagCount is one entry of the stats tag leaderboard.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Stats summarizes the store for the stats endpoint.
type Stats struct {
	TotalRecords int        `json:"total_records"`
	UniqueFiles  int        `json:"unique_files"`
	UniqueTags   int        `json:"unique_tags"`
	TopFiles     []string   `json:"top_files"`
	TopTags      []TagCount `json:"top_tags"`

	// ArchivedRecords counts records truncated out of the hot window
	// and kept in the archive. Omitted when no archive is attached.
	ArchivedRecords int `json:"archived_records,omitempty"`
}

// Summary returns store statistics: hot-window size, lifetime unique
// files and tags, and the top-5/top-10 leaderboards.
func (s *IntentStore) Summary() Stats {
	s.mu.RLock()
	stats := Stats{
		TotalRecords: len(s.records),
		UniqueFiles:  len(s.fileCounts),
		UniqueTags:   len(s.tagCounts),
	}
	tagPairs := make([]TagCount, 0, len(s.tagCounts))
	for t, c := range s.tagCounts {
		tagPairs = append(tagPairs, TagCount{t, c})
	}
	s.mu.RUnlock()

	stats.TopFiles = s.FrequentFiles(5)

	sort.Slice(tagPairs, func(i, j int) bool {
		if tagPairs[i].Count != tagPairs[j].Count {
			return tagPairs[i].Count > tagPairs[j].Count
		}
		return tagPairs[i].Tag < tagPairs[j].Tag
	})
	if len(tagPairs) > 10 {
		tagPairs = tagPairs[:10]
	}
	stats.TopTags = tagPairs

	if s.archive != nil {
		if n, err := s.archive.Count(); err == nil {
			stats.ArchivedRecords = n
		}
	}

	return stats
}

// Close releases the archive if one is attached. The document itself
// is persisted on every append, so there is nothing to flush.
func (s *IntentStore) Close() error {
	if s.archive != nil {
		return s.archive.Close()
	}
	return nil
}
