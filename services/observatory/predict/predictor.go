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
	"bufio"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/spyglass/services/observatory/intent"
)

// MinRecords is the minimum-data gate: with fewer observed records,
// prediction returns nothing rather than noise.
const MinRecords = 5

// DefaultLimit is the number of predictions returned.
const DefaultLimit = 3

// DefaultSnippetLines is the lines of file preview per prediction.
const DefaultSnippetLines = 15

// snippetByteLimit caps a snippet regardless of line count.
const snippetByteLimit = 4096

// halfLife controls recency decay: a file untouched for one half-life
// contributes half the frequency score.
const halfLife = time.Hour

// Weights are the scoring coefficients. Direct path matches dominate
// tag overlap, which dominates decayed frequency.
type Weights struct {
	Direct    float64
	Overlap   float64
	Frequency float64
}

// DefaultWeights returns the production coefficients.
func DefaultWeights() Weights {
	return Weights{Direct: 5.0, Overlap: 2.0, Frequency: 1.0}
}

// Source is the read side of the intent store the predictor scores
// against.
type Source interface {
	// Len is the hot-window record count.
	Len() int

	// Records returns the newest records, newest last (0 = all).
	Records(limit int) []intent.Record

	// PathCounts returns lifetime access counts by bare path.
	PathCounts() map[string]int
}

// Prediction is one ranked file.
type Prediction struct {
	// Path is the bare absolute path.
	Path string `json:"path"`

	// Confidence is the raw score normalized to the top score, in
	// (0, 1].
	Confidence float64 `json:"confidence"`

	// Snippet is a short preview of the file head; empty when the file
	// is unreadable.
	Snippet string `json:"snippet"`
}

// Predictor ranks files for a keyword set against the intent store.
//
// # Thread Safety
//
// Stateless apart from the source; safe for concurrent use.
type Predictor struct {
	source  Source
	weights Weights

	// now is swappable for tests.
	now func() time.Time
}

// NewPredictor creates a predictor over source. A nil weights pointer
// uses DefaultWeights.
func NewPredictor(source Source, weights *Weights) *Predictor {
	w := DefaultWeights()
	if weights != nil {
		w = *weights
	}
	return &Predictor{
		source:  source,
		weights: w,
		now:     time.Now,
	}
}

// candidate accumulates per-path evidence during the scoring pass.
type candidate struct {
	path     string
	lastSeen int64
	tags     map[string]struct{}
	score    float64
}

// Predict scores every observed file against the keyword set and
// returns the top predictions with snippets.
//
// # Description
//
// Raw score per file: Direct·direct_match + Overlap·tag_overlap +
// Frequency·log(1+freq)·recency, where recency decays exponentially
// with halfLife since the file's last access. Scores are normalized
// to the top raw score so the best file always reports confidence 1.
// Ties break toward the most recently accessed path, then
// lexicographically, keeping the ordering deterministic.
//
// # Inputs
//
//   - keywords: lowercase keyword set (see ExtractKeywords).
//   - limit: maximum predictions (<=0 uses DefaultLimit).
//   - snippetLines: preview length (<=0 uses DefaultSnippetLines).
//
// # Outputs
//
//   - Ranked predictions; empty when keywords are empty or fewer than
//     MinRecords records exist.
func (p *Predictor) Predict(keywords []string, limit, snippetLines int) []Prediction {
	if len(keywords) == 0 || p.source.Len() < MinRecords {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if snippetLines <= 0 {
		snippetLines = DefaultSnippetLines
	}

	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}

	cands := p.gather()
	if len(cands) == 0 {
		return nil
	}

	counts := p.source.PathCounts()
	now := p.now()

	for _, c := range cands {
		direct := 0.0
		overlap := 0.0
		lowerPath := strings.ToLower(c.path)
		for _, k := range lowered {
			if strings.Contains(lowerPath, k) {
				direct = 1.0
			}
			if _, ok := c.tags["#"+k]; ok {
				overlap++
			}
		}

		elapsed := now.Sub(time.Unix(c.lastSeen, 0))
		if elapsed < 0 {
			elapsed = 0
		}
		recency := math.Exp2(-elapsed.Hours() / halfLife.Hours())

		freq := float64(counts[c.path])
		c.score = p.weights.Direct*direct +
			p.weights.Overlap*overlap +
			p.weights.Frequency*math.Log(1+freq)*recency
	}

	ranked := make([]*candidate, 0, len(cands))
	for _, c := range cands {
		if c.score > 0 {
			ranked = append(ranked, c)
		}
	}
	if len(ranked) == 0 {
		return nil
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		if ranked[i].lastSeen != ranked[j].lastSeen {
			return ranked[i].lastSeen > ranked[j].lastSeen
		}
		return ranked[i].path < ranked[j].path
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	top := ranked[0].score
	out := make([]Prediction, len(ranked))
	for i, c := range ranked {
		out[i] = Prediction{
			Path:       c.path,
			Confidence: c.score / top,
			Snippet:    readSnippet(c.path, snippetLines),
		}
	}
	return out
}

// gather builds the candidate set from the hot window: per bare path,
// the last access time and the union of tags across its records.
func (p *Predictor) gather() map[string]*candidate {
	cands := make(map[string]*candidate)
	for _, rec := range p.source.Records(0) {
		for _, f := range rec.Files {
			if !intent.IsFileToken(f) {
				continue
			}
			path := intent.BasePath(f)
			c := cands[path]
			if c == nil {
				c = &candidate{path: path, tags: make(map[string]struct{})}
				cands[path] = c
			}
			if rec.Timestamp > c.lastSeen {
				c.lastSeen = rec.Timestamp
			}
			for _, t := range rec.Tags {
				c.tags[strings.ToLower(t)] = struct{}{}
			}
		}
	}
	return cands
}

// readSnippet returns the first n lines of path capped at
// snippetByteLimit. Unreadable files yield an empty snippet; prediction
// must not fail because a file moved.
func readSnippet(path string, n int) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	var b strings.Builder
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), snippetByteLimit)
	for i := 0; i < n && scanner.Scan(); i++ {
		line := scanner.Text()
		if b.Len()+len(line)+1 > snippetByteLimit {
			break
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
