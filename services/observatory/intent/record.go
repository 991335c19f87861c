// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intent converts raw tool-call envelopes into normalized intent
// records and infers semantic tags from them.
//
// A Record is the unit of observation: one tool invocation by the coding
// agent, with the file tokens it touched, the tags inferred for it, and
// size metadata. Records are immutable once built; the store package
// persists them and maintains derived indices.
package intent

import (
	"regexp"
	"strings"
)

// Tool names from the agent's closed set. Anything else is recorded
// under ToolUnknown.
const (
	ToolRead    = "Read"
	ToolEdit    = "Edit"
	ToolWrite   = "Write"
	ToolBash    = "Bash"
	ToolGrep    = "Grep"
	ToolGlob    = "Glob"
	ToolTask    = "Task"
	ToolPredict = "Predict"
	ToolUnknown = "unknown"
)

// MaxFilesPerRecord caps the file tokens carried by a single record.
const MaxFilesPerRecord = 20

// Record is the normalized observation of one tool invocation.
type Record struct {
	// Timestamp is seconds since epoch, non-decreasing within a writer.
	Timestamp int64 `json:"timestamp"`

	// SessionID is the opaque session identifier supplied by the agent.
	SessionID string `json:"session_id"`

	// ProjectID namespaces records per repository.
	ProjectID string `json:"project_id,omitempty"`

	// Tool is the invoked tool name (see the Tool* constants).
	Tool string `json:"tool"`

	// ToolUseID is the agent's optional correlation id.
	ToolUseID string `json:"tool_use_id,omitempty"`

	// Files is the ordered, duplicate-free sequence of file tokens.
	// A token is an absolute path (optionally suffixed with a line
	// range), a "pattern:<glob>" search pattern, or a "cmd:aoa:..."
	// wrapped-search descriptor.
	Files []string `json:"files"`

	// Tags is the duplicate-free set of #-prefixed labels.
	Tags []string `json:"tags"`

	// FileSizes maps file tokens to their byte size at observation
	// time. Tokens whose files were unreadable are absent.
	FileSizes map[string]int64 `json:"file_sizes,omitempty"`

	// OutputSize is the bytes the tool returned to the agent (0 when
	// unknown).
	OutputSize int64 `json:"output_size,omitempty"`
}

// lineRangeRe matches a trailing ":START-END" or ":START+" line-range
// suffix on a path token.
var lineRangeRe = regexp.MustCompile(`:(\d+)(?:-\d+|\+)$`)

// IsPatternToken reports whether tok is a search-pattern token.
func IsPatternToken(tok string) bool {
	return strings.HasPrefix(tok, "pattern:")
}

// IsCommandToken reports whether tok is a wrapped-search command token.
func IsCommandToken(tok string) bool {
	return strings.HasPrefix(tok, "cmd:")
}

// IsFileToken reports whether tok names an absolute file path
// (possibly carrying a line-range suffix). Pattern and command tokens
// are not file tokens.
func IsFileToken(tok string) bool {
	if tok == "" || IsPatternToken(tok) || IsCommandToken(tok) {
		return false
	}
	return strings.HasPrefix(tok, "/") || isWindowsAbs(tok)
}

// BasePath strips a line-range suffix from a file token, returning the
// bare path. Non-file tokens are returned unchanged.
func BasePath(tok string) string {
	if loc := lineRangeRe.FindStringIndex(tok); loc != nil {
		return tok[:loc[0]]
	}
	return tok
}

// isWindowsAbs reports whether tok looks like a drive-letter absolute
// path ("C:/..."). Agents on Windows emit these.
func isWindowsAbs(tok string) bool {
	return len(tok) > 2 && tok[1] == ':' && (tok[2] == '/' || tok[2] == '\\')
}

// Normalize enforces the record invariants on externally supplied
// records: duplicate-free files capped at MaxFilesPerRecord,
// duplicate-free non-empty tags, unknown tool names mapped to
// ToolUnknown. Order is preserved (first occurrence wins).
func (r *Record) Normalize() {
	r.Files = dedupe(r.Files, MaxFilesPerRecord)

	tags := make([]string, 0, len(r.Tags))
	seen := make(map[string]struct{}, len(r.Tags))
	for _, t := range r.Tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	r.Tags = tags

	switch r.Tool {
	case ToolRead, ToolEdit, ToolWrite, ToolBash, ToolGrep, ToolGlob, ToolTask, ToolPredict:
	default:
		r.Tool = ToolUnknown
	}
}

// dedupe removes duplicates preserving first-seen order and caps the
// result at limit (0 means no cap).
func dedupe(in []string, limit int) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
