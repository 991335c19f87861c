// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package intent

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// toolTags maps each tool to its action tag.
var toolTags = map[string]string{
	ToolRead:    "#reading",
	ToolEdit:    "#editing",
	ToolWrite:   "#creating",
	ToolBash:    "#executing",
	ToolGrep:    "#searching",
	ToolGlob:    "#searching",
	ToolTask:    "#delegating",
	ToolPredict: "#predicting",
}

// fallbackPatterns is the generic pattern table applied only when
// neither the domain library nor the class suffixes contributed
// anything; the first matching entry wins. Each entry pairs a compiled
// regex with the tags it implies.
var fallbackPatterns = []struct {
	re   *regexp.Regexp
	tags []string
}{
	{regexp.MustCompile(`(?i)auth|login|session|oauth|jwt|password`), []string{"#authentication", "#security"}},
	{regexp.MustCompile(`(?i)test[s]?[/_]|_test\.|\bspec[s]?\b|pytest|unittest`), []string{"#testing"}},
	{regexp.MustCompile(`(?i)config|settings|\.env|\.yaml|\.yml|\.json`), []string{"#configuration"}},
	{regexp.MustCompile(`(?i)api|endpoint|route|handler|controller`), []string{"#api"}},
	{regexp.MustCompile(`(?i)index|search|query|grep|find`), []string{"#search"}},
	{regexp.MustCompile(`(?i)model|schema|entity|db|database|migration|sql`), []string{"#data"}},
	{regexp.MustCompile(`(?i)component|view|template|page|ui|style|css|html`), []string{"#frontend"}},
	{regexp.MustCompile(`(?i)deploy|docker|k8s|ci|cd|pipeline|github`), []string{"#devops"}},
	{regexp.MustCompile(`(?i)error|exception|catch|throw|raise|fail`), []string{"#errors"}},
	{regexp.MustCompile(`(?i)log|debug|trace|print|console`), []string{"#logging"}},
	{regexp.MustCompile(`(?i)cache|redis|memory|store`), []string{"#caching"}},
	{regexp.MustCompile(`(?i)async|await|promise|thread|concurrent`), []string{"#async"}},
	{regexp.MustCompile(`(?i)hook|plugin|extension|middleware`), []string{"#hooks"}},
	{regexp.MustCompile(`(?i)doc|readme|comment|docstring`), []string{"#documentation"}},
	{regexp.MustCompile(`(?i)util|helper|common|shared|lib`), []string{"#utilities"}},
}

// segmentRe splits a token on path, word, and whitespace separators.
var segmentRe = regexp.MustCompile(`[/_\-.\s]+`)

// minSubstringMatch is the shortest match string considered by the
// substring pass. Shorter matches only apply on token boundaries,
// otherwise "db" would tag half the tree.
const minSubstringMatch = 4

// Tokenize splits text into lowercase matchable parts: path segments
// plus their camelCase constituents.
func Tokenize(text string) []string {
	seen := make(map[string]struct{})
	var tokens []string
	add := func(t string) {
		t = strings.ToLower(t)
		if t == "" {
			return
		}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		tokens = append(tokens, t)
	}
	for _, part := range segmentRe.Split(text, -1) {
		if part == "" {
			continue
		}
		add(part)
		for _, cp := range splitCamel(part) {
			add(cp)
		}
	}
	return tokens
}

// splitCamel breaks a segment at camelCase boundaries: lower-to-upper
// transitions, acronym ends (the "PS" boundary in "HTTPServer"), and
// letter/digit transitions.
func splitCamel(s string) []string {
	var words []string
	runes := []rune(s)
	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		split := false
		switch {
		case isLower(prev) && isUpper(cur):
			split = true
		case isUpper(prev) && isUpper(cur) && i+1 < len(runes) && isLower(runes[i+1]):
			split = true
		case isDigit(prev) != isDigit(cur):
			split = true
		}
		if split {
			words = append(words, string(runes[start:i]))
			start = i
		}
	}
	words = append(words, string(runes[start:]))
	return words
}

func isLower(r rune) bool { return r >= 'a' && r <= 'z' }
func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// InferTags derives the tag set for a record from its file tokens, the
// invoked tool, and the domain library.
//
// Description:
//
//	The tool contributes its action tag. File tokens (pattern: and
//	cmd: tokens excluded) are tokenized and matched against the domain
//	library, exact and prefix on tokens plus a substring pass over the
//	combined path text. Each file contributes at most one class-suffix
//	tag from its basename. If nothing beyond the tool tag matched, the
//	first matching entry of the generic fallback table contributes its
//	tags. Search-derived tags are merged last.
//
// Inputs:
//   - files: the record's file tokens.
//   - tool: the invoked tool name.
//   - lib: the active domain library (never nil; use EmptyLibrary).
//   - searchTags: tags extracted from wrapped-search output.
//
// Outputs:
//   - A sorted, duplicate-free tag slice. Sorting keeps inference
//     deterministic for identical input.
func InferTags(files []string, tool string, lib *Library, searchTags []string) []string {
	tags := make(map[string]struct{})
	if t, ok := toolTags[tool]; ok {
		tags[t] = struct{}{}
	}

	var combined strings.Builder
	for _, f := range files {
		if IsPatternToken(f) || IsCommandToken(f) {
			continue
		}
		combined.WriteByte(' ')
		combined.WriteString(f)
	}
	text := strings.ToLower(combined.String())
	tokens := Tokenize(text)

	domainMatched := false

	// Exact and prefix matches on individual tokens.
	for _, tok := range tokens {
		if name, ok := lib.LookupPrefix(tok); ok {
			tags[name] = struct{}{}
			domainMatched = true
		}
	}

	// Substring pass over the combined text catches match strings that
	// span separator boundaries ("ratelimit" in "rate_limit" tokenizes
	// apart).
	for _, m := range lib.MatchStrings() {
		if len(m) < minSubstringMatch {
			continue
		}
		if strings.Contains(text, m) {
			if name, ok := lib.DomainFor(m); ok {
				tags[name] = struct{}{}
				domainMatched = true
			}
		}
	}

	// One class-suffix tag per file.
	suffixMatched := false
	for _, f := range files {
		if !IsFileToken(f) {
			continue
		}
		base := strings.ToLower(filepath.Base(BasePath(f)))
		if i := strings.LastIndexByte(base, '.'); i > 0 {
			base = base[:i]
		}
		for _, cs := range classSuffixes {
			if strings.HasSuffix(base, cs.suffix) {
				tags[cs.tag] = struct{}{}
				suffixMatched = true
				break
			}
		}
	}

	// Fallback only when nothing beyond the tool tag matched, and only
	// the first matching entry contributes.
	if !domainMatched && !suffixMatched && text != "" {
		for _, fp := range fallbackPatterns {
			if fp.re.MatchString(text) {
				for _, t := range fp.tags {
					tags[t] = struct{}{}
				}
				break
			}
		}
	}

	for _, t := range searchTags {
		if t != "" {
			tags[t] = struct{}{}
		}
	}

	out := make([]string, 0, len(tags))
	for t := range tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ToolTag returns the action tag for a tool, or "" when the tool has
// none.
func ToolTag(tool string) string {
	return toolTags[tool]
}
