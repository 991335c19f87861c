// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package predict ranks files the agent is likely to touch next and
// tracks how often those predictions hit.
package predict

import (
	"regexp"
	"strings"
)

// MaxKeywords caps the keyword set extracted from a prompt.
const MaxKeywords = 10

// minKeywordLen drops tokens too short to carry intent.
const minKeywordLen = 3

// stopwords are function words and common verbs that never help rank
// files.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "that": {}, "this": {}, "with": {}, "from": {}, "have": {}, "what": {}, "how": {},
	"can": {}, "you": {}, "are": {}, "please": {}, "help": {}, "want": {}, "need": {}, "make": {}, "use": {}, "get": {},
	"add": {}, "fix": {}, "update": {}, "change": {}, "create": {}, "delete": {}, "remove": {}, "show": {}, "find": {},
	"look": {}, "see": {}, "let": {}, "know": {}, "would": {}, "could": {}, "should": {}, "will": {}, "just": {},
	"like": {}, "also": {}, "more": {}, "some": {}, "any": {}, "all": {}, "new": {}, "now": {}, "about": {}, "into": {},
	"then": {}, "through": {}, "when": {}, "where": {}, "which": {}, "while": {}, "been": {}, "being": {}, "were": {},
	"they": {}, "them": {}, "their": {}, "there": {}, "these": {}, "those": {}, "your": {}, "yours": {}, "our": {},
	"has": {}, "had": {}, "does": {}, "did": {}, "doing": {}, "done": {}, "going": {}, "goes": {}, "went": {}, "come": {},
	"came": {}, "take": {}, "took": {}, "give": {}, "gave": {}, "made": {}, "said": {}, "tell": {}, "told": {}, "ask": {},
	"asked": {}, "why": {}, "yes": {}, "not": {}, "but": {}, "only": {}, "very": {}, "even": {}, "still": {}, "already": {},
	"again": {}, "back": {}, "here": {}, "over": {}, "under": {}, "before": {}, "after": {}, "between": {},
	"each": {}, "every": {}, "both": {}, "most": {}, "other": {}, "such": {}, "same": {}, "different": {}, "next": {},
	"first": {}, "last": {}, "many": {}, "much": {}, "few": {}, "less": {}, "own": {}, "way": {}, "thing": {}, "things": {},
	"something": {}, "anything": {}, "nothing": {}, "everything": {}, "someone": {}, "anyone": {}, "everyone": {},
	"watching": {}, "commands": {}, "command": {}, "run": {}, "running": {}, "work": {}, "working": {}, "works": {},
}

// wordRe matches identifier-like words.
var wordRe = regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)

// filenameRe matches file-like fragments in prose; the bare basename
// is a strong prediction signal.
var filenameRe = regexp.MustCompile(`([\w\-]+)\.(?:py|js|ts|tsx|md|json|yaml|yml)`)

// ExtractKeywords reduces a free-form prompt to the keyword set used
// for prediction: identifier-like words minus stopwords and short
// tokens, plus the basenames of any file-like fragments. First-seen
// order is preserved; the result is capped at MaxKeywords.
func ExtractKeywords(prompt string) []string {
	lower := strings.ToLower(prompt)

	var keywords []string
	seen := make(map[string]struct{})
	add := func(k string) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keywords = append(keywords, k)
	}

	for _, w := range wordRe.FindAllString(lower, -1) {
		if len(w) < minKeywordLen {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		add(w)
	}

	for _, m := range filenameRe.FindAllStringSubmatch(lower, -1) {
		if m[1] != "" {
			add(m[1])
		}
	}

	if len(keywords) > MaxKeywords {
		keywords = keywords[:MaxKeywords]
	}
	return keywords
}
