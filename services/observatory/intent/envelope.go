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
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// searchWrapper is the shell identifier of the wrapped-search CLI the
// parser recognizes inside Bash commands.
const searchWrapper = "aoa"

// maxSearchTermLen caps the captured search term.
const maxSearchTermLen = 40

// maxSearchTagLen caps the sanitized #term tag derived from a search.
const maxSearchTagLen = 20

// resultExtensions is the closed extension set accepted for search
// result paths and command-line path extraction.
const resultExtensions = `py|js|ts|tsx|jsx|go|rs|java|cpp|c|h|md|json|yaml|yml|sh|sql`

var (
	// wrappedSearchRe matches one wrapped-search invocation inside a
	// shell command: the wrapper, a subcommand, an optional short flag,
	// and an optional term up to a command separator or end of string.
	wrappedSearchRe = regexp.MustCompile(
		`\b` + searchWrapper +
			`\s+(grep|egrep|find|tree|locate|head|tail|lines|hot|touched|focus|predict|outline|search|multi|pattern)` +
			`(?:\s+(-[a-zA-Z]))?(?:\s+(.+?))?(?:\s*$|\s*\||\s*&&|\s*;|\s*2>)`)

	// ansiRe strips terminal color escapes before scanning output.
	ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

	// hitsRe matches the "N hits │ Tms" summary emitted by indexed
	// searches. Both the box-drawing and plain pipe separators occur.
	hitsRe = regexp.MustCompile(`(\d+)\s*hits?\s*[│|]\s*([\d.]+)(?:ms)?`)

	// matchedRe matches the "N matched, Tms" summary of pattern
	// searches.
	matchedRe = regexp.MustCompile(`(\d+)\s*matched,\s*([\d.]+)(?:ms)?`)

	// resultLineRe matches indented "path:linenum" result lines in
	// search output, restricted to the closed extension set.
	resultLineRe = regexp.MustCompile(`(?m)^[ \t]+([\w\-./]+\.(?:` + resultExtensions + `)):\d+`)

	// cmdPathRe matches absolute paths with at least one embedded
	// directory component inside a shell command.
	cmdPathRe = regexp.MustCompile(`/[\w\-]+(?:/[\w.\-]+)+\.(?:` + resultExtensions + `)\b`)

	// searchTagSanitizeRe keeps only word characters and dashes when a
	// search term becomes a tag.
	searchTagSanitizeRe = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

// ParseEnvelope converts a raw tool-call envelope into a Record plus
// any search-derived tags captured from wrapped-search output.
//
// The envelope is the JSON document the agent hands to hook processes:
// tool_name, session_id, optional tool_use_id, tool_input, and an
// optional tool_response (string or object). Parsing is pure and never
// fails: a malformed envelope yields an empty record so capture can
// continue.
//
// The returned search tags are merged into the record's tag set by
// InferTags; they are kept separate here because inference also needs
// the record's files.
func ParseEnvelope(raw []byte) (Record, []string) {
	rec := Record{Timestamp: time.Now().Unix(), Tool: ToolUnknown}

	if !gjson.ValidBytes(raw) {
		return rec, nil
	}
	env := gjson.ParseBytes(raw)

	if tool := env.Get("tool_name"); tool.Exists() {
		rec.Tool = tool.String()
	} else if tool := env.Get("tool"); tool.Exists() {
		rec.Tool = tool.String()
	}
	rec.SessionID = env.Get("session_id").String()
	rec.ToolUseID = env.Get("tool_use_id").String()

	files, searchTags := extractFiles(env)
	rec.Files = files
	rec.FileSizes = statSizes(files)
	rec.OutputSize = outputSize(env.Get("tool_response"))
	return rec, searchTags
}

// extractFiles applies the extraction rules in order: direct path
// keys, path arrays, shell command scanning, and search patterns.
// Tokens are deduplicated preserving first-seen order and capped at
// MaxFilesPerRecord.
func extractFiles(env gjson.Result) ([]string, []string) {
	var files, searchTags []string
	input := env.Get("tool_input")

	// Rule 1: direct file-path keys, with partial-read line ranges.
	for _, key := range []string{"file_path", "path", "file", "notebook_path"} {
		val := input.Get(key)
		if val.Type != gjson.String || val.String() == "" {
			continue
		}
		tok := val.String()
		offset := input.Get("offset")
		limit := input.Get("limit")
		switch {
		case offset.Exists() && limit.Exists():
			tok = fmt.Sprintf("%s:%d-%d", tok, offset.Int(), offset.Int()+limit.Int())
		case offset.Exists():
			tok = fmt.Sprintf("%s:%d+", tok, offset.Int())
		}
		files = append(files, tok)
	}

	// Rule 2: explicit path arrays.
	input.Get("paths").ForEach(func(_, p gjson.Result) bool {
		if p.Type == gjson.String && p.String() != "" {
			files = append(files, p.String())
		}
		return true
	})

	// Rule 3: shell commands.
	if cmd := input.Get("command"); cmd.Type == gjson.String {
		cmdFiles, tags := extractFromCommand(cmd.String(), env.Get("tool_response"))
		files = append(files, cmdFiles...)
		searchTags = append(searchTags, tags...)
	}

	// Rule 4: search patterns.
	if pattern := input.Get("pattern"); pattern.Type == gjson.String {
		p := pattern.String()
		if strings.ContainsAny(p, "/*") {
			files = append(files, "pattern:"+p)
		}
	}

	return dedupe(files, MaxFilesPerRecord), dedupe(searchTags, 0)
}

// extractFromCommand scans a shell command for wrapped-search
// invocations and bare absolute paths.
func extractFromCommand(cmd string, response gjson.Result) ([]string, []string) {
	var files, searchTags []string

	respText := responseText(response)

	// The last invocation is the real command; earlier matches are
	// usually echo text quoting the syntax.
	if matches := wrappedSearchRe.FindAllStringSubmatch(cmd, -1); len(matches) > 0 {
		m := matches[len(matches)-1]
		sub, flag := m[1], m[2]
		term := strings.Trim(strings.TrimSpace(m[3]), `"'`)
		if len(term) > maxSearchTermLen {
			term = term[:maxSearchTermLen]
		}

		searchType := classifySearch(sub, flag, term)

		display := searchWrapper + " " + sub
		if flag != "" {
			display += " " + flag
		}
		if term != "" {
			display += " " + term
		}
		escaped := strings.ReplaceAll(display, ":", `\:`)

		clean := ansiRe.ReplaceAllString(respText, "")
		hits, timeMs := "0", "0"
		if hm := hitsRe.FindStringSubmatch(clean); hm != nil {
			hits, timeMs = hm[1], hm[2]
		} else if pm := matchedRe.FindStringSubmatch(clean); pm != nil {
			hits, timeMs = pm[1], pm[2]
		}

		files = append(files, fmt.Sprintf("cmd:%s:%s:%s:%s:%s", searchWrapper, searchType, escaped, hits, timeMs))

		// Search hits carry the result paths the agent just saw;
		// clustering them under the search term feeds prediction.
		if n, _ := strconv.Atoi(hits); n > 0 {
			var results []string
			for _, rm := range resultLineRe.FindAllStringSubmatch(clean, -1) {
				results = append(results, rm[1])
			}
			results = dedupe(results, MaxFilesPerRecord)
			files = append(files, results...)

			if term != "" && len(results) > 0 {
				if tag := sanitizeSearchTag(term); tag != "" {
					searchTags = append(searchTags, "#"+tag)
				}
			}
		}
	}

	// Bare absolute paths mentioned anywhere in the command.
	for _, m := range cmdPathRe.FindAllString(cmd, -1) {
		if len(m) > 5 && strings.Contains(m[1:], "/") {
			files = append(files, m)
		}
	}

	return files, searchTags
}

// classifySearch maps a wrapped-search subcommand, flag, and term to
// the search-type recorded in the command token.
func classifySearch(sub, flag, term string) string {
	switch sub {
	case "grep":
		switch {
		case flag == "-a":
			return "multi-and"
		case flag == "-E":
			return "regex"
		case strings.ContainsAny(term, " |"):
			return "multi-or"
		default:
			return "indexed"
		}
	case "egrep":
		return "regex"
	case "multi":
		return "multi-and"
	default:
		return sub
	}
}

// sanitizeSearchTag reduces a search term to a short word-character
// tag. Multi-word terms contribute only their first word.
func sanitizeSearchTag(term string) string {
	if i := strings.IndexByte(term, ' '); i >= 0 {
		term = term[:i]
	}
	tag := searchTagSanitizeRe.ReplaceAllString(term, "")
	if len(tag) > maxSearchTagLen {
		tag = tag[:maxSearchTagLen]
	}
	return tag
}

// responseText flattens a tool_response into scannable text. Object
// responses carry their useful output under stdout or output.
func responseText(response gjson.Result) string {
	switch response.Type {
	case gjson.String:
		return response.String()
	case gjson.JSON:
		if s := response.Get("stdout"); s.Type == gjson.String {
			return s.String()
		}
		if s := response.Get("output"); s.Type == gjson.String {
			return s.String()
		}
		return response.Raw
	default:
		return ""
	}
}

// outputSize derives the byte size of what the tool returned: string
// length, content-string length, or the size of the canonical JSON
// encoding.
func outputSize(response gjson.Result) int64 {
	switch response.Type {
	case gjson.String:
		return int64(len(response.String()))
	case gjson.JSON:
		if c := response.Get("content"); c.Type == gjson.String {
			return int64(len(c.String()))
		}
		return int64(len(response.Raw))
	default:
		return 0
	}
}

// statSizes stats each absolute-path file token (line ranges stripped)
// and records its byte length. Unreadable files are omitted; size
// enrichment is best-effort.
func statSizes(files []string) map[string]int64 {
	var sizes map[string]int64
	for _, tok := range files {
		if !IsFileToken(tok) {
			continue
		}
		info, err := os.Stat(BasePath(tok))
		if err != nil || info.IsDir() {
			continue
		}
		if sizes == nil {
			sizes = make(map[string]int64)
		}
		sizes[tok] = info.Size()
	}
	return sizes
}
