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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LibraryFileName is the pattern-library document searched for on the
// configuration path.
const LibraryFileName = "domains.json"

// Domain is one named cluster of semantic terms, e.g. "@authentication".
type Domain struct {
	// Name is the domain tag, beginning with "@".
	Name string `json:"name"`

	// Terms maps a semantic term to its match strings. Documents may
	// also supply a flat list of matches; those are folded into a
	// single "" term at load time.
	Terms map[string][]string `json:"terms"`

	// LastTouched is maintained by the domain learner (unix seconds of
	// the last record any term of this domain matched).
	LastTouched int64 `json:"last_touched,omitempty"`

	// StaleCycles counts consecutive tuning cycles with no matches.
	StaleCycles int `json:"stale_cycles,omitempty"`
}

// UnmarshalJSON accepts both term formats: a mapping of
// semantic_term -> [matches] (preferred) and a flat match list.
func (d *Domain) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name        string          `json:"name"`
		Terms       json.RawMessage `json:"terms"`
		LastTouched int64           `json:"last_touched"`
		StaleCycles int             `json:"stale_cycles"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Name = raw.Name
	d.LastTouched = raw.LastTouched
	d.StaleCycles = raw.StaleCycles
	d.Terms = map[string][]string{}

	if len(raw.Terms) == 0 {
		return nil
	}

	var asMap map[string][]string
	if err := json.Unmarshal(raw.Terms, &asMap); err == nil {
		d.Terms = asMap
		return nil
	}

	var asList []string
	if err := json.Unmarshal(raw.Terms, &asList); err == nil {
		d.Terms[""] = asList
		return nil
	}

	return fmt.Errorf("domain %q: terms must be a mapping or a list", raw.Name)
}

// Matches returns all match strings of the domain, lowercased, in
// sorted-term order so the derived reverse index is deterministic.
func (d Domain) Matches() []string {
	terms := make([]string, 0, len(d.Terms))
	for term := range d.Terms {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	var out []string
	for _, term := range terms {
		for _, m := range d.Terms[term] {
			out = append(out, strings.ToLower(m))
		}
	}
	return out
}

// Library is the immutable pattern library: ordered domains plus the
// derived reverse index match -> domain name.
//
// A Library is never mutated after construction. Domain additions from
// the learner build a new Library via WithDomains and the holder swaps
// the reference atomically.
type Library struct {
	domains []Domain
	reverse map[string]string
	// matches holds the reverse-index keys in definition order, for
	// deterministic prefix scans.
	matches []string
}

// libraryDocument is the on-disk shape: either a bare array of domains
// or an object wrapping them.
type libraryDocument struct {
	Domains []Domain        `json:"domains"`
	Meta    json.RawMessage `json:"_meta,omitempty"`
}

// NewLibrary builds a library from domains. Match strings are
// lowercased; reverse-index collisions resolve in favor of the first
// domain defined.
func NewLibrary(domains []Domain) *Library {
	lib := &Library{
		domains: domains,
		reverse: make(map[string]string),
	}
	for _, d := range domains {
		for _, m := range d.Matches() {
			if m == "" {
				continue
			}
			if _, taken := lib.reverse[m]; taken {
				continue
			}
			lib.reverse[m] = d.Name
			lib.matches = append(lib.matches, m)
		}
	}
	return lib
}

// EmptyLibrary returns a library with no domains. Tag inference
// degrades to tool-action and fallback tags only.
func EmptyLibrary() *Library {
	return NewLibrary(nil)
}

// LoadLibrary discovers and parses the pattern-library document on the
// ordered search path. A missing document yields an empty library; a
// malformed document is an error so misconfiguration is visible at
// startup.
func LoadLibrary(searchPath []string) (*Library, error) {
	for _, dir := range searchPath {
		path := filepath.Join(dir, LibraryFileName)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read pattern library %s: %w", path, err)
		}
		return ParseLibrary(data)
	}
	return EmptyLibrary(), nil
}

// ParseLibrary parses a pattern-library document: either an array of
// domains or an object {domains: [...], _meta: ...}.
func ParseLibrary(data []byte) (*Library, error) {
	var domains []Domain
	if err := json.Unmarshal(data, &domains); err == nil {
		return NewLibrary(domains), nil
	}

	var doc libraryDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse pattern library: %w", err)
	}
	return NewLibrary(doc.Domains), nil
}

// Domains returns the library's domains in definition order.
func (l *Library) Domains() []Domain {
	return l.domains
}

// Len returns the number of domains.
func (l *Library) Len() int {
	return len(l.domains)
}

// Lookup returns the domain name for an exact match string.
func (l *Library) Lookup(token string) (string, bool) {
	name, ok := l.reverse[token]
	return name, ok
}

// LookupPrefix returns the domain whose match string is a prefix of
// token (exact matches included). The first matching entry in
// definition order wins, keeping inference deterministic.
func (l *Library) LookupPrefix(token string) (string, bool) {
	if name, ok := l.reverse[token]; ok {
		return name, ok
	}
	for _, m := range l.matches {
		if strings.HasPrefix(token, m) {
			return l.reverse[m], true
		}
	}
	return "", false
}

// MatchStrings returns the reverse-index keys in definition order.
// Used by the substring pass of tag inference and by the learner's
// match-rate tuning.
func (l *Library) MatchStrings() []string {
	return l.matches
}

// DomainFor returns the domain name owning a match string.
func (l *Library) DomainFor(match string) (string, bool) {
	name, ok := l.reverse[match]
	return name, ok
}

// HasDomain reports whether a domain with the given name exists.
func (l *Library) HasDomain(name string) bool {
	for _, d := range l.domains {
		if d.Name == name {
			return true
		}
	}
	return false
}

// WithDomains returns a new library containing the receiver's domains
// followed by the additions. The receiver is unchanged.
func (l *Library) WithDomains(additions []Domain) *Library {
	merged := make([]Domain, 0, len(l.domains)+len(additions))
	merged = append(merged, l.domains...)
	merged = append(merged, additions...)
	return NewLibrary(merged)
}

// WithoutMatches returns a new library with the given match strings
// removed from every domain, and any domain left with no matches
// dropped. Used by tuning when pruning over-broad terms.
func (l *Library) WithoutMatches(remove map[string]struct{}) *Library {
	var kept []Domain
	for _, d := range l.domains {
		nd := Domain{
			Name:        d.Name,
			Terms:       map[string][]string{},
			LastTouched: d.LastTouched,
			StaleCycles: d.StaleCycles,
		}
		total := 0
		for term, matches := range d.Terms {
			var surviving []string
			for _, m := range matches {
				if _, gone := remove[strings.ToLower(m)]; gone {
					continue
				}
				surviving = append(surviving, m)
			}
			if len(surviving) > 0 {
				nd.Terms[term] = surviving
				total += len(surviving)
			}
		}
		if total > 0 {
			kept = append(kept, nd)
		}
	}
	return NewLibrary(kept)
}

// classSuffixes maps file basename suffixes to tags. At most one
// suffix tag is contributed per file token.
var classSuffixes = []struct {
	suffix string
	tag    string
}{
	{"service", "#service"},
	{"controller", "#controller"},
	{"repository", "#repository"},
	{"handler", "#handler"},
	{"manager", "#manager"},
	{"store", "#store"},
	{"client", "#client"},
	{"worker", "#worker"},
}
