// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package predict

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractKeywords(t *testing.T) {
	keywords := ExtractKeywords("Please fix the auth token validation in the login flow")

	assert.Equal(t, []string{"auth", "token", "validation", "login", "flow"}, keywords)
}

func TestExtractKeywords_DropsShortTokens(t *testing.T) {
	keywords := ExtractKeywords("go db io redis")

	assert.Equal(t, []string{"redis"}, keywords)
}

func TestExtractKeywords_FileFragments(t *testing.T) {
	keywords := ExtractKeywords("refactor session_manager.py and cleanup")

	assert.Contains(t, keywords, "session_manager")
	assert.Contains(t, keywords, "cleanup")
}

func TestExtractKeywords_CapsAtTen(t *testing.T) {
	keywords := ExtractKeywords("alpha bravo charlie delta echo foxtrot golf hotel india juliett kilo lima")

	assert.Len(t, keywords, MaxKeywords)
	assert.Equal(t, "alpha", keywords[0])
	assert.NotContains(t, keywords, "kilo")
}

func TestExtractKeywords_DedupesPreservingOrder(t *testing.T) {
	keywords := ExtractKeywords("cache the cache layer cache")

	assert.Equal(t, []string{"cache", "layer"}, keywords)
}

func TestExtractKeywords_EmptyPrompt(t *testing.T) {
	assert.Empty(t, ExtractKeywords(""))
	assert.Empty(t, ExtractKeywords("the and for"))
}
