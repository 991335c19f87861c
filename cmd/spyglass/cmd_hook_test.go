// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/spyglass/services/observatory/predict"
)

func TestBuildPromptContext(t *testing.T) {
	ctx := buildPromptContext([]predict.Prediction{
		{Path: "/repo/cache/lru.go", Confidence: 1.0, Snippet: "package cache\n"},
		{Path: "/repo/cache/ttl.go", Confidence: 0.4},
	})

	assert.Contains(t, ctx, "- `/repo/cache/lru.go` (100%)")
	assert.Contains(t, ctx, "```\npackage cache\n```")
	assert.Contains(t, ctx, "- `/repo/cache/ttl.go` (40%)")
}
