// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderPredictionLine_Plain(t *testing.T) {
	line := RenderPredictionLine(PredictionLine{
		Paths:      []string{"/repo/cache/lru.go", "/repo/cache/ttl.go"},
		Confidence: 0.85,
		HitRate:    "73%",
	}, false)

	assert.Equal(t, "likely: lru.go, ttl.go (85%) · hit@5 73%", line)
}

func TestRenderPredictionLine_CapsPaths(t *testing.T) {
	line := RenderPredictionLine(PredictionLine{
		Paths:      []string{"/a/one.go", "/a/two.go", "/a/three.go", "/a/four.go"},
		Confidence: 1.0,
	}, false)

	assert.Contains(t, line, "one.go, two.go, three.go")
	assert.NotContains(t, line, "four.go")
}

func TestRenderPredictionLine_EmptyIsSilent(t *testing.T) {
	assert.Empty(t, RenderPredictionLine(PredictionLine{}, false))
	assert.Empty(t, RenderPredictionLine(PredictionLine{}, true))
}

func TestRenderPredictionLine_StyledContainsContent(t *testing.T) {
	line := RenderPredictionLine(PredictionLine{
		Paths:      []string{"/repo/svc/auth.py"},
		Confidence: 0.5,
	}, true)

	assert.Contains(t, line, "auth.py")
	assert.Contains(t, line, "50%")
}
