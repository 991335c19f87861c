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

	"github.com/AleutianAI/spyglass/pkg/logging"
)

func TestShortPath(t *testing.T) {
	assert.Equal(t, "/repo/a.go", shortPath("/repo/a.go"))
	assert.Equal(t, "…/services/store/store.go",
		shortPath("/home/dev/src/spyglass/services/store/store.go"))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logging.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, logging.LevelWarn, parseLogLevel("warn"))
	assert.Equal(t, logging.LevelError, parseLogLevel("error"))
	assert.Equal(t, logging.LevelInfo, parseLogLevel("info"))
	assert.Equal(t, logging.LevelInfo, parseLogLevel(""))
	assert.Equal(t, logging.LevelInfo, parseLogLevel("bogus"))
}
