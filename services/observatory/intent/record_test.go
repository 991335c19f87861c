// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intent

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenClassification(t *testing.T) {
	assert.True(t, IsFileToken("/src/auth/login.py"))
	assert.True(t, IsFileToken("/src/auth/login.py:10-50"))
	assert.True(t, IsFileToken(`C:/Users/dev/main.go`))
	assert.False(t, IsFileToken("pattern:**/*.go"))
	assert.False(t, IsFileToken("cmd:aoa:indexed:aoa grep auth:3:12"))
	assert.False(t, IsFileToken("relative/path.go"))
	assert.False(t, IsFileToken(""))

	assert.True(t, IsPatternToken("pattern:**/*.go"))
	assert.True(t, IsCommandToken("cmd:aoa:tree:aoa tree:0:0"))
}

func TestBasePath(t *testing.T) {
	assert.Equal(t, "/a/b.py", BasePath("/a/b.py:10-50"))
	assert.Equal(t, "/a/b.py", BasePath("/a/b.py:100+"))
	assert.Equal(t, "/a/b.py", BasePath("/a/b.py"))
	// A bare colon-number with no range marker is not a line range.
	assert.Equal(t, "/a/b.py:10", BasePath("/a/b.py:10"))
}

func TestNormalize_DedupesAndCaps(t *testing.T) {
	rec := Record{
		Tool:  "Mystery",
		Files: []string{"/a.go", "/a.go", ""},
		Tags:  []string{"#x", "#x", "", "#y"},
	}
	for i := 0; i < 30; i++ {
		rec.Files = append(rec.Files, fmt.Sprintf("/f%d.go", i))
	}

	rec.Normalize()

	assert.Equal(t, ToolUnknown, rec.Tool)
	assert.Len(t, rec.Files, MaxFilesPerRecord)
	assert.Equal(t, "/a.go", rec.Files[0])
	assert.Equal(t, []string{"#x", "#y"}, rec.Tags)
}

func TestNormalize_KeepsKnownTools(t *testing.T) {
	for _, tool := range []string{ToolRead, ToolEdit, ToolWrite, ToolBash, ToolGrep, ToolGlob, ToolTask, ToolPredict} {
		rec := Record{Tool: tool}
		rec.Normalize()
		assert.Equal(t, tool, rec.Tool)
	}
}
