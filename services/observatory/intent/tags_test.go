// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tokens := Tokenize("/src/auth/LoginService.py")

	assert.Contains(t, tokens, "src")
	assert.Contains(t, tokens, "auth")
	assert.Contains(t, tokens, "loginservice")
	assert.Contains(t, tokens, "login")
	assert.Contains(t, tokens, "service")
	assert.Contains(t, tokens, "py")
}

func TestTokenize_AcronymBoundary(t *testing.T) {
	tokens := Tokenize("HTTPServer2")

	assert.Contains(t, tokens, "http")
	assert.Contains(t, tokens, "server")
	assert.Contains(t, tokens, "2")
}

func TestInferTags_ToolAndDomainAndSuffix(t *testing.T) {
	lib := testLibrary(t)

	tags := InferTags([]string{"/src/auth/login_service.py"}, ToolEdit, lib, nil)

	assert.Contains(t, tags, "#editing")
	assert.Contains(t, tags, "@authentication")
	assert.Contains(t, tags, "#service")
}

func TestInferTags_PrefixMatch(t *testing.T) {
	lib := testLibrary(t)

	// "sessionmanager" carries the "session" match as a prefix.
	tags := InferTags([]string{"/src/core/sessionmanager.go"}, ToolRead, lib, nil)

	assert.Contains(t, tags, "@authentication")
	assert.Contains(t, tags, "#manager")
}

func TestInferTags_FallbackOnlyWhenNoDomainMatch(t *testing.T) {
	lib := testLibrary(t)

	// Domain matched: the generic table must stay silent even though
	// "login" would also trip the fallback #authentication entry.
	tags := InferTags([]string{"/src/auth/login.py"}, ToolRead, lib, nil)
	assert.Contains(t, tags, "@authentication")
	assert.NotContains(t, tags, "#security")

	// Nothing else matched: fallback fills in.
	tags = InferTags([]string{"/src/jobs/retry_error.py"}, ToolRead, EmptyLibrary(), nil)
	assert.Contains(t, tags, "#errors")
}

func TestInferTags_SuffixSuppressesFallback(t *testing.T) {
	// The basename carries a class suffix, so the generic table must
	// not run even though "error" and "handler" would both trip it.
	tags := InferTags([]string{"/src/handlers/error_handler.go"}, ToolRead, EmptyLibrary(), nil)

	assert.Equal(t, []string{"#handler", "#reading"}, tags)
}

func TestInferTags_FallbackFirstMatchWins(t *testing.T) {
	// "api_error" trips both the #api and #errors entries; only the
	// earlier table entry may contribute.
	tags := InferTags([]string{"/src/api_error.py"}, ToolRead, EmptyLibrary(), nil)

	assert.Contains(t, tags, "#api")
	assert.NotContains(t, tags, "#errors")
}

func TestInferTags_SkipsPatternAndCommandTokens(t *testing.T) {
	tags := InferTags([]string{
		"pattern:**/auth/*.py",
		"cmd:aoa:indexed:aoa grep auth:3:12",
	}, ToolBash, testLibrary(t), nil)

	assert.NotContains(t, tags, "@authentication")
	assert.Contains(t, tags, "#executing")
}

func TestInferTags_MergesSearchTags(t *testing.T) {
	tags := InferTags(nil, ToolBash, EmptyLibrary(), []string{"#authFlow"})

	assert.Contains(t, tags, "#executing")
	assert.Contains(t, tags, "#authFlow")
}

func TestInferTags_Deterministic(t *testing.T) {
	lib := testLibrary(t)
	files := []string{"/src/auth/login_service.py", "/src/billing/payment_store.go"}

	first := InferTags(files, ToolEdit, lib, []string{"#x"})
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, InferTags(files, ToolEdit, lib, []string{"#x"}))
	}
}

func TestInferTags_UnknownToolHasNoActionTag(t *testing.T) {
	tags := InferTags([]string{"/src/auth/login.py"}, ToolUnknown, testLibrary(t), nil)

	assert.NotContains(t, tags, "#reading")
	assert.Contains(t, tags, "@authentication")
}

func TestToolTag(t *testing.T) {
	assert.Equal(t, "#searching", ToolTag(ToolGrep))
	assert.Equal(t, "#searching", ToolTag(ToolGlob))
	assert.Equal(t, "", ToolTag(ToolUnknown))
}
