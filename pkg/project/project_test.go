// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_NotInitialized(t *testing.T) {
	root := t.TempDir()

	_, err := Load(root)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestInit_CreatesIdentity(t *testing.T) {
	root := t.TempDir()

	id, err := Init(root)
	require.NoError(t, err)
	assert.NotEmpty(t, id.ProjectID)
	assert.NotZero(t, id.CreatedAt)

	loaded, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, id.ProjectID, loaded.ProjectID)
}

func TestInit_Idempotent(t *testing.T) {
	root := t.TempDir()

	first, err := Init(root)
	require.NoError(t, err)

	second, err := Init(root)
	require.NoError(t, err)
	assert.Equal(t, first.ProjectID, second.ProjectID)
}

func TestLoad_CorruptIdentityIsAnError(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(Dir(root), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(Dir(root), "project.json"), []byte("{not json"), 0640))

	_, err := Load(root)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotInitialized)
}

func TestConfigSearchPath_ProjectDirFirst(t *testing.T) {
	root := t.TempDir()

	dirs := ConfigSearchPath(root)
	require.NotEmpty(t, dirs)
	assert.Equal(t, filepath.Join(root, ".spyglass", "config"), dirs[0])
}
