// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package project manages per-repository Spyglass identity and the
// configuration search path.
//
// Each observed repository carries a `.spyglass/project.json` file holding
// an opaque project identifier. The identifier is generated once by
// `spyglass init` and read at startup by both the observatory service and
// the hook clients; it namespaces all captured activity.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ConfigDirName is the per-project Spyglass directory.
const ConfigDirName = ".spyglass"

// identityFile is the file under ConfigDirName holding the project identity.
const identityFile = "project.json"

// ErrNotInitialized is returned when a repository has no project.json.
var ErrNotInitialized = errors.New("project not initialized (run `spyglass init`)")

// Identity is the persisted per-repository identity.
type Identity struct {
	// ProjectID is an opaque identifier namespacing all captured activity.
	ProjectID string `json:"project_id"`

	// CreatedAt is when `spyglass init` ran, as unix seconds.
	CreatedAt int64 `json:"created_at"`
}

// Dir returns the Spyglass directory for a repository root.
func Dir(root string) string {
	return filepath.Join(root, ConfigDirName)
}

// Load reads the project identity from `<root>/.spyglass/project.json`.
//
// Returns ErrNotInitialized when the file does not exist. A malformed
// file is an error: identity corruption should be surfaced, not papered
// over with a fresh ID that would orphan all existing records.
func Load(root string) (Identity, error) {
	path := filepath.Join(Dir(root), identityFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Identity{}, ErrNotInitialized
		}
		return Identity{}, fmt.Errorf("read project identity: %w", err)
	}

	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return Identity{}, fmt.Errorf("parse project identity: %w", err)
	}
	if id.ProjectID == "" {
		return Identity{}, fmt.Errorf("parse project identity: empty project_id")
	}
	return id, nil
}

// Init creates `<root>/.spyglass/project.json` with a fresh UUID.
//
// Idempotent: if an identity already exists it is returned unchanged.
func Init(root string) (Identity, error) {
	if id, err := Load(root); err == nil {
		return id, nil
	} else if !errors.Is(err, ErrNotInitialized) {
		return Identity{}, err
	}

	id := Identity{
		ProjectID: uuid.NewString(),
		CreatedAt: time.Now().Unix(),
	}

	dir := Dir(root)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return Identity{}, fmt.Errorf("create project dir: %w", err)
	}

	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return Identity{}, fmt.Errorf("marshal project identity: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, identityFile), data, 0640); err != nil {
		return Identity{}, fmt.Errorf("write project identity: %w", err)
	}
	return id, nil
}

// ConfigSearchPath returns the ordered directories searched for
// configuration documents such as the pattern library:
// project config dir, then user config dir, then installed defaults.
func ConfigSearchPath(root string) []string {
	dirs := []string{filepath.Join(Dir(root), "config")}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ConfigDirName, "config"))
	}
	dirs = append(dirs, "/usr/local/share/spyglass")
	return dirs
}

// DataDir returns the directory where the observatory persists state
// for a repository (intent log, domain state, archive).
func DataDir(root string) string {
	return filepath.Join(Dir(root), "data")
}
