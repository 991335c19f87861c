// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/spyglass/pkg/project"
	"github.com/AleutianAI/spyglass/pkg/ux"
)

// runInit creates the per-repository identity. Idempotent: rerunning
// it reports the existing identity.
func runInit(cmd *cobra.Command, args []string) {
	root, err := os.Getwd()
	if err != nil {
		ux.Errorf("failed to resolve working directory: %v", err)
		os.Exit(1)
	}

	existing, loadErr := project.Load(root)
	if loadErr == nil {
		ux.Infof("already initialized (project %s)", existing.ProjectID)
		return
	}

	identity, err := project.Init(root)
	if err != nil {
		ux.Errorf("failed to initialize: %v", err)
		os.Exit(1)
	}

	ux.Successf("initialized %s (project %s)", project.Dir(root), identity.ProjectID)
	ux.Infof("run `spyglass serve` here to start capturing activity")
}
