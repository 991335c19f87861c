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
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/spyglass/pkg/hookapi"
	"github.com/AleutianAI/spyglass/pkg/ux"
)

// runStats prints capture and prediction statistics for the local
// observatory.
func runStats(cmd *cobra.Command, args []string) {
	client := hookClient()
	ctx, cancel := context.WithTimeout(context.Background(), hookapi.DefaultReadTimeout)
	defer cancel()

	store, err := client.StoreStats(ctx)
	if err != nil {
		ux.Errorf("observatory unreachable (is `spyglass serve` running?): %v", err)
		os.Exit(1)
	}
	rolling, _ := client.Metrics(ctx)
	domains, _ := client.DomainStats(ctx)

	if statsJSON {
		out := map[string]any{
			"store":   store,
			"rolling": rolling,
			"domains": domains,
		}
		json.NewEncoder(os.Stdout).Encode(out) //nolint:errcheck
		return
	}

	fmt.Println(ux.Styles.Title.Render("Spyglass"))
	fmt.Printf("  %s %d records · %d files · %d tags\n",
		ux.IconBullet.Render(), store.TotalRecords, store.UniqueFiles, store.UniqueTags)
	fmt.Printf("  %s hit@5 %s over %d evaluated\n",
		ux.IconBullet.Render(), rolling.HitRateDisplay(), rolling.Evaluated)
	fmt.Printf("  %s %d domains · %d orphan tags\n",
		ux.IconBullet.Render(), domains.Domains, domains.OrphanCount)
	if domains.LearningPending {
		ux.Warnf("learning pending: run your synthesizer against /domains/orphans")
	}

	if len(store.TopFiles) > 0 {
		fmt.Println(ux.Styles.Subtitle.Render("  hot files"))
		for _, f := range store.TopFiles {
			fmt.Printf("    %s %s\n", ux.IconArrow.Render(), shortPath(f))
		}
	}
}

// shortPath trims a path for display, keeping the last three segments.
func shortPath(path string) string {
	parts := strings.Split(path, string(filepath.Separator))
	if len(parts) <= 4 {
		return path
	}
	return "…/" + filepath.Join(parts[len(parts)-3:]...)
}
