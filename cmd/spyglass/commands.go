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
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	listenAddr string // CLI override for server.listen_addr
	noArchive  bool   // disable the truncation archive for this run
	statsJSON  bool   // machine-readable stats output

	rootCmd = &cobra.Command{
		Use:   "spyglass",
		Short: "A local observatory for coding-agent activity",
		Long: `Spyglass watches the tool calls a coding agent makes in your
repository, learns which files and domains the work touches, and
predicts what a prompt is about to need.`,
	}

	// --- Service ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the observatory HTTP service",
		Run:   runServe, // Defined in cmd_serve.go
	}

	// --- Project ---
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Initialize Spyglass for the current repository",
		Run:   runInit, // Defined in cmd_init.go
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show capture and prediction statistics",
		Run:   runStats, // Defined in cmd_stats.go
	}

	// --- Agent hooks ---
	// The hook commands are wired into the agent's hook configuration
	// and must never fail the agent: they always exit 0.
	hookCmd = &cobra.Command{
		Use:    "hook",
		Short:  "Agent hook entrypoints (reads the hook envelope on stdin)",
		Hidden: true,
	}
	hookToolCmd = &cobra.Command{
		Use:   "tool",
		Short: "Capture a tool-call envelope as an intent record",
		Run:   runHookTool, // Defined in cmd_hook.go
	}
	hookPromptCmd = &cobra.Command{
		Use:   "prompt",
		Short: "Predict files for a user prompt and log the prediction",
		Run:   runHookPrompt, // Defined in cmd_hook.go
	}
)

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "bind address (overrides the config file)")
	serveCmd.Flags().BoolVar(&noArchive, "no-archive", false, "do not archive records truncated from the hot window")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "emit raw JSON instead of styled output")

	hookCmd.AddCommand(hookToolCmd, hookPromptCmd)
	rootCmd.AddCommand(serveCmd, initCmd, statsCmd, hookCmd)
}
