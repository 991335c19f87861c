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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/spyglass/cmd/spyglass/config"
	"github.com/AleutianAI/spyglass/pkg/logging"
	"github.com/AleutianAI/spyglass/pkg/project"
	"github.com/AleutianAI/spyglass/pkg/ux"
	"github.com/AleutianAI/spyglass/services/observatory"
)

// runServe starts the observatory for the current repository and
// blocks until SIGINT/SIGTERM. Misconfiguration exits non-zero;
// a signal-driven shutdown exits clean.
func runServe(cmd *cobra.Command, args []string) {
	if err := config.Load(); err != nil {
		ux.Errorf("failed to load configuration: %v", err)
		os.Exit(1)
	}

	root, err := os.Getwd()
	if err != nil {
		ux.Errorf("failed to resolve working directory: %v", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:   parseLogLevel(config.Global.Logging.Level),
		LogDir:  config.Global.Logging.Dir,
		Service: "observatory",
	})
	defer logger.Close()

	addr := config.Global.Server.ListenAddr
	if listenAddr != "" {
		addr = listenAddr
	}

	dataDir := config.Global.Server.DataDir
	if dataDir == "" {
		dataDir = project.DataDir(root)
	}

	identity, err := project.Load(root)
	if err != nil {
		// Serving without an identity still works; records just carry
		// no project namespace.
		logger.Warn("no project identity", "error", err)
	}

	svc, err := observatory.NewService(observatory.Config{
		ListenAddr:    addr,
		DataDir:       dataDir,
		ConfigDir:     project.Dir(root),
		SearchPath:    project.ConfigSearchPath(root),
		MaxRecords:    config.Global.Server.MaxRecords,
		EnableArchive: config.Global.Server.Archive && !noArchive,
		Logger:        logger.Slog(),
	})
	if err != nil {
		ux.Errorf("failed to start the observatory: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ux.Infof("observatory listening on %s (project %s)", addr, identity.ProjectID)
	if err := svc.Run(ctx); err != nil {
		logger.Error("observatory exited", "error", err)
		os.Exit(1)
	}
}

// parseLogLevel maps the config string to a logging level, defaulting
// to info.
func parseLogLevel(level string) logging.Level {
	switch level {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
