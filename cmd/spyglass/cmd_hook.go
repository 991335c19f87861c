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
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/AleutianAI/spyglass/cmd/spyglass/config"
	"github.com/AleutianAI/spyglass/pkg/hookapi"
	"github.com/AleutianAI/spyglass/pkg/logging"
	"github.com/AleutianAI/spyglass/pkg/project"
	"github.com/AleutianAI/spyglass/pkg/ux"
	"github.com/AleutianAI/spyglass/services/observatory/intent"
	"github.com/AleutianAI/spyglass/services/observatory/predict"
)

// maxEnvelopeBytes caps how much of the hook envelope is read. Tool
// responses can carry whole file bodies.
const maxEnvelopeBytes = 10 << 20

// hookLogger logs to file only. Hook stderr noise would end up in the
// agent's transcript.
func hookLogger() *logging.Logger {
	dir := ""
	if config.Load() == nil {
		dir = config.Global.Logging.Dir
	}
	return logging.New(logging.Config{
		Level:   logging.LevelWarn,
		LogDir:  dir,
		Service: "hook",
		Quiet:   true,
	})
}

// hookClient builds the observatory client from config/environment.
func hookClient() *hookapi.Client {
	baseURL := ""
	if config.Load() == nil {
		baseURL = config.Global.Hooks.URL
	}
	return hookapi.New(&hookapi.Options{BaseURL: baseURL})
}

// runHookTool captures one tool-call envelope from stdin.
//
// This runs inside the agent's tool loop, so it must cost nearly
// nothing and can never fail: every path returns normally (exit 0)
// and failures are at most logged to file.
func runHookTool(cmd *cobra.Command, args []string) {
	logger := hookLogger()
	defer logger.Close()

	raw, err := io.ReadAll(io.LimitReader(os.Stdin, maxEnvelopeBytes))
	if err != nil {
		logger.Warn("failed to read envelope", "error", err)
		return
	}

	rec, searchTags := intent.ParseEnvelope(raw)
	if rec.Tool == intent.ToolUnknown && len(rec.Files) == 0 {
		return
	}

	root, err := os.Getwd()
	if err != nil {
		root = "."
	}
	if identity, err := project.Load(root); err == nil {
		rec.ProjectID = identity.ProjectID
	}

	lib, err := intent.LoadLibrary(project.ConfigSearchPath(root))
	if err != nil {
		logger.Warn("pattern library unusable, falling back", "error", err)
		lib = intent.EmptyLibrary()
	}
	rec.Tags = intent.InferTags(rec.Files, rec.Tool, lib, searchTags)

	ctx, cancel := context.WithTimeout(context.Background(), hookapi.DefaultWriteTimeout)
	defer cancel()
	if err := hookClient().AppendIntent(ctx, rec); err != nil {
		logger.Warn("intent capture dropped", "error", err)
	}
}

// runHookPrompt predicts files for a user prompt, logs the prediction
// for hit tracking, and prints a one-line status. Same contract as
// runHookTool: always exits 0.
func runHookPrompt(cmd *cobra.Command, args []string) {
	logger := hookLogger()
	defer logger.Close()

	raw, err := io.ReadAll(io.LimitReader(os.Stdin, maxEnvelopeBytes))
	if err != nil {
		logger.Warn("failed to read envelope", "error", err)
		return
	}

	env := gjson.ParseBytes(raw)
	prompt := env.Get("prompt").String()
	sessionID := env.Get("session_id").String()

	keywords := predict.ExtractKeywords(prompt)
	if len(keywords) == 0 {
		return
	}

	client := hookClient()
	ctx, cancel := context.WithTimeout(context.Background(), hookapi.DefaultReadTimeout)
	defer cancel()

	preds, err := client.Predict(ctx, keywords, 5)
	if err != nil {
		logger.Warn("prediction unavailable", "error", err)
		return
	}
	if len(preds) == 0 {
		return
	}

	paths := make([]string, len(preds))
	for i, p := range preds {
		paths[i] = p.Path
	}
	if err := client.LogPrediction(ctx, sessionID, paths, nil, preds[0].Confidence); err != nil {
		logger.Warn("prediction log dropped", "error", err)
	}

	if ux.IsTTY() {
		if config.Load() == nil && !config.Global.Hooks.StatusLine {
			return
		}
		line := ux.RenderPredictionLine(ux.PredictionLine{
			Paths:      paths,
			Confidence: preds[0].Confidence,
		}, true)
		if line != "" {
			fmt.Println(line)
		}
		return
	}

	// Non-TTY stdout is the agent host: hand the predictions back as
	// prompt context.
	extra := ""
	if stats, err := client.DomainStats(ctx); err == nil && stats.LearningPending {
		extra = fmt.Sprintf(
			"\nSpyglass has %d unmapped activity tags awaiting domain synthesis (GET /domains/orphans).\n",
			stats.OrphanCount)
	}
	emitPromptContext(preds, extra)
}

// promptContext is the hook-output envelope the agent host consumes.
type promptContext struct {
	HookSpecificOutput struct {
		HookEventName     string `json:"hookEventName"`
		AdditionalContext string `json:"additionalContext"`
	} `json:"hookSpecificOutput"`
}

// buildPromptContext formats predictions as markdown for the agent.
func buildPromptContext(preds []predict.Prediction) string {
	var b strings.Builder
	b.WriteString("Files likely relevant to this prompt (observed activity):\n")
	for _, p := range preds {
		fmt.Fprintf(&b, "- `%s` (%.0f%%)\n", p.Path, p.Confidence*100)
		if p.Snippet != "" {
			fmt.Fprintf(&b, "```\n%s\n```\n", strings.TrimRight(p.Snippet, "\n"))
		}
	}
	return b.String()
}

// emitPromptContext prints the predictions as a JSON hook response so
// the agent sees the likely files before it starts searching.
func emitPromptContext(preds []predict.Prediction, extra string) {
	var out promptContext
	out.HookSpecificOutput.HookEventName = "UserPromptSubmit"
	out.HookSpecificOutput.AdditionalContext = buildPromptContext(preds) + extra
	json.NewEncoder(os.Stdout).Encode(out) //nolint:errcheck
}
