// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package hookapi is the thin HTTP client the agent hooks use to talk
// to the local observatory.
//
// The hooks run inside the agent's tool-call path, so the client is
// built to never hold the agent up: short timeouts, no retries, and
// callers are expected to discard errors on the capture path. A dead
// observatory must cost the agent nothing but the timeout.
package hookapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/spyglass/services/observatory/intent"
	"github.com/AleutianAI/spyglass/services/observatory/predict"
)

// DefaultBaseURL is the loopback observatory address.
const DefaultBaseURL = "http://127.0.0.1:8080"

// EnvBaseURL overrides the observatory address when set.
const EnvBaseURL = "SPYGLASS_URL"

// DefaultWriteTimeout bounds fire-and-forget writes (intent capture,
// prediction log/check).
const DefaultWriteTimeout = 2 * time.Second

// DefaultReadTimeout bounds reads the hook displays to the user
// (predictions, metrics).
const DefaultReadTimeout = 2 * time.Second

// Client talks to the observatory over HTTP.
//
// # Thread Safety
//
// Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// Options configures the client.
type Options struct {
	// BaseURL of the observatory. Empty uses EnvBaseURL, then
	// DefaultBaseURL.
	BaseURL string

	// Timeout for all requests. 0 uses DefaultWriteTimeout.
	Timeout time.Duration
}

// New creates a client. A nil opts uses defaults.
func New(opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}
	base := opts.BaseURL
	if base == "" {
		base = os.Getenv(EnvBaseURL)
	}
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// AppendIntent posts one intent record.
//
// The capture path is fire-and-forget: callers log the returned error
// at most, they never fail the hook on it.
func (c *Client) AppendIntent(ctx context.Context, rec intent.Record) error {
	return c.post(ctx, "/intent", rec, nil)
}

// predictResponse mirrors the /predict body.
type predictResponse struct {
	Files []predict.Prediction `json:"files"`
}

// Predict fetches ranked file predictions for a keyword set.
func (c *Client) Predict(ctx context.Context, keywords []string, limit int) ([]predict.Prediction, error) {
	q := url.Values{}
	q.Set("keywords", strings.Join(keywords, ","))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var resp predictResponse
	if err := c.get(ctx, "/predict?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// logRequest mirrors the /predict/log body.
type logRequest struct {
	SessionID      string   `json:"session_id"`
	PredictedFiles []string `json:"predicted_files"`
	Tags           []string `json:"tags,omitempty"`
	TriggerFile    string   `json:"trigger_file,omitempty"`
	Confidence     float64  `json:"confidence"`
}

// LogPrediction registers a served prediction for hit tracking.
func (c *Client) LogPrediction(ctx context.Context, sessionID string, predicted, tags []string, confidence float64) error {
	return c.post(ctx, "/predict/log", logRequest{
		SessionID:      sessionID,
		PredictedFiles: predicted,
		Tags:           tags,
		Confidence:     confidence,
	}, nil)
}

// checkRequest mirrors the /predict/check body.
type checkRequest struct {
	SessionID string `json:"session_id"`
	File      string `json:"file"`
}

// CheckPrediction marks a file access against outstanding predictions.
func (c *Client) CheckPrediction(ctx context.Context, sessionID, file string) error {
	return c.post(ctx, "/predict/check", checkRequest{SessionID: sessionID, File: file}, nil)
}

// Health reports whether the observatory answers /health.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s body: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("observatory unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("observatory %s: status %d: %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16)) //nolint:errcheck
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
