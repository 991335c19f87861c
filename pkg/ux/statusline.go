// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PredictionLine is the data behind the one-line prompt status.
type PredictionLine struct {
	// Paths are the predicted file paths, best first.
	Paths []string

	// Confidence of the top prediction, in [0, 1].
	Confidence float64

	// HitRate is the rolling accuracy display, e.g. "73%" or
	// "calibrating". Empty omits the segment.
	HitRate string
}

// maxStatusPaths bounds how many predicted files the status line shows.
const maxStatusPaths = 3

// RenderPredictionLine formats the single status line the prompt hook
// emits. With styling disabled the same content is rendered plain, so
// non-TTY consumers still get a parseable line.
func RenderPredictionLine(p PredictionLine, styled bool) string {
	if len(p.Paths) == 0 {
		return ""
	}

	shown := p.Paths
	if len(shown) > maxStatusPaths {
		shown = shown[:maxStatusPaths]
	}
	names := make([]string, len(shown))
	for i, path := range shown {
		names[i] = filepath.Base(path)
	}

	var b strings.Builder
	if styled {
		b.WriteString(IconLens.Render())
		b.WriteString(" ")
		b.WriteString(Styles.Subtitle.Render("likely:"))
		b.WriteString(" ")
		b.WriteString(Styles.Highlight.Render(strings.Join(names, ", ")))
		b.WriteString(Styles.Muted.Render(fmt.Sprintf(" (%.0f%%)", p.Confidence*100)))
		if p.HitRate != "" {
			b.WriteString(Styles.Muted.Render(" · hit@5 " + p.HitRate))
		}
	} else {
		b.WriteString("likely: ")
		b.WriteString(strings.Join(names, ", "))
		fmt.Fprintf(&b, " (%.0f%%)", p.Confidence*100)
		if p.HitRate != "" {
			b.WriteString(" · hit@5 " + p.HitRate)
		}
	}
	return b.String()
}
