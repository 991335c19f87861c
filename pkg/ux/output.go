// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the Spyglass CLI
// and the hook status lines.
package ux

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Spyglass color palette - brass and glass.
var (
	ColorBrass     = lipgloss.Color("#C9A227") // Brass - highlights, brand
	ColorBrassDim  = lipgloss.Color("#8A7019") // Dim brass - secondary
	ColorGlass     = lipgloss.Color("#7FD1E0") // Glass blue - data values
	ColorGlassDeep = lipgloss.Color("#3A93A8") // Deep glass - borders

	ColorSuccess = lipgloss.Color("#4FC978") // Green for hits
	ColorWarning = lipgloss.Color("#F4D03F") // Amber for warnings
	ColorError   = lipgloss.Color("#E74C3C") // Red for errors
	ColorMuted   = lipgloss.Color("#5C6B73") // Muted text
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorBrass),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorBrassDim),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorMuted),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorGlass).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorGlassDeep).
		Padding(0, 1),
}

// Icon provides themed status icons.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconLens    Icon = "◎"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconLens:
		return Styles.Highlight.Render(string(i))
	default:
		return Styles.Muted.Render(string(i))
	}
}

// IsTTY reports whether stdout is an interactive terminal. Styling is
// suppressed when it isn't so hook output stays machine-readable.
func IsTTY() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Successf prints a success line with a check icon.
func Successf(format string, args ...any) {
	fmt.Printf("%s %s\n", IconSuccess.Render(), fmt.Sprintf(format, args...))
}

// Warnf prints a warning line.
func Warnf(format string, args ...any) {
	fmt.Printf("%s %s\n", IconWarning.Render(), fmt.Sprintf(format, args...))
}

// Errorf prints an error line to stderr.
func Errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", IconError.Render(), fmt.Sprintf(format, args...))
}

// Infof prints an informational line.
func Infof(format string, args ...any) {
	fmt.Printf("%s %s\n", IconLens.Render(), fmt.Sprintf(format, args...))
}
