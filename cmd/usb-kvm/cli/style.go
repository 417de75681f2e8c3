// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Styles renders the human-facing listings of `devices` and `watch`.
// Colors use ANSI 256-color codes. The renderer detects the color
// profile of its writer, so output to a pipe or file is plain text.
type Styles struct {
	Heading    lipgloss.Style
	Identifier lipgloss.Style
	Faint      lipgloss.Style
	Added      lipgloss.Style
	Removed    lipgloss.Style
	Warning    lipgloss.Style
}

// NewStyles returns the styles for output written to w.
func NewStyles(w io.Writer) Styles {
	renderer := lipgloss.NewRenderer(w)
	return Styles{
		Heading:    renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("255")),
		Identifier: renderer.NewStyle().Foreground(lipgloss.Color("75")),
		Faint:      renderer.NewStyle().Foreground(lipgloss.Color("245")),
		Added:      renderer.NewStyle().Foreground(lipgloss.Color("114")),
		Removed:    renderer.NewStyle().Foreground(lipgloss.Color("196")),
		Warning:    renderer.NewStyle().Foreground(lipgloss.Color("220")),
	}
}
