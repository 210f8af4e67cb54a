// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/wasteland/lib/schema"
)

// Theme is the color palette for CLI output. Colors are ANSI 256
// codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color
	Header     lipgloss.Color

	// Priority colors, indexed by Priority.Rank.
	PriorityColors [4]lipgloss.Color

	StatusOpen       lipgloss.Color
	StatusInProgress lipgloss.Color
	StatusClosed     lipgloss.Color

	// Blocked marks tasks waiting on unfinished blockers and cycle
	// members in graph output.
	Blocked lipgloss.Color

	// CodeStyle names the chroma style for fenced code blocks.
	CodeStyle string
}

// PriorityColor returns the color for p.
func (theme Theme) PriorityColor(p schema.Priority) lipgloss.Color {
	return theme.PriorityColors[p.Rank()]
}

// StatusColor returns the color for s, or FaintText for unknown
// values.
func (theme Theme) StatusColor(s schema.Status) lipgloss.Color {
	switch s {
	case schema.StatusOpen:
		return theme.StatusOpen
	case schema.StatusInProgress:
		return theme.StatusInProgress
	case schema.StatusClosed:
		return theme.StatusClosed
	default:
		return theme.FaintText
	}
}

// DefaultTheme targets 256-color terminals with a dark background.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),
	Header:     lipgloss.Color("255"),

	PriorityColors: [4]lipgloss.Color{
		lipgloss.Color("245"), // low: gray
		lipgloss.Color("75"),  // normal: blue
		lipgloss.Color("208"), // high: orange
		lipgloss.Color("196"), // urgent: bright red
	},

	StatusOpen:       lipgloss.Color("114"), // green
	StatusInProgress: lipgloss.Color("220"), // amber
	StatusClosed:     lipgloss.Color("245"), // gray
	Blocked:          lipgloss.Color("196"),

	CodeStyle: "monokai",
}
