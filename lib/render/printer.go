// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/bureau-foundation/wasteland/lib/depgraph"
	"github.com/bureau-foundation/wasteland/lib/schema"
)

// ColorMode selects whether output is styled.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode accepts auto, always, never, or "" for auto.
func ParseColorMode(value string) (ColorMode, error) {
	switch mode := ColorMode(value); mode {
	case "":
		return ColorAuto, nil
	case ColorAuto, ColorAlways, ColorNever:
		return mode, nil
	default:
		return "", fmt.Errorf("render: unknown color mode %q (want auto, always, or never)", value)
	}
}

// Printer writes styled listings to one writer.
type Printer struct {
	out      io.Writer
	theme    Theme
	renderer *lipgloss.Renderer
	color    bool
}

// New returns a Printer for out. ColorAuto follows terminal detection
// on out; ColorAlways forces 256 colors.
func New(out io.Writer, mode ColorMode) *Printer {
	renderer := lipgloss.NewRenderer(out)
	switch mode {
	case ColorAlways:
		renderer.SetColorProfile(termenv.ANSI256)
	case ColorNever:
		renderer.SetColorProfile(termenv.Ascii)
	}
	return &Printer{
		out:      out,
		theme:    DefaultTheme,
		renderer: renderer,
		color:    renderer.ColorProfile() != termenv.Ascii,
	}
}

// Color reports whether the printer emits escape sequences.
func (p *Printer) Color() bool { return p.color }

func (p *Printer) style(color lipgloss.Color) lipgloss.Style {
	return p.renderer.NewStyle().Foreground(color)
}

// Status returns s styled with its status color.
func (p *Printer) Status(s schema.Status) string {
	return p.style(p.theme.StatusColor(s)).Render(string(s))
}

// Priority returns priority styled with its color. Urgent is bold.
func (p *Printer) Priority(priority schema.Priority) string {
	style := p.style(p.theme.PriorityColor(priority))
	if priority == schema.PriorityUrgent {
		style = style.Bold(true)
	}
	return style.Render(string(priority))
}

func (p *Printer) faint(s string) string {
	return p.style(p.theme.FaintText).Render(s)
}

func (p *Printer) header(s string) string {
	return p.style(p.theme.Header).Bold(true).Render(s)
}

// Tasks prints one row per task: id, status, priority, title, and a
// summary of the content.
func (p *Printer) Tasks(tasks []schema.Task) error {
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(p.out, p.faint("no tasks"))
		return err
	}
	table := Table{Columns: []string{"ID", "STATUS", "PRIORITY", "TITLE", "SUMMARY"}}
	for _, task := range tasks {
		table.Rows = append(table.Rows, []string{
			task.ID,
			p.Status(task.Status),
			p.Priority(task.Priority),
			task.Title,
			p.faint(Summary(task.Content, 48)),
		})
	}
	return p.table(table)
}

// Messages prints one row per message.
func (p *Printer) Messages(messages []schema.Message) error {
	if len(messages) == 0 {
		_, err := fmt.Fprintln(p.out, p.faint("no messages"))
		return err
	}
	table := Table{Columns: []string{"TIME", "FROM", "TYPE", "PRIORITY", "SUBJECT"}}
	for _, message := range messages {
		table.Rows = append(table.Rows, []string{
			time.Unix(message.CreatedAt, 0).UTC().Format(time.DateTime),
			ShortKey(message.Sender),
			string(message.Type),
			p.Priority(message.Priority),
			message.Subject,
		})
	}
	return p.table(table)
}

// Graph prints the snapshot: topological order (or the cycle report)
// followed by each node's edges.
func (p *Printer) Graph(snapshot depgraph.Snapshot) error {
	var b strings.Builder
	ready := make(map[string]bool, len(snapshot.Ready))
	for _, id := range snapshot.Ready {
		ready[id] = true
	}
	cyclic := make(map[string]bool, len(snapshot.Cycles))
	for _, id := range snapshot.Cycles {
		cyclic[id] = true
	}
	byID := make(map[string]depgraph.SnapshotNode, len(snapshot.Nodes))
	for _, node := range snapshot.Nodes {
		byID[node.EventID] = node
	}

	fmt.Fprintf(&b, "%s %d tasks, %d ready\n", p.header("graph:"), len(snapshot.Nodes), len(snapshot.Ready))
	if len(snapshot.Cycles) > 0 {
		fmt.Fprintf(&b, "%s %s\n", p.style(p.theme.Blocked).Bold(true).Render("cycle:"), strings.Join(shortIDs(snapshot.Cycles), " "))
	}
	if snapshot.CriticalDepth > 0 {
		fmt.Fprintf(&b, "%s %d\n", p.faint("critical path:"), snapshot.CriticalDepth)
	}

	order := snapshot.Order
	if len(order) == 0 {
		for _, node := range snapshot.Nodes {
			order = append(order, node.EventID)
		}
	}
	for _, id := range order {
		node := byID[id]
		marker := "  "
		switch {
		case cyclic[id]:
			marker = p.style(p.theme.Blocked).Render("! ")
		case ready[id]:
			marker = p.style(p.theme.StatusOpen).Render("* ")
		}
		fmt.Fprintf(&b, "%s%s %s %s %s\n", marker, label(node), p.Status(schema.Status(node.Status)), p.Priority(schema.Priority(node.Priority)), node.Title)
		if len(node.BlockedBy) > 0 {
			fmt.Fprintf(&b, "    %s %s\n", p.faint("after"), strings.Join(nodeLabels(byID, node.BlockedBy), ", "))
		}
		if len(node.Dangling) > 0 {
			fmt.Fprintf(&b, "    %s %s\n", p.faint("missing"), strings.Join(node.Dangling, ", "))
		}
		if node.Unblocks > 0 {
			fmt.Fprintf(&b, "    %s %d\n", p.faint("unblocks"), node.Unblocks)
		}
	}
	_, err := io.WriteString(p.out, b.String())
	return err
}

func label(node depgraph.SnapshotNode) string {
	if node.TaskID != "" {
		return node.TaskID
	}
	return ShortKey(node.EventID)
}

func nodeLabels(byID map[string]depgraph.SnapshotNode, ids []string) []string {
	labels := make([]string, len(ids))
	for i, id := range ids {
		labels[i] = label(byID[id])
	}
	return labels
}

func shortIDs(ids []string) []string {
	short := make([]string, len(ids))
	for i, id := range ids {
		short[i] = ShortKey(id)
	}
	return short
}

// ShortKey abbreviates a 64-character hex key or id to its first 12
// characters.
func ShortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}

// Table is a column-aligned listing. Cells may carry escape sequences.
type Table struct {
	Columns []string
	Rows    [][]string

	// MaxWidth truncates cells wider than it. Zero means 40.
	MaxWidth int
}

func (p *Printer) table(table Table) error {
	_, err := io.WriteString(p.out, table.format(p.header))
	return err
}

// String formats the table without styling the header.
func (table Table) String() string {
	return table.format(func(s string) string { return s })
}

func (table Table) format(header func(string) string) string {
	maxWidth := table.MaxWidth
	if maxWidth <= 0 {
		maxWidth = 40
	}
	widths := make([]int, len(table.Columns))
	cells := make([][]string, len(table.Rows))
	for i, column := range table.Columns {
		widths[i] = ansi.StringWidth(column)
	}
	for r, row := range table.Rows {
		cells[r] = make([]string, len(table.Columns))
		for i := range table.Columns {
			if i >= len(row) {
				continue
			}
			cell := ansi.Truncate(row[i], maxWidth, "…")
			cells[r][i] = cell
			widths[i] = max(widths[i], ansi.StringWidth(cell))
		}
	}

	var b strings.Builder
	writeRow := func(row []string) {
		for i, cell := range row {
			if i == len(row)-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", widths[i]-ansi.StringWidth(cell)+2))
		}
		b.WriteString("\n")
	}
	headers := make([]string, len(table.Columns))
	for i, column := range table.Columns {
		headers[i] = header(column)
	}
	writeRow(headers)
	for _, row := range cells {
		writeRow(row)
	}
	return b.String()
}
