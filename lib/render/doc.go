// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package render formats tasks, messages, and dependency graphs for
// the terminal.
//
// A [Printer] owns a lipgloss renderer whose color profile is chosen
// once: detected from the output writer, forced on, or forced off.
// Everything it styles goes through that renderer, so output written to
// a pipe or a test buffer carries no escape sequences unless color was
// forced. Column alignment measures display width with x/ansi so
// styled cells line up.
//
// Task content is markdown. [Summary] reduces it to one plain-text
// line for listings; [Printer.Markdown] prints it with fenced code
// blocks highlighted.
package render
