// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/x/ansi"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var (
	markdownParser     goldmark.Markdown
	markdownParserOnce sync.Once
)

func parser() goldmark.Markdown {
	markdownParserOnce.Do(func() {
		markdownParser = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdownParser
}

func parse(source []byte) ast.Node {
	return parser().Parser().Parse(text.NewReader(source))
}

// Summary returns the text of the first heading or paragraph of the
// markdown in content, with inline markup removed, whitespace
// collapsed, and truncated to width cells. Width <= 0 disables
// truncation.
func Summary(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	source := []byte(content)
	document := parse(source)

	var summary string
	for child := document.FirstChild(); child != nil; child = child.NextSibling() {
		switch child.Kind() {
		case ast.KindHeading, ast.KindParagraph:
			var b strings.Builder
			collectText(&b, child, source)
			summary = strings.Join(strings.Fields(b.String()), " ")
		}
		if summary != "" {
			break
		}
	}
	if width > 0 {
		summary = ansi.Truncate(summary, width, "…")
	}
	return summary
}

// collectText appends the text segments beneath node. Soft and hard
// line breaks become spaces.
func collectText(b *strings.Builder, node ast.Node, source []byte) {
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Text:
			b.Write(n.Segment.Value(source))
			if n.SoftLineBreak() || n.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(n.Value)
		case *ast.AutoLink:
			b.Write(n.URL(source))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
}

// Markdown writes content to the printer's output. With color enabled,
// fenced code blocks that name a language are syntax highlighted; all
// other text passes through unchanged.
func (p *Printer) Markdown(content string) error {
	output := content
	if p.color {
		output = highlightCodeBlocks(content, p.theme.CodeStyle)
	}
	if output != "" && !strings.HasSuffix(output, "\n") {
		output += "\n"
	}
	_, err := io.WriteString(p.out, output)
	return err
}

// highlightCodeBlocks replaces the body of each fenced code block with
// its chroma-highlighted form. Blocks without a language, or that fail
// to highlight, are left as written.
func highlightCodeBlocks(content, style string) string {
	source := []byte(content)
	document := parse(source)

	type replacement struct {
		start, stop int
		text        string
	}
	var replacements []replacement
	_ = ast.Walk(document, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		block, ok := n.(*ast.FencedCodeBlock)
		if !entering || !ok {
			return ast.WalkContinue, nil
		}
		language := string(block.Language(source))
		lines := block.Lines()
		if language == "" || lines.Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		var code bytes.Buffer
		for i := 0; i < lines.Len(); i++ {
			segment := lines.At(i)
			code.Write(segment.Value(source))
		}
		var highlighted bytes.Buffer
		if err := quick.Highlight(&highlighted, code.String(), language, "terminal256", style); err != nil {
			return ast.WalkSkipChildren, nil
		}
		text := highlighted.String()
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		replacements = append(replacements, replacement{
			start: lines.At(0).Start,
			stop:  lines.At(lines.Len() - 1).Stop,
			text:  text,
		})
		return ast.WalkSkipChildren, nil
	})

	if len(replacements) == 0 {
		return content
	}
	var b strings.Builder
	position := 0
	for _, r := range replacements {
		b.WriteString(content[position:r.start])
		b.WriteString(r.text)
		position = r.stop
	}
	b.WriteString(content[position:])
	return b.String()
}
