// Package markdown provides a block extractor for Markdown documents.
package markdown

import (
	"context"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.BlockExtractor = (*Extractor)(nil)

// Extractor converts Markdown into blocks by walking the goldmark AST.
// Unlike the PDF extractor it needs no shape heuristics: the markup already
// names headings, paragraphs and list items.
type Extractor struct {
	md goldmark.Markdown
}

// New creates a Markdown block extractor.
func New() *Extractor {
	return &Extractor{md: goldmark.New()}
}

// Name identifies the extractor.
func (e *Extractor) Name() string {
	return "markdown"
}

// SupportedExtensions returns the file extensions this extractor handles.
func (e *Extractor) SupportedExtensions() []string {
	return []string{".md", ".markdown"}
}

// Extract parses the Markdown and returns its blocks in reading order.
func (e *Extractor) Extract(_ context.Context, data []byte) ([]domain.Block, error) {
	root := e.md.Parser().Parse(text.NewReader(data))

	w := &walker{source: data}
	if err := ast.Walk(root, w.visit); err != nil {
		return nil, fmt.Errorf("walk markdown: %w", err)
	}
	return w.blocks, nil
}

// walker accumulates blocks while traversing the AST.
type walker struct {
	source  []byte
	blocks  []domain.Block
	section int
	heading string
}

func (w *walker) visit(n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	switch node := n.(type) {
	case *ast.Heading:
		textContent := nodeText(node, w.source)
		w.section++
		w.heading = textContent
		w.append(textContent, domain.BlockSectionHead)
		return ast.WalkSkipChildren, nil

	case *ast.Paragraph:
		// Paragraphs inside list items are rendered by the ListItem case.
		if insideListItem(node) {
			return ast.WalkContinue, nil
		}
		w.append(nodeText(node, w.source), domain.BlockParagraph)
		return ast.WalkSkipChildren, nil

	case *ast.ListItem:
		w.append(nodeText(node, w.source), domain.BlockListItem)
		return ast.WalkSkipChildren, nil

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		w.append(linesText(n, w.source), domain.BlockUnknown)
		return ast.WalkSkipChildren, nil

	case *ast.Blockquote:
		w.append(nodeText(node, w.source), domain.BlockParagraph)
		return ast.WalkSkipChildren, nil
	}

	return ast.WalkContinue, nil
}

func (w *walker) append(textContent string, kind domain.BlockKind) {
	textContent = strings.TrimSpace(textContent)
	if textContent == "" {
		return
	}
	w.blocks = append(w.blocks, domain.Block{
		Text:           textContent,
		Kind:           kind,
		SectionIndex:   w.section,
		SectionHeading: w.heading,
	})
}

// nodeText renders the plain text of a node and its inline children.
func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	collectText(n, source, &sb)
	return sb.String()
}

func collectText(n ast.Node, source []byte, sb *strings.Builder) {
	switch node := n.(type) {
	case *ast.Text:
		sb.Write(node.Segment.Value(source))
		if node.SoftLineBreak() || node.HardLineBreak() {
			sb.WriteByte(' ')
		}
		return
	case *ast.AutoLink:
		sb.Write(node.URL(source))
		return
	}

	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		collectText(child, source, sb)
		if _, ok := child.(*ast.Paragraph); ok && child.NextSibling() != nil {
			sb.WriteByte(' ')
		}
	}
}

// linesText renders a code block from its raw line segments.
func linesText(n ast.Node, source []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return sb.String()
}

// insideListItem reports whether the node has a ListItem ancestor.
func insideListItem(n ast.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if _, ok := p.(*ast.ListItem); ok {
			return true
		}
	}
	return false
}
