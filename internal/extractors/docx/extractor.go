// Package docx provides a block extractor for Word documents.
package docx

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/nguyenthenguyen/docx"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.BlockExtractor = (*Extractor)(nil)

// Extractor converts DOCX bytes into blocks. Paragraph styles carry the
// structure: Heading styles become section heads, list paragraphs become
// list items, everything else is prose.
type Extractor struct{}

// New creates a DOCX block extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name identifies the extractor.
func (e *Extractor) Name() string {
	return "docx"
}

// SupportedExtensions returns the file extensions this extractor handles.
func (e *Extractor) SupportedExtensions() []string {
	return []string{".docx"}
}

// Extract parses the DOCX and returns its blocks in reading order.
func (e *Extractor) Extract(_ context.Context, data []byte) ([]domain.Block, error) {
	reader, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer reader.Close()

	content := reader.Editable().GetContent()
	return parseDocumentXML([]byte(content))
}

// documentXML mirrors the parts of word/document.xml we read. Namespace
// prefixes are matched by local name.
type documentXML struct {
	Body struct {
		Paragraphs []paragraphXML `xml:"p"`
	} `xml:"body"`
}

type paragraphXML struct {
	Props struct {
		Style struct {
			Val string `xml:"val,attr"`
		} `xml:"pStyle"`
		NumProps *struct{} `xml:"numPr"`
	} `xml:"pPr"`
	Runs []runXML `xml:"r"`
}

type runXML struct {
	Text []textXML `xml:"t"`
}

type textXML struct {
	Content string `xml:",chardata"`
}

func (p paragraphXML) text() string {
	var sb strings.Builder
	for _, r := range p.Runs {
		for _, t := range r.Text {
			sb.WriteString(t.Content)
		}
	}
	return strings.TrimSpace(sb.String())
}

func (p paragraphXML) kind() domain.BlockKind {
	style := p.Props.Style.Val
	switch {
	case strings.HasPrefix(style, "Heading"), style == "Title":
		return domain.BlockSectionHead
	case style == "ListParagraph", p.Props.NumProps != nil:
		return domain.BlockListItem
	case style == "Caption":
		return domain.BlockFigureCaption
	case strings.HasPrefix(style, "Footnote"):
		return domain.BlockFootnote
	default:
		return domain.BlockParagraph
	}
}

// parseDocumentXML converts the document XML into ordered blocks.
func parseDocumentXML(content []byte) ([]domain.Block, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parse docx body: %w", err)
	}

	var blocks []domain.Block
	section := 0
	heading := ""
	for _, para := range doc.Body.Paragraphs {
		text := para.text()
		if text == "" {
			continue
		}
		kind := para.kind()
		if kind == domain.BlockSectionHead {
			section++
			heading = text
		}
		blocks = append(blocks, domain.Block{
			Text:           text,
			Kind:           kind,
			SectionIndex:   section,
			SectionHeading: heading,
		})
	}
	return blocks, nil
}
