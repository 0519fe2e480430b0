// Package pdf provides a block extractor for PDF documents.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.BlockExtractor = (*Extractor)(nil)

// Extractor converts PDF bytes into classified blocks. Classification is
// heuristic: PDFs carry no semantic markup, so headings, captions, list
// items and references are recognised by line shape.
type Extractor struct{}

// New creates a PDF block extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name identifies the extractor.
func (e *Extractor) Name() string {
	return "pdf"
}

// SupportedExtensions returns the file extensions this extractor handles.
func (e *Extractor) SupportedExtensions() []string {
	return []string{".pdf"}
}

// Extract parses the PDF and returns its blocks in reading order.
func (e *Extractor) Extract(_ context.Context, data []byte) ([]domain.Block, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var text strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		text.WriteString(pageText)
		text.WriteString("\n\n")
	}

	return Classify(text.String()), nil
}

var (
	numberedHeadingRe = regexp.MustCompile(`^\d+(\.\d+)*\.?\s+\S`)
	listItemRe        = regexp.MustCompile(`^([-•*·]|\d+[.)]|[a-z][.)])\s+`)
	captionRe         = regexp.MustCompile(`^(Figure|Fig\.|Table|Chart)\s+\d+`)
	referenceRe       = regexp.MustCompile(`^\[\d+\]\s+`)
	footnoteRe        = regexp.MustCompile(`^(\[FN#?\d+\]|[*†‡]|\d+\s+[A-Z])`)
	referencesHeadRe  = regexp.MustCompile(`(?i)^(references|bibliography|works cited)\s*$`)
)

// Classify segments plain page text into classified blocks. Paragraph
// boundaries are blank lines; each resulting segment is classified by its
// shape. Exported so the heuristics stay testable without a real PDF.
func Classify(text string) []domain.Block {
	segments := splitSegments(text)

	var blocks []domain.Block
	section := 0
	heading := ""
	inReferences := false

	for _, seg := range segments {
		kind := classifySegment(seg, inReferences)

		if kind == domain.BlockSectionHead {
			section++
			heading = seg
			inReferences = referencesHeadRe.MatchString(stripHeadingNumber(seg))
		}

		blocks = append(blocks, domain.Block{
			Text:           seg,
			Kind:           kind,
			SectionIndex:   section,
			SectionHeading: heading,
			RefTargets:     refTargets(seg),
		})
	}
	return blocks
}

// splitSegments splits page text into paragraph-ish segments on blank lines,
// keeping single newlines inside a segment as soft wraps.
func splitSegments(text string) []string {
	raw := strings.Split(text, "\n")

	var segments []string
	var current []string
	flush := func() {
		if len(current) == 0 {
			return
		}
		seg := strings.TrimSpace(strings.Join(current, " "))
		if seg != "" {
			segments = append(segments, seg)
		}
		current = nil
	}

	for _, line := range raw {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		// Standalone short lines that look like headings break the
		// paragraph even without a blank line around them.
		if looksLikeHeading(trimmed) && len(current) > 0 {
			flush()
		}
		current = append(current, trimmed)
		if looksLikeHeading(trimmed) {
			flush()
		}
	}
	flush()
	return segments
}

// classifySegment assigns a block kind from the segment's shape.
func classifySegment(seg string, inReferences bool) domain.BlockKind {
	switch {
	case looksLikeHeading(seg):
		return domain.BlockSectionHead
	case captionRe.MatchString(seg):
		return domain.BlockFigureCaption
	case referenceRe.MatchString(seg):
		return domain.BlockReference
	case inReferences:
		return domain.BlockReference
	case listItemRe.MatchString(seg):
		return domain.BlockListItem
	case looksLikeTable(seg):
		return domain.BlockTable
	case looksLikeEquation(seg):
		return domain.BlockEquation
	case footnoteRe.MatchString(seg) && len(seg) < 300:
		return domain.BlockFootnote
	default:
		return domain.BlockParagraph
	}
}

// looksLikeHeading recognises short, unterminated lines that are either
// numbered ("2.1 Results"), fully capitalised, or title-cased.
func looksLikeHeading(line string) bool {
	if len(line) == 0 || len(line) > 90 {
		return false
	}
	if strings.HasSuffix(line, ".") || strings.HasSuffix(line, ",") ||
		strings.HasSuffix(line, ";") || strings.HasSuffix(line, ":") {
		return false
	}
	if captionRe.MatchString(line) || referenceRe.MatchString(line) {
		return false
	}
	// "2.1 Results" style: numbered, short, starting upper case. Numbered
	// list items ("1) do the thing") use parentheses or lower-case prose
	// and fall through to the list classifier.
	if numberedHeadingRe.MatchString(line) && len(strings.Fields(line)) <= 10 && firstLetterUpper(line) {
		return true
	}
	if isAllCaps(line) && len(strings.Fields(line)) <= 8 {
		return true
	}
	return false
}

// looksLikeTable recognises segments dominated by tab or multi-space column
// separation.
func looksLikeTable(seg string) bool {
	if strings.Count(seg, "\t") >= 2 {
		return true
	}
	return strings.Count(seg, "   ") >= 3
}

// looksLikeEquation recognises short segments dense in math symbols.
func looksLikeEquation(seg string) bool {
	if len(seg) > 200 {
		return false
	}
	math := 0
	letters := 0
	for _, r := range seg {
		switch {
		case strings.ContainsRune("=+−-^_∑∫√∂≤≥≈∞()/", r):
			math++
		case unicode.IsLetter(r):
			letters++
		}
	}
	return math >= 3 && letters < math*4 && strings.ContainsRune(seg, '=')
}

// firstLetterUpper reports whether the first letter in the line is upper case.
func firstLetterUpper(line string) bool {
	for _, r := range line {
		if unicode.IsLetter(r) {
			return unicode.IsUpper(r)
		}
	}
	return false
}

// isAllCaps reports whether every letter in the line is upper case.
func isAllCaps(line string) bool {
	sawLetter := false
	for _, r := range line {
		if unicode.IsLetter(r) {
			sawLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return sawLetter
}

var refTargetRe = regexp.MustCompile(`(Figure|Fig\.|Table|Equation|Eq\.)\s+(\d+(\.\d+)?)`)

// refTargets extracts figure/table/equation labels mentioned by a segment.
func refTargets(seg string) []string {
	matches := refTargetRe.FindAllString(seg, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var targets []string
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			targets = append(targets, m)
		}
	}
	return targets
}

// stripHeadingNumber removes a leading section number from a heading.
func stripHeadingNumber(h string) string {
	return strings.TrimSpace(regexp.MustCompile(`^\d+(\.\d+)*\.?\s*`).ReplaceAllString(h, ""))
}
