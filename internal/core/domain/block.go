package domain

import "strings"

// BlockKind classifies a semantic unit of extracted content.
type BlockKind string

// Block kinds produced by extractors.
const (
	BlockParagraph     BlockKind = "paragraph"
	BlockSectionHead   BlockKind = "section_head"
	BlockEquation      BlockKind = "equation"
	BlockTable         BlockKind = "table"
	BlockFigureCaption BlockKind = "figure_caption"
	BlockListItem      BlockKind = "list_item"
	BlockFootnote      BlockKind = "footnote"
	BlockReference     BlockKind = "reference"
	BlockUnknown       BlockKind = "unknown"
)

// Splittable reports whether blocks of this kind may be divided at sentence
// boundaries when they exceed the chunk budget. Tables, equations and other
// layout-bound kinds must stay intact even when oversize.
func (k BlockKind) Splittable() bool {
	switch k {
	case BlockParagraph, BlockReference, BlockFootnote, BlockUnknown:
		return true
	default:
		return false
	}
}

// Block is one semantic unit of source content, produced by a block
// extractor and consumed by the chunker. Blocks are immutable after
// extraction.
type Block struct {
	// Text is the plain rendered text of the unit.
	Text string

	// Kind classifies the unit.
	Kind BlockKind

	// SectionIndex groups blocks under the same structural division.
	// It increments each time a section heading is encountered.
	SectionIndex int

	// SectionHeading is the heading text of the enclosing section, if known.
	SectionHeading string

	// RefTargets holds cross-reference targets mentioned by this block
	// (figure/table/equation labels), when the extractor can detect them.
	RefTargets []string

	// Overlap marks synthetic blocks carried forward from the tail of a
	// previous chunk. Overlap blocks are never counted as original content.
	Overlap bool
}

// Empty reports whether the block carries no visible text.
func (b Block) Empty() bool {
	return strings.TrimSpace(b.Text) == ""
}
