// Package structural provides a section-aware block chunker. Unlike naive
// fixed-size windowing it never merges content across section boundaries,
// carries bounded overlap only across size-triggered splits, and guarantees
// a hard upper bound on chunk size for embedding-cost predictability.
package structural

import (
	"strings"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
)

// Ensure Chunker implements the interface.
var _ driven.Chunker = (*Chunker)(nil)

// Version identifies the chunking algorithm, recorded on every index run.
const Version = "structural/v1"

// DefaultMaxChars is the default chunk character budget.
const DefaultMaxChars = 1800

// blockSeparator joins rendered blocks within a chunk.
const blockSeparator = "\n\n"

// Chunker groups and splits blocks into budget-bounded chunk drafts.
type Chunker struct {
	maxChars     int
	overlapChars int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithMaxChars sets the chunk character budget.
func WithMaxChars(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxChars = n
		}
	}
}

// WithOverlapChars sets the overlap character budget carried across
// size-triggered splits.
func WithOverlapChars(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.overlapChars = n
		}
	}
}

// New creates a chunker. Overlap defaults to a third of the chunk budget
// and is clamped below it.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		maxChars:     DefaultMaxChars,
		overlapChars: -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlapChars < 0 {
		c.overlapChars = c.maxChars / 3
	}
	if c.overlapChars >= c.maxChars {
		c.overlapChars = c.maxChars / 3
	}
	return c
}

// Version identifies the chunking algorithm.
func (c *Chunker) Version() string {
	return Version
}

// Chunk produces the ordered chunk drafts for the given blocks. It is
// deterministic and has no side effects.
func (c *Chunker) Chunk(blocks []domain.Block) ([]domain.ChunkDraft, error) {
	prepared := c.prepare(blocks)

	var (
		drafts      []domain.ChunkDraft
		buffer      []domain.Block
		bufSection  int
		bufHeading  string
		lastHeading string
	)

	flush := func(carryOverlap bool) []domain.Block {
		if len(buffer) == 0 {
			return nil
		}
		flushed := buffer
		buffer = nil

		if !hasRealContent(flushed) {
			// A chunk consisting only of a heading or carried overlap
			// duplicates content without adding any; never emit it.
			return nil
		}

		drafts = append(drafts, c.makeDraft(len(drafts), flushed, bufSection, bufHeading, false))

		if carryOverlap {
			return c.overlapSuffix(flushed)
		}
		return nil
	}

	for _, b := range prepared {
		// Section boundary change forces a flush with no overlap carry:
		// overlap never crosses a structural division.
		if len(buffer) > 0 && b.SectionIndex != bufSection {
			flush(false)
		}

		if b.Kind == domain.BlockSectionHead && strings.TrimSpace(b.Text) != "" {
			lastHeading = b.Text
		}

		// A non-splittable block over budget becomes its own chunk,
		// flagged oversize. Splittable kinds were pre-split in prepare.
		if len(b.Text) > c.maxChars {
			flush(false)
			drafts = append(drafts, c.makeDraft(len(drafts), []domain.Block{b}, b.SectionIndex, lastHeading, true))
			continue
		}

		// Headings are hard boundaries: they never merge with the previous
		// section's tail, and they seed the buffer for the new section.
		if b.Kind == domain.BlockSectionHead {
			flush(false)
			buffer = []domain.Block{b}
			bufSection = b.SectionIndex
			bufHeading = lastHeading
			continue
		}

		if len(buffer) == 0 {
			buffer = []domain.Block{b}
			bufSection = b.SectionIndex
			bufHeading = lastHeading
			continue
		}

		if renderedLen(buffer)+len(blockSeparator)+len(b.Text) > c.maxChars {
			// Shed carried overlap from the head before giving up on the
			// buffer entirely.
			for len(buffer) > 0 && buffer[0].Overlap &&
				renderedLen(buffer)+len(blockSeparator)+len(b.Text) > c.maxChars {
				buffer = buffer[1:]
			}
			if renderedLen(buffer)+len(blockSeparator)+len(b.Text) > c.maxChars {
				carried := flush(true)
				// The carried suffix is bounded by the overlap budget, not
				// by what the incoming block leaves room for; shed from its
				// head until the block fits.
				for len(carried) > 0 &&
					renderedLen(carried)+len(blockSeparator)+len(b.Text) > c.maxChars {
					carried = carried[1:]
				}
				buffer = carried
				bufSection = b.SectionIndex
				bufHeading = lastHeading
			}
		}

		if len(buffer) == 0 {
			bufSection = b.SectionIndex
			bufHeading = lastHeading
		}
		buffer = append(buffer, b)
	}

	flush(false)
	return drafts, nil
}

// prepare drops empty blocks and pre-splits oversize splittable blocks into
// synthetic sub-blocks at sentence boundaries.
func (c *Chunker) prepare(blocks []domain.Block) []domain.Block {
	out := make([]domain.Block, 0, len(blocks))
	for _, b := range blocks {
		if b.Empty() {
			continue
		}
		if len(b.Text) > c.maxChars && b.Kind.Splittable() {
			for _, part := range splitByBudget(b.Text, c.maxChars) {
				sub := b
				sub.Text = part
				out = append(out, sub)
			}
			continue
		}
		out = append(out, b)
	}
	return out
}

// makeDraft renders the buffered blocks into a chunk draft.
func (c *Chunker) makeDraft(index int, blocks []domain.Block, section int, heading string, oversize bool) domain.ChunkDraft {
	texts := make([]string, len(blocks))
	kindCounts := make(map[domain.BlockKind]int, 4)
	hasOverlap := false
	for i, b := range blocks {
		texts[i] = b.Text
		kindCounts[b.Kind]++
		if b.Overlap {
			hasOverlap = true
		}
	}
	text := strings.Join(texts, blockSeparator)

	return domain.ChunkDraft{
		ChunkIndex: index,
		Text:       text,
		Blocks:     blocks,
		Metadata: domain.ChunkMetadata{
			SectionIndex: section,
			Heading:      heading,
			CharLen:      len(text),
			KindCounts:   kindCounts,
			HasOverlap:   hasOverlap,
			Oversize:     oversize,
		},
	}
}

// overlapSuffix selects a suffix of the flushed blocks to carry into the
// next chunk. It walks backwards accumulating real content until the overlap
// budget would be exceeded, then returns synthetic overlap clones in
// original order.
func (c *Chunker) overlapSuffix(flushed []domain.Block) []domain.Block {
	if c.overlapChars <= 0 {
		return nil
	}
	var picked []domain.Block
	total := 0
	for i := len(flushed) - 1; i >= 0; i-- {
		b := flushed[i]
		if b.Overlap || b.Kind == domain.BlockSectionHead {
			continue
		}
		if total+len(b.Text) > c.overlapChars {
			break
		}
		total += len(b.Text)
		clone := b
		clone.Overlap = true
		picked = append(picked, clone)
	}
	// Reverse back into reading order.
	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked
}

// hasRealContent reports whether any block is original content rather than
// a heading or carried overlap.
func hasRealContent(blocks []domain.Block) bool {
	for _, b := range blocks {
		if !b.Overlap && b.Kind != domain.BlockSectionHead {
			return true
		}
	}
	return false
}

// renderedLen is the length of the buffer once joined with separators.
func renderedLen(blocks []domain.Block) int {
	if len(blocks) == 0 {
		return 0
	}
	n := len(blockSeparator) * (len(blocks) - 1)
	for _, b := range blocks {
		n += len(b.Text)
	}
	return n
}

// splitByBudget divides text into parts no longer than maxChars, preferring
// sentence boundaries. A single sentence longer than the budget is hard-cut.
func splitByBudget(text string, maxChars int) []string {
	sentences := splitSentences(text)

	var parts []string
	var current strings.Builder
	for _, s := range sentences {
		if len(s) > maxChars {
			if current.Len() > 0 {
				parts = append(parts, strings.TrimSpace(current.String()))
				current.Reset()
			}
			parts = append(parts, hardCut(s, maxChars)...)
			continue
		}
		if current.Len() > 0 && current.Len()+1+len(s) > maxChars {
			parts = append(parts, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(s)
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		parts = append(parts, s)
	}
	return parts
}

// splitSentences splits text on sentence terminators.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// hardCut slices an over-budget sentence into rune-safe pieces.
func hardCut(s string, maxChars int) []string {
	var parts []string
	var current strings.Builder
	for _, r := range s {
		if current.Len()+len(string(r)) > maxChars {
			parts = append(parts, current.String())
			current.Reset()
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
