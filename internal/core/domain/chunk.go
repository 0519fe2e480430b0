package domain

// ChunkMetadata describes a chunk for retrieval and diagnostics.
type ChunkMetadata struct {
	// SectionIndex is the structural division the chunk belongs to.
	SectionIndex int `json:"section_index"`

	// Heading is the last non-empty section heading seen up to this chunk.
	Heading string `json:"heading,omitempty"`

	// CharLen is the length of the rendered chunk text in bytes.
	CharLen int `json:"char_len"`

	// KindCounts counts the source blocks by kind.
	KindCounts map[BlockKind]int `json:"kind_counts,omitempty"`

	// HasOverlap is set when the chunk starts with carried-over overlap
	// content from the previous size-triggered split.
	HasOverlap bool `json:"has_overlap,omitempty"`

	// Oversize is set when the chunk consists of a single non-splittable
	// block that exceeds the configured character budget.
	Oversize bool `json:"oversize,omitempty"`
}

// ChunkDraft is a contiguous, rendered span of one or more blocks bounded by
// a character budget. Drafts are persisted verbatim by the indexing worker
// and never mutated afterwards.
type ChunkDraft struct {
	// ChunkIndex is the 0-based, order-significant position in the document.
	ChunkIndex int

	// Text is the rendered, human-readable chunk content.
	Text string

	// Blocks are the source blocks, including synthetic overlap and
	// split blocks.
	Blocks []Block

	// Metadata describes the chunk.
	Metadata ChunkMetadata
}
