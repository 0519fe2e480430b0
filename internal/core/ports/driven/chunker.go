package driven

import "github.com/custodia-labs/docquery/internal/core/domain"

// Chunker groups and splits blocks into chunk drafts bounded by a character
// budget. Implementations must be deterministic and pure.
type Chunker interface {
	// Chunk produces the ordered chunk drafts for the given blocks.
	Chunk(blocks []domain.Block) ([]domain.ChunkDraft, error)

	// Version identifies the chunking algorithm. It is recorded on each
	// index run so stale indexes can be detected after algorithm changes.
	Version() string
}
