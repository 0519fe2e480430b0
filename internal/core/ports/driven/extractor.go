package driven

import (
	"context"

	"github.com/custodia-labs/docquery/internal/core/domain"
)

// BlockExtractor converts a raw document into an ordered list of semantic
// blocks. Extraction is a pure function of the input bytes: no side effects,
// no retries. Extraction failures are not assumed transient.
type BlockExtractor interface {
	// Extract parses the document and returns its blocks in reading order.
	Extract(ctx context.Context, data []byte) ([]domain.Block, error)

	// SupportedExtensions returns the lowercase file extensions this
	// extractor handles, including the leading dot.
	SupportedExtensions() []string

	// Name identifies the extractor in logs and index metadata.
	Name() string
}

// ExtractorRegistry selects an extractor for a stored document.
type ExtractorRegistry interface {
	// ForFile returns the extractor for the given storage path, or
	// domain.ErrUnsupportedType when no extractor matches.
	ForFile(path string) (BlockExtractor, error)
}
