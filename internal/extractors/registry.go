// Package extractors wires the format-specific block extractors behind a
// single extension-based registry.
package extractors

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
	"github.com/custodia-labs/docquery/internal/extractors/docx"
	"github.com/custodia-labs/docquery/internal/extractors/markdown"
	"github.com/custodia-labs/docquery/internal/extractors/pdf"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry dispatches documents to extractors by file extension.
type Registry struct {
	byExt map[string]driven.BlockExtractor
}

// NewRegistry creates an empty extractor registry.
func NewRegistry() *Registry {
	return &Registry{
		byExt: make(map[string]driven.BlockExtractor),
	}
}

// NewDefaultRegistry creates a registry with the built-in extractors.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(pdf.New())
	r.Register(markdown.New())
	r.Register(docx.New())
	return r
}

// Register adds an extractor for each extension it supports. Later
// registrations win on extension conflicts.
func (r *Registry) Register(e driven.BlockExtractor) {
	for _, ext := range e.SupportedExtensions() {
		r.byExt[strings.ToLower(ext)] = e
	}
}

// ForFile returns the extractor for the file's extension, or
// domain.ErrUnsupportedType when no extractor handles it.
func (r *Registry) ForFile(path string) (driven.BlockExtractor, error) {
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := r.byExt[ext]
	if !ok {
		return nil, domain.ErrUnsupportedType
	}
	return e, nil
}

// SupportedExtensions returns all registered extensions, sorted.
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
