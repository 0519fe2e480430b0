package services

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
	"github.com/custodia-labs/docquery/internal/core/ports/driving"
	"github.com/custodia-labs/docquery/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService stores documents and registers them for indexing.
type DocumentService struct {
	files      driven.FileStorage
	documents  driven.DocumentRegistry
	extractors driven.ExtractorRegistry
}

// NewDocumentService creates a new document service.
func NewDocumentService(
	files driven.FileStorage,
	documents driven.DocumentRegistry,
	extractors driven.ExtractorRegistry,
) *DocumentService {
	return &DocumentService{
		files:      files,
		documents:  documents,
		extractors: extractors,
	}
}

// Add stores and registers a document. Unsupported file types are rejected
// before anything is written.
func (s *DocumentService) Add(
	ctx context.Context, ownerID, projectID, filename string, data []byte,
) (*driving.AddResult, error) {
	if strings.TrimSpace(ownerID) == "" || strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("%w: owner and project are required", domain.ErrInvalidInput)
	}
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return nil, fmt.Errorf("%w: filename is required", domain.ErrInvalidInput)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: document is empty", domain.ErrInvalidInput)
	}
	if _, err := s.extractors.ForFile(filename); err != nil {
		return nil, err
	}

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	saved, err := s.files.Save(ctx, ownerID, projectID, filename, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	documentID, err := s.documents.Register(ctx, ownerID, projectID, filename, saved.StoragePath)
	if err != nil {
		// The orphaned file would never be reachable; remove it.
		if delErr := s.files.Delete(ctx, saved.StoragePath); delErr != nil {
			logger.Warn("Could not remove orphaned file %s: %v", saved.StoragePath, delErr)
		}
		return nil, fmt.Errorf("register document: %w", err)
	}

	logger.Info("Added document %s (%d bytes) as %s", filename, saved.SizeBytes, documentID)
	return &driving.AddResult{
		DocumentID:  documentID,
		StoragePath: saved.StoragePath,
		SizeBytes:   saved.SizeBytes,
		ContentType: saved.ContentType,
	}, nil
}
