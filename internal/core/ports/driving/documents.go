package driving

import "context"

// AddResult describes a newly stored document.
type AddResult struct {
	DocumentID  string `json:"document_id"`
	StoragePath string `json:"storage_path"`
	SizeBytes   int64  `json:"size_bytes"`
	ContentType string `json:"content_type"`
}

// DocumentService stores documents and registers them for indexing.
type DocumentService interface {
	// Add stores the document bytes and registers the document under the
	// owner and project. The filename's extension must match a registered
	// extractor; unsupported types are rejected up front.
	Add(ctx context.Context, ownerID, projectID, filename string, data []byte) (*AddResult, error)
}
