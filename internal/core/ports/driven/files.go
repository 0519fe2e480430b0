package driven

import "context"

// SaveResult describes a stored file.
type SaveResult struct {
	// StoragePath locates the file for later reads.
	StoragePath string

	// SizeBytes is the stored size.
	SizeBytes int64

	// ContentType is the detected or declared MIME type.
	ContentType string
}

// FileStorage stores and retrieves raw document bytes. Paths are scoped by
// owner and project so one tenant can never address another's files.
type FileStorage interface {
	// Save writes the document and returns its storage location.
	Save(ctx context.Context, ownerID, projectID, filename string, data []byte, contentType string) (*SaveResult, error)

	// ReadBytes loads the full contents of a stored file.
	ReadBytes(ctx context.Context, storagePath string) ([]byte, error)

	// Delete removes a stored file.
	Delete(ctx context.Context, storagePath string) error
}

// DocumentRegistry resolves registered documents to their storage location.
// Ownership checks happen here: a document not visible to the owner resolves
// to domain.ErrNotFound.
type DocumentRegistry interface {
	// Register records a stored document and returns its document id.
	Register(ctx context.Context, ownerID, projectID, filename, storagePath string) (string, error)

	// Resolve returns the storage path for a document.
	Resolve(ctx context.Context, ownerID, projectID, documentID string) (string, error)
}
