// Package files stores raw document bytes on the local filesystem, laid out
// per owner and project under the data directory.
package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
)

// LocalStorage implements driven.FileStorage on a local directory. Files
// live under <root>/<owner>/<project>/<uuid><ext> so tenants never collide
// and re-uploads of the same filename never overwrite each other.
type LocalStorage struct {
	root string
}

var _ driven.FileStorage = (*LocalStorage)(nil)

// NewLocalStorage creates local file storage rooted at dir. An empty dir
// defaults to ~/.docquery/files.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".docquery", "files")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving storage directory: %w", err)
	}
	return &LocalStorage{root: root}, nil
}

// Root returns the storage root directory.
func (s *LocalStorage) Root() string {
	return s.root
}

// Save writes the document under the owner and project scope.
func (s *LocalStorage) Save(ctx context.Context, ownerID, projectID, filename string, data []byte, contentType string) (*driven.SaveResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ownerID == "" || projectID == "" {
		return nil, fmt.Errorf("%w: owner and project are required", domain.ErrInvalidInput)
	}

	dir := filepath.Join(s.root, sanitizeSegment(ownerID), sanitizeSegment(projectID))
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating scope directory: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	path := filepath.Join(dir, uuid.New().String()+ext)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("writing file: %w", err)
	}

	return &driven.SaveResult{
		StoragePath: path,
		SizeBytes:   int64(len(data)),
		ContentType: contentType,
	}, nil
}

// ReadBytes loads the full contents of a stored file.
func (s *LocalStorage) ReadBytes(ctx context.Context, storagePath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.checkScope(storagePath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(storagePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a stored file. Deleting a missing file is not an error.
func (s *LocalStorage) Delete(ctx context.Context, storagePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.checkScope(storagePath); err != nil {
		return err
	}

	if err := os.Remove(storagePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// checkScope rejects paths outside the storage root.
func (s *LocalStorage) checkScope(storagePath string) error {
	abs, err := filepath.Abs(storagePath)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	if !strings.HasPrefix(abs, s.root+string(filepath.Separator)) {
		return fmt.Errorf("%w: path outside storage root", domain.ErrInvalidInput)
	}
	return nil
}

// sanitizeSegment keeps identifiers safe to use as directory names.
func sanitizeSegment(segment string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, segment)
}
