package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docquery/internal/core/domain"
)

func newDocumentService() (*DocumentService, *memFiles, *memDocs) {
	files := newMemFiles()
	docs := newMemDocs()
	return NewDocumentService(files, docs, textRegistry{}), files, docs
}

func TestDocumentAdd(t *testing.T) {
	svc, files, docs := newDocumentService()

	res, err := svc.Add(context.Background(), "owner-1", "proj-1", "notes.txt", []byte("hello"))
	require.NoError(t, err)
	assert.NotEmpty(t, res.DocumentID)
	assert.Equal(t, int64(5), res.SizeBytes)

	data, err := files.ReadBytes(context.Background(), res.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	path, err := docs.Resolve(context.Background(), "owner-1", "proj-1", res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, res.StoragePath, path)
}

func TestDocumentAdd_StripsDirectories(t *testing.T) {
	svc, _, _ := newDocumentService()

	res, err := svc.Add(context.Background(), "owner-1", "proj-1", "/tmp/../etc/notes.txt", []byte("x"))
	require.NoError(t, err)
	assert.NotContains(t, res.StoragePath, "..")
}

func TestDocumentAdd_Validation(t *testing.T) {
	svc, _, _ := newDocumentService()
	ctx := context.Background()

	_, err := svc.Add(ctx, "", "proj-1", "notes.txt", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Add(ctx, "owner-1", "proj-1", "", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Add(ctx, "owner-1", "proj-1", "notes.txt", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Add(ctx, "owner-1", "proj-1", "image.png", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}
