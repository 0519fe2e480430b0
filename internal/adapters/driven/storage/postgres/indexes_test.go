package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docquery/internal/core/domain"
)

func TestIndexModelRoundTrip(t *testing.T) {
	dims := 512
	index := &domain.DocumentIndex{
		ID:             "idx-1",
		OwnerID:        "owner-1",
		ProjectID:      "proj-1",
		DocumentID:     "doc-1",
		StoragePath:    "/data/doc-1.pdf",
		ChunkerVersion: "structural/v1",
		EmbedConfig: domain.EmbedConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-large",
			BatchSize:  32,
			Dimensions: &dims,
		},
		Status:          domain.IndexRunning,
		Progress:        40,
		Message:         "embedded 10/25 chunks",
		CancelRequested: true,
		UpdatedAt:       time.Now().UTC(),
	}

	got := fromIndexModel(toIndexModel(index))

	assert.Equal(t, index.ID, got.ID)
	assert.Equal(t, index.Status, got.Status)
	assert.Equal(t, index.Progress, got.Progress)
	assert.Equal(t, index.Message, got.Message)
	assert.True(t, got.CancelRequested)
	assert.Equal(t, index.EmbedConfig.Signature(), got.EmbedConfig.Signature())
	require.NotNil(t, got.EmbedConfig.Dimensions)
	assert.Equal(t, 512, *got.EmbedConfig.Dimensions)
}

func TestIndexModelNilDimensions(t *testing.T) {
	index := &domain.DocumentIndex{
		ID: "idx-1",
		EmbedConfig: domain.EmbedConfig{
			Provider: "ollama",
			Model:    "nomic-embed-text",
		},
		Status:    domain.IndexPending,
		UpdatedAt: time.Now().UTC(),
	}

	model := toIndexModel(index)
	assert.False(t, model.EmbedDimensions.Valid)

	got := fromIndexModel(model)
	assert.Nil(t, got.EmbedConfig.Dimensions)
	assert.Equal(t, index.EmbedConfig.Signature(), got.EmbedConfig.Signature())
}
