package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// DefaultBatchSize is used when an EmbedConfig carries a non-positive
// batch size.
const DefaultBatchSize = 16

// EmbedConfig identifies an embedding setup. Two configs are interchangeable
// for retrieval iff their signatures are equal. An index keeps the config it
// was created with and never regenerates it.
type EmbedConfig struct {
	// Provider names the embedding backend ("openai", "ollama", ...).
	Provider string `json:"provider" toml:"provider"`

	// Model is the embedding model name.
	Model string `json:"model" toml:"model"`

	// BatchSize is how many texts are embedded per provider call.
	BatchSize int `json:"batch_size" toml:"batch_size"`

	// Dimensions optionally overrides the model's native vector size.
	Dimensions *int `json:"dimensions,omitempty" toml:"dimensions,omitempty"`
}

// EffectiveBatchSize returns BatchSize, falling back to DefaultBatchSize
// when non-positive.
func (c EmbedConfig) EffectiveBatchSize() int {
	if c.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return c.BatchSize
}

// Canonical returns a stable serialisation of the config. Keys are emitted
// in a fixed order so the result is independent of any map iteration or
// JSON field ordering.
func (c EmbedConfig) Canonical() string {
	dims := ""
	if c.Dimensions != nil {
		dims = fmt.Sprintf("%d", *c.Dimensions)
	}
	parts := []string{
		"batch_size=" + fmt.Sprintf("%d", c.BatchSize),
		"dimensions=" + dims,
		"model=" + c.Model,
		"provider=" + c.Provider,
	}
	return strings.Join(parts, "|")
}

// Signature returns a stable hash over the canonical form. It is the
// consistency key shared by the indexing and retrieval pipelines: vectors
// written under one signature are only ever searched under the same one.
func (c EmbedConfig) Signature() string {
	sum := sha256.Sum256([]byte(c.Canonical()))
	return hex.EncodeToString(sum[:16])
}
