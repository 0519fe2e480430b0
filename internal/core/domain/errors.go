package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist or is not
	// visible to the caller. Forbidden lookups deliberately collapse into
	// this error so existence is never leaked to unauthorised callers.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidQuery indicates the retrieval query is blank after trimming.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrIndexNotReady indicates the index exists but has not reached the
	// ready state. Callers may poll the index status and retry.
	ErrIndexNotReady = errors.New("index not ready")

	// ErrInvalidRetrieval indicates the retrieval pipeline could not obtain
	// usable query vectors from the embedding provider.
	ErrInvalidRetrieval = errors.New("invalid retrieval")

	// ErrIndexTerminal indicates an attempted transition out of a terminal
	// index state (ready, failed or cancelled).
	ErrIndexTerminal = errors.New("index in terminal state")

	// ErrUnsupportedType indicates no extractor is registered for a
	// document's file type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Indexing and retrieval both require it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRewriterUnavailable indicates the query rewrite service is not
	// configured. Retrieval degrades to the original query.
	ErrRewriterUnavailable = errors.New("query rewriter unavailable")

	// ErrGeneratorUnavailable indicates no answer generation model is
	// configured. Retrieval still works; only answering requires it.
	ErrGeneratorUnavailable = errors.New("answer generator unavailable")
)
