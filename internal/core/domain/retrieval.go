package domain

// Metric selects the distance function for vector search.
type Metric string

// Supported vector distance metrics. Adapters normalise scores so that
// higher is always more relevant; L2 distance is negated at the adapter
// boundary.
const (
	MetricCosine       Metric = "cosine"
	MetricInnerProduct Metric = "inner_product"
	MetricL2           Metric = "l2"
)

// MatchSource tells which retrieval path produced a match.
type MatchSource string

// Match sources.
const (
	MatchVector  MatchSource = "vector"
	MatchLexical MatchSource = "lexical"
)

// ChunkMatch is an ephemeral retrieval result. It is never persisted.
type ChunkMatch struct {
	// ChunkID identifies the matched chunk.
	ChunkID string

	// ChunkIndex is the chunk's position within its document.
	ChunkIndex int

	// Score is the normalised relevance score; higher is always better.
	Score float64

	// Source tells which search path produced the match.
	Source MatchSource

	// MatchedBy lists the indices of the sub-queries that produced this
	// match, in encounter order.
	MatchedBy []int
}

// Turn is one conversation exchange supplied as retrieval context.
type Turn struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// ContextChunk is one ranked chunk inside a ContextPack.
type ContextChunk struct {
	ID       string        `json:"id"`
	Index    int           `json:"index"`
	Text     string        `json:"text"`
	Score    float64       `json:"score"`
	Metadata ChunkMetadata `json:"metadata"`
	Citation string        `json:"citation"`
}

// ContextPack is the assembled output of the retrieval pipeline: the ranked
// chunks to ground an answer in, plus enough provenance to cite them.
type ContextPack struct {
	IndexID   string         `json:"index_id"`
	ProjectID string         `json:"project_id"`
	Query     string         `json:"query"`
	Signature string         `json:"signature"`
	Metric    Metric         `json:"metric"`
	Chunks    []ContextChunk `json:"chunks"`
}
