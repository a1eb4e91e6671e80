package domain

// Passage is a retrieved chunk with its similarity score and source
// document name. Both backends normalize their results to this shape at
// the adapter boundary: local chunk metadata and remote grounding
// metadata arrive here looking identical.
type Passage struct {
	// DocumentName is the source document the passage came from.
	DocumentName string

	// ChunkIndex is the ordinal position within the document, where the
	// backend exposes one. Remote passages report 0.
	ChunkIndex int

	// Text is the passage content used for prompt assembly.
	Text string

	// Score is the similarity score; higher is more relevant.
	Score float64
}

// QueryResult is the answer to a retrieval-augmented query.
type QueryResult struct {
	// Answer is the generated answer text.
	Answer string

	// Citations is the ordered, deduplicated list of source document
	// names backing the answer. First occurrence across the ranked
	// passages wins.
	Citations []string

	// LatencyMs is the end-to-end query latency in milliseconds.
	LatencyMs int64
}
