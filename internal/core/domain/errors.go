package domain

import "errors"

// Domain errors represent business logic failures.
// Adapters wrap their infrastructure errors into these sentinels so
// callers can match with errors.Is regardless of backend.
var (
	// ErrNotFound indicates a requested project or document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a document with the same name is already
	// indexed in the project.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFormat indicates the uploaded file extension is not in
	// the supported set. Deterministic; never retried.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrExtraction indicates text extraction failed on malformed content.
	// Deterministic; never retried.
	ErrExtraction = errors.New("text extraction failed")

	// ErrEmbedding indicates the embedding endpoint failed.
	ErrEmbedding = errors.New("embedding service failed")

	// ErrVectorStore indicates a vector store operation failed.
	ErrVectorStore = errors.New("vector store failed")

	// ErrIndexing indicates ingestion failed partway and already-upserted
	// chunks were rolled back. Wraps the causing stage error.
	ErrIndexing = errors.New("indexing failed")

	// ErrEmptyCorpus indicates a query against a project with no indexed
	// documents. The generation endpoint is never invoked in this case.
	ErrEmptyCorpus = errors.New("no indexed documents")

	// ErrGeneration indicates the generation endpoint failed or timed out.
	ErrGeneration = errors.New("answer generation failed")

	// ErrRemoteService indicates the managed file-search service failed.
	ErrRemoteService = errors.New("remote search service failed")

	// ErrWriteConflict indicates the registry file itself could not be
	// written. Normal contention is serialized, not rejected.
	ErrWriteConflict = errors.New("registry write conflict")
)
