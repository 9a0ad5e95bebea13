package core

import "errors"

// Error taxonomy shared by the ingestion and search paths. Callers match with
// errors.Is; concrete causes are wrapped around these.
var (
	// ErrUnsupportedFormat means no extractor handles the declared content type.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrMalformedInput means the payload could not be decoded into canonical text.
	ErrMalformedInput = errors.New("malformed input")
	// ErrConfiguration is fatal at startup (bad chunk size/overlap, unknown backend...).
	ErrConfiguration = errors.New("configuration error")
	// ErrEmbedding is a transient failure of the embedding provider.
	ErrEmbedding = errors.New("embedding failure")
	// ErrStoreWrite is a failed write to the metadata or vector store.
	ErrStoreWrite = errors.New("store write failure")
	// ErrInconsistentState means a compensating delete failed and the stores
	// disagree until someone reconciles them.
	ErrInconsistentState = errors.New("inconsistent state")
	// ErrNotFound is returned for unknown document identifiers.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuery rejects empty query text or a non-positive top_k.
	ErrInvalidQuery = errors.New("invalid query")
)
