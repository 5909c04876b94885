package ports

import "errors"

// Errors shared across the port boundary. Adapters wrap these so usecases can
// branch with errors.Is.
var (
	// ErrCollectionNotFound indicates no index has been built yet.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists indicates CreateCollection hit an existing collection.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrDuplicateID indicates a batch carried the same record id twice.
	ErrDuplicateID = errors.New("duplicate record id")

	// ErrEmbeddingMismatch indicates the collection was built with a different embedder.
	ErrEmbeddingMismatch = errors.New("embedding model mismatch")

	// ErrNotText indicates a file could not be decoded as text.
	ErrNotText = errors.New("file is not valid UTF-8 text")

	// ErrUnsupportedKind indicates an extractor was asked for an unknown kind.
	ErrUnsupportedKind = errors.New("unsupported source kind")
)
