package rag

import (
	"errors"
	"fmt"
)

// ErrEmptyCollection is returned when an operation is given a blank collection name.
var ErrEmptyCollection = errors.New("rag: collection name must not be empty")

// ErrEmptyQuery is returned when a retrieval query is blank.
var ErrEmptyQuery = errors.New("rag: query must not be empty")

// ErrProcessLocal is returned when a store that other processes must see is
// requested with a backend that only lives inside the current process.
var ErrProcessLocal = errors.New("rag: vector backend is local to one process")

func errMismatch(docs, vecs int) error {
	return fmt.Errorf("rag: %d documents but %d embeddings", docs, vecs)
}

// checkParallel validates the docs/embeddings pairing shared by every store.
func checkParallel(collection string, docs []Document, embeddings [][]float32) error {
	if collection == "" {
		return ErrEmptyCollection
	}
	if len(docs) != len(embeddings) {
		return errMismatch(len(docs), len(embeddings))
	}
	return nil
}
