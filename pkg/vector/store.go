// Package vector stores document chunks with their embeddings in
// Postgres (pgvector) and serves similarity search over them. Chunks are
// scoped by file id; chunk_index preserves the original document order.
package vector

import (
	"context"
)

// Store is the narrow contract the pipelines depend on. Upsert must be
// idempotent per file id: callers check HasChunks first, and re-indexing
// an already indexed document replaces its rows instead of duplicating.
type Store interface {
	Upsert(ctx context.Context, chunks []string, fileID string) error
	HasChunks(ctx context.Context, fileID string) (bool, error)
	SimilaritySearch(ctx context.Context, fileID, query string, k int) ([]string, error)
	GetAll(ctx context.Context, fileID string) ([]string, error)
	DeleteDocument(ctx context.Context, fileID string) error
}
