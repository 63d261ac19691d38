package vector

import (
	"context"
	"fmt"

	"ai-docassist-be/pkg/embedding"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

const insertBatchSize = 500

// PgVectorStore implements Store on Postgres with the pgvector
// extension. Query embeddings use the RETRIEVAL_QUERY task type,
// document embeddings RETRIEVAL_DOCUMENT (provider convention).
type PgVectorStore struct {
	db       *gorm.DB
	embedder embedding.EmbeddingProvider
}

var _ Store = &PgVectorStore{}

func NewPgVectorStore(db *gorm.DB, embedder embedding.EmbeddingProvider) *PgVectorStore {
	return &PgVectorStore{
		db:       db,
		embedder: embedder,
	}
}

func (s *PgVectorStore) Upsert(ctx context.Context, chunks []string, fileID string) error {
	if len(chunks) == 0 {
		return fmt.Errorf("vector: no chunks to upsert for %s", fileID)
	}

	rows := make([]*DocumentChunk, 0, len(chunks))
	for i, text := range chunks {
		res, err := s.embedder.Generate(text, "RETRIEVAL_DOCUMENT")
		if err != nil {
			return fmt.Errorf("vector: embed chunk %d: %w", i, err)
		}
		rows = append(rows, &DocumentChunk{
			FileId:         fileID,
			Content:        text,
			EmbeddingValue: pgvector.NewVector(res.Vector()),
			ChunkIndex:     i,
		})
	}

	// Replace-then-insert keeps re-indexing idempotent.
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("file_id = ?", fileID).Delete(&DocumentChunk{}).Error; err != nil {
			return fmt.Errorf("vector: clear existing chunks: %w", err)
		}
		if err := tx.CreateInBatches(rows, insertBatchSize).Error; err != nil {
			return fmt.Errorf("vector: insert chunks: %w", err)
		}
		return nil
	})
}

func (s *PgVectorStore) HasChunks(ctx context.Context, fileID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&DocumentChunk{}).
		Where("file_id = ?", fileID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("vector: count chunks: %w", err)
	}
	return count > 0, nil
}

func (s *PgVectorStore) SimilaritySearch(ctx context.Context, fileID, query string, k int) ([]string, error) {
	if k <= 0 {
		k = 5
	}
	res, err := s.embedder.Generate(query, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, fmt.Errorf("vector: embed query: %w", err)
	}

	var rows []*DocumentChunk
	// pgvector cosine distance ordering: embedding_value <=> query vector
	err = s.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order(gorm.Expr("embedding_value <=> ?", pgvector.NewVector(res.Vector()))).
		Limit(k).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("vector: similarity search: %w", err)
	}

	return contents(rows), nil
}

func (s *PgVectorStore) GetAll(ctx context.Context, fileID string) ([]string, error) {
	var rows []*DocumentChunk
	err := s.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("chunk_index ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("vector: get all chunks: %w", err)
	}
	return contents(rows), nil
}

func (s *PgVectorStore) DeleteDocument(ctx context.Context, fileID string) error {
	err := s.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Delete(&DocumentChunk{}).Error
	if err != nil {
		return fmt.Errorf("vector: delete document: %w", err)
	}
	return nil
}

func contents(rows []*DocumentChunk) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Content
	}
	return out
}
