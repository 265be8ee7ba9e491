package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/Rrens/voice-agent/internal/domain"
	"github.com/Rrens/voice-agent/internal/rag"
)

// VectorStore searches the chunks of one document stored in document_chunks
type VectorStore struct {
	db      *DB
	indexID string
}

// NewVectorStoreFactory returns a rag.StoreFactory that writes chunk vectors to pgvector
func NewVectorStoreFactory(db *DB) rag.StoreFactory {
	return func(ctx context.Context, docID string, chunks []domain.Chunk, vectors [][]float32) (rag.VectorStore, error) {
		if len(chunks) != len(vectors) {
			return nil, fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
		}

		query := `
			INSERT INTO document_chunks (index_id, document, chunk_index, page, content, embedding)
			VALUES ($1, $2, $3, $4, $5, $6)
		`

		tx, err := db.Pool.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		batch := &pgx.Batch{}
		for i, c := range chunks {
			batch.Queue(query, docID, c.Document, c.Index, c.Page, c.Content, pgvector.NewVector(vectors[i]))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("failed to insert chunks: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit chunks: %w", err)
		}

		return &VectorStore{db: db, indexID: docID}, nil
	}
}

// Search returns the k chunks nearest to vector by cosine distance
func (s *VectorStore) Search(ctx context.Context, vector []float32, k int) ([]domain.Chunk, error) {
	query := `
		SELECT chunk_index, page, document, content, 1 - (embedding <=> $2) AS score
		FROM document_chunks
		WHERE index_id = $1
		ORDER BY embedding <=> $2
		LIMIT $3
	`

	var limit any = k
	if k <= 0 {
		limit = nil
	}

	rows, err := s.db.Pool.Query(ctx, query, s.indexID, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.Index, &c.Page, &c.Document, &c.Content, &c.Score); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}

	return chunks, nil
}

// Release deletes the chunks of this document
func (s *VectorStore) Release(ctx context.Context) error {
	_, err := s.db.Pool.Exec(ctx, `DELETE FROM document_chunks WHERE index_id = $1`, s.indexID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}
