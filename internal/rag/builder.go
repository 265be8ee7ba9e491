package rag

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/voice-agent/internal/domain"
	"github.com/Rrens/voice-agent/internal/embedding"
)

// Builder turns an uploaded PDF into a searchable index
type Builder struct {
	splitter  *Splitter
	embedder  embedding.Provider
	batchSize int
	newStore  StoreFactory
}

// NewBuilder creates an index builder. A nil factory keeps vectors in memory.
func NewBuilder(splitter *Splitter, embedder embedding.Provider, batchSize int, newStore StoreFactory) *Builder {
	if newStore == nil {
		newStore = NewMemoryStore
	}
	return &Builder{
		splitter:  splitter,
		embedder:  embedder,
		batchSize: batchSize,
		newStore:  newStore,
	}
}

// Build extracts, splits and embeds the document. Nothing is kept on error.
func (b *Builder) Build(ctx context.Context, docName string, r io.ReaderAt, size int64) (Index, error) {
	pages, err := ExtractPages(r, size)
	if err != nil {
		return nil, err
	}

	var chunks []domain.Chunk
	for _, page := range pages {
		texts, err := b.splitter.Split(page.Text)
		if err != nil {
			return nil, err
		}
		for _, text := range texts {
			chunks = append(chunks, domain.Chunk{
				Index:    len(chunks),
				Page:     page.Number,
				Document: docName,
				Content:  text,
			})
		}
	}
	if len(chunks) == 0 {
		return nil, ErrNoText
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := embedding.EmbedBatched(ctx, b.embedder, texts, b.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to embed document: %w", err)
	}

	docID := uuid.NewString()
	store, err := b.newStore(ctx, docID, chunks, vectors)
	if err != nil {
		return nil, fmt.Errorf("failed to store document vectors: %w", err)
	}

	log.Info().
		Str("document", docName).
		Str("document_id", docID).
		Int("pages", len(pages)).
		Int("chunks", len(chunks)).
		Str("embedder", b.embedder.Name()).
		Msg("Document indexed")

	return &vectorIndex{
		info: DocumentInfo{
			ID:     docID,
			Name:   docName,
			Pages:  len(pages),
			Chunks: len(chunks),
		},
		embedder: b.embedder,
		store:    store,
	}, nil
}
