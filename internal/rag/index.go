package rag

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Rrens/voice-agent/internal/domain"
	"github.com/Rrens/voice-agent/internal/embedding"
)

// Index answers similarity queries over one ingested document
type Index interface {
	// Search returns the k chunks closest to the query, best first
	Search(ctx context.Context, query string, k int) ([]domain.Chunk, error)

	// Info describes the indexed document
	Info() DocumentInfo

	// Release frees any storage held by the index
	Release(ctx context.Context) error
}

// DocumentInfo describes an indexed document
type DocumentInfo struct {
	ID     string
	Name   string
	Pages  int
	Chunks int
}

// VectorStore holds chunk vectors and finds the nearest ones
type VectorStore interface {
	Search(ctx context.Context, vector []float32, k int) ([]domain.Chunk, error)
	Release(ctx context.Context) error
}

// StoreFactory persists the vectors of a new document and returns a store over them
type StoreFactory func(ctx context.Context, docID string, chunks []domain.Chunk, vectors [][]float32) (VectorStore, error)

// vectorIndex embeds queries and delegates the nearest-neighbour search to a store
type vectorIndex struct {
	info     DocumentInfo
	embedder embedding.Provider
	store    VectorStore
}

func (i *vectorIndex) Search(ctx context.Context, query string, k int) ([]domain.Chunk, error) {
	vectors, err := i.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected one query vector, got %d", len(vectors))
	}
	return i.store.Search(ctx, vectors[0], k)
}

func (i *vectorIndex) Info() DocumentInfo {
	return i.info
}

func (i *vectorIndex) Release(ctx context.Context) error {
	return i.store.Release(ctx)
}

// MemoryStore is an in-process exact cosine search over normalized vectors
type MemoryStore struct {
	mu      sync.RWMutex
	chunks  []domain.Chunk
	vectors [][]float32
}

// NewMemoryStore is a StoreFactory keeping everything in process memory
func NewMemoryStore(ctx context.Context, docID string, chunks []domain.Chunk, vectors [][]float32) (VectorStore, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	return &MemoryStore{chunks: chunks, vectors: vectors}, nil
}

func (m *MemoryStore) Search(ctx context.Context, vector []float32, k int) ([]domain.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]domain.Chunk, len(m.chunks))
	for i, c := range m.chunks {
		c.Score = dot(vector, m.vectors[i])
		results[i] = c
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})

	if k > 0 && k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (m *MemoryStore) Release(ctx context.Context) error {
	m.mu.Lock()
	m.chunks, m.vectors = nil, nil
	m.mu.Unlock()
	return nil
}

// dot equals cosine similarity for unit vectors
func dot(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
