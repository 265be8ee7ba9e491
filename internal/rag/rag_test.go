package rag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/voice-agent/internal/domain"
	"github.com/Rrens/voice-agent/internal/embedding"
)

// keywordEmbedder maps text onto a fixed vocabulary so that similarity is
// predictable in tests
type keywordEmbedder struct {
	vocab []string
	err   error
}

func newKeywordEmbedder() *keywordEmbedder {
	return &keywordEmbedder{vocab: []string{"refund", "price", "weeks", "certificate", "mlops"}}
}

func (k *keywordEmbedder) Name() string { return "keyword" }

func (k *keywordEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if k.err != nil {
		return nil, k.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		vec := make([]float32, len(k.vocab)+1)
		for j, word := range k.vocab {
			vec[j] = float32(strings.Count(lower, word))
		}
		vec[len(k.vocab)] = 0.01
		out[i] = embedding.Normalize(vec)
	}
	return out, nil
}

// buildPDF writes a minimal PDF with one line of text per page
func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()

	n := len(pages)
	fontObj := 3 + 2*n
	var objects []string
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, n)
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n))

	for i, text := range pages {
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 %d 0 R >> >> >>", 4+2*i, fontObj),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return buf.Bytes()
}

func split(t *testing.T, s *Splitter, text string) []string {
	t.Helper()
	chunks, err := s.Split(text)
	require.NoError(t, err)
	return chunks
}

func TestSplitter_ShortText(t *testing.T) {
	s := NewSplitter(500, 50)
	assert.Equal(t, []string{"Hello there"}, split(t, s, "Hello there"))
	assert.Empty(t, split(t, s, ""))
	assert.Empty(t, split(t, s, " \n\n "))
}

func TestSplitter_RespectsChunkSize(t *testing.T) {
	s := NewSplitter(40, 10)

	text := strings.Repeat("The bootcamp covers large language models. ", 10) +
		"\n\n" + strings.Repeat("Graduates receive a certificate. ", 5)

	chunks := split(t, s, text)
	require.Greater(t, len(chunks), 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 40, "chunk %q too long", c)
		assert.Equal(t, strings.TrimSpace(c), c)
	}
}

func TestSplitter_Overlap(t *testing.T) {
	s := NewSplitter(20, 8)

	chunks := split(t, s, "alpha beta gamma delta epsilon zeta eta theta")
	require.Greater(t, len(chunks), 1)

	// each chunk after the first starts with words carried over from the previous one
	for i := 1; i < len(chunks); i++ {
		first := strings.Fields(chunks[i])[0]
		assert.Contains(t, chunks[i-1], first)
	}
}

func TestSplitter_PrefersParagraphs(t *testing.T) {
	s := NewSplitter(40, 0)

	chunks := split(t, s, "Price is $499.\n\nRefunds in 14 days.")
	assert.Equal(t, []string{"Price is $499.\n\nRefunds in 14 days."}, chunks)

	chunks = split(t, s, "Price is four hundred dollars.\n\nRefunds in fourteen days.")
	assert.Equal(t, []string{"Price is four hundred dollars.", "Refunds in fourteen days."}, chunks)
}

func TestSplitter_LongWord(t *testing.T) {
	s := NewSplitter(10, 0)

	chunks := split(t, s, strings.Repeat("x", 25))
	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("x", 10), chunks[0])
	assert.Equal(t, strings.Repeat("x", 5), chunks[2])
}

func TestSplitter_CountsCharactersNotBytes(t *testing.T) {
	s := NewSplitter(10, 0)

	chunks := split(t, s, strings.Repeat("é", 20))
	require.Len(t, chunks, 2)
	assert.Equal(t, 10, len([]rune(chunks[0])))
}

func TestMemoryStore_Search(t *testing.T) {
	e := newKeywordEmbedder()
	chunks := []domain.Chunk{
		{Index: 0, Content: "The price is $499"},
		{Index: 1, Content: "Refund within 14 days"},
		{Index: 2, Content: "Runs for 12 weeks"},
	}
	texts := []string{chunks[0].Content, chunks[1].Content, chunks[2].Content}
	vectors, err := e.Embed(context.Background(), texts)
	require.NoError(t, err)

	store, err := NewMemoryStore(context.Background(), "doc", chunks, vectors)
	require.NoError(t, err)

	query, err := e.Embed(context.Background(), []string{"what about a refund"})
	require.NoError(t, err)

	results, err := store.Search(context.Background(), query[0], 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Index)
	assert.Greater(t, results[0].Score, results[1].Score)

	_, err = NewMemoryStore(context.Background(), "doc", chunks, vectors[:1])
	assert.Error(t, err)
}

func TestExtractPages(t *testing.T) {
	data := buildPDF(t, "Our price is 499 dollars", "Refund policy is 14 days")

	pages, err := ExtractPages(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].Number)
	assert.Contains(t, pages[0].Text, "price")
	assert.Contains(t, pages[1].Text, "Refund")
}

func TestExtractPages_NotPDF(t *testing.T) {
	data := []byte("this is not a pdf at all")

	_, err := ExtractPages(bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, ErrUnreadableDocument)
}

func TestBuilder_Build(t *testing.T) {
	data := buildPDF(t, "Our price is 499 dollars", "Refund policy is 14 days", "The course runs 12 weeks")
	b := NewBuilder(NewSplitter(500, 50), newKeywordEmbedder(), 2, nil)

	idx, err := b.Build(context.Background(), "brochure.pdf", bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	info := idx.Info()
	assert.Equal(t, "brochure.pdf", info.Name)
	assert.Equal(t, 3, info.Pages)
	assert.Equal(t, 3, info.Chunks)
	assert.NotEmpty(t, info.ID)

	results, err := idx.Search(context.Background(), "How many weeks?", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 3, results[0].Page)
	assert.Equal(t, "brochure.pdf", results[0].Document)
}

func TestBuilder_EmbedFailure(t *testing.T) {
	data := buildPDF(t, "Our price is 499 dollars")
	e := newKeywordEmbedder()
	e.err = errors.New("quota exceeded")

	stored := false
	factory := func(ctx context.Context, docID string, chunks []domain.Chunk, vectors [][]float32) (VectorStore, error) {
		stored = true
		return NewMemoryStore(ctx, docID, chunks, vectors)
	}

	_, err := NewBuilder(NewSplitter(500, 50), e, 8, factory).Build(context.Background(), "a.pdf", bytes.NewReader(data), int64(len(data)))
	assert.Error(t, err)
	assert.False(t, stored)
}

type fakeIndex struct {
	id       string
	released atomic.Int32
}

func (f *fakeIndex) Search(ctx context.Context, query string, k int) ([]domain.Chunk, error) {
	return []domain.Chunk{{Content: f.id}}, nil
}

func (f *fakeIndex) Info() DocumentInfo { return DocumentInfo{ID: f.id} }

func (f *fakeIndex) Release(ctx context.Context) error {
	f.released.Add(1)
	return nil
}

func lookupID(t *testing.T, r *Registry, callID string) (string, bool) {
	t.Helper()
	idx, done, ok := r.Acquire(callID)
	defer done()
	if !ok {
		return "", false
	}
	return idx.Info().ID, true
}

func TestRegistry_Scoping(t *testing.T) {
	r := NewRegistry(0)

	_, ok := lookupID(t, r, "call-1")
	assert.False(t, ok)

	global := &fakeIndex{id: "global"}
	r.Set("", global)

	id, ok := lookupID(t, r, "call-1")
	require.True(t, ok)
	assert.Equal(t, "global", id)

	own := &fakeIndex{id: "own"}
	r.Set("call-1", own)

	id, ok = lookupID(t, r, "call-1")
	require.True(t, ok)
	assert.Equal(t, "own", id)

	id, ok = lookupID(t, r, "call-2")
	require.True(t, ok)
	assert.Equal(t, "global", id)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_ReplaceReleasesPrevious(t *testing.T) {
	r := NewRegistry(0)

	first := &fakeIndex{id: "first"}
	second := &fakeIndex{id: "second"}

	r.Set("call-1", first)
	r.Set("call-1", second)
	assert.Equal(t, int32(1), first.released.Load())
	assert.Equal(t, int32(0), second.released.Load())

	g1 := &fakeIndex{id: "g1"}
	r.Set("", g1)
	r.Set("", &fakeIndex{id: "g2"})
	assert.Equal(t, int32(1), g1.released.Load())
}

func TestRegistry_LeaseOutlivesSwap(t *testing.T) {
	r := NewRegistry(0)

	first := &fakeIndex{id: "first"}
	r.Set("call-1", first)

	idx, done, ok := r.Acquire("call-1")
	require.True(t, ok)

	r.Set("call-1", &fakeIndex{id: "second"})
	assert.Equal(t, int32(0), first.released.Load(), "index in use must not be released")
	assert.Same(t, first, idx)

	id, _ := lookupID(t, r, "call-1")
	assert.Equal(t, "second", id)

	done()
	assert.Equal(t, int32(1), first.released.Load())

	done()
	assert.Equal(t, int32(1), first.released.Load())
}

func TestRegistry_LeaseOutlivesRemoveCall(t *testing.T) {
	r := NewRegistry(0)

	own := &fakeIndex{id: "own"}
	r.Set("call-1", own)

	_, done, ok := r.Acquire("call-1")
	require.True(t, ok)

	r.RemoveCall("call-1")
	assert.Equal(t, int32(0), own.released.Load())
	assert.False(t, r.Has("call-1"))

	done()
	assert.Equal(t, int32(1), own.released.Load())
}

func TestRegistry_RemoveCall(t *testing.T) {
	r := NewRegistry(0)

	own := &fakeIndex{id: "own"}
	global := &fakeIndex{id: "global"}
	r.Set("call-1", own)
	r.Set("", global)

	r.RemoveCall("call-1")
	assert.Equal(t, int32(1), own.released.Load())
	assert.Equal(t, 0, r.Len())

	id, ok := lookupID(t, r, "call-1")
	require.True(t, ok)
	assert.Equal(t, "global", id)
	assert.Equal(t, int32(0), global.released.Load())

	r.Close()
	assert.Equal(t, int32(1), global.released.Load())
	assert.False(t, r.Has("call-1"))
}
