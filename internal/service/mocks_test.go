package service

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/Rrens/voice-agent/internal/domain"
	"github.com/Rrens/voice-agent/internal/llm"
	"github.com/Rrens/voice-agent/internal/rag"
	"github.com/Rrens/voice-agent/internal/speech"
)

// MockProvider mocks the llm.Provider interface. Chat may be stubbed with a
// func(llm.Request) *llm.Response to compute the reply from the request.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string              { return "mock" }
func (m *MockProvider) AvailableModels() []string { return []string{"mock-1"} }
func (m *MockProvider) DefaultModel() string      { return "mock-1" }
func (m *MockProvider) IsConfigured() bool        { return true }

func (m *MockProvider) Chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	args := m.Called(ctx, req)
	if fn, ok := args.Get(0).(func(llm.Request) *llm.Response); ok {
		return fn(req), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Response), args.Error(1)
}

// echo replies with the last message it was sent
func echo(req llm.Request) *llm.Response {
	last := req.Messages[len(req.Messages)-1]
	return &llm.Response{Content: "echo: " + last.Content, Model: "mock-1"}
}

// MockTranscriber mocks the speech.Transcriber interface
type MockTranscriber struct {
	mock.Mock
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	args := m.Called(ctx, audio, filename)
	return args.String(0), args.Error(1)
}

// MockSynthesizer mocks the speech.Synthesizer interface
type MockSynthesizer struct {
	mock.Mock
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text string, opts speech.SynthesizeOptions) (*speech.Audio, error) {
	args := m.Called(ctx, text, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*speech.Audio), args.Error(1)
}

// MockArchive mocks the domain.CallArchive interface
type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) SaveCall(ctx context.Context, session *domain.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockArchive) AppendTurns(ctx context.Context, callID string, turns []domain.Turn) error {
	args := m.Called(ctx, callID, turns)
	return args.Error(0)
}

func (m *MockArchive) ListTurns(ctx context.Context, callID string) ([]domain.Turn, error) {
	args := m.Called(ctx, callID)
	return args.Get(0).([]domain.Turn), args.Error(1)
}

func (m *MockArchive) Close() error {
	return m.Called().Error(0)
}

// stubIndex returns fixed chunks for every query
type stubIndex struct {
	chunks   []domain.Chunk
	err      error
	released bool
}

func (s *stubIndex) Search(ctx context.Context, query string, k int) ([]domain.Chunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.chunks, nil
}

func (s *stubIndex) Info() rag.DocumentInfo {
	return rag.DocumentInfo{ID: "doc-1", Name: "brochure.pdf", Pages: 1, Chunks: len(s.chunks)}
}

func (s *stubIndex) Release(ctx context.Context) error {
	s.released = true
	return nil
}

// wordEmbedder gives every text a vector from its length, enough to build indexes
type wordEmbedder struct{}

func (wordEmbedder) Name() string { return "words" }

func (wordEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(strings.Fields(t))), 1}
	}
	return out, nil
}
