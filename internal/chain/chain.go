package chain

import (
	"context"

	"github.com/Rrens/voice-agent/internal/domain"
	"github.com/Rrens/voice-agent/internal/llm"
	"github.com/Rrens/voice-agent/internal/rag"
)

// ConversationChain answers from the persona prompt and the call history
type ConversationChain struct {
	pipeline *Pipeline
}

// NewConversationChain creates the plain chat chain
func NewConversationChain(provider llm.Provider, settings Settings) *ConversationChain {
	return &ConversationChain{
		pipeline: NewPipeline("conversation",
			chatPrompt{settings: settings},
			invoke{provider: provider},
			parse{},
		),
	}
}

// Run produces the assistant reply to userText. History is read, never modified.
func (c *ConversationChain) Run(ctx context.Context, history []domain.Turn, userText string) (string, error) {
	state := &State{History: history, Query: userText}
	if err := c.pipeline.Execute(ctx, state); err != nil {
		return "", err
	}
	return state.Answer, nil
}

// Answer is a retrieval-grounded reply with the chunks it was built from
type Answer struct {
	Text    string
	Sources []domain.Chunk
}

// RetrievalChain answers from the top matching chunks of an ingested document
type RetrievalChain struct {
	pipeline *Pipeline
}

// NewRetrievalChain creates the retrieval-augmented chain. With historyAware
// unset the question is answered without the call history.
func NewRetrievalChain(provider llm.Provider, settings Settings, topK int, historyAware bool) *RetrievalChain {
	if topK <= 0 {
		topK = 3
	}
	return &RetrievalChain{
		pipeline: NewPipeline("retrieval",
			retrieve{topK: topK},
			retrievalPrompt{settings: settings, historyAware: historyAware},
			invoke{provider: provider},
			parse{},
		),
	}
}

// Run retrieves context from index and answers query
func (c *RetrievalChain) Run(ctx context.Context, index rag.Index, history []domain.Turn, query string) (*Answer, error) {
	state := &State{History: history, Query: query, Index: index}
	if err := c.pipeline.Execute(ctx, state); err != nil {
		return nil, err
	}
	return &Answer{Text: state.Answer, Sources: state.Sources}, nil
}
