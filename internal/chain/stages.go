package chain

import (
	"context"
	"strings"

	"github.com/Rrens/voice-agent/internal/domain"
	"github.com/Rrens/voice-agent/internal/llm"
)

// Settings shared by both chains
type Settings struct {
	Persona       llm.Persona
	Model         string
	Temperature   float64
	MaxTokens     int
	HistoryWindow int
}

// historyMessages converts the most recent turns into chat messages. A
// window of zero keeps the full history.
func historyMessages(history []domain.Turn, window int) []llm.Message {
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}
	msgs := make([]llm.Message, 0, len(history))
	for _, t := range history {
		msgs = append(msgs, llm.Message{Role: string(t.Role), Content: t.Content})
	}
	return msgs
}

// chatPrompt formats persona, history and the new user message
type chatPrompt struct {
	settings Settings
}

func (s chatPrompt) Name() string { return "format_chat_prompt" }

func (s chatPrompt) Run(ctx context.Context, state *State) error {
	msgs := historyMessages(state.History, s.settings.HistoryWindow)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: state.Query})

	state.Request = llm.Request{
		System:      llm.BuildSystemPrompt(s.settings.Persona),
		Messages:    msgs,
		Model:       s.settings.Model,
		Temperature: s.settings.Temperature,
		MaxTokens:   s.settings.MaxTokens,
	}
	return nil
}

// retrieve fetches the top k chunks for the query
type retrieve struct {
	topK int
}

func (s retrieve) Name() string { return "retrieve" }

func (s retrieve) Run(ctx context.Context, state *State) error {
	if state.Index == nil {
		return ErrNoContext
	}

	chunks, err := state.Index.Search(ctx, state.Query, s.topK)
	if err != nil {
		return err
	}

	for _, c := range chunks {
		if strings.TrimSpace(c.Content) != "" {
			state.Sources = append(state.Sources, c)
		}
	}
	if len(state.Sources) == 0 {
		return ErrNoContext
	}
	return nil
}

// retrievalPrompt stuffs the retrieved chunks into the question
type retrievalPrompt struct {
	settings     Settings
	historyAware bool
}

func (s retrievalPrompt) Name() string { return "format_retrieval_prompt" }

func (s retrievalPrompt) Run(ctx context.Context, state *State) error {
	blocks := make([]string, len(state.Sources))
	for i, c := range state.Sources {
		blocks[i] = c.Content
	}

	var msgs []llm.Message
	if s.historyAware {
		msgs = historyMessages(state.History, s.settings.HistoryWindow)
	}
	msgs = append(msgs, llm.Message{
		Role:    llm.RoleUser,
		Content: llm.BuildRetrievalPrompt(blocks, state.Query),
	})

	state.Request = llm.Request{
		System:      llm.BuildSystemPrompt(s.settings.Persona),
		Messages:    msgs,
		Model:       s.settings.Model,
		Temperature: s.settings.Temperature,
		MaxTokens:   s.settings.MaxTokens,
	}
	return nil
}

// invoke sends the formatted request to the model
type invoke struct {
	provider llm.Provider
}

func (s invoke) Name() string { return "invoke_model" }

func (s invoke) Run(ctx context.Context, state *State) error {
	resp, err := s.provider.Chat(ctx, state.Request)
	if err != nil {
		return err
	}
	state.Response = resp
	return nil
}

// parse turns the raw completion into the reply text
type parse struct{}

func (parse) Name() string { return "parse_output" }

func (parse) Run(ctx context.Context, state *State) error {
	state.Answer = llm.CleanReply(state.Response.Content)
	if state.Answer == "" {
		return ErrEmptyReply
	}
	return nil
}
