package llm

import "context"

// Chat roles understood by every provider
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message sent to a provider
type Message struct {
	Role    string
	Content string
}

// Request contains chat completion parameters
type Request struct {
	// System is the system prompt. Providers with a dedicated system field use
	// it there, the rest prepend it as a system message.
	System      string
	Messages    []Message
	Model       string
	Temperature float64
	MaxTokens   int
}

// Response contains LLM generation result
type Response struct {
	Content    string
	Model      string
	TokensUsed int
	LatencyMs  int64
}

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// AvailableModels returns list of supported models
	AvailableModels() []string

	// DefaultModel returns the default model
	DefaultModel() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool

	// Chat runs one completion over the given conversation
	Chat(ctx context.Context, req Request) (*Response, error)
}
