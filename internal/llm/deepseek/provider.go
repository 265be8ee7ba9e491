package deepseek

import (
	"github.com/Rrens/voice-agent/internal/llm"
	"github.com/Rrens/voice-agent/internal/llm/openai"
)

const baseURL = "https://api.deepseek.com/v1"

// NewProvider creates a new DeepSeek provider. DeepSeek speaks the OpenAI
// chat completions protocol.
func NewProvider(apiKey, defaultModel string) llm.Provider {
	if defaultModel == "" {
		defaultModel = "deepseek-chat"
	}
	return openai.NewCompatible("deepseek", apiKey, defaultModel, baseURL, []string{
		"deepseek-chat",
		"deepseek-reasoner",
	})
}
