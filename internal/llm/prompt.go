package llm

import (
	"fmt"
	"strings"
)

// Persona identifies the sales agent the prompts speak as
type Persona struct {
	Name    string
	Company string
}

// DefaultPersona is the agent used when none is configured
var DefaultPersona = Persona{Name: "Sarah", Company: "AI Mastery Bootcamp"}

func (p Persona) withDefaults() Persona {
	if p.Name == "" {
		p.Name = DefaultPersona.Name
	}
	if p.Company == "" {
		p.Company = DefaultPersona.Company
	}
	return p
}

const courseFacts = `Course to Pitch - %[1]s:
1. Duration: 12 weeks
2. Price: $499 (special offer: $299)

Key Benefits:
1. Learn LLMs, Computer Vision, and MLOps
2. Hands-on projects
3. Job placement assistance
4. Certificate upon completion`

// BuildSystemPrompt creates the persona prompt shared by both chains
func BuildSystemPrompt(p Persona) string {
	p = p.withDefaults()

	return fmt.Sprintf(`You are a friendly and persuasive AI sales agent named %[1]s.
You represent a company offering an '%[2]s'.
Greet users warmly, ask a few questions to understand their interests.
Only respond to company or course related questions, avoid other questions.
Then pitch the course confidently. Respond naturally, handle any objections
politely (such as price, time, or usefulness), and always try to move the conversation
toward getting their interest or a commitment. Keep your tone polite, helpful, and enthusiastic.

%[3]s`, p.Name, p.Company, fmt.Sprintf(courseFacts, p.Company))
}

// BuildGreeting creates the canned opener of a call
func BuildGreeting(p Persona, customerName string) string {
	p = p.withDefaults()
	return fmt.Sprintf("Hi %s, I’m %s from %s! Ready to boost your AI skills?", customerName, p.Name, p.Company)
}

// BuildRetrievalPrompt wraps retrieved context and the question for the
// retrieval chain
func BuildRetrievalPrompt(contextBlocks []string, question string) string {
	var sb strings.Builder
	sb.WriteString("Use only the following pieces of context to answer the question at the end. ")
	sb.WriteString("If the answer is not in the context, just say that you don't know, don't try to make up an answer.\n\n")
	for i, block := range contextBlocks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(strings.TrimSpace(block))
	}
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n\nHelpful Answer:")
	return sb.String()
}

// CleanReply normalizes a raw model reply into the text returned to the caller
func CleanReply(content string) string {
	content = strings.TrimSpace(content)

	// Some models echo the completion cue of the retrieval prompt
	content = strings.TrimSpace(strings.TrimPrefix(content, "Helpful Answer:"))

	if len(content) >= 2 && content[0] == '"' && content[len(content)-1] == '"' {
		content = strings.TrimSpace(content[1 : len(content)-1])
	}

	return content
}
