package domain

import "time"

// MessageRole represents the speaker of a turn
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// TurnSource records which chain produced an assistant turn
type TurnSource string

const (
	SourceUser      TurnSource = "user"
	SourceChat      TurnSource = "chat"
	SourceRetrieval TurnSource = "retrieval"
)

// Turn is one utterance in a call. Turns are never edited after they are
// appended, except through SessionStore.ReplaceLastAssistant.
type Turn struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Source    TurnSource  `json:"source,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewUserTurn creates a user turn stamped with the current time
func NewUserTurn(content string) Turn {
	return Turn{
		Role:      RoleUser,
		Content:   content,
		Source:    SourceUser,
		CreatedAt: time.Now().UTC(),
	}
}

// NewAssistantTurn creates an assistant turn stamped with the current time
func NewAssistantTurn(content string, source TurnSource) Turn {
	return Turn{
		Role:      RoleAssistant,
		Content:   content,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
}

// HistoryItem is the wire shape of a turn in GET /conversation
type HistoryItem struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}
