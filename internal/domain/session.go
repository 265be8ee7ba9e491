package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned when a call id has no session
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists is returned when creating a session under a taken id
	ErrSessionExists = errors.New("session already exists")

	// ErrNoAssistantTurn is returned when there is no assistant turn to replace
	ErrNoAssistantTurn = errors.New("session has no assistant turn")
)

// Session is the conversation state of one call or browser session
type Session struct {
	ID           string    `json:"id"`
	CustomerName string    `json:"customer_name,omitempty"`
	PhoneNumber  string    `json:"phone_number,omitempty"`
	Turns        []Turn    `json:"turns"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// NewSession creates an empty session
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:           id,
		Turns:        []Turn{},
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Clone returns a deep copy so callers cannot mutate stored turns
func (s *Session) Clone() *Session {
	c := *s
	c.Turns = make([]Turn, len(s.Turns))
	copy(c.Turns, s.Turns)
	return &c
}

// LastTurn returns the most recent turn with the given role
func (s *Session) LastTurn(role MessageRole) (Turn, bool) {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Role == role {
			return s.Turns[i], true
		}
	}
	return Turn{}, false
}

// History returns the turns in the wire shape used by the API
func (s *Session) History() []HistoryItem {
	items := make([]HistoryItem, len(s.Turns))
	for i, t := range s.Turns {
		items[i] = HistoryItem{Role: t.Role, Content: t.Content}
	}
	return items
}

// SessionStore defines the interface for session storage
type SessionStore interface {
	// Create registers a new session. It fails if the id is already taken.
	Create(ctx context.Context, session *Session) error

	// GetOrCreate returns the session for id, registering an empty one first if needed.
	GetOrCreate(ctx context.Context, id string) (*Session, error)

	// Get returns a snapshot of the session or ErrSessionNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Append adds turns to the end of the session history in order.
	Append(ctx context.Context, id string, turns ...Turn) error

	// ReplaceLastAssistant overwrites the content of the most recent assistant turn.
	ReplaceLastAssistant(ctx context.Context, id string, content string, source TurnSource) error

	// Delete removes the session.
	Delete(ctx context.Context, id string) error
}

// CallArchive keeps a durable copy of calls and their turns
type CallArchive interface {
	SaveCall(ctx context.Context, session *Session) error
	AppendTurns(ctx context.Context, callID string, turns []Turn) error
	ListTurns(ctx context.Context, callID string) ([]Turn, error)
	Close() error
}
