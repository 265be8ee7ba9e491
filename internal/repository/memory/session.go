package memory

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/voice-agent/internal/domain"
)

// SessionStore keeps sessions in process memory. Sessions expire after the
// TTL of inactivity and the least recently active one is evicted when the
// store is full.
type SessionStore struct {
	mu          sync.Mutex
	cache       *cache.Cache
	maxSessions int

	listenersMu sync.RWMutex
	listeners   []func(callID string)
}

// NewSessionStore creates an in-memory session store. A zero ttl keeps
// sessions until deleted; a zero maxSessions removes the cap.
func NewSessionStore(ttl time.Duration, maxSessions int) *SessionStore {
	expiration := ttl
	cleanup := 10 * time.Minute
	if ttl <= 0 {
		expiration = cache.NoExpiration
		cleanup = 0
	} else if ttl < cleanup {
		cleanup = ttl
	}

	s := &SessionStore{
		cache:       cache.New(expiration, cleanup),
		maxSessions: maxSessions,
	}
	s.cache.OnEvicted(s.notify)
	return s
}

// OnEvicted registers fn to be called after a session leaves the store for
// any reason. fn must not call back into the store.
func (s *SessionStore) OnEvicted(fn func(callID string)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *SessionStore) notify(callID string, _ interface{}) {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()

	for _, fn := range s.listeners {
		fn(callID)
	}
}

// Create stores a new session, evicting the least recently active one when
// the store is full
func (s *SessionStore) Create(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.cache.Get(session.ID); found {
		return domain.ErrSessionExists
	}

	s.makeRoom()
	s.cache.SetDefault(session.ID, session.Clone())
	return nil
}

// GetOrCreate returns the session with the given id, creating an empty one
// if it does not exist
func (s *SessionStore) GetOrCreate(ctx context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.get(id); ok {
		session.LastActiveAt = time.Now().UTC()
		s.cache.SetDefault(id, session)
		return session.Clone(), nil
	}

	session := domain.NewSession(id)
	s.makeRoom()
	s.cache.SetDefault(id, session)
	return session.Clone(), nil
}

// Get returns a copy of the session without touching its expiry
func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.get(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

// Append adds turns to the end of the session history
func (s *SessionStore) Append(ctx context.Context, id string, turns ...domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.get(id)
	if !ok {
		return domain.ErrSessionNotFound
	}

	session.Turns = append(session.Turns, turns...)
	session.LastActiveAt = time.Now().UTC()
	s.cache.SetDefault(id, session)
	return nil
}

// ReplaceLastAssistant overwrites the content and source of the most recent
// assistant turn
func (s *SessionStore) ReplaceLastAssistant(ctx context.Context, id string, content string, source domain.TurnSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.get(id)
	if !ok {
		return domain.ErrSessionNotFound
	}

	for i := len(session.Turns) - 1; i >= 0; i-- {
		if session.Turns[i].Role == domain.RoleAssistant {
			session.Turns[i].Content = content
			session.Turns[i].Source = source
			session.LastActiveAt = time.Now().UTC()
			s.cache.SetDefault(id, session)
			return nil
		}
	}
	return domain.ErrNoAssistantTurn
}

// Delete removes the session and fires the eviction callback
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.get(id); !ok {
		return domain.ErrSessionNotFound
	}
	s.cache.Delete(id)
	return nil
}

// Len returns the number of live sessions
func (s *SessionStore) Len() int {
	return s.cache.ItemCount()
}

func (s *SessionStore) get(id string) (*domain.Session, bool) {
	v, found := s.cache.Get(id)
	if !found {
		return nil, false
	}
	session, ok := v.(*domain.Session)
	return session, ok
}

// makeRoom evicts the least recently active sessions until one more fits.
// Callers hold s.mu.
func (s *SessionStore) makeRoom() {
	if s.maxSessions <= 0 {
		return
	}

	s.cache.DeleteExpired()
	for s.cache.ItemCount() >= s.maxSessions {
		var (
			oldestID string
			oldestAt time.Time
		)
		for id, item := range s.cache.Items() {
			session, ok := item.Object.(*domain.Session)
			if !ok {
				continue
			}
			if oldestID == "" || session.LastActiveAt.Before(oldestAt) {
				oldestID = id
				oldestAt = session.LastActiveAt
			}
		}
		if oldestID == "" {
			return
		}

		log.Info().Str("call_id", oldestID).Int("max_sessions", s.maxSessions).Msg("Session store full, evicting least recently active session")
		s.cache.Delete(oldestID)
	}
}
