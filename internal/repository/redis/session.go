package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Rrens/voice-agent/internal/domain"
)

const (
	sessionPrefix = "session:"
	maxTxRetries  = 5
)

// SessionStore keeps sessions in Redis: a hash of call metadata and a list of
// JSON encoded turns per call. Both keys expire after the TTL of inactivity.
type SessionStore struct {
	client *Client
	ttl    time.Duration
}

// NewSessionStore creates a Redis backed session store
func NewSessionStore(client *Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func metaKey(id string) string  { return sessionPrefix + id + ":meta" }
func turnsKey(id string) string { return sessionPrefix + id + ":turns" }

func (s *SessionStore) Create(ctx context.Context, session *domain.Session) error {
	created, err := s.client.rdb.HSetNX(ctx, metaKey(session.ID), "id", session.ID).Result()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if !created {
		return domain.ErrSessionExists
	}

	pipe := s.client.rdb.TxPipeline()
	pipe.HSet(ctx, metaKey(session.ID),
		"customer_name", session.CustomerName,
		"phone_number", session.PhoneNumber,
		"created_at", session.CreatedAt.Format(time.RFC3339Nano),
		"last_active_at", session.LastActiveAt.Format(time.RFC3339Nano),
	)
	if len(session.Turns) > 0 {
		values, err := encodeTurns(session.Turns)
		if err != nil {
			return err
		}
		pipe.RPush(ctx, turnsKey(session.ID), values...)
	}
	s.expire(ctx, pipe, session.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *SessionStore) GetOrCreate(ctx context.Context, id string) (*domain.Session, error) {
	err := s.Create(ctx, domain.NewSession(id))
	if err != nil && !errors.Is(err, domain.ErrSessionExists) {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	pipe := s.client.rdb.Pipeline()
	metaCmd := pipe.HGetAll(ctx, metaKey(id))
	turnsCmd := pipe.LRange(ctx, turnsKey(id), 0, -1)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	meta := metaCmd.Val()
	if len(meta) == 0 {
		return nil, domain.ErrSessionNotFound
	}

	session := &domain.Session{
		ID:           id,
		CustomerName: meta["customer_name"],
		PhoneNumber:  meta["phone_number"],
		Turns:        make([]domain.Turn, 0, len(turnsCmd.Val())),
	}
	session.CreatedAt, _ = time.Parse(time.RFC3339Nano, meta["created_at"])
	session.LastActiveAt, _ = time.Parse(time.RFC3339Nano, meta["last_active_at"])

	for _, raw := range turnsCmd.Val() {
		var turn domain.Turn
		if err := json.Unmarshal([]byte(raw), &turn); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn: %w", err)
		}
		session.Turns = append(session.Turns, turn)
	}

	touch := s.client.rdb.Pipeline()
	s.expire(ctx, touch, id)
	_, _ = touch.Exec(ctx)

	return session, nil
}

func (s *SessionStore) Append(ctx context.Context, id string, turns ...domain.Turn) error {
	values, err := encodeTurns(turns)
	if err != nil {
		return err
	}

	return s.watch(ctx, id, func(tx *redis.Tx) error {
		if err := requireExists(ctx, tx, id); err != nil {
			return err
		}
		if len(values) == 0 {
			return nil
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, turnsKey(id), values...)
			pipe.HSet(ctx, metaKey(id), "last_active_at", time.Now().UTC().Format(time.RFC3339Nano))
			s.expire(ctx, pipe, id)
			return nil
		})
		if err != nil && err != redis.TxFailedErr {
			return fmt.Errorf("failed to append turns: %w", err)
		}
		return err
	})
}

func (s *SessionStore) ReplaceLastAssistant(ctx context.Context, id string, content string, source domain.TurnSource) error {
	key := turnsKey(id)
	return s.watch(ctx, id, func(tx *redis.Tx) error {
		if err := requireExists(ctx, tx, id); err != nil {
			return err
		}

		raw, err := tx.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return fmt.Errorf("failed to load turns: %w", err)
		}

		for i := len(raw) - 1; i >= 0; i-- {
			var turn domain.Turn
			if err := json.Unmarshal([]byte(raw[i]), &turn); err != nil {
				return fmt.Errorf("failed to unmarshal turn: %w", err)
			}
			if turn.Role != domain.RoleAssistant {
				continue
			}

			turn.Content = content
			turn.Source = source
			data, err := json.Marshal(turn)
			if err != nil {
				return fmt.Errorf("failed to marshal turn: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.LSet(ctx, key, int64(i), data)
				pipe.HSet(ctx, metaKey(id), "last_active_at", time.Now().UTC().Format(time.RFC3339Nano))
				s.expire(ctx, pipe, id)
				return nil
			})
			return err
		}
		return domain.ErrNoAssistantTurn
	})
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	deleted, err := s.client.rdb.Del(ctx, metaKey(id), turnsKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if deleted == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// watch runs fn as an optimistic transaction over both keys of a session,
// retrying when a concurrent writer or an expiry touched them first
func (s *SessionStore) watch(ctx context.Context, id string, fn func(tx *redis.Tx) error) error {
	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = s.client.rdb.Watch(ctx, fn, metaKey(id), turnsKey(id))
		if err != redis.TxFailedErr {
			return err
		}
	}
	return fmt.Errorf("session %s kept changing: %w", id, err)
}

// requireExists checks the meta hash inside a watched transaction so the
// write that follows cannot revive an expired session
func requireExists(ctx context.Context, tx *redis.Tx, id string) error {
	n, err := tx.Exists(ctx, metaKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *SessionStore) expire(ctx context.Context, pipe redis.Pipeliner, id string) {
	if s.ttl <= 0 {
		return
	}
	pipe.Expire(ctx, metaKey(id), s.ttl)
	pipe.Expire(ctx, turnsKey(id), s.ttl)
}

func encodeTurns(turns []domain.Turn) ([]interface{}, error) {
	values := make([]interface{}, len(turns))
	for i, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal turn: %w", err)
		}
		values[i] = data
	}
	return values, nil
}
