package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/voice-agent/internal/domain"
)

func TestSessionStore_GetOrCreate(t *testing.T) {
	s := NewSessionStore(time.Hour, 0)
	ctx := context.Background()

	session, err := s.GetOrCreate(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, "call-1", session.ID)
	assert.Empty(t, session.Turns)

	require.NoError(t, s.Append(ctx, "call-1", domain.NewUserTurn("hello")))

	again, err := s.GetOrCreate(ctx, "call-1")
	require.NoError(t, err)
	assert.Len(t, again.Turns, 1)
	assert.Equal(t, 1, s.Len())
}

func TestSessionStore_AppendPreservesOrder(t *testing.T) {
	s := NewSessionStore(time.Hour, 0)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, domain.NewSession("call-1")))
	require.NoError(t, s.Append(ctx, "call-1", domain.NewAssistantTurn("a0", domain.SourceChat)))
	require.NoError(t, s.Append(ctx, "call-1",
		domain.NewUserTurn("u1"),
		domain.NewAssistantTurn("a1", domain.SourceChat),
	))
	require.NoError(t, s.Append(ctx, "call-1",
		domain.NewUserTurn("u2"),
		domain.NewAssistantTurn("a2", domain.SourceRetrieval),
	))

	session, err := s.Get(ctx, "call-1")
	require.NoError(t, err)

	var contents []string
	for _, turn := range session.Turns {
		contents = append(contents, turn.Content)
	}
	assert.Equal(t, []string{"a0", "u1", "a1", "u2", "a2"}, contents)
}

func TestSessionStore_SnapshotsAreCopies(t *testing.T) {
	s := NewSessionStore(time.Hour, 0)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, domain.NewSession("call-1")))
	require.NoError(t, s.Append(ctx, "call-1", domain.NewUserTurn("original")))

	snapshot, err := s.Get(ctx, "call-1")
	require.NoError(t, err)
	snapshot.Turns[0].Content = "tampered"
	snapshot.Turns = append(snapshot.Turns, domain.NewUserTurn("extra"))

	fresh, err := s.Get(ctx, "call-1")
	require.NoError(t, err)
	require.Len(t, fresh.Turns, 1)
	assert.Equal(t, "original", fresh.Turns[0].Content)
}

func TestSessionStore_NotFound(t *testing.T) {
	s := NewSessionStore(time.Hour, 0)
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	assert.ErrorIs(t, s.Append(ctx, "missing", domain.NewUserTurn("x")), domain.ErrSessionNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "missing"), domain.ErrSessionNotFound)
	assert.ErrorIs(t, s.ReplaceLastAssistant(ctx, "missing", "x", domain.SourceChat), domain.ErrSessionNotFound)
}

func TestSessionStore_CreateDuplicate(t *testing.T) {
	s := NewSessionStore(time.Hour, 0)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, domain.NewSession("call-1")))
	assert.ErrorIs(t, s.Create(ctx, domain.NewSession("call-1")), domain.ErrSessionExists)
}

func TestSessionStore_ReplaceLastAssistant(t *testing.T) {
	s := NewSessionStore(time.Hour, 0)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, domain.NewSession("call-1")))
	assert.ErrorIs(t, s.ReplaceLastAssistant(ctx, "call-1", "x", domain.SourceRetrieval), domain.ErrNoAssistantTurn)

	require.NoError(t, s.Append(ctx, "call-1",
		domain.NewAssistantTurn("first", domain.SourceChat),
		domain.NewUserTurn("question"),
		domain.NewAssistantTurn("plain answer", domain.SourceChat),
	))
	require.NoError(t, s.ReplaceLastAssistant(ctx, "call-1", "grounded answer", domain.SourceRetrieval))

	session, err := s.Get(ctx, "call-1")
	require.NoError(t, err)
	require.Len(t, session.Turns, 3)
	assert.Equal(t, "first", session.Turns[0].Content)
	assert.Equal(t, "grounded answer", session.Turns[2].Content)
	assert.Equal(t, domain.SourceRetrieval, session.Turns[2].Source)
}

func TestSessionStore_DeleteNotifiesListeners(t *testing.T) {
	s := NewSessionStore(time.Hour, 0)
	ctx := context.Background()

	var evicted []string
	s.OnEvicted(func(callID string) { evicted = append(evicted, callID) })

	require.NoError(t, s.Create(ctx, domain.NewSession("call-1")))
	require.NoError(t, s.Delete(ctx, "call-1"))

	assert.Equal(t, []string{"call-1"}, evicted)
	_, err := s.Get(ctx, "call-1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionStore_MaxSessionsEvictsLeastRecentlyActive(t *testing.T) {
	s := NewSessionStore(time.Hour, 2)
	ctx := context.Background()

	var evicted []string
	s.OnEvicted(func(callID string) { evicted = append(evicted, callID) })

	now := time.Now().UTC()
	older := domain.NewSession("older")
	older.LastActiveAt = now.Add(-time.Hour)
	newer := domain.NewSession("newer")
	newer.LastActiveAt = now.Add(-time.Minute)

	require.NoError(t, s.Create(ctx, newer))
	require.NoError(t, s.Create(ctx, older))
	require.NoError(t, s.Create(ctx, domain.NewSession("latest")))

	assert.Equal(t, []string{"older"}, evicted)
	assert.Equal(t, 2, s.Len())

	_, err := s.Get(ctx, "newer")
	assert.NoError(t, err)
}

func TestSessionStore_TTLExpiry(t *testing.T) {
	s := NewSessionStore(20*time.Millisecond, 0)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, domain.NewSession("call-1")))
	time.Sleep(40 * time.Millisecond)

	_, err := s.Get(ctx, "call-1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionStore_ConcurrentAppends(t *testing.T) {
	s := NewSessionStore(time.Hour, 0)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, domain.NewSession("call-1")))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Append(ctx, "call-1",
				domain.NewUserTurn(fmt.Sprintf("u%d", i)),
				domain.NewAssistantTurn(fmt.Sprintf("a%d", i), domain.SourceChat),
			)
		}(i)
	}
	wg.Wait()

	session, err := s.Get(ctx, "call-1")
	require.NoError(t, err)
	require.Len(t, session.Turns, 100)

	// pairs are never interleaved
	for i := 0; i < len(session.Turns); i += 2 {
		assert.Equal(t, domain.RoleUser, session.Turns[i].Role)
		assert.Equal(t, "a"+session.Turns[i].Content[1:], session.Turns[i+1].Content)
	}
}
