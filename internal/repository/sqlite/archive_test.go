package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/voice-agent/internal/domain"
)

func openTestArchive(t *testing.T) *CallArchive {
	t.Helper()
	archive, err := Open(context.Background(), filepath.Join(t.TempDir(), "calls.db"))
	require.NoError(t, err)
	t.Cleanup(func() { archive.Close() })
	return archive
}

func TestCallArchive_SaveAndList(t *testing.T) {
	archive := openTestArchive(t)
	ctx := context.Background()

	session := domain.NewSession("call-1")
	session.CustomerName = "Alice"
	session.Turns = []domain.Turn{domain.NewAssistantTurn("Hi Alice!", domain.SourceChat)}

	require.NoError(t, archive.SaveCall(ctx, session))
	require.NoError(t, archive.AppendTurns(ctx, "call-1", []domain.Turn{
		domain.NewUserTurn("What do you teach?"),
		domain.NewAssistantTurn("LLMs, computer vision and MLOps.", domain.SourceChat),
	}))

	turns, err := archive.ListTurns(ctx, "call-1")
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "Hi Alice!", turns[0].Content)
	assert.Equal(t, domain.RoleUser, turns[1].Role)
	assert.Equal(t, domain.SourceUser, turns[1].Source)
	assert.Equal(t, domain.RoleAssistant, turns[2].Role)
	assert.False(t, turns[2].CreatedAt.IsZero())
}

func TestCallArchive_SaveCallIsIdempotent(t *testing.T) {
	archive := openTestArchive(t)
	ctx := context.Background()

	session := domain.NewSession("call-1")
	require.NoError(t, archive.SaveCall(ctx, session))

	session.CustomerName = "Bob"
	require.NoError(t, archive.SaveCall(ctx, session))

	turns, err := archive.ListTurns(ctx, "call-1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestCallArchive_UnknownCallRejected(t *testing.T) {
	archive := openTestArchive(t)

	err := archive.AppendTurns(context.Background(), "missing", []domain.Turn{domain.NewUserTurn("hi")})
	assert.Error(t, err)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}
