package mysql

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/voice-agent/internal/domain"
)

func TestCallArchive_RoundTrip(t *testing.T) {
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set, skipping MySQL integration test")
	}

	ctx := context.Background()
	archive, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer archive.Close()

	session := domain.NewSession(uuid.NewString())
	session.CustomerName = "Bob"
	session.Turns = []domain.Turn{domain.NewAssistantTurn("Hello Bob", domain.SourceChat)}

	require.NoError(t, archive.SaveCall(ctx, session))
	require.NoError(t, archive.AppendTurns(ctx, session.ID, []domain.Turn{
		domain.NewUserTurn("How much?"),
		domain.NewAssistantTurn("$499", domain.SourceRetrieval),
	}))

	turns, err := archive.ListTurns(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, domain.RoleUser, turns[1].Role)
	assert.Equal(t, domain.SourceRetrieval, turns[2].Source)
}
