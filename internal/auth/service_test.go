package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"toptrack/internal/config"
	"toptrack/internal/database"

	"github.com/stretchr/testify/require"
)

func newTestService(expiresIn time.Duration) (*Service, database.Store) {
	store := database.NewMemoryStore()
	cfg := &config.Config{
		Session: config.SessionConfig{
			Secret:    []byte("test-secret"),
			ExpiresIn: expiresIn,
		},
	}
	return NewService(store, cfg), store
}

func TestService_CreateSessionAndValidate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store := newTestService(time.Hour)

	resp, err := svc.CreateSession(ctx, "  alice  ")
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	require.Equal(t, "alice", resp.Participant.Username)
	require.NotEmpty(t, resp.Participant.ID)

	// The participant was persisted.
	participant, err := store.GetParticipantByID(ctx, resp.Participant.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", participant.Username)

	session, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	require.Equal(t, resp.Participant.ID, session.ParticipantID)
	require.Equal(t, "alice", session.Username)
}

func TestService_CreateSession_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newTestService(time.Hour)

	_, err := svc.CreateSession(ctx, "   ")
	require.Error(t, err)

	_, err = svc.CreateSession(ctx, strings.Repeat("x", 51))
	require.Error(t, err)
}

func TestService_SessionFor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store := newTestService(time.Hour)

	token, err := svc.SessionFor(ctx, "spotify-user-1", "DJ Host")
	require.NoError(t, err)

	session, err := svc.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "spotify-user-1", session.ParticipantID)
	require.Equal(t, "DJ Host", session.Username)

	participant, err := store.GetParticipantByID(ctx, "spotify-user-1")
	require.NoError(t, err)
	require.Equal(t, "DJ Host", participant.Username)
}

func TestService_ValidateToken_Rejections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newTestService(time.Hour)

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)

	// Token signed with a different secret.
	other, _ := newTestService(time.Hour)
	other.cfg.Session.Secret = []byte("other-secret")
	resp, err := other.CreateSession(ctx, "mallory")
	require.NoError(t, err)
	_, err = svc.ValidateToken(resp.Token)
	require.Error(t, err)
}

func TestService_ValidateToken_Expired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newTestService(-time.Minute)

	resp, err := svc.CreateSession(ctx, "alice")
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.Token)
	require.Error(t, err)
}
