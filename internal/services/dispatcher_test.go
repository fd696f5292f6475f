package services

import (
	"context"
	"testing"

	"toptrack/internal/database"
	"toptrack/internal/models"

	"github.com/stretchr/testify/require"
)

func newDispatcherFixture(t *testing.T) (*Dispatcher, database.Store, *captureBus, string) {
	t.Helper()

	store := database.NewMemoryStore()
	bus := &captureBus{}
	locks := NewRoomLocks()
	rooms := NewRoomService(store, bus)
	queue := NewQueueService(store, locks, bus, &fakeCredentials{token: "valid-token"}, &fakeCatalog{})
	votes := NewVoteService(store, locks, bus)
	dispatcher := NewDispatcher(rooms, queue, votes, bus)

	room, err := store.CreateRoom(context.Background(), "party", "host-1")
	require.NoError(t, err)
	return dispatcher, store, bus, room.ID
}

func TestDispatcher_JoinAndLeave(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dispatcher, store, bus, roomID := newDispatcherFixture(t)

	err := dispatcher.Dispatch(ctx, roomID, "user-1", "alice", &models.ClientMessage{Type: models.ActionJoinRoom})
	require.NoError(t, err)

	participant, err := store.GetParticipantByID(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, participant.IsOnline)
	require.NotNil(t, participant.CurrentRoomID)
	require.Equal(t, roomID, *participant.CurrentRoomID)

	err = dispatcher.Dispatch(ctx, roomID, "user-1", "alice", &models.ClientMessage{Type: models.ActionLeaveRoom})
	require.NoError(t, err)

	participant, err = store.GetParticipantByID(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, participant.IsOnline)

	events := bus.all()
	require.Len(t, events, 2)
	require.Equal(t, models.EventUserJoined, events[0].event.Type)
	require.Equal(t, models.EventUserLeft, events[1].event.Type)
}

func TestDispatcher_JoinUnknownRoom(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dispatcher, _, _, _ := newDispatcherFixture(t)

	err := dispatcher.Dispatch(ctx, "missing-room", "user-1", "alice", &models.ClientMessage{Type: models.ActionJoinRoom})
	require.ErrorIs(t, err, database.ErrNotFound)
}

func TestDispatcher_SendMessage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dispatcher, _, bus, roomID := newDispatcherFixture(t)

	err := dispatcher.Dispatch(ctx, roomID, "user-1", "alice", &models.ClientMessage{
		Type:    models.ActionSendMessage,
		Message: "great track",
	})
	require.NoError(t, err)

	events := bus.all()
	require.Len(t, events, 1)
	require.Equal(t, models.EventReceiveMessage, events[0].event.Type)
	payload, ok := events[0].event.Data.(models.ChatPayload)
	require.True(t, ok)
	require.Equal(t, "great track", payload.Message)
	require.Equal(t, "user-1", payload.UserID)
}

func TestDispatcher_VoteSong(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dispatcher, store, _, roomID := newDispatcherFixture(t)
	song := seedSong(t, store, roomID, "track-a")

	err := dispatcher.Dispatch(ctx, roomID, "user-1", "alice", &models.ClientMessage{
		Type:   models.ActionVoteSong,
		SongID: song.ID,
	})
	require.NoError(t, err)

	got, err := store.GetSongByID(ctx, song.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.VoteCount)
}

func TestDispatcher_GetNextSong(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dispatcher, store, bus, roomID := newDispatcherFixture(t)
	song := seedSong(t, store, roomID, "track-a")
	bus.reset()

	err := dispatcher.Dispatch(ctx, roomID, "user-1", "alice", &models.ClientMessage{Type: models.ActionGetNextSong})
	require.NoError(t, err)

	got, err := store.GetSongByID(ctx, song.ID)
	require.NoError(t, err)
	require.True(t, got.IsPlayed)
}

func TestDispatcher_UnknownAction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dispatcher, _, _, roomID := newDispatcherFixture(t)

	err := dispatcher.Dispatch(ctx, roomID, "user-1", "alice", &models.ClientMessage{Type: "teleport"})
	require.Error(t, err)
}
