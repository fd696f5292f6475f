package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"toptrack/internal/database"
	"toptrack/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// captureBus records published events for assertions.
type captureBus struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	roomID string
	event  models.Event
}

func (b *captureBus) Publish(roomID string, event models.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{roomID: roomID, event: event})
}

func (b *captureBus) all() []publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]publishedEvent, len(b.events))
	copy(out, b.events)
	return out
}

func (b *captureBus) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

func seedSong(t *testing.T, store database.Store, roomID, trackID string) *models.Song {
	t.Helper()
	now := time.Now().UTC()
	expires := now.Add(time.Hour)
	song := &models.Song{
		ID:             uuid.NewString(),
		RoomID:         roomID,
		Title:          "Track " + trackID,
		Artist:         "Artist",
		SpotifyTrackID: trackID,
		AddedBy:        "tester",
		AddedAt:        now,
		ExpiresAt:      &expires,
	}
	require.NoError(t, store.AddSong(context.Background(), song))
	return song
}

func TestVoteService_Toggle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := database.NewMemoryStore()
	bus := &captureBus{}
	votes := NewVoteService(store, NewRoomLocks(), bus)

	room, err := store.CreateRoom(ctx, "party", "host-1")
	require.NoError(t, err)
	song := seedSong(t, store, room.ID, "track-a")

	out, err := votes.Cast(ctx, room.ID, song.ID, "user-1", "up")
	require.NoError(t, err)
	require.Equal(t, VoteAdded, out.Result)
	require.Equal(t, 1, out.VoteCount)

	// Same voter, same song: toggles off.
	out, err = votes.Cast(ctx, room.ID, song.ID, "user-1", "up")
	require.NoError(t, err)
	require.Equal(t, VoteRemoved, out.Result)
	require.Equal(t, 0, out.VoteCount)

	// And back on.
	out, err = votes.Cast(ctx, room.ID, song.ID, "user-1", "up")
	require.NoError(t, err)
	require.Equal(t, VoteAdded, out.Result)
	require.Equal(t, 1, out.VoteCount)

	events := bus.all()
	require.Len(t, events, 3)
	for _, e := range events {
		require.Equal(t, models.EventSongVoted, e.event.Type)
	}
}

func TestVoteService_Switch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := database.NewMemoryStore()
	bus := &captureBus{}
	votes := NewVoteService(store, NewRoomLocks(), bus)

	room, err := store.CreateRoom(ctx, "party", "host-1")
	require.NoError(t, err)
	first := seedSong(t, store, room.ID, "track-a")
	second := seedSong(t, store, room.ID, "track-b")

	_, err = votes.Cast(ctx, room.ID, first.ID, "user-1", "up")
	require.NoError(t, err)
	bus.reset()

	out, err := votes.Cast(ctx, room.ID, second.ID, "user-1", "up")
	require.NoError(t, err)
	require.Equal(t, VoteSwitched, out.Result)
	require.Equal(t, second.ID, out.SongID)
	require.Equal(t, 1, out.VoteCount)
	require.Equal(t, first.ID, out.PrevSongID)
	require.Equal(t, 0, out.PrevCount)

	// The voter still holds exactly one vote row, on the new song.
	vote, err := store.GetVoteByVoter(ctx, room.ID, "user-1")
	require.NoError(t, err)
	require.Equal(t, second.ID, vote.SongID)

	// Counts converged on both songs.
	a, err := store.GetSongByID(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, 0, a.VoteCount)
	b, err := store.GetSongByID(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, 1, b.VoteCount)

	// One event per affected song: retraction first, then the new vote.
	events := bus.all()
	require.Len(t, events, 2)
	removed, ok := events[0].event.Data.(models.SongVotedPayload)
	require.True(t, ok)
	require.Equal(t, first.ID, removed.SongID)
	require.Equal(t, "removed", removed.VoteType)
	added, ok := events[1].event.Data.(models.SongVotedPayload)
	require.True(t, ok)
	require.Equal(t, second.ID, added.SongID)
	require.Equal(t, "up", added.VoteType)
}

// switchFailStore simulates a store failure during the switch mutation.
type switchFailStore struct {
	database.Store
}

func (s *switchFailStore) SwitchVote(context.Context, *models.Vote, *models.Vote) (int, int, error) {
	return 0, 0, errors.New("connection reset")
}

func TestVoteService_FailedSwitchChangesNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mem := database.NewMemoryStore()
	bus := &captureBus{}
	votes := NewVoteService(&switchFailStore{Store: mem}, NewRoomLocks(), bus)

	room, err := mem.CreateRoom(ctx, "party", "host-1")
	require.NoError(t, err)
	first := seedSong(t, mem, room.ID, "track-a")
	second := seedSong(t, mem, room.ID, "track-b")

	_, err = votes.Cast(ctx, room.ID, first.ID, "user-1", "up")
	require.NoError(t, err)
	bus.reset()

	// The switch fails at the store; the old vote, both counts, and the
	// wire all stay exactly as they were.
	_, err = votes.Cast(ctx, room.ID, second.ID, "user-1", "up")
	require.Error(t, err)
	require.Empty(t, bus.all())

	vote, err := mem.GetVoteByVoter(ctx, room.ID, "user-1")
	require.NoError(t, err)
	require.Equal(t, first.ID, vote.SongID)

	a, err := mem.GetSongByID(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, 1, a.VoteCount)
	b, err := mem.GetSongByID(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, 0, b.VoteCount)
}

func TestVoteService_IndependentVoters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := database.NewMemoryStore()
	votes := NewVoteService(store, NewRoomLocks(), &captureBus{})

	room, err := store.CreateRoom(ctx, "party", "host-1")
	require.NoError(t, err)
	song := seedSong(t, store, room.ID, "track-a")

	for _, user := range []string{"user-1", "user-2", "user-3"} {
		out, err := votes.Cast(ctx, room.ID, song.ID, user, "up")
		require.NoError(t, err)
		require.Equal(t, VoteAdded, out.Result)
	}

	got, err := store.GetSongByID(ctx, song.ID)
	require.NoError(t, err)
	require.Equal(t, 3, got.VoteCount)
}

func TestVoteService_SongFromAnotherRoom(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := database.NewMemoryStore()
	votes := NewVoteService(store, NewRoomLocks(), &captureBus{})

	roomA, err := store.CreateRoom(ctx, "a", "host-1")
	require.NoError(t, err)
	roomB, err := store.CreateRoom(ctx, "b", "host-2")
	require.NoError(t, err)
	song := seedSong(t, store, roomA.ID, "track-a")

	_, err = votes.Cast(ctx, roomB.ID, song.ID, "user-1", "up")
	require.ErrorIs(t, err, database.ErrNotFound)

	_, err = votes.Cast(ctx, roomA.ID, "missing-song", "user-1", "up")
	require.ErrorIs(t, err, database.ErrNotFound)
}

func TestVoteService_DefaultVoteType(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := database.NewMemoryStore()
	bus := &captureBus{}
	votes := NewVoteService(store, NewRoomLocks(), bus)

	room, err := store.CreateRoom(ctx, "party", "host-1")
	require.NoError(t, err)
	song := seedSong(t, store, room.ID, "track-a")

	_, err = votes.Cast(ctx, room.ID, song.ID, "user-1", "")
	require.NoError(t, err)

	events := bus.all()
	require.Len(t, events, 1)
	payload, ok := events[0].event.Data.(models.SongVotedPayload)
	require.True(t, ok)
	require.Equal(t, "up", payload.VoteType)
}
