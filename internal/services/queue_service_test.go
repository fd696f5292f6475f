package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"toptrack/internal/database"
	"toptrack/internal/models"
	"toptrack/internal/spotify"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	mu sync.Mutex

	track *spotify.Track
	err   error

	// rejectTokens are access tokens the fake treats as expired.
	rejectTokens map[string]bool
	calls        []string
}

func (c *fakeCatalog) GetTrack(_ context.Context, accessToken, _ string) (*spotify.Track, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, accessToken)
	if c.err != nil {
		return nil, c.err
	}
	if c.rejectTokens[accessToken] {
		return nil, spotify.ErrUnauthorized
	}
	track := *c.track
	return &track, nil
}

type fakeCredentials struct {
	mu        sync.Mutex
	token     string
	err       error
	refreshed int
}

func (c *fakeCredentials) GetValidToken(_ context.Context, _ string) (string, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", time.Time{}, c.err
	}
	return c.token, time.Now().Add(time.Hour), nil
}

func (c *fakeCredentials) ForceRefresh(_ context.Context, _, _ string) (string, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshed++
	c.token = "refreshed-token"
	return c.token, time.Now().Add(time.Hour), nil
}

func newQueueFixture(t *testing.T) (*QueueService, database.Store, *captureBus, *fakeCatalog, *fakeCredentials, string) {
	t.Helper()

	store := database.NewMemoryStore()
	bus := &captureBus{}
	catalog := &fakeCatalog{
		track: &spotify.Track{
			Title:      "Bohemian Rhapsody",
			Artist:     "Queen",
			Album:      "A Night at the Opera",
			DurationMS: 354000,
			ImageURL:   "https://i.scdn.co/image/cover",
			Popularity: 87,
		},
	}
	creds := &fakeCredentials{token: "valid-token"}
	queue := NewQueueService(store, NewRoomLocks(), bus, creds, catalog)

	room, err := store.CreateRoom(context.Background(), "party", "host-1")
	require.NoError(t, err)
	return queue, store, bus, catalog, creds, room.ID
}

const trackURL = "https://open.spotify.com/track/3z8h0TU7ReDPLIbEnYhWZb?si=abc123"

func TestQueueService_AddTrack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	queue, _, bus, _, _, roomID := newQueueFixture(t)

	song, err := queue.AddTrack(ctx, roomID, trackURL, "alice")
	require.NoError(t, err)
	require.Equal(t, "Bohemian Rhapsody", song.Title)
	require.Equal(t, "Queen", song.Artist)
	require.Equal(t, "3z8h0TU7ReDPLIbEnYhWZb", song.SpotifyTrackID)
	require.Equal(t, 354, song.Duration)
	require.Equal(t, 354000, song.DurationMS)
	require.Equal(t, "alice", song.AddedBy)
	require.NotNil(t, song.ExpiresAt)
	require.WithinDuration(t, song.AddedAt.Add(time.Hour), *song.ExpiresAt, time.Second)

	// Persisted and readable through the queue.
	songs, err := queue.ListQueue(ctx, roomID, 0)
	require.NoError(t, err)
	require.Len(t, songs, 1)
	require.Equal(t, song.ID, songs[0].ID)

	// The add was announced.
	events := bus.all()
	require.Len(t, events, 1)
	require.Equal(t, models.EventSongAdded, events[0].event.Type)
	payload, ok := events[0].event.Data.(models.SongAddedPayload)
	require.True(t, ok)
	require.Equal(t, song.ID, payload.Song.ID)
}

func TestQueueService_AddTrack_Duplicate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	queue, _, _, _, _, roomID := newQueueFixture(t)

	_, err := queue.AddTrack(ctx, roomID, trackURL, "alice")
	require.NoError(t, err)

	_, err = queue.AddTrack(ctx, roomID, trackURL, "bob")
	require.ErrorIs(t, err, database.ErrDuplicateSong)
}

func TestQueueService_AddTrack_ConcurrentDuplicate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	queue, _, _, _, _, roomID := newQueueFixture(t)

	// Both adds can pass the pre-check before either inserts; the insert
	// itself re-checks atomically, so exactly one wins.
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := queue.AddTrack(ctx, roomID, trackURL, "alice")
			errs <- err
		}()
	}

	var okCount, dupCount int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			okCount++
		case errors.Is(err, database.ErrDuplicateSong):
			dupCount++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, okCount)
	require.Equal(t, 1, dupCount)

	songs, err := queue.ListQueue(ctx, roomID, 0)
	require.NoError(t, err)
	require.Len(t, songs, 1)
}

func TestQueueService_AddTrack_BadURL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	queue, _, _, _, _, roomID := newQueueFixture(t)

	_, err := queue.AddTrack(ctx, roomID, "https://example.com/not-a-track", "alice")
	require.Error(t, err)
}

func TestQueueService_AddTrack_UnknownRoom(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	queue, _, _, _, _, _ := newQueueFixture(t)

	_, err := queue.AddTrack(ctx, "missing-room", trackURL, "alice")
	require.ErrorIs(t, err, database.ErrNotFound)
}

func TestQueueService_AddTrack_RetriesOnceAfterRejectedToken(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	queue, _, _, catalog, creds, roomID := newQueueFixture(t)
	catalog.rejectTokens = map[string]bool{"valid-token": true}

	song, err := queue.AddTrack(ctx, roomID, trackURL, "alice")
	require.NoError(t, err)
	require.Equal(t, "Bohemian Rhapsody", song.Title)

	require.Equal(t, 1, creds.refreshed)
	require.Equal(t, []string{"valid-token", "refreshed-token"}, catalog.calls)
}

func TestQueueService_AddTrack_CatalogError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	queue, _, bus, catalog, _, roomID := newQueueFixture(t)
	catalog.err = spotify.ErrTrackNotFound

	_, err := queue.AddTrack(ctx, roomID, trackURL, "alice")
	require.ErrorIs(t, err, spotify.ErrTrackNotFound)
	require.Empty(t, bus.all())
}

func TestQueueService_Advance(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	queue, store, bus, _, _, roomID := newQueueFixture(t)

	first := seedSong(t, store, roomID, "track-a")
	second := seedSong(t, store, roomID, "track-b")
	for _, user := range []string{"user-1", "user-2"} {
		_, err := store.AddVote(ctx, &models.Vote{
			ID:      uuid.NewString(),
			SongID:  second.ID,
			RoomID:  roomID,
			UserID:  user,
			VotedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
	}
	bus.reset()

	// Highest-voted entry plays first.
	next, err := queue.Advance(ctx, roomID)
	require.NoError(t, err)
	require.Equal(t, second.ID, next.ID)
	require.True(t, next.IsPlayed)

	room, err := store.GetRoomByID(ctx, roomID)
	require.NoError(t, err)
	require.NotNil(t, room.CurrentSongID)
	require.Equal(t, second.ID, *room.CurrentSongID)

	// A played song never reappears.
	songs, err := queue.ListQueue(ctx, roomID, 0)
	require.NoError(t, err)
	require.Len(t, songs, 1)
	require.Equal(t, first.ID, songs[0].ID)

	events := bus.all()
	require.Len(t, events, 2)
	require.Equal(t, models.EventNextSong, events[0].event.Type)
	require.Equal(t, models.EventSongRemoved, events[1].event.Type)
}

func TestQueueService_Advance_EmptyQueue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	queue, _, bus, _, _, roomID := newQueueFixture(t)

	next, err := queue.Advance(ctx, roomID)
	require.NoError(t, err)
	require.Nil(t, next)

	events := bus.all()
	require.Len(t, events, 1)
	require.Equal(t, models.EventNextSong, events[0].event.Type)
	payload, ok := events[0].event.Data.(models.NextSongPayload)
	require.True(t, ok)
	require.Nil(t, payload.CurrentSong)
}

func TestQueueService_AnnouncePlay(t *testing.T) {
	t.Parallel()

	queue, _, bus, _, _, roomID := newQueueFixture(t)

	queue.AnnouncePlay(roomID, "song-1", "user-1")

	events := bus.all()
	require.Len(t, events, 1)
	require.Equal(t, models.EventSongPlayed, events[0].event.Type)
	payload, ok := events[0].event.Data.(models.SongPlayedPayload)
	require.True(t, ok)
	require.Equal(t, "song-1", payload.SongID)
	require.Equal(t, "user-1", payload.UserID)
}
