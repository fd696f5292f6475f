package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"toptrack/internal/database"
	"toptrack/internal/models"
	"toptrack/internal/spotify"
	"toptrack/pkg/logger"

	"github.com/google/uuid"
)

const (
	// DefaultQueueLimit is the page size of a queue read.
	DefaultQueueLimit = 10

	// songTTL is how long an entry stays live if it is never played.
	songTTL = time.Hour
)

// Catalog is the slice of the Spotify gateway the queue needs.
type Catalog interface {
	GetTrack(ctx context.Context, accessToken, trackID string) (*spotify.Track, error)
}

// Credentials is the slice of the token manager the queue needs.
type Credentials interface {
	GetValidToken(ctx context.Context, hostID string) (string, time.Time, error)
	ForceRefresh(ctx context.Context, hostID, rejectedToken string) (string, time.Time, error)
}

// QueueService owns the room queue: track adds, ordered reads, and the
// selection of what plays next.
type QueueService struct {
	store   database.Store
	locks   *RoomLocks
	bus     Broadcaster
	tokens  Credentials
	catalog Catalog
}

func NewQueueService(store database.Store, locks *RoomLocks, bus Broadcaster, tokens Credentials, catalog Catalog) *QueueService {
	return &QueueService{
		store:   store,
		locks:   locks,
		bus:     bus,
		tokens:  tokens,
		catalog: catalog,
	}
}

// AddTrack resolves a Spotify track URL through the host's credential and
// inserts it into the room queue. The catalog lookup happens outside the
// room lock; the dedupe condition is re-checked before the insert commits.
func (s *QueueService) AddTrack(ctx context.Context, roomID, spotifyURL, addedBy string) (*models.Song, error) {
	trackID, err := spotify.ParseTrackURL(spotifyURL)
	if err != nil {
		return nil, err
	}

	room, err := s.store.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	// Cheap pre-check under the lock so an obvious duplicate fails before
	// any upstream traffic.
	lock := s.locks.Get(roomID)
	lock.Lock()
	exists, err := s.store.HasLiveSong(ctx, roomID, trackID, time.Now().UTC())
	lock.Unlock()
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, database.ErrDuplicateSong
	}

	track, err := s.lookupTrack(ctx, room.HostID, trackID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	expiresAt := now.Add(songTTL)
	song := &models.Song{
		ID:             uuid.NewString(),
		RoomID:         roomID,
		Title:          track.Title,
		Artist:         track.Artist,
		Album:          track.Album,
		SpotifyURL:     spotifyURL,
		SpotifyTrackID: trackID,
		Duration:       track.DurationMS / 1000,
		DurationMS:     track.DurationMS,
		ImageURL:       track.ImageURL,
		PreviewURL:     track.PreviewURL,
		Popularity:     track.Popularity,
		Explicit:       track.Explicit,
		AddedBy:        addedBy,
		AddedAt:        now,
		ExpiresAt:      &expiresAt,
	}

	// Re-acquire to commit; AddSong re-checks the dedupe condition
	// atomically in case a concurrent add won the race during the lookup.
	lock.Lock()
	err = s.store.AddSong(ctx, song)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	s.bus.Publish(roomID, models.Event{
		Type: models.EventSongAdded,
		Data: models.SongAddedPayload{
			Song:    song,
			Message: fmt.Sprintf("%s added %q by %s to the queue", addedBy, song.Title, song.Artist),
		},
	})
	lock.Unlock()

	logger.Info("Song added to queue: %s by %s (room %s)", song.Title, song.Artist, roomID)
	return song, nil
}

// lookupTrack fetches track metadata with the host's token, retrying exactly
// once through a forced refresh if the upstream rejects the token.
func (s *QueueService) lookupTrack(ctx context.Context, hostID, trackID string) (*spotify.Track, error) {
	accessToken, _, err := s.tokens.GetValidToken(ctx, hostID)
	if err != nil {
		return nil, err
	}

	track, err := s.catalog.GetTrack(ctx, accessToken, trackID)
	if errors.Is(err, spotify.ErrUnauthorized) {
		logger.Info("Access token rejected for host %s, refreshing once", hostID)
		accessToken, _, err = s.tokens.ForceRefresh(ctx, hostID, accessToken)
		if err != nil {
			return nil, err
		}
		track, err = s.catalog.GetTrack(ctx, accessToken, trackID)
	}
	return track, err
}

// ListQueue returns the room's live entries, best first.
func (s *QueueService) ListQueue(ctx context.Context, roomID string, limit int) ([]*models.Song, error) {
	if limit <= 0 {
		limit = DefaultQueueLimit
	}
	return s.store.ListLiveSongs(ctx, roomID, time.Now().UTC(), limit)
}

// Advance marks the head of the live queue as played, makes it the room's
// current song, and announces both the new head and the removal of the old
// entry. Returns nil when the queue is empty.
func (s *QueueService) Advance(ctx context.Context, roomID string) (*models.Song, error) {
	lock := s.locks.Get(roomID)
	lock.Lock()
	defer lock.Unlock()

	songs, err := s.store.ListLiveSongs(ctx, roomID, time.Now().UTC(), 1)
	if err != nil {
		return nil, err
	}
	if len(songs) == 0 {
		s.bus.Publish(roomID, models.Event{
			Type: models.EventNextSong,
			Data: models.NextSongPayload{CurrentSong: nil},
		})
		return nil, nil
	}

	next := songs[0]
	if err := s.store.MarkPlayed(ctx, next.ID); err != nil {
		return nil, err
	}
	next.IsPlayed = true

	if err := s.store.SetCurrentSong(ctx, roomID, &next.ID); err != nil {
		logger.Warn("Failed to set current song for room %s: %v", roomID, err)
	}

	s.bus.Publish(roomID, models.Event{
		Type: models.EventNextSong,
		Data: models.NextSongPayload{CurrentSong: next},
	})
	s.bus.Publish(roomID, models.Event{
		Type: models.EventSongRemoved,
		Data: models.SongRemovedPayload{SongID: next.ID, RoomID: roomID},
	})

	logger.Info("Next song for room %s is %s by %s", roomID, next.Title, next.Artist)
	return next, nil
}

// AnnouncePlay broadcasts that the host started playback of a song. Pure
// fanout, no state change.
func (s *QueueService) AnnouncePlay(roomID, songID, userID string) {
	s.bus.Publish(roomID, models.Event{
		Type: models.EventSongPlayed,
		Data: models.SongPlayedPayload{UserID: userID, RoomID: roomID, SongID: songID},
	})
}
