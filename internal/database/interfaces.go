package database

import (
	"context"
	"time"

	"toptrack/internal/models"
)

type RoomRepository interface {
	CreateRoom(ctx context.Context, name, hostID string) (*models.Room, error)
	GetRoomByID(ctx context.Context, id string) (*models.Room, error)
	SetCurrentSong(ctx context.Context, roomID string, songID *string) error
}

type SongRepository interface {
	// AddSong inserts the song, failing with ErrDuplicateSong if a live
	// (not played, not expired) entry for the same Spotify track already
	// exists in the room. Check and insert are one atomic unit.
	AddSong(ctx context.Context, song *models.Song) error
	// HasLiveSong reports whether a live entry for the Spotify track exists
	// in the room. Advisory pre-check; AddSong remains the atomic gate.
	HasLiveSong(ctx context.Context, roomID, spotifyTrackID string, now time.Time) (bool, error)
	GetSongByID(ctx context.Context, id string) (*models.Song, error)
	// ListLiveSongs returns unplayed, unexpired songs in the room ordered by
	// vote count descending then added_at descending, truncated to limit.
	ListLiveSongs(ctx context.Context, roomID string, now time.Time, limit int) ([]*models.Song, error)
	// MarkPlayed is idempotent.
	MarkPlayed(ctx context.Context, songID string) error
}

// VoteRepository mutations are atomic units: the vote row and the song's
// cached count commit together or not at all, and counts never go below zero.
type VoteRepository interface {
	// GetVoteByVoter returns the voter's live vote in the room, or
	// ErrNotFound.
	GetVoteByVoter(ctx context.Context, roomID, userID string) (*models.Vote, error)
	// AddVote inserts the vote row and increments the song's count,
	// returning the new count. ErrDuplicateVote if the row already exists.
	AddVote(ctx context.Context, vote *models.Vote) (int, error)
	// RemoveVote deletes the vote row and decrements the song's count,
	// returning the new count.
	RemoveVote(ctx context.Context, vote *models.Vote) (int, error)
	// SwitchVote retracts prev and casts next in one unit, returning the
	// resulting counts of prev's song and next's song.
	SwitchVote(ctx context.Context, prev, next *models.Vote) (int, int, error)
}

type TokenRepository interface {
	GetToken(ctx context.Context, spotifyUserID string) (*models.SpotifyToken, error)
	// UpsertToken keeps exactly one record per Spotify user id.
	UpsertToken(ctx context.Context, token *models.SpotifyToken) error
}

type ParticipantRepository interface {
	UpsertParticipant(ctx context.Context, p *models.Participant) error
	GetParticipantByID(ctx context.Context, id string) (*models.Participant, error)
	// SetPresence flips the online flag and current room pointer.
	SetPresence(ctx context.Context, id string, online bool, roomID *string) error
}

type Store interface {
	RoomRepository
	SongRepository
	VoteRepository
	TokenRepository
	ParticipantRepository
	Close() error
}
