package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"toptrack/internal/models"
	"toptrack/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

// Room Repository Implementation
func (db *PostgresDB) CreateRoom(ctx context.Context, name, hostID string) (*models.Room, error) {
	query := `
		INSERT INTO rooms (id, name, host_id, is_active, created_at)
		VALUES ($1, $2, $3, true, NOW())
		RETURNING id, name, host_id, is_active, created_at, current_song_id`

	room := &models.Room{}
	err := db.pool.QueryRow(ctx, query, uuid.NewString(), name, hostID).Scan(
		&room.ID, &room.Name, &room.HostID, &room.IsActive, &room.CreatedAt, &room.CurrentSongID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	return room, nil
}

func (db *PostgresDB) GetRoomByID(ctx context.Context, id string) (*models.Room, error) {
	query := `SELECT id, name, host_id, is_active, created_at, current_song_id FROM rooms WHERE id = $1`

	room := &models.Room{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&room.ID, &room.Name, &room.HostID, &room.IsActive, &room.CreatedAt, &room.CurrentSongID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return room, nil
}

func (db *PostgresDB) SetCurrentSong(ctx context.Context, roomID string, songID *string) error {
	query := `UPDATE rooms SET current_song_id = $2 WHERE id = $1`
	tag, err := db.pool.Exec(ctx, query, roomID, songID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Song Repository Implementation
func (db *PostgresDB) AddSong(ctx context.Context, song *models.Song) error {
	// Dedupe check and insert in one statement; the service additionally
	// holds the room lock, so concurrent adds for the same track cannot
	// both pass the NOT EXISTS check.
	query := `
		INSERT INTO songs (
			id, room_id, title, artist, album, spotify_url, spotify_track_id,
			duration, duration_ms, image_url, preview_url, popularity, explicit,
			added_by, added_at, vote_count, is_played, expires_at, youtube_url
		)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
		WHERE NOT EXISTS (
			SELECT 1 FROM songs
			WHERE room_id = $2 AND spotify_track_id = $7 AND is_played = false
			  AND (expires_at IS NULL OR expires_at > NOW())
		)`

	tag, err := db.pool.Exec(ctx, query,
		song.ID, song.RoomID, song.Title, song.Artist, song.Album, song.SpotifyURL,
		song.SpotifyTrackID, song.Duration, song.DurationMS, song.ImageURL,
		song.PreviewURL, song.Popularity, song.Explicit, song.AddedBy, song.AddedAt,
		song.VoteCount, song.IsPlayed, song.ExpiresAt, song.YoutubeURL,
	)
	if err != nil {
		return fmt.Errorf("failed to add song: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateSong
	}
	return nil
}

func (db *PostgresDB) HasLiveSong(ctx context.Context, roomID, spotifyTrackID string, now time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM songs
			WHERE room_id = $1 AND spotify_track_id = $2 AND is_played = false
			  AND (expires_at IS NULL OR expires_at > $3)
		)`

	var exists bool
	err := db.pool.QueryRow(ctx, query, roomID, spotifyTrackID, now).Scan(&exists)
	return exists, err
}

func (db *PostgresDB) GetSongByID(ctx context.Context, id string) (*models.Song, error) {
	query := `
		SELECT id, room_id, title, artist, album, spotify_url, spotify_track_id,
		       duration, duration_ms, image_url, preview_url, popularity, explicit,
		       added_by, added_at, vote_count, is_played, expires_at, youtube_url
		FROM songs WHERE id = $1`

	song := &models.Song{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&song.ID, &song.RoomID, &song.Title, &song.Artist, &song.Album, &song.SpotifyURL,
		&song.SpotifyTrackID, &song.Duration, &song.DurationMS, &song.ImageURL,
		&song.PreviewURL, &song.Popularity, &song.Explicit, &song.AddedBy, &song.AddedAt,
		&song.VoteCount, &song.IsPlayed, &song.ExpiresAt, &song.YoutubeURL,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return song, nil
}

func (db *PostgresDB) ListLiveSongs(ctx context.Context, roomID string, now time.Time, limit int) ([]*models.Song, error) {
	query := `
		SELECT id, room_id, title, artist, album, spotify_url, spotify_track_id,
		       duration, duration_ms, image_url, preview_url, popularity, explicit,
		       added_by, added_at, vote_count, is_played, expires_at, youtube_url
		FROM songs
		WHERE room_id = $1 AND is_played = false
		  AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY vote_count DESC, added_at DESC
		LIMIT $3`

	rows, err := db.pool.Query(ctx, query, roomID, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var songs []*models.Song
	for rows.Next() {
		song := &models.Song{}
		if err := rows.Scan(
			&song.ID, &song.RoomID, &song.Title, &song.Artist, &song.Album, &song.SpotifyURL,
			&song.SpotifyTrackID, &song.Duration, &song.DurationMS, &song.ImageURL,
			&song.PreviewURL, &song.Popularity, &song.Explicit, &song.AddedBy, &song.AddedAt,
			&song.VoteCount, &song.IsPlayed, &song.ExpiresAt, &song.YoutubeURL,
		); err != nil {
			return nil, err
		}
		songs = append(songs, song)
	}

	return songs, rows.Err()
}

func (db *PostgresDB) MarkPlayed(ctx context.Context, songID string) error {
	query := `UPDATE songs SET is_played = true WHERE id = $1`
	tag, err := db.pool.Exec(ctx, query, songID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Vote Repository Implementation
func (db *PostgresDB) GetVoteByVoter(ctx context.Context, roomID, userID string) (*models.Vote, error) {
	query := `SELECT id, song_id, room_id, user_id, voted_at FROM votes WHERE room_id = $1 AND user_id = $2`

	vote := &models.Vote{}
	err := db.pool.QueryRow(ctx, query, roomID, userID).Scan(
		&vote.ID, &vote.SongID, &vote.RoomID, &vote.UserID, &vote.VotedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return vote, nil
}

// AddVote inserts the vote row and bumps the song's count in one transaction.
func (db *PostgresDB) AddVote(ctx context.Context, vote *models.Vote) (int, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	count, err := addVoteTx(ctx, tx, vote)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return count, nil
}

func (db *PostgresDB) RemoveVote(ctx context.Context, vote *models.Vote) (int, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	count, err := removeVoteTx(ctx, tx, vote)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return count, nil
}

// SwitchVote retracts prev and casts next in one transaction; a failure on
// either half rolls back both.
func (db *PostgresDB) SwitchVote(ctx context.Context, prev, next *models.Vote) (int, int, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback(ctx)

	prevCount, err := removeVoteTx(ctx, tx, prev)
	if err != nil {
		return 0, 0, err
	}
	nextCount, err := addVoteTx(ctx, tx, next)
	if err != nil {
		return 0, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, 0, err
	}
	return prevCount, nextCount, nil
}

func addVoteTx(ctx context.Context, tx pgx.Tx, vote *models.Vote) (int, error) {
	insert := `
		INSERT INTO votes (id, song_id, room_id, user_id, voted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (song_id, user_id, room_id) DO NOTHING`

	tag, err := tx.Exec(ctx, insert, vote.ID, vote.SongID, vote.RoomID, vote.UserID, vote.VotedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to create vote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrDuplicateVote
	}

	var count int
	err = tx.QueryRow(ctx,
		`UPDATE songs SET vote_count = vote_count + 1 WHERE id = $1 RETURNING vote_count`,
		vote.SongID,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return count, err
}

func removeVoteTx(ctx context.Context, tx pgx.Tx, vote *models.Vote) (int, error) {
	tag, err := tx.Exec(ctx, `DELETE FROM votes WHERE id = $1`, vote.ID)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrNotFound
	}

	var count int
	err = tx.QueryRow(ctx,
		`UPDATE songs SET vote_count = GREATEST(vote_count - 1, 0) WHERE id = $1 RETURNING vote_count`,
		vote.SongID,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return count, err
}

// Token Repository Implementation
func (db *PostgresDB) GetToken(ctx context.Context, spotifyUserID string) (*models.SpotifyToken, error) {
	query := `
		SELECT id, spotify_user_id, access_token, refresh_token, expires_at, created_at, updated_at
		FROM spotify_tokens WHERE spotify_user_id = $1`

	token := &models.SpotifyToken{}
	err := db.pool.QueryRow(ctx, query, spotifyUserID).Scan(
		&token.ID, &token.SpotifyUserID, &token.AccessToken, &token.RefreshToken,
		&token.ExpiresAt, &token.CreatedAt, &token.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return token, nil
}

func (db *PostgresDB) UpsertToken(ctx context.Context, token *models.SpotifyToken) error {
	query := `
		INSERT INTO spotify_tokens (id, spotify_user_id, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (spotify_user_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()`

	id := token.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := db.pool.Exec(ctx, query, id, token.SpotifyUserID, token.AccessToken, token.RefreshToken, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to upsert token: %w", err)
	}
	return nil
}

// Participant Repository Implementation
func (db *PostgresDB) UpsertParticipant(ctx context.Context, p *models.Participant) error {
	query := `
		INSERT INTO participants (id, username, is_online, current_room_id, joined_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username`

	_, err := db.pool.Exec(ctx, query, p.ID, p.Username, p.IsOnline, p.CurrentRoomID)
	return err
}

func (db *PostgresDB) GetParticipantByID(ctx context.Context, id string) (*models.Participant, error) {
	query := `SELECT id, username, is_online, current_room_id, joined_at FROM participants WHERE id = $1`

	p := &models.Participant{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Username, &p.IsOnline, &p.CurrentRoomID, &p.JoinedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return p, nil
}

func (db *PostgresDB) SetPresence(ctx context.Context, id string, online bool, roomID *string) error {
	query := `UPDATE participants SET is_online = $2, current_room_id = $3 WHERE id = $1`
	tag, err := db.pool.Exec(ctx, query, id, online, roomID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
