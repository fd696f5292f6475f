package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"toptrack/internal/models"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used in tests and as the local
// development default when DATABASE_URL is unset. Semantics match the
// postgres implementation.
type MemoryStore struct {
	mu           sync.Mutex
	rooms        map[string]*models.Room
	songs        map[string]*models.Song
	votes        map[string]*models.Vote
	tokens       map[string]*models.SpotifyToken // keyed by spotify user id
	participants map[string]*models.Participant
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:        make(map[string]*models.Room),
		songs:        make(map[string]*models.Song),
		votes:        make(map[string]*models.Vote),
		tokens:       make(map[string]*models.SpotifyToken),
		participants: make(map[string]*models.Participant),
	}
}

func (m *MemoryStore) Close() error {
	return nil
}

// Room Repository Implementation
func (m *MemoryStore) CreateRoom(ctx context.Context, name, hostID string) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room := &models.Room{
		ID:        uuid.NewString(),
		Name:      name,
		HostID:    hostID,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	m.rooms[room.ID] = room

	out := *room
	return &out, nil
}

func (m *MemoryStore) GetRoomByID(ctx context.Context, id string) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *room
	return &out, nil
}

func (m *MemoryStore) SetCurrentSong(ctx context.Context, roomID string, songID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	room.CurrentSongID = songID
	return nil
}

// Song Repository Implementation
func (m *MemoryStore) AddSong(ctx context.Context, song *models.Song) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for _, s := range m.songs {
		if s.RoomID == song.RoomID && s.SpotifyTrackID == song.SpotifyTrackID && s.Live(now) {
			return ErrDuplicateSong
		}
	}

	stored := *song
	m.songs[song.ID] = &stored
	return nil
}

func (m *MemoryStore) HasLiveSong(ctx context.Context, roomID, spotifyTrackID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.songs {
		if s.RoomID == roomID && s.SpotifyTrackID == spotifyTrackID && s.Live(now) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) GetSongByID(ctx context.Context, id string) (*models.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	song, ok := m.songs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *song
	return &out, nil
}

func (m *MemoryStore) ListLiveSongs(ctx context.Context, roomID string, now time.Time, limit int) ([]*models.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var songs []*models.Song
	for _, s := range m.songs {
		if s.RoomID == roomID && s.Live(now) {
			out := *s
			songs = append(songs, &out)
		}
	}

	sort.Slice(songs, func(i, j int) bool {
		if songs[i].VoteCount != songs[j].VoteCount {
			return songs[i].VoteCount > songs[j].VoteCount
		}
		return songs[i].AddedAt.After(songs[j].AddedAt)
	})

	if limit > 0 && len(songs) > limit {
		songs = songs[:limit]
	}
	return songs, nil
}

func (m *MemoryStore) MarkPlayed(ctx context.Context, songID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	song, ok := m.songs[songID]
	if !ok {
		return ErrNotFound
	}
	song.IsPlayed = true
	return nil
}

// Vote Repository Implementation
func (m *MemoryStore) GetVoteByVoter(ctx context.Context, roomID, userID string) (*models.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.votes {
		if v.RoomID == roomID && v.UserID == userID {
			out := *v
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) AddVote(ctx context.Context, vote *models.Vote) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkAddVote(vote); err != nil {
		return 0, err
	}
	return m.applyAddVote(vote), nil
}

func (m *MemoryStore) RemoveVote(ctx context.Context, vote *models.Vote) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkRemoveVote(vote); err != nil {
		return 0, err
	}
	return m.applyRemoveVote(vote), nil
}

// SwitchVote validates both halves before touching anything, so a failure
// leaves the prev vote and both counts as they were.
func (m *MemoryStore) SwitchVote(ctx context.Context, prev, next *models.Vote) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkRemoveVote(prev); err != nil {
		return 0, 0, err
	}
	if err := m.checkAddVote(next); err != nil {
		return 0, 0, err
	}

	prevCount := m.applyRemoveVote(prev)
	nextCount := m.applyAddVote(next)
	return prevCount, nextCount, nil
}

func (m *MemoryStore) checkAddVote(vote *models.Vote) error {
	if _, ok := m.songs[vote.SongID]; !ok {
		return ErrNotFound
	}
	for _, v := range m.votes {
		if v.RoomID == vote.RoomID && v.UserID == vote.UserID && v.SongID == vote.SongID {
			return ErrDuplicateVote
		}
	}
	return nil
}

func (m *MemoryStore) checkRemoveVote(vote *models.Vote) error {
	if _, ok := m.votes[vote.ID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.songs[vote.SongID]; !ok {
		return ErrNotFound
	}
	return nil
}

func (m *MemoryStore) applyAddVote(vote *models.Vote) int {
	stored := *vote
	m.votes[vote.ID] = &stored
	song := m.songs[vote.SongID]
	song.VoteCount++
	return song.VoteCount
}

func (m *MemoryStore) applyRemoveVote(vote *models.Vote) int {
	delete(m.votes, vote.ID)
	song := m.songs[vote.SongID]
	song.VoteCount--
	if song.VoteCount < 0 {
		song.VoteCount = 0
	}
	return song.VoteCount
}

// Token Repository Implementation
func (m *MemoryStore) GetToken(ctx context.Context, spotifyUserID string) (*models.SpotifyToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, ok := m.tokens[spotifyUserID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *token
	return &out, nil
}

func (m *MemoryStore) UpsertToken(ctx context.Context, token *models.SpotifyToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	stored := *token
	if existing, ok := m.tokens[token.SpotifyUserID]; ok {
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
	} else {
		if stored.ID == "" {
			stored.ID = uuid.NewString()
		}
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	m.tokens[token.SpotifyUserID] = &stored
	return nil
}

// Participant Repository Implementation
func (m *MemoryStore) UpsertParticipant(ctx context.Context, p *models.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *p
	if existing, ok := m.participants[p.ID]; ok {
		existing.Username = p.Username
		return nil
	}
	if stored.JoinedAt.IsZero() {
		stored.JoinedAt = time.Now().UTC()
	}
	m.participants[p.ID] = &stored
	return nil
}

func (m *MemoryStore) GetParticipantByID(ctx context.Context, id string) (*models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.participants[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	return &out, nil
}

func (m *MemoryStore) SetPresence(ctx context.Context, id string, online bool, roomID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.participants[id]
	if !ok {
		return ErrNotFound
	}
	p.IsOnline = online
	p.CurrentRoomID = roomID
	return nil
}
