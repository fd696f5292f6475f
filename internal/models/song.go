package models

import "time"

// Song is a queued track. Songs are never deleted: they leave the live queue
// by being marked played or by expiring.
type Song struct {
	ID             string     `json:"id"`
	RoomID         string     `json:"room_id"`
	Title          string     `json:"title"`
	Artist         string     `json:"artist"`
	Album          string     `json:"album"`
	SpotifyURL     string     `json:"spotify_url"`
	SpotifyTrackID string     `json:"spotify_track_id"`
	Duration       int        `json:"duration"`
	DurationMS     int        `json:"duration_ms"`
	ImageURL       string     `json:"image_url"`
	PreviewURL     string     `json:"preview_url"`
	Popularity     int        `json:"popularity"`
	Explicit       bool       `json:"explicit"`
	AddedBy        string     `json:"added_by"`
	AddedAt        time.Time  `json:"added_at"`
	VoteCount      int        `json:"vote_count"`
	IsPlayed       bool       `json:"is_played"`
	ExpiresAt      *time.Time `json:"expires_at"`
	YoutubeURL     *string    `json:"youtube_url"`
}

// Live reports whether the song is still eligible for the queue at t.
func (s *Song) Live(t time.Time) bool {
	if s.IsPlayed {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(t)
}

// Vote is one participant's support for one song. At most one live vote row
// exists per (room, voter); the ledger enforces this.
type Vote struct {
	ID      string    `json:"id"`
	SongID  string    `json:"song_id"`
	RoomID  string    `json:"room_id"`
	UserID  string    `json:"user_id"`
	VotedAt time.Time `json:"voted_at"`
}

type AddTrackRequest struct {
	SpotifyURL string `json:"spotify_url"`
	RoomID     string `json:"room_id"`
	AddedBy    string `json:"added_by"`
}
