package models

import "time"

// SpotifyToken is the delegated credential pair for one host. Exactly one
// record exists per Spotify user id (upsert semantics).
type SpotifyToken struct {
	ID            string    `json:"id"`
	SpotifyUserID string    `json:"spotify_user_id"`
	AccessToken   string    `json:"-"`
	RefreshToken  string    `json:"-"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
