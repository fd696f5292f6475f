package models

import "time"

// Room is a listening session owned by a single Spotify-authenticated host.
type Room struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	HostID        string    `json:"host_id"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	CurrentSongID *string   `json:"current_song_id"`
}

// Participant is a guest identity. It is ephemeral: the online flag and
// current room follow the websocket connection lifecycle.
type Participant struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	IsOnline      bool      `json:"is_online"`
	CurrentRoomID *string   `json:"current_room_id,omitempty"`
	JoinedAt      time.Time `json:"joined_at"`
}

type CreateSessionRequest struct {
	Username string `json:"username"`
}

type SessionResponse struct {
	Token       string      `json:"token"`
	Participant Participant `json:"participant"`
}
