package models

type EventType string

const (
	EventSongAdded      EventType = "song_added"
	EventSongVoted      EventType = "song_voted"
	EventNextSong       EventType = "next_song"
	EventSongRemoved    EventType = "song_removed"
	EventSongPlayed     EventType = "song_played"
	EventUserJoined     EventType = "user_joined"
	EventUserLeft       EventType = "user_left"
	EventReceiveMessage EventType = "receive_message"
)

// Event is the outbound envelope fanned out verbatim to every connection in a
// room. Data is one of the payload types below.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

type SongAddedPayload struct {
	Song    *Song  `json:"song"`
	Message string `json:"message"`
}

type SongVotedPayload struct {
	UserID    string `json:"user_id"`
	RoomID    string `json:"room_id"`
	SongID    string `json:"song_id"`
	VoteType  string `json:"vote_type"`
	VoteCount int    `json:"vote_count"`
}

type NextSongPayload struct {
	CurrentSong *Song `json:"current_song"`
}

type SongRemovedPayload struct {
	SongID string `json:"song_id"`
	RoomID string `json:"room_id"`
}

type SongPlayedPayload struct {
	UserID string `json:"user_id"`
	RoomID string `json:"room_id"`
	SongID string `json:"song_id"`
}

type PresencePayload struct {
	UserID string `json:"user_id"`
	RoomID string `json:"room_id"`
}

type ChatPayload struct {
	UserID  string `json:"user_id"`
	RoomID  string `json:"room_id"`
	Message string `json:"message"`
}

type ActionType string

// Inbound actions, one per Socket.IO handler in the original client protocol.
const (
	ActionJoinRoom    ActionType = "join_room"
	ActionLeaveRoom   ActionType = "leave_room"
	ActionSendMessage ActionType = "send_message"
	ActionVoteSong    ActionType = "vote_song"
	ActionPlaySong    ActionType = "play_song"
	ActionGetNextSong ActionType = "get_next_song"
)

// ClientMessage is the typed inbound envelope read off a websocket
// connection. Fields beyond Type are action-specific.
type ClientMessage struct {
	Type     ActionType `json:"type"`
	SongID   string     `json:"song_id,omitempty"`
	Message  string     `json:"message,omitempty"`
	VoteType string     `json:"vote_type,omitempty"`
}
