package database

import "errors"

var (
	// ErrNotFound is returned when a room, song, vote or token row is absent.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateSong is returned by AddSong when a live entry for the same
	// Spotify track already exists in the room.
	ErrDuplicateSong = errors.New("song already in queue")

	// ErrDuplicateVote is returned when a vote row for the same (room, song,
	// voter) already exists. Callers treat it as an invariant violation:
	// vote mutations are serialized per room, so it never fires in correct
	// operation.
	ErrDuplicateVote = errors.New("duplicate vote")
)
