package services

import (
	"context"
	"errors"
	"time"

	"toptrack/internal/database"
	"toptrack/internal/models"
	"toptrack/pkg/logger"

	"github.com/google/uuid"
)

type VoteResult string

const (
	// VoteAdded: the voter had no live vote in the room.
	VoteAdded VoteResult = "added"
	// VoteRemoved: the voter toggled their vote off the same song.
	VoteRemoved VoteResult = "removed"
	// VoteSwitched: the voter moved their vote to a different song.
	VoteSwitched VoteResult = "switched"
)

// VoteOutcome describes the net effect of a cast. PrevSongID/PrevCount are
// set only for VoteSwitched.
type VoteOutcome struct {
	Result     VoteResult
	SongID     string
	VoteCount  int
	PrevSongID string
	PrevCount  int
}

// VoteService is the vote ledger: at most one live vote per (room, voter),
// with the song vote counts kept consistent under the room lock.
type VoteService struct {
	store database.Store
	locks *RoomLocks
	bus   Broadcaster
}

func NewVoteService(store database.Store, locks *RoomLocks, bus Broadcaster) *VoteService {
	return &VoteService{
		store: store,
		locks: locks,
		bus:   bus,
	}
}

// Cast runs the single per-(room, voter) vote state machine:
// no vote -> add, same song -> toggle off, different song -> switch.
// voteType is an opaque label echoed on the wire for added votes.
func (s *VoteService) Cast(ctx context.Context, roomID, songID, userID, voteType string) (*VoteOutcome, error) {
	if voteType == "" {
		voteType = "up"
	}

	lock := s.locks.Get(roomID)
	lock.Lock()
	defer lock.Unlock()

	song, err := s.store.GetSongByID(ctx, songID)
	if err != nil {
		return nil, err
	}
	if song.RoomID != roomID {
		return nil, database.ErrNotFound
	}

	prev, err := s.store.GetVoteByVoter(ctx, roomID, userID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	switch {
	case prev == nil:
		return s.addVote(ctx, roomID, songID, userID, voteType)

	case prev.SongID == songID:
		return s.removeVote(ctx, prev)

	default:
		return s.switchVote(ctx, prev, songID, voteType)
	}
}

func (s *VoteService) addVote(ctx context.Context, roomID, songID, userID, voteType string) (*VoteOutcome, error) {
	vote := &models.Vote{
		ID:      uuid.NewString(),
		SongID:  songID,
		RoomID:  roomID,
		UserID:  userID,
		VotedAt: time.Now().UTC(),
	}

	count, err := s.store.AddVote(ctx, vote)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateVote) {
			// Cannot happen while the room lock is honored.
			logger.Error("Invariant violation: duplicate vote row for user %s in room %s", userID, roomID)
		}
		return nil, err
	}

	s.publishVote(roomID, songID, userID, voteType, count)
	return &VoteOutcome{Result: VoteAdded, SongID: songID, VoteCount: count}, nil
}

func (s *VoteService) removeVote(ctx context.Context, prev *models.Vote) (*VoteOutcome, error) {
	count, err := s.store.RemoveVote(ctx, prev)
	if err != nil {
		return nil, err
	}

	s.publishVote(prev.RoomID, prev.SongID, prev.UserID, "removed", count)
	return &VoteOutcome{Result: VoteRemoved, SongID: prev.SongID, VoteCount: count}, nil
}

// switchVote retracts the old vote and casts the new one as a single store
// mutation, then emits one event per affected song so every observer
// converges on the same counts. On error nothing has committed and nothing
// is broadcast.
func (s *VoteService) switchVote(ctx context.Context, prev *models.Vote, songID, voteType string) (*VoteOutcome, error) {
	next := &models.Vote{
		ID:      uuid.NewString(),
		SongID:  songID,
		RoomID:  prev.RoomID,
		UserID:  prev.UserID,
		VotedAt: time.Now().UTC(),
	}

	prevCount, count, err := s.store.SwitchVote(ctx, prev, next)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateVote) {
			logger.Error("Invariant violation: duplicate vote row for user %s in room %s", prev.UserID, prev.RoomID)
		}
		return nil, err
	}

	s.publishVote(prev.RoomID, prev.SongID, prev.UserID, "removed", prevCount)
	s.publishVote(prev.RoomID, songID, prev.UserID, voteType, count)

	return &VoteOutcome{
		Result:     VoteSwitched,
		SongID:     songID,
		VoteCount:  count,
		PrevSongID: prev.SongID,
		PrevCount:  prevCount,
	}, nil
}

func (s *VoteService) publishVote(roomID, songID, userID, voteType string, count int) {
	s.bus.Publish(roomID, models.Event{
		Type: models.EventSongVoted,
		Data: models.SongVotedPayload{
			UserID:    userID,
			RoomID:    roomID,
			SongID:    songID,
			VoteType:  voteType,
			VoteCount: count,
		},
	})
}
