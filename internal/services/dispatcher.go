package services

import (
	"context"
	"fmt"

	"toptrack/internal/models"
	"toptrack/pkg/logger"
)

// Dispatcher routes typed inbound actions from the connection layer to the
// owning service. The connection layer supplies who (participant), which
// room, and what action; everything else lives here.
type Dispatcher struct {
	rooms *RoomService
	queue *QueueService
	votes *VoteService
	bus   Broadcaster
}

func NewDispatcher(rooms *RoomService, queue *QueueService, votes *VoteService, bus Broadcaster) *Dispatcher {
	return &Dispatcher{
		rooms: rooms,
		queue: queue,
		votes: votes,
		bus:   bus,
	}
}

// Dispatch handles one client action. Errors are per-action: they are
// returned for the connection layer to report and never take down anything
// beyond the single action.
func (d *Dispatcher) Dispatch(ctx context.Context, roomID, userID, username string, msg *models.ClientMessage) error {
	switch msg.Type {
	case models.ActionJoinRoom:
		return d.rooms.Attach(ctx, roomID, userID, username)

	case models.ActionLeaveRoom:
		d.rooms.Detach(ctx, roomID, userID)
		return nil

	case models.ActionSendMessage:
		// Opaque passthrough; the core does not interpret chat.
		d.bus.Publish(roomID, models.Event{
			Type: models.EventReceiveMessage,
			Data: models.ChatPayload{UserID: userID, RoomID: roomID, Message: msg.Message},
		})
		return nil

	case models.ActionVoteSong:
		_, err := d.votes.Cast(ctx, roomID, msg.SongID, userID, msg.VoteType)
		return err

	case models.ActionPlaySong:
		d.queue.AnnouncePlay(roomID, msg.SongID, userID)
		return nil

	case models.ActionGetNextSong:
		_, err := d.queue.Advance(ctx, roomID)
		return err

	default:
		logger.Debug("Unknown action %q from user %s in room %s", msg.Type, userID, roomID)
		return fmt.Errorf("unknown action: %s", msg.Type)
	}
}
