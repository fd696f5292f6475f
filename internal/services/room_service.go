package services

import (
	"context"
	"fmt"

	"toptrack/internal/database"
	"toptrack/internal/models"
	"toptrack/pkg/logger"
)

// RoomService is the room directory: it creates rooms on a successful host
// credential exchange and tracks advisory membership for presence events.
type RoomService struct {
	store database.Store
	bus   Broadcaster
}

func NewRoomService(store database.Store, bus Broadcaster) *RoomService {
	return &RoomService{
		store: store,
		bus:   bus,
	}
}

func (s *RoomService) CreateRoom(ctx context.Context, name, hostID string) (*models.Room, error) {
	if name == "" {
		return nil, fmt.Errorf("room name is required")
	}
	return s.store.CreateRoom(ctx, name, hostID)
}

func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	return s.store.GetRoomByID(ctx, roomID)
}

// Attach records the participant as present in the room and announces them.
// Membership is advisory: failures are logged and never block queue or vote
// operations.
func (s *RoomService) Attach(ctx context.Context, roomID, participantID, username string) error {
	if _, err := s.store.GetRoomByID(ctx, roomID); err != nil {
		return err
	}

	participant := &models.Participant{
		ID:       participantID,
		Username: username,
	}
	if err := s.store.UpsertParticipant(ctx, participant); err != nil {
		logger.Warn("Failed to upsert participant %s: %v", participantID, err)
	}
	if err := s.store.SetPresence(ctx, participantID, true, &roomID); err != nil {
		logger.Warn("Failed to set presence for %s: %v", participantID, err)
	}

	s.bus.Publish(roomID, models.Event{
		Type: models.EventUserJoined,
		Data: models.PresencePayload{UserID: participantID, RoomID: roomID},
	})
	logger.Info("User %s joined room %s", participantID, roomID)
	return nil
}

// Detach flips the participant offline and announces the departure. Votes
// and queue entries persist; disconnecting never rolls anything back.
func (s *RoomService) Detach(ctx context.Context, roomID, participantID string) {
	if err := s.store.SetPresence(ctx, participantID, false, nil); err != nil {
		logger.Warn("Failed to clear presence for %s: %v", participantID, err)
	}

	s.bus.Publish(roomID, models.Event{
		Type: models.EventUserLeft,
		Data: models.PresencePayload{UserID: participantID, RoomID: roomID},
	})
	logger.Info("User %s left room %s", participantID, roomID)
}
