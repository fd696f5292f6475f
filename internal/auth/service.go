package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"toptrack/internal/config"
	"toptrack/internal/database"
	"toptrack/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Service issues and validates guest session tokens. Guests are anonymous:
// a session binds a generated participant id to a display name so that one
// participant cannot vote as another.
type Service struct {
	store database.ParticipantRepository
	cfg   *config.Config
}

func NewService(store database.ParticipantRepository, cfg *config.Config) *Service {
	return &Service{
		store: store,
		cfg:   cfg,
	}
}

// Session is the identity extracted from a validated token.
type Session struct {
	ParticipantID string
	Username      string
}

func (s *Service) CreateSession(ctx context.Context, username string) (*models.SessionResponse, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if len(username) > 50 {
		return nil, fmt.Errorf("username must be at most 50 characters")
	}

	participant := &models.Participant{
		ID:       uuid.NewString(),
		Username: username,
		IsOnline: false,
		JoinedAt: time.Now().UTC(),
	}
	if err := s.store.UpsertParticipant(ctx, participant); err != nil {
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}

	token, err := s.generateToken(participant)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &models.SessionResponse{
		Token:       token,
		Participant: *participant,
	}, nil
}

// SessionFor issues a token for a known identity, used for the room host
// after the OAuth callback (the Spotify user id is the participant id).
func (s *Service) SessionFor(ctx context.Context, participantID, username string) (string, error) {
	participant := &models.Participant{
		ID:       participantID,
		Username: username,
		JoinedAt: time.Now().UTC(),
	}
	if err := s.store.UpsertParticipant(ctx, participant); err != nil {
		return "", fmt.Errorf("failed to upsert participant: %w", err)
	}
	return s.generateToken(participant)
}

func (s *Service) ValidateToken(tokenString string) (*Session, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.cfg.Session.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	participantID, ok := (*claims)["participant_id"].(string)
	if !ok || participantID == "" {
		return nil, fmt.Errorf("invalid participant id in token")
	}
	username, _ := (*claims)["username"].(string)

	return &Session{
		ParticipantID: participantID,
		Username:      username,
	}, nil
}

func (s *Service) generateToken(p *models.Participant) (string, error) {
	claims := jwt.MapClaims{
		"participant_id": p.ID,
		"username":       p.Username,
		"exp":            time.Now().Add(s.cfg.Session.ExpiresIn).Unix(),
		"iat":            time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.cfg.Session.Secret)
}
