package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"toptrack/internal/auth"
	"toptrack/internal/database"
	"toptrack/internal/models"
	"toptrack/internal/services"
	"toptrack/internal/spotify"
	"toptrack/pkg/logger"
)

type RoomHandlers struct {
	roomService  *services.RoomService
	queueService *services.QueueService
	authService  *auth.Service
	tokens       *spotify.TokenManager
}

func NewRoomHandlers(roomService *services.RoomService, queueService *services.QueueService, authService *auth.Service, tokens *spotify.TokenManager) *RoomHandlers {
	return &RoomHandlers{
		roomService:  roomService,
		queueService: queueService,
		authService:  authService,
		tokens:       tokens,
	}
}

// GetRoom handles GET /api/rooms/{id}.
func (h *RoomHandlers) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := pathSegment(r, 3)
	if roomID == "" {
		respondError(w, http.StatusBadRequest, "invalid room ID")
		return
	}

	room, err := h.roomService.GetRoom(r.Context(), roomID)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Room not found")
		return
	}
	if err != nil {
		logger.Error("Get room error: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to get room details")
		return
	}

	respondJSON(w, http.StatusOK, map[string]*models.Room{"room": room})
}

// GetQueue handles GET /api/room/{id}/queue.
func (h *RoomHandlers) GetQueue(w http.ResponseWriter, r *http.Request) {
	roomID := pathSegment(r, 3)
	if roomID == "" {
		respondError(w, http.StatusBadRequest, "invalid room ID")
		return
	}

	songs, err := h.queueService.ListQueue(r.Context(), roomID, services.DefaultQueueLimit)
	if err != nil {
		logger.Error("Get queue error: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to get room queue")
		return
	}
	if songs == nil {
		songs = []*models.Song{}
	}

	respondJSON(w, http.StatusOK, map[string][]*models.Song{"songs": songs})
}

// AddTrack handles POST /api/spotify/track-info: it resolves a Spotify track
// URL through the host's credential and queues the song.
func (h *RoomHandlers) AddTrack(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req models.AddTrackRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.RoomID == "" {
		respondError(w, http.StatusBadRequest, "Room ID is required")
		return
	}

	addedBy := req.AddedBy
	if addedBy == "" {
		addedBy = session.Username
	}

	song, err := h.queueService.AddTrack(r.Context(), req.RoomID, req.SpotifyURL, addedBy)
	if err != nil {
		writeAddTrackError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Song added to queue successfully",
		"song":    song,
	})
}

// RoomToken handles GET /api/spotify/token/room/{id}: the host's access
// token for the web playback SDK, refreshed when within the skew window.
func (h *RoomHandlers) RoomToken(w http.ResponseWriter, r *http.Request) {
	roomID := pathSegment(r, 5)
	if roomID == "" {
		respondError(w, http.StatusBadRequest, "invalid room ID")
		return
	}

	room, err := h.roomService.GetRoom(r.Context(), roomID)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Room not found")
		return
	}
	if err != nil {
		logger.Error("Room token error: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to get room")
		return
	}

	accessToken, expiresAt, err := h.tokens.GetValidToken(r.Context(), room.HostID)
	if errors.Is(err, spotify.ErrNotAuthenticated) {
		respondError(w, http.StatusNotFound, "No token found for room host")
		return
	}
	if err != nil {
		logger.Error("Room token refresh error: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to refresh token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"access_token": accessToken,
		"expires_in":   int(time.Until(expiresAt).Seconds()),
	})
}

func (h *RoomHandlers) sessionFromRequest(r *http.Request) (*auth.Session, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, fmt.Errorf("missing bearer token")
	}
	return h.authService.ValidateToken(token)
}

func writeAddTrackError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrDuplicateSong):
		respondError(w, http.StatusBadRequest, "This song is already in the queue")
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "Room not found")
	case errors.Is(err, spotify.ErrNotAuthenticated):
		respondError(w, http.StatusUnauthorized, "Room host not authenticated with Spotify")
	case errors.Is(err, spotify.ErrRefreshFailed), errors.Is(err, spotify.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "Authentication failed. Host may need to re-authenticate with Spotify.")
	case errors.Is(err, spotify.ErrTrackNotFound):
		respondError(w, http.StatusNotFound, "Track not found on Spotify")
	case errors.Is(err, spotify.ErrRateLimited):
		respondError(w, http.StatusTooManyRequests, "Spotify API rate limit exceeded. Please try again later.")
	case errors.Is(err, spotify.ErrUpstreamTimeout):
		respondError(w, http.StatusRequestTimeout, "Request to Spotify timed out. Please try again.")
	case errors.Is(err, spotify.ErrUpstream):
		respondError(w, http.StatusInternalServerError, "Network error when fetching track info")
	default:
		respondError(w, http.StatusBadRequest, err.Error())
	}
}

// pathSegment returns the n-th slash-separated segment of the request path,
// e.g. n=3 is {id} in /api/rooms/{id}.
func pathSegment(r *http.Request, n int) string {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) <= n {
		return ""
	}
	return parts[n]
}
