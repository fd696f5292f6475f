package handlers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"toptrack/internal/auth"
	"toptrack/internal/config"
	"toptrack/internal/database"
	"toptrack/internal/models"
	"toptrack/internal/services"
	"toptrack/internal/spotify"
	"toptrack/pkg/logger"
)

const defaultRoomName = "My Jam Session"

type AuthHandlers struct {
	authService *auth.Service
	roomService *services.RoomService
	spotifyAPI  *spotify.Client
	tokens      database.TokenRepository
	frontendURL string
}

func NewAuthHandlers(authService *auth.Service, roomService *services.RoomService, spotifyAPI *spotify.Client, tokens database.TokenRepository, cfg *config.Config) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		roomService: roomService,
		spotifyAPI:  spotifyAPI,
		tokens:      tokens,
		frontendURL: cfg.Spotify.FrontendURL,
	}
}

// CreateSession issues a guest session for a display name.
func (h *AuthHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request")
		return
	}

	session, err := h.authService.CreateSession(r.Context(), req.Username)
	if err != nil {
		logger.Error("Create session error: %v", err)
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, session)
}

// SpotifyLogin returns the authorization URL; the requested room name rides
// through the OAuth round trip in the state parameter.
func (h *AuthHandlers) SpotifyLogin(w http.ResponseWriter, r *http.Request) {
	roomName := r.URL.Query().Get("room_name")
	if roomName == "" {
		roomName = defaultRoomName
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"url": h.spotifyAPI.AuthorizeURL(roomName),
	})
}

// SpotifyCallback completes the authorization-code exchange: it stores the
// host's credential pair, creates the room, and sends the host back to the
// frontend room page.
func (h *AuthHandlers) SpotifyCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		description := r.URL.Query().Get("error_description")
		if description == "" {
			description = "Unknown error"
		}
		logger.Error("Spotify auth error: %s - %s", errParam, description)
		h.redirectWithError(w, r, "spotify_error", description)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectWithError(w, r, "missing_code", "No authorization code received")
		return
	}

	tokenResp, err := h.spotifyAPI.ExchangeCode(r.Context(), code)
	if err != nil {
		logger.Error("Token exchange failed: %v", err)
		h.redirectWithError(w, r, "token_failed", "Failed to exchange code for token")
		return
	}

	profile, err := h.spotifyAPI.GetProfile(r.Context(), tokenResp.AccessToken)
	if err != nil {
		logger.Error("Profile fetch failed: %v", err)
		h.redirectWithError(w, r, "profile_failed", "Failed to get Spotify profile")
		return
	}

	if err := h.storeCredential(r.Context(), profile.ID, tokenResp); err != nil {
		logger.Error("Failed to store tokens for %s: %v", profile.ID, err)
		h.redirectWithError(w, r, "server_error", "Authentication failed")
		return
	}
	logger.Info("Tokens stored for user: %s", profile.ID)

	roomName := r.URL.Query().Get("state")
	if roomName == "" {
		roomName = defaultRoomName
	}

	room, err := h.roomService.CreateRoom(r.Context(), roomName, profile.ID)
	if err != nil {
		logger.Error("Failed to create room for %s: %v", profile.ID, err)
		h.redirectWithError(w, r, "server_error", "Failed to create room")
		return
	}
	logger.Info("Room created: %s - %s (host %s)", room.ID, room.Name, profile.ID)

	sessionToken, err := h.authService.SessionFor(r.Context(), profile.ID, profile.DisplayName)
	if err != nil {
		logger.Error("Failed to issue host session for %s: %v", profile.ID, err)
		h.redirectWithError(w, r, "server_error", "Authentication failed")
		return
	}

	params := url.Values{
		"spotify_user":  {profile.ID},
		"display_name":  {profile.DisplayName},
		"auth_success":  {"true"},
		"session_token": {sessionToken},
	}
	http.Redirect(w, r, h.frontendURL+"/room/"+room.ID+"?"+params.Encode(), http.StatusFound)
}

func (h *AuthHandlers) storeCredential(ctx context.Context, spotifyUserID string, tokenResp *spotify.TokenResponse) error {
	return h.tokens.UpsertToken(ctx, &models.SpotifyToken{
		SpotifyUserID: spotifyUserID,
		AccessToken:   tokenResp.AccessToken,
		RefreshToken:  tokenResp.RefreshToken,
		ExpiresAt:     time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	})
}

func (h *AuthHandlers) redirectWithError(w http.ResponseWriter, r *http.Request, code, message string) {
	params := url.Values{
		"error":   {code},
		"message": {message},
	}
	http.Redirect(w, r, h.frontendURL+"/create?"+params.Encode(), http.StatusFound)
}
