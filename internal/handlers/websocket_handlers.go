package handlers

import (
	"errors"
	"net/http"

	"toptrack/internal/auth"
	"toptrack/internal/database"
	"toptrack/internal/models"
	"toptrack/internal/services"
	ws "toptrack/internal/websocket"
	"toptrack/pkg/logger"

	"github.com/gorilla/websocket"
)

type WebSocketHandlers struct {
	authService *auth.Service
	roomService *services.RoomService
	dispatcher  *services.Dispatcher
	hubManager  *ws.Manager
	upgrader    websocket.Upgrader
}

func NewWebSocketHandlers(authService *auth.Service, roomService *services.RoomService, dispatcher *services.Dispatcher, hubManager *ws.Manager) *WebSocketHandlers {
	return &WebSocketHandlers{
		authService: authService,
		roomService: roomService,
		dispatcher:  dispatcher,
		hubManager:  hubManager,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

// HandleWebSocket attaches a participant to a room's event stream. Identity
// comes from the session token; the room comes from the query string.
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	session, err := h.authService.ValidateToken(tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	roomID := r.URL.Query().Get("room_id")
	if roomID == "" {
		http.Error(w, "missing room_id", http.StatusBadRequest)
		return
	}

	if _, err := h.roomService.GetRoom(r.Context(), roomID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		http.Error(w, "error accessing room", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	client := ws.NewClient(conn, session.ParticipantID, session.Username, roomID, h.dispatcher)
	h.hubManager.Register(roomID, client)

	// Joining is an explicit action in the protocol, but a freshly attached
	// connection is always a member of its room.
	if err := h.dispatcher.Dispatch(r.Context(), roomID, session.ParticipantID, session.Username,
		&models.ClientMessage{Type: models.ActionJoinRoom}); err != nil {
		logger.Warn("Join for user %s in room %s failed: %v", session.ParticipantID, roomID, err)
	}

	go client.WritePump()
	go client.ReadPump()
}
