package websocket

import (
	"context"
	"encoding/json"
	"time"

	"toptrack/internal/models"
	"toptrack/pkg/logger"

	"github.com/gorilla/websocket"
)

// Router is implemented by the action dispatcher; the client only knows how
// to hand over who/which room/what action.
type Router interface {
	Dispatch(ctx context.Context, roomID, userID, username string, msg *models.ClientMessage) error
}

type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	userID   string
	username string
	roomID   string
	router   Router
}

// NewClient builds a connection wrapper; Manager.Register binds it to a hub.
func NewClient(conn *websocket.Conn, userID, username, roomID string, router Router) *Client {
	return &Client{
		conn:     conn,
		send:     make(chan []byte, 256),
		userID:   userID,
		username: username,
		roomID:   roomID,
		router:   router,
	}
}

func (c *Client) ReadPump() {
	defer func() {
		// Leaving only stops further broadcasts; votes and queue entries
		// persist.
		c.router.Dispatch(context.Background(), c.roomID, c.userID, c.username,
			&models.ClientMessage{Type: models.ActionLeaveRoom})
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	// Set read deadline and pong handler for connection health
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error: %v", err)
			}
			break
		}

		var msg models.ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Debug("Discarding malformed message from user %s: %v", c.userID, err)
			continue
		}

		if err := c.router.Dispatch(context.Background(), c.roomID, c.userID, c.username, &msg); err != nil {
			logger.Error("Action %s from user %s in room %s failed: %v", msg.Type, c.userID, c.roomID, err)
			c.sendError(msg.Type, err)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Error("Write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendError reports a failed action back to this connection only.
func (c *Client) sendError(action models.ActionType, err error) {
	payload := models.Event{
		Type: "error",
		Data: map[string]string{
			"action":  string(action),
			"message": err.Error(),
		},
	}

	if data, merr := json.Marshal(payload); merr == nil {
		select {
		case c.send <- data:
		default:
		}
	}
}
