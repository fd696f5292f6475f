package websocket

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"toptrack/internal/models"
	"toptrack/pkg/logger"
)

// Hub fans events out to every connection attached to one room. Each hub has
// a single Run loop, so events for a room reach all its subscribers in the
// order they were published.
type Hub struct {
	roomID     string
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	// Read by the manager's cleanup loop while Run mutates the hub.
	clientCount  atomic.Int32
	lastActivity atomic.Int64
}

func NewHub(roomID string) *Hub {
	h := &Hub{
		roomID:     roomID,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	h.lastActivity.Store(time.Now().UnixNano())
	return h
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				close(client.send)
			}
			h.clientCount.Store(0)
			return

		case client := <-h.register:
			h.clients[client] = true
			h.clientCount.Store(int32(len(h.clients)))
			h.lastActivity.Store(time.Now().UnixNano())
			logger.Debug("Connection for user %s registered in room %s", client.userID, h.roomID)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.clientCount.Store(int32(len(h.clients)))
				logger.Debug("Connection for user %s removed from room %s", client.userID, h.roomID)
			}

		case message := <-h.broadcast:
			h.lastActivity.Store(time.Now().UnixNano())
			h.broadcastToAll(message)
		}
	}
}

// broadcastToAll is best effort: a client whose buffer is full is dropped so
// one slow connection cannot stall the room.
func (h *Hub) broadcastToAll(message []byte) {
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
	h.clientCount.Store(int32(len(h.clients)))
}

// Register attaches a client to this hub's fanout. It reports false when the
// hub has already shut down; the caller must fetch a fresh hub.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister detaches a client. Safe on a stopped hub, whose shutdown path
// has already closed every client's send channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	return int(h.clientCount.Load())
}

func (h *Hub) idleFor() time.Duration {
	return time.Since(time.Unix(0, h.lastActivity.Load()))
}

func (h *Hub) ShutdownHub() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Manager owns one hub per active room and implements the broadcast bus the
// services publish through.
type Manager struct {
	hubs  map[string]*Hub
	mutex sync.Mutex
}

func NewManager() *Manager {
	manager := &Manager{
		hubs: make(map[string]*Hub),
	}

	go manager.cleanupUnusedHubs()
	return manager
}

func (m *Manager) GetHubForRoom(roomID string) *Hub {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	hub, exists := m.hubs[roomID]
	if !exists || hub.stopped() {
		hub = NewHub(roomID)
		m.hubs[roomID] = hub
		go hub.Run()
	}
	return hub
}

// Register attaches the client to the room's hub and returns the hub used.
// A hub the cleanup loop stopped between lookup and attach is replaced with
// a fresh one.
func (m *Manager) Register(roomID string, client *Client) *Hub {
	for {
		hub := m.GetHubForRoom(roomID)
		if hub.Register(client) {
			client.hub = hub
			return hub
		}
	}
}

// Publish delivers the event to the room's hub, if anyone is listening.
// Rooms with no hub simply drop the event; the mutation it describes has
// already committed.
func (m *Manager) Publish(roomID string, event models.Event) {
	m.mutex.Lock()
	hub := m.hubs[roomID]
	m.mutex.Unlock()

	if hub == nil || hub.stopped() {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Error marshaling event %s for room %s: %v", event.Type, roomID, err)
		return
	}

	select {
	case hub.broadcast <- data:
	default:
		logger.Warn("Dropping event %s for room %s: broadcast queue full", event.Type, roomID)
	}
}

func (m *Manager) cleanupUnusedHubs() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		m.mutex.Lock()
		for roomID, hub := range m.hubs {
			if hub.ClientCount() == 0 && hub.idleFor() > 30*time.Minute {
				hub.ShutdownHub()
				delete(m.hubs, roomID)
				logger.Debug("Cleaned up unused hub for room %s", roomID)
			}
		}
		m.mutex.Unlock()
	}
}
