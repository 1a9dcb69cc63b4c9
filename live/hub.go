package live

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one connected session inside a single group. A user watching a
// match and its tournament holds two clients, one per room.
type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	Room      string
	UserID    int
	SessionID string

	mu       sync.Mutex
	isClosed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, room string, userID int) *Client {
	return &Client{
		Hub:       hub,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		Room:      room,
		UserID:    userID,
		SessionID: uuid.NewString(),
	}
}

// Hub is the session registry mapping connected clients to match/tournament
// groups. It is constructed once per process and injected into whatever needs
// to broadcast; there is no package-level instance.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	rooms  map[string]map[*Client]bool
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		}
	}
}

// add is idempotent: registering a client already in its room is a no-op.
func (h *Hub) add(client *Client) {
	h.mu.Lock()
	if _, ok := h.rooms[client.Room]; !ok {
		h.rooms[client.Room] = make(map[*Client]bool)
	}
	h.rooms[client.Room][client] = true
	size := len(h.rooms[client.Room])
	h.mu.Unlock()

	h.logger.Debug("session joined room",
		slog.String("room", client.Room),
		slog.String("session", client.SessionID),
		slog.Int("members", size))
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.Room]
	if !ok || !room[client] {
		h.mu.Unlock()
		return
	}
	client.close()
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, client.Room)
	}
	h.mu.Unlock()

	h.logger.Debug("session left room",
		slog.String("room", client.Room),
		slog.String("session", client.SessionID))

	// Remaining members of a match group learn about the departure so
	// moderation can act on it; the engine never auto-transitions state.
	if strings.HasPrefix(client.Room, "match_") && client.UserID != 0 {
		h.BroadcastToRoom(client.Room, Event{
			Type:    EventUserLeftMatch,
			Room:    client.Room,
			Payload: MatchPresencePayload{UserID: client.UserID},
		})
	}
}

// BroadcastToRoom delivers an event to the room's membership at call time.
// Slow clients whose buffers are full are skipped rather than blocking the
// rest of the group.
func (h *Hub) BroadcastToRoom(room string, event Event) {
	event.Room = room

	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event",
			slog.String("room", room), slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		client.mu.Lock()
		if client.isClosed {
			client.mu.Unlock()
			continue
		}
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("dropping event for slow session",
				slog.String("room", room),
				slog.String("session", client.SessionID))
		}
		client.mu.Unlock()
	}
}

// RoomSize reports current membership, used by handlers for diagnostics.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isClosed {
		close(c.Send)
		c.isClosed = true
	}
}

// ReadPump drains the connection until it drops, then unregisters the
// session. Inbound frames are ignored; all mutations go through HTTP.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush anything already queued behind this frame.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
