// Package realtime provides the broadcast hub for live coordination events.
// Connected dashboards join rooms keyed by city, role, or user id and receive
// events published into those rooms. Delivery is best-effort and at-most-once:
// there is no backlog, and a client that is not joined at publish time never
// sees the event.
package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Room key constructors. Every room is one of these three families.
func CityRoom(city string) string  { return "city:" + city }
func RoleRoom(role string) string  { return "role:" + role }
func UserRoom(id uuid.UUID) string { return "user:" + id.String() }
func userRoomRaw(id string) string { return "user:" + id }

// Event is the wire frame delivered to joined clients.
type Event struct {
	Event     string          `json:"event"`
	Room      string          `json:"room"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// JoinParams is the handshake a client sends after connecting. Every non-empty
// field joins the corresponding room; a client may therefore sit in several
// rooms at once (a donor typically joins its city room and the donor role room).
type JoinParams struct {
	City   string `json:"city"`
	Role   string `json:"role"`
	UserID string `json:"userId"`
}

func (p JoinParams) rooms() []string {
	var rooms []string
	if p.City != "" {
		rooms = append(rooms, CityRoom(p.City))
	}
	if p.Role != "" {
		rooms = append(rooms, RoleRoom(p.Role))
	}
	if p.UserID != "" {
		rooms = append(rooms, userRoomRaw(p.UserID))
	}
	return rooms
}

// Publisher is the interface coordinators publish through. A nil Publisher is
// valid: services must treat publishing as optional side output.
type Publisher interface {
	Publish(room, event string, payload interface{})
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client represents a single connected dashboard.
type Client struct {
	ID   string
	Send chan []byte

	mu    sync.Mutex
	rooms map[string]struct{}
	conn  Conn
}

// NewClient creates a client with a buffered send channel.
func NewClient(conn Conn) *Client {
	return &Client{
		ID:    uuid.New().String(),
		Send:  make(chan []byte, 256),
		rooms: make(map[string]struct{}),
		conn:  conn,
	}
}

// Rooms returns the rooms the client currently belongs to.
func (c *Client) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		out = append(out, r)
	}
	return out
}

// Hub is the process-wide room membership table. All mutations are scoped to a
// single connection's own room set, guarded by the hub mutex.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	all    map[*Client]struct{}
	logger zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		all:    make(map[*Client]struct{}),
		logger: logger,
	}
}

// Register adds a connection to the hub with no room membership yet.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.all[client] = struct{}{}
}

// Join idempotently adds the client to the rooms named by params.
func (h *Hub) Join(client *Client, params JoinParams) {
	h.JoinRooms(client, params.rooms()...)
}

// JoinRooms idempotently adds the client to each named room.
func (h *Hub) JoinRooms(client *Client, rooms ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	for _, room := range rooms {
		if h.rooms[room] == nil {
			h.rooms[room] = make(map[*Client]struct{})
		}
		h.rooms[room][client] = struct{}{}
		client.rooms[room] = struct{}{}
	}
}

// Disconnect removes the client from every room it belonged to and closes its
// send channel. Safe to call more than once.
func (h *Hub) Disconnect(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}

	client.mu.Lock()
	for room := range client.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	client.rooms = make(map[string]struct{})
	client.mu.Unlock()

	delete(h.all, client)
	close(client.Send)
}

// Publish delivers an event to every current member of the room. Marshalling
// failures are logged and dropped; a slow client's full buffer is skipped
// rather than blocking the caller.
func (h *Hub) Publish(room, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("realtime: marshal payload")
		return
	}

	frame, err := json.Marshal(Event{
		Event:     event,
		Room:      room,
		Timestamp: time.Now(),
		Data:      data,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("realtime: marshal frame")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}

	for client := range members {
		select {
		case client.Send <- frame:
		default:
			// Client buffer full; skip to avoid blocking.
		}
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// RoomCount returns the number of clients currently joined to a room.
func (h *Hub) RoomCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ---------------------------------------------------------------------------
// Echo HTTP handler for WebSocket connections
// ---------------------------------------------------------------------------

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// Handler handles HTTP-to-WebSocket upgrades and the join handshake.
type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// RegisterRoutes registers the WebSocket endpoint on the provided Echo group.
func (wh *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", wh.HandleConnect)
}

// HandleConnect upgrades the connection, registers the client, and starts the
// read/write pumps. The first frame the client sends is the join handshake
// {city, role, userId}; subsequent frames may join additional rooms.
func (wh *Handler) HandleConnect(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(&gorillaConnAdapter{ws})
	wh.hub.Register(client)

	go wh.writePump(client, ws)
	go wh.readPump(client, ws)

	return nil
}

func (wh *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		wh.hub.Disconnect(client)
		ws.Close()
	}()

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			break
		}

		var params JoinParams
		if err := json.Unmarshal(message, &params); err != nil {
			continue // Ignore malformed frames.
		}
		wh.hub.Join(client, params)
	}
}

func (wh *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	defer ws.Close()

	for message := range client.Send {
		if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			break
		}
	}
}

// gorillaConnAdapter wraps a gorilla/websocket.Conn to satisfy the Conn interface.
type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}

// Sanity check that Hub satisfies Publisher.
var _ Publisher = (*Hub)(nil)

// String form used in log lines.
func (e Event) String() string {
	return fmt.Sprintf("%s->%s", e.Event, e.Room)
}
