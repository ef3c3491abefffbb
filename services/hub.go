package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"chat-engine/models"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	sendBuffer   = 32
)

// Client is one websocket connection. Identity binds via the login event;
// until then the connection only receives broadcasts.
type Client struct {
	// UserID and Role bind on login. mu guards them together with closed,
	// so identity writes, pushes and the channel close order consistently.
	UserID string
	Role   models.Role

	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	mu     sync.Mutex
	closed bool
}

// Push queues ev on the client's outgoing channel without blocking. A full
// buffer loses the event; if the connection is actually dead the write pump
// tears it down.
func (c *Client) Push(ev Event) {
	buf, err := json.Marshal(ev)
	if err != nil {
		log.Printf("marshal %s event: %v", ev.Event, err)
		return
	}
	c.push(buf)
}

func (c *Client) push(buf []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- buf:
	default:
		log.Printf("send buffer full, dropping event for %q", c.UserID)
	}
}

// close shuts the outgoing channel exactly once. Pushes check the flag under
// the same lock, so a delivery racing a disconnect drops the event instead of
// sending on a closed channel.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) bind(userID string, role models.Role) (prev string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev = c.UserID
	c.UserID = userID
	c.Role = role
	return prev
}

func (c *Client) identity() (string, models.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.UserID, c.Role
}

// Hub owns all websocket connections and runs the real-time signal handlers
// (login, logout, markAsRead, typing, stopTyping). Message fan-out itself
// lives in Deliverer; the hub only feeds the shared presence registry.
type Hub struct {
	db            *gorm.DB
	presence      *Presence
	conversations *ConversationService
	messages      *MessageService

	mu      sync.Mutex
	clients map[*Client]struct{}
}

func NewHub(db *gorm.DB, presence *Presence, conversations *ConversationService, messages *MessageService) *Hub {
	return &Hub{
		db:            db,
		presence:      presence,
		conversations: conversations,
		messages:      messages,
		clients:       make(map[*Client]struct{}),
	}
}

// ServeConn adopts an upgraded websocket connection and starts its pumps.
func (h *Hub) ServeConn(conn *websocket.Conn) {
	c := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()
	go c.readPump()
}

// Broadcast pushes ev to every connection, identified or not.
func (h *Hub) Broadcast(ev Event) {
	buf, err := json.Marshal(ev)
	if err != nil {
		log.Printf("marshal %s event: %v", ev.Event, err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.push(buf)
	}
}

func (h *Hub) dropConnection(c *Client) {
	h.presence.Clear(c)

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()

	c.conn.Close()
	h.Broadcast(Event{Event: "onlineUsers", Data: h.presence.Online()})
}

func (c *Client) readPump() {
	defer c.hub.dropConnection(c)

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.hub.dispatch(c, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type clientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type signalPayload struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}

type typingPayload struct {
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

func (h *Hub) dispatch(c *Client, raw []byte) {
	var ev clientEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		log.Printf("invalid client event: %.128s", raw)
		return
	}
	var p signalPayload
	if len(ev.Data) > 0 {
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			log.Printf("invalid %s payload: %.128s", ev.Event, ev.Data)
			return
		}
	}

	ctx := context.Background()
	switch ev.Event {
	case "login":
		h.login(ctx, c, p.UserID)
	case "logout":
		h.presence.Clear(c)
	case "markAsRead":
		h.markAsRead(ctx, c, p)
	case "typing":
		h.typing(ctx, p, true)
	case "stopTyping":
		h.typing(ctx, p, false)
	default:
		log.Printf("unknown client event %q", ev.Event)
	}
}

// login binds the connection to a user and announces the new presence view
// to everyone.
func (h *Hub) login(ctx context.Context, c *Client, userID string) {
	if userID == "" {
		return
	}
	var user models.User
	if err := h.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		log.Printf("login for unknown user %s: %v", userID, err)
		return
	}
	h.presence.SetOnline(user.ID, user.Role, c)
	log.Printf("user %s logged in", user.ID)
	h.Broadcast(Event{Event: "onlineUsers", Data: h.presence.Online()})
}

func (h *Hub) markAsRead(ctx context.Context, c *Client, p signalPayload) {
	if err := h.messages.MarkRead(ctx, p.ConversationID, p.UserID); err != nil {
		log.Printf("mark conversation %s read: %v", p.ConversationID, err)
		return
	}
	// Confirmation goes back to the requesting connection only.
	c.Push(Event{Event: "messagesRead"})
}

// typing relays a typing indicator to the other participant when online.
// Signals are advisory: any failure is logged and dropped.
func (h *Hub) typing(ctx context.Context, p signalPayload, isTyping bool) {
	conv, err := h.conversations.GetByID(ctx, p.ConversationID)
	if err != nil {
		log.Printf("typing signal: %v", err)
		return
	}
	if !conv.HasParticipant(p.UserID) {
		log.Printf("typing signal from non-participant %s in %s", p.UserID, p.ConversationID)
		return
	}
	receiverID := conv.OtherParticipant(p.UserID)
	if receiverID == "" {
		return
	}
	if rc, ok := h.presence.Lookup(receiverID); ok {
		rc.Push(Event{Event: "typing", Data: typingPayload{ConversationID: conv.ID, IsTyping: isTyping}})
	}
}
