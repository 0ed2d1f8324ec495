// Package websocket pushes progress events to connected site clients.
package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"buildtrack/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for dev simplicity
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	broadcastBuffer = 256
	clientBuffer    = 64
	writeWait       = 10 * time.Second
)

// Event is the JSON frame sent to clients.
type Event struct {
	Event     string      `json:"event"`
	SectionID uuid.UUID   `json:"section_id"`
	Data      interface{} `json:"data"`
	At        time.Time   `json:"at"`
}

type message struct {
	section uuid.UUID
	payload []byte
}

// Client is one connected site screen. A client with a zero Section
// receives events of every section.
type Client struct {
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	UserID  string
	Role    string
	Section uuid.UUID
}

func (c *Client) wants(section uuid.UUID) bool {
	return c.Section == uuid.Nil || c.Section == section
}

// Hub fans section events out to the clients watching them.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan message
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run is the dispatch loop. It owns client registration and delivery.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			log.Printf("WebSocket client %s (%s) connected, section=%s", client.UserID, client.Role, sectionLabel(client.Section))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Printf("WebSocket client %s disconnected", client.UserID)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(msg.section) {
					continue
				}
				select {
				case client.Send <- msg.payload:
				default:
					// Slow reader; its pumps exit once Send is closed.
					h.drop(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with mu held.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.Send)
}

// Publish queues an event for the clients watching sectionID. It never
// blocks the caller; when the queue is full the event is dropped.
func (h *Hub) Publish(event string, sectionID uuid.UUID, data interface{}) {
	payload, err := json.Marshal(Event{Event: event, SectionID: sectionID, Data: data, At: time.Now()})
	if err != nil {
		log.Printf("Failed to encode %s event: %v", event, err)
		return
	}
	select {
	case h.broadcast <- message{section: sectionID, payload: payload}:
	default:
		log.Printf("Broadcast queue full, dropping %s event for section %s", event, sectionID)
	}
}

// ClientCount is the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func sectionLabel(id uuid.UUID) string {
	if id == uuid.Nil {
		return "all"
	}
	return id.String()
}

// writePump sends one text frame per event until the hub closes Send.
func (c *Client) writePump() {
	defer func() {
		_ = c.Conn.Close()
	}()
	for payload := range c.Send {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump only watches for the peer going away.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		_ = c.Conn.Close()
	}()
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error for %s: %v", c.UserID, err)
			}
			return
		}
	}
}

// ServeWs upgrades an authenticated request. The token comes from the
// "token" query parameter; "section_id" narrows the feed to one section.
func ServeWs(hub *Hub, c *gin.Context, secret []byte) {
	tokenString := c.Query("token")
	if tokenString == "" {
		log.Println("WebSocket connection rejected: missing token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		log.Println("WebSocket connection rejected: invalid token:", err)
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	role, _ := claims["role"].(string)
	if !model.ValidRole(role) {
		log.Printf("WebSocket connection rejected: unknown role %q", role)
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	userID, _ := claims["sub"].(string)

	var section uuid.UUID
	if raw := c.Query("section_id"); raw != "" {
		if section, err = uuid.Parse(raw); err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("WebSocket upgrade failed:", err)
		return
	}
	client := &Client{
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, clientBuffer),
		UserID:  userID,
		Role:    role,
		Section: section,
	}
	hub.register <- client

	go client.writePump()
	go client.readPump()
}
