// WebSocket push channel for the presentation layer. Whenever the record
// view changes the hub broadcasts a fresh ordered snapshot so clients can
// re-render without polling.
package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kimhsiao/memostream/internal/logging"
	"github.com/kimhsiao/memostream/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Local UI only.
		return strings.HasPrefix(r.Host, "localhost")
	},
}

const (
	EventViewChanged = "record.view_changed"

	writeWait      = 10 * time.Second
	clientSendSize = 16
)

// wsEnvelope wraps every pushed message.
type wsEnvelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// wsClient is one connected presentation client.
type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *wsHub
}

// wsHub maintains active client connections and broadcasts view updates.
type wsHub struct {
	mu         sync.RWMutex
	clients    map[string]*wsClient
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
}

func newWSHub() *wsHub {
	return &wsHub{
		clients:    make(map[string]*wsClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
	}
}

// run dispatches registrations and broadcasts until stop is called.
func (h *wsHub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			logging.Debug("ws client connected", map[string]interface{}{
				"client_id": client.id, "total": total,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for id, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer; drop the connection.
					close(client.send)
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// stop shuts the dispatch loop down and disconnects every client.
func (h *wsHub) stop() {
	close(h.done)
}

// BroadcastView pushes the current ordered record list to every client.
func (h *wsHub) BroadcastView(view []models.Record) {
	envelope := wsEnvelope{
		Type:      EventViewChanged,
		Data:      map[string]interface{}{"records": view},
		Timestamp: time.Now().Unix(),
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		logging.Error("failed to marshal ws envelope", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		logging.Warn("ws broadcast buffer full, update dropped")
	}
}

// ServeHTTP upgrades the connection and attaches it to the hub.
func (h *wsHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("ws upgrade failed", err)
		return
	}

	client := &wsClient{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, clientSendSize),
		hub:  h,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *wsClient) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// readPump discards inbound frames; it exists to detect disconnects.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
