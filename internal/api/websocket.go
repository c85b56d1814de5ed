package api

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WebSocket event types
const (
	EventPrint = "print"
)

// WSMessage is one event pushed to connected clients.
type WSMessage struct {
	Event string `json:"event"`
	Data  gin.H  `json:"data"`
}

// Hub fans events out to all connected websocket clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	logger  zerolog.Logger
}

type wsClient struct {
	conn *websocket.Conn
	send chan WSMessage
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		logger:  logger,
	}
}

// Broadcast queues an event for every connected client. Slow clients are
// disconnected rather than blocking the sender.
func (h *Hub) Broadcast(event string, data gin.H) {
	msg := WSMessage{Event: event, Data: data}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

func (h *Hub) add(client *wsClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(client *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // clients are POS terminals on arbitrary origins
	},
}

// handleWebSocket upgrades the connection and streams gateway events.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan WSMessage, 256),
	}
	s.hub.add(client)
	s.logger.Debug().Msg("websocket client connected")

	go client.writePump()
	go s.readPump(client)
}

func (c *wsClient) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// readPump drains the connection so pings and close frames are processed,
// and unregisters the client when it goes away.
func (s *Server) readPump(client *wsClient) {
	defer func() {
		s.hub.remove(client)
		client.conn.Close()
		s.logger.Debug().Msg("websocket client disconnected")
	}()

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
