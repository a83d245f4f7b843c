package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shaunagostinho/scoreboard-dash/internal/ingest"
	"github.com/shaunagostinho/scoreboard-dash/internal/scoreboard"
	"github.com/shaunagostinho/scoreboard-dash/internal/serialport"
)

// Message types sent to WebSocket clients.
const (
	TypeState      = "state_update"
	TypeDiagnostic = "diagnostic"
	TypeStatus     = "status_update"
	TypePortList   = "port_list"
	TypeError      = "error"
)

// Message is the JSON envelope for everything sent over /ws.
type Message struct {
	Type  string `json:"type"`
	Data  any    `json:"data"`
	Stamp int64  `json:"stamp"` // Unix ms
}

// PortList answers a scan_ports request.
type PortList struct {
	Ports       []serialport.PortInfo `json:"ports"`
	CurrentPort string                `json:"currentPort"`
}

// Hub tracks WebSocket clients and fans ingest events out to them. A client
// whose send buffer is full misses the message rather than stalling the
// serial reader.
type Hub struct {
	clients map[*wsClient]struct{}
	mu      sync.RWMutex
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]struct{})}
}

func (h *Hub) PublishState(st scoreboard.MatchState) { h.broadcast(TypeState, st) }

func (h *Hub) PublishDiagnostic(d ingest.Diagnostic) { h.broadcast(TypeDiagnostic, d) }

func (h *Hub) PublishStatus(s ingest.Status) { h.broadcast(TypeStatus, s) }

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func encode(typ string, data any) ([]byte, error) {
	return json.Marshal(Message{Type: typ, Data: data, Stamp: time.Now().UnixMilli()})
}

func (h *Hub) broadcast(typ string, data any) {
	msg, err := encode(typ, data)
	if err != nil {
		log.Printf("[ws] marshal %s: %v", typ, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			// Client too slow, skip
		}
	}
}

func (h *Hub) add(conn *websocket.Conn) *wsClient {
	c := &wsClient{conn: conn, send: make(chan []byte, 64)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	log.Printf("[ws] client connected (%d total)", n)
	return c
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()
	log.Printf("[ws] client disconnected (%d total)", n)
}

// sendTo queues a message for one client without blocking.
func (c *wsClient) sendTo(typ string, data any) {
	msg, err := encode(typ, data)
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}
