package ws

import (
	"sync"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/models"
)

// Hub maintains named websocket rooms.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Conn]bool
	// conns tracks which rooms each connection joined, for teardown.
	conns map[*Conn]map[string]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Conn]bool),
		conns: make(map[*Conn]map[string]bool),
	}
}

// Join adds a connection to a room.
func (h *Hub) Join(room string, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Conn]bool)
	}
	h.rooms[room][conn] = true
	if _, ok := h.conns[conn]; !ok {
		h.conns[conn] = make(map[string]bool)
	}
	h.conns[conn][room] = true
}

// Leave removes a connection from a room.
func (h *Hub) Leave(room string, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(room, conn)
}

func (h *Hub) leaveLocked(room string, conn *Conn) {
	if conns, ok := h.rooms[room]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms, ok := h.conns[conn]; ok {
		delete(rooms, room)
	}
}

// Remove drops a connection from every room it joined.
func (h *Hub) Remove(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.conns[conn] {
		h.leaveLocked(room, conn)
	}
	delete(h.conns, conn)
}

// InRoom reports whether a connection joined a room.
func (h *Hub) InRoom(room string, conn *Conn) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[room][conn]
}

// RoomSize reports how many connections a room holds.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) roomConns(room string) []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]*Conn, 0, len(h.rooms[room]))
	for conn := range h.rooms[room] {
		conns = append(conns, conn)
	}
	return conns
}

// Broadcast sends an event to every connection in a room.
func (h *Hub) Broadcast(room string, event models.Event) {
	for _, conn := range h.roomConns(room) {
		conn.Emit(event)
	}
}

// BroadcastExcept sends an event to a room, skipping one connection.
func (h *Hub) BroadcastExcept(room string, event models.Event, except *Conn) {
	for _, conn := range h.roomConns(room) {
		if conn != except {
			conn.Emit(event)
		}
	}
}

// BroadcastAll sends an event to every live connection.
func (h *Hub) BroadcastAll(event models.Event) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.Emit(event)
	}
}
