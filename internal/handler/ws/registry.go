package ws

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Conn wraps a websocket connection with a write lock. The ping loop, the
// chat stream and document-generation progress all write concurrently.
type Conn struct {
	id   string
	sock *websocket.Conn
	mu   sync.Mutex
}

// Send writes one JSON payload to the connection.
func (c *Conn) Send(payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock.WriteJSON(payload)
}

func (c *Conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock.WriteMessage(websocket.PingMessage, nil)
}

// Registry tracks live connections per session so other parts of the service
// can push events to a session's sockets. A session may hold several
// connections, one per open tab.
type Registry struct {
	mu    sync.RWMutex
	conns map[string][]*Conn
}

// NewRegistry returns an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string][]*Conn)}
}

func (r *Registry) add(sessionID string, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[sessionID] = append(r.conns[sessionID], c)
}

func (r *Registry) remove(sessionID string, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.conns[sessionID][:0]
	for _, existing := range r.conns[sessionID] {
		if existing != c {
			kept = append(kept, existing)
		}
	}
	if len(kept) == 0 {
		delete(r.conns, sessionID)
		return
	}
	r.conns[sessionID] = kept
}

// Broadcast sends a payload to every connection registered for a session.
func (r *Registry) Broadcast(sessionID string, payload any) {
	r.mu.RLock()
	targets := append([]*Conn(nil), r.conns[sessionID]...)
	r.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(payload); err != nil {
			log.Printf("[ws] broadcast to session %s failed: %v", sessionID, err)
		}
	}
}

// Count reports the number of live connections across all sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, conns := range r.conns {
		total += len(conns)
	}
	return total
}
