package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is a browser tab showing one listing
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte
	Path string // listing path the page shows, e.g. "/" or "/docs"
}

// Hub tracks open listing pages and pushes change notifications to them
type Hub struct {
	Clients    map[string]map[*Client]bool // listing path -> clients
	Broadcast  chan *Message
	Register   chan *Client
	Unregister chan *Client
	Mu         sync.RWMutex

	done chan struct{} // closed when Run returns
}

// Message is pushed to listing pages
type Message struct {
	Type      string    `json:"type"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// Message types
const (
	MSG_LISTING_CHANGED = "listing.changed"
)

// NewHub creates a new hub. Call Run to start it.
func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[string]map[*Client]bool),
		Broadcast:  make(chan *Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// NewClient creates a client for conn subscribed to path
func NewClient(hub *Hub, conn *websocket.Conn, path string) *Client {
	return &Client{
		Hub:  hub,
		Conn: conn,
		Send: make(chan []byte, 16),
		Path: path,
	}
}

// Join registers c. It reports false if the hub has stopped.
func (h *Hub) Join(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Leave unregisters c. It is a no-op once the hub has stopped.
func (h *Hub) Leave(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// Paths returns the listing paths that currently have at least one viewer
func (h *Hub) Paths() []string {
	h.Mu.RLock()
	defer h.Mu.RUnlock()

	paths := make([]string, 0, len(h.Clients))
	for p := range h.Clients {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Notify queues a change notification for path without blocking
func (h *Hub) Notify(path string) bool {
	select {
	case h.Broadcast <- &Message{Type: MSG_LISTING_CHANGED, Path: path, Timestamp: time.Now()}:
		return true
	default:
		return false
	}
}

// Run processes registrations and broadcasts until ctx is done, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.Mu.Lock()
			for path, clients := range h.Clients {
				for client := range clients {
					close(client.Send)
				}
				delete(h.Clients, path)
			}
			h.Mu.Unlock()
			return

		case client := <-h.Register:
			h.Mu.Lock()
			if h.Clients[client.Path] == nil {
				h.Clients[client.Path] = make(map[*Client]bool)
			}
			h.Clients[client.Path][client] = true
			h.Mu.Unlock()

		case client := <-h.Unregister:
			h.Mu.Lock()
			h.remove(client)
			h.Mu.Unlock()

		case message := <-h.Broadcast:
			payload := mustMarshal(message)
			h.Mu.Lock()
			for client := range h.Clients[message.Path] {
				select {
				case client.Send <- payload:
				default:
					// slow consumer
					h.remove(client)
				}
			}
			h.Mu.Unlock()
		}
	}
}

// remove drops client and closes its send channel. Caller holds Mu.
func (h *Hub) remove(client *Client) {
	clients, ok := h.Clients[client.Path]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.Clients, client.Path)
	}
}
