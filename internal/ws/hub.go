// Package ws streams domain events to connected admin dashboards.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Client is one admin WebSocket connection.
type Client struct {
	AdminID int64
	Send    chan []byte
	hub     *Hub
	mu      sync.Mutex
	closed  bool
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
	if c.hub != nil {
		c.hub.unregister(c)
	}
}

// trySend drops the frame when the client is slow or already closed.
func (c *Client) trySend(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

// Frame is what dashboards receive for each event.
type Frame struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
	At      time.Time   `json:"at"`
}

// Hub keeps the set of connected dashboards. It implements events.Publisher so the
// services' post-commit events reach the feed alongside the message broker.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.hub = h
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func (h *Hub) Broadcast(payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.trySend(data)
	}
}

func (h *Hub) Publish(_ context.Context, routingKey string, payload interface{}) error {
	h.Broadcast(Frame{Event: routingKey, Payload: payload, At: time.Now().UTC()})
	return nil
}

// Close disconnects every dashboard.
func (h *Hub) Close() error {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.Close()
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
