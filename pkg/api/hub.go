// Package api pkg/api/hub.go
package api

import (
	"context"
	"encoding/json"
	"log"

	"github.com/kmatveev/upsmon/pkg/models"
)

// Hub tracks connected websocket clients and fans snapshots out to them.
type Hub struct {
	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
	}
}

// Run owns the client set; all membership changes and broadcasts are
// serialized through it. Returns when ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}

			return
		case client := <-h.register:
			h.clients[client] = true
			log.Printf("WebSocket client connected: %s", client.conn.RemoteAddr())
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("WebSocket client disconnected: %s", client.conn.RemoteAddr())
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					log.Printf("WebSocket client %s too slow, dropping connection", client.conn.RemoteAddr())
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// BroadcastSnapshot serializes a snapshot and queues it for all clients.
// Drops the update when the hub is backed up rather than blocking the
// poll loop.
func (h *Hub) BroadcastSnapshot(snap models.Snapshot) {
	payload, err := json.Marshal(map[string]interface{}{"type": "telemetry", "payload": snap})
	if err != nil {
		log.Printf("Error marshaling snapshot for broadcast: %v", err)
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		log.Printf("WebSocket broadcast queue full, dropping update")
	}
}
