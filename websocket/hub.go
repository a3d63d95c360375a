package websocket

import (
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/wanjalasam/bus_booking/models"
)

// Hub pushes payment and transfer status transitions to connected
// dashboard clients. Every connected client receives every event; the
// dashboard filters what it shows.
type Hub struct {
	mu         sync.RWMutex
	clients    map[uuid.UUID]*websocket.Conn
	register   chan *Client
	unregister chan *Client
	events     chan StatusEvent
}

type Client struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
}

type StatusEvent struct {
	Kind   string `json:"kind"` // "payment" or "transfer"
	ID     string `json:"id"`
	Status string `json:"status"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*websocket.Conn),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan StatusEvent, 64),
	}
}

func (h *Hub) Register(c *Client)   { h.register <- c }
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

func (h *Hub) PaymentStatusChanged(paymentID uuid.UUID, status models.PaymentStatus) {
	h.publish(StatusEvent{Kind: "payment", ID: paymentID.String(), Status: string(status)})
}

func (h *Hub) TransferStatusChanged(transferID uuid.UUID, status models.TransferStatus) {
	h.publish(StatusEvent{Kind: "transfer", ID: transferID.String(), Status: string(status)})
}

// publish never blocks a payment path on slow consumers.
func (h *Hub) publish(ev StatusEvent) {
	select {
	case h.events <- ev:
	default:
		log.Println("status feed is saturated, dropping event")
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = client.Conn
			h.mu.Unlock()
			log.Printf("Status feed client registered: %s", client.UserID)
		case client := <-h.unregister:
			h.mu.Lock()
			if conn, ok := h.clients[client.UserID]; ok && conn == client.Conn {
				delete(h.clients, client.UserID)
			}
			h.mu.Unlock()
			log.Printf("Status feed client unregistered: %s", client.UserID)
		case ev := <-h.events:
			h.broadcast(ev)
		}
	}
}

func (h *Hub) broadcast(ev StatusEvent) {
	var stale []uuid.UUID

	h.mu.RLock()
	for userID, conn := range h.clients {
		if err := conn.WriteJSON(ev); err != nil {
			log.Printf("Error pushing status event to client %s: %v", userID, err)
			conn.Close()
			stale = append(stale, userID)
		}
	}
	h.mu.RUnlock()

	if len(stale) > 0 {
		h.mu.Lock()
		for _, userID := range stale {
			delete(h.clients, userID)
		}
		h.mu.Unlock()
	}
}
