package live

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Message is the envelope pushed to season subscribers. Type is
// "STANDINGS_UPDATED" or "GAME_UPDATED"; Payload carries the event body.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	Room    string      `json:"room,omitempty"`
}

// Hub fans season events out to websocket subscribers. One room per
// season; rooms appear on the first subscriber and vanish with the last.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	mu         sync.RWMutex
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		logger:     logger,
	}
}

func seasonRoom(seasonID int) string {
	return fmt.Sprintf("season_%d", seasonID)
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.room]; !ok {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.logger.Debug("websocket client joined",
				slog.String("room", client.room),
				slog.Int("room_size", len(h.rooms[client.room])))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.room]; ok {
				if _, present := clients[client]; present {
					client.closeSend()
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.rooms, client.room)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastSeason pushes a standings update to every subscriber of the
// season's room. Slow clients are skipped rather than blocked on.
func (h *Hub) BroadcastSeason(seasonID int, payload interface{}) {
	h.broadcast(seasonRoom(seasonID), Message{
		Type:    "STANDINGS_UPDATED",
		Payload: payload,
	})
}

// BroadcastGame notifies the season room about a game state change.
func (h *Hub) BroadcastGame(seasonID int, payload interface{}) {
	h.broadcast(seasonRoom(seasonID), Message{
		Type:    "GAME_UPDATED",
		Payload: payload,
	})
}

func (h *Hub) broadcast(room string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.rooms[room]
	if !ok {
		return
	}
	msg.Room = room
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal websocket message",
			slog.String("room", room), slog.Any("error", err))
		return
	}
	for client := range clients {
		client.enqueue(data)
	}
}
