package websocket

import (
	"encoding/json"
	"sync"

	"achievements/internal/events"
)

// Wildcard subscribers receive every event.
const Wildcard = "*"

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	refs    map[*Client]int
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		refs:    make(map[*Client]int),
	}
}

func (h *Hub) Register(accountID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[accountID] == nil {
		h.clients[accountID] = make(map[*Client]struct{})
	}
	if _, ok := h.clients[accountID][client]; ok {
		return
	}
	h.clients[accountID][client] = struct{}{}
	h.refs[client]++
}

// Unregister closes the client's send channel once it is subscribed to
// nothing, which makes its write pump send a close frame.
func (h *Hub) Unregister(accountID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[accountID][client]; !ok {
		return
	}
	delete(h.clients[accountID], client)
	if len(h.clients[accountID]) == 0 {
		delete(h.clients, accountID)
	}
	h.refs[client]--
	if h.refs[client] == 0 {
		delete(h.refs, client)
		close(client.send)
	}
}

func (h *Hub) Subscribers(accountID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[accountID])
}

// Publish delivers ev to subscribers of every account it touched and to
// wildcard subscribers, each client at most once. Slow clients drop frames.
func (h *Hub) Publish(ev events.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := make(map[*Client]struct{})
	targets := append([]string{Wildcard}, ev.Accounts...)
	for _, accountID := range targets {
		for client := range h.clients[accountID] {
			if _, ok := sent[client]; ok {
				continue
			}
			sent[client] = struct{}{}
			select {
			case client.send <- payload:
			default:
			}
		}
	}
}
