package websocket

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventAmbiguousMatch = "ambiguous_match"
	EventIngested       = "ingested"
)

// ReviewEvent tells connected reviewers about ingestion outcomes. Ambiguous
// matches carry the candidate transaction ids.
type ReviewEvent struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	SourceEventID int64     `json:"source_event_id"`
	TransactionID *int64    `json:"transaction_id,omitempty"`
	CandidateIDs  []int64   `json:"candidate_ids,omitempty"`
	Outcome       string    `json:"outcome,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(reviewerID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[reviewerID] == nil {
		h.clients[reviewerID] = make(map[*Client]struct{})
	}
	h.clients[reviewerID][client] = struct{}{}
}

func (h *Hub) Unregister(reviewerID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[reviewerID] == nil {
		return
	}
	delete(h.clients[reviewerID], client)
	if len(h.clients[reviewerID]) == 0 {
		delete(h.clients, reviewerID)
	}
}

// Broadcast sends event to every connected reviewer. Slow clients drop it.
func (h *Hub) Broadcast(event ReviewEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.clients {
		for client := range clients {
			select {
			case client.send <- payload:
			default:
			}
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, clients := range h.clients {
		count += len(clients)
	}
	return count
}
