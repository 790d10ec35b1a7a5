package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// AllLines subscribes a client to every line in the catalogue.
const AllLines = "*"

const (
	EventLineUpdated = "line_updated"
	EventLineRemoved = "line_removed"
)

// LineEvent reports that a catalogued line changed. Summary is nil for
// removals.
type LineEvent struct {
	Type        string `json:"type"`
	LineID      string `json:"lineId"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Summary     any    `json:"summary,omitempty"`
}

type Client struct {
	ID    string
	Send  chan []byte
	lines map[string]struct{}
	mu    sync.RWMutex
}

func NewClient(id string, bufferSize int) *Client {
	return &Client{
		ID:    id,
		Send:  make(chan []byte, bufferSize),
		lines: make(map[string]struct{}),
	}
}

func (c *Client) hasLine(lineID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.lines[lineID]
	return ok
}

func (c *Client) AddLines(lineIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range lineIDs {
		c.lines[id] = struct{}{}
	}
}

func (c *Client) RemoveLines(lineIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range lineIDs {
		delete(c.lines, id)
	}
}

func (c *Client) GetLines() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	lines := make([]string, 0, len(c.lines))
	for id := range c.lines {
		lines = append(lines, id)
	}
	return lines
}

type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]struct{}
	lineClients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan []LineEvent

	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]struct{}),
		lineClients: make(map[string]map[*Client]struct{}),
		register:    make(chan *Client, 16),
		unregister:  make(chan *Client, 16),
		broadcast:   make(chan []LineEvent, 64),
		logger:      logger.With("component", "hub"),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.ID, "total", h.ClientCount())

		case client := <-h.unregister:
			h.removeClient(client)

		case events := <-h.broadcast:
			h.fanoutEvents(events)
		}
	}
}

func (h *Hub) Subscribe(client *Client, lineIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.AddLines(lineIDs)

	for _, lineID := range lineIDs {
		if h.lineClients[lineID] == nil {
			h.lineClients[lineID] = make(map[*Client]struct{})
		}
		h.lineClients[lineID][client] = struct{}{}
	}
}

func (h *Hub) Unsubscribe(client *Client, lineIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.RemoveLines(lineIDs)
	h.dropSubscriptions(client, lineIDs)
}

// Broadcast queues events for fan-out. Events are dropped when the queue is
// full.
func (h *Hub) Broadcast(events []LineEvent) {
	if len(events) == 0 {
		return
	}
	select {
	case h.broadcast <- events:
	default:
		h.logger.Warn("broadcast channel full, dropping events", "count", len(events))
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriptionCount is the number of distinct line ids with at least one
// subscriber.
func (h *Hub) SubscriptionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.lineClients)
}

type EventMessage struct {
	Type    string       `json:"type"`
	Payload EventPayload `json:"payload"`
}

type EventPayload struct {
	LineID      string `json:"lineId"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Summary     any    `json:"summary,omitempty"`
}

func (h *Hub) fanoutEvents(events []LineEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clientEvents := make(map[*Client][]LineEvent)

	for _, e := range events {
		seen := make(map[*Client]struct{})
		for _, key := range []string{e.LineID, AllLines} {
			for client := range h.lineClients[key] {
				if _, dup := seen[client]; dup {
					continue
				}
				seen[client] = struct{}{}
				clientEvents[client] = append(clientEvents[client], e)
			}
		}
	}

	for client, es := range clientEvents {
		for _, e := range es {
			data, err := json.Marshal(buildEventMessage(e))
			if err != nil {
				continue
			}

			select {
			case client.Send <- data:
			default:
				h.logger.Debug("client send buffer full", "client_id", client.ID)
			}
		}
	}
}

func buildEventMessage(e LineEvent) EventMessage {
	return EventMessage{
		Type: e.Type,
		Payload: EventPayload{
			LineID:      e.LineID,
			Fingerprint: e.Fingerprint,
			Summary:     e.Summary,
		},
	}
}

func (h *Hub) dropSubscriptions(client *Client, lineIDs []string) {
	for _, lineID := range lineIDs {
		if h.lineClients[lineID] != nil {
			delete(h.lineClients[lineID], client)
			if len(h.lineClients[lineID]) == 0 {
				delete(h.lineClients, lineID)
			}
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	h.dropSubscriptions(client, client.GetLines())

	delete(h.clients, client)
	close(client.Send)
	h.logger.Debug("client unregistered", "client_id", client.ID, "total", len(h.clients))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]struct{})
	h.lineClients = make(map[string]map[*Client]struct{})
}
