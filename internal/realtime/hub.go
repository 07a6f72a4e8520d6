package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	models "tenderplan/internal/domain/models/outline"

	"github.com/google/uuid"
)

// ClientBuffer is the outbound buffer of each SSE client.
const ClientBuffer = 32

const publishTimeout = 5 * time.Second

// Client is one SSE connection subscribed to a project.
type Client struct {
	ID        string
	ProjectID string
	UserID    string
	Outbound  chan models.ClientEvent
}

type changeSub struct {
	projectID string // empty matches task inserts of every project
	fn        func(models.ChangeEvent)
}

// Hub routes store change notifications to sessions and client events to
// SSE connections. Change notifications stay in-process since every
// instance runs its own listener; client events travel over the bus.
type Hub struct {
	bus    Bus
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]map[*Client]bool
	subs    map[int]changeSub
	nextSub int
}

// NewHub creates a hub publishing through bus.
func NewHub(bus Bus, logger *slog.Logger) *Hub {
	return &Hub{
		bus:     bus,
		logger:  logger.With("component", "realtime_hub"),
		clients: make(map[string]map[*Client]bool),
		subs:    make(map[int]changeSub),
	}
}

// Start begins forwarding bus messages to local clients.
func (h *Hub) Start(ctx context.Context) error {
	return h.bus.StartForwarder(ctx, h.deliver)
}

// Subscribe registers fn for change notifications of one project.
func (h *Hub) Subscribe(projectID string, fn func(models.ChangeEvent)) (unsubscribe func()) {
	return h.addSub(changeSub{projectID: projectID, fn: fn})
}

// SubscribeTaskInserts registers fn for task inserts of every project.
func (h *Hub) SubscribeTaskInserts(fn func(models.ChangeEvent)) (unsubscribe func()) {
	return h.addSub(changeSub{fn: fn})
}

func (h *Hub) addSub(sub changeSub) func() {
	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = sub
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// DispatchChange hands a change notification to matching subscribers. Global
// source changes reach every project subscriber.
func (h *Hub) DispatchChange(evt models.ChangeEvent) {
	h.mu.RLock()
	var targets []func(models.ChangeEvent)
	for _, sub := range h.subs {
		switch {
		case sub.projectID == "" && evt.IsTaskInsert():
			targets = append(targets, sub.fn)
		case sub.projectID != "" && (sub.projectID == evt.ProjectID || evt.IsGlobalSource()):
			targets = append(targets, sub.fn)
		}
	}
	h.mu.RUnlock()

	for _, fn := range targets {
		fn(evt)
	}
}

// Publish sends a client event to every SSE connection of the project,
// on every instance.
func (h *Hub) Publish(projectID string, evt models.ClientEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.bus.Publish(ctx, Message{ProjectID: projectID, Event: evt}); err != nil {
		h.logger.Warn("failed to publish client event", "project_id", projectID, "type", evt.Type, "error", err)
	}
}

// NewClient registers an SSE connection for a project.
func (h *Hub) NewClient(projectID, userID string) *Client {
	c := &Client{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		UserID:    userID,
		Outbound:  make(chan models.ClientEvent, ClientBuffer),
	}

	h.mu.Lock()
	set, ok := h.clients[projectID]
	if !ok {
		set = make(map[*Client]bool)
		h.clients[projectID] = set
	}
	set[c] = true
	h.mu.Unlock()

	h.logger.Debug("SSE client subscribed", "client_id", c.ID, "project_id", projectID)
	return c
}

// CloseClient unregisters c and closes its outbound channel.
func (h *Hub) CloseClient(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.ProjectID]
	if !ok || !set[c] {
		h.mu.Unlock()
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.ProjectID)
	}
	close(c.Outbound)
	h.mu.Unlock()

	h.logger.Debug("SSE client removed", "client_id", c.ID, "project_id", c.ProjectID)
}

// ClientCount returns the number of local SSE connections of a project.
func (h *Hub) ClientCount(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[projectID])
}

func (h *Hub) deliver(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[msg.ProjectID] {
		select {
		case c.Outbound <- msg.Event:
		default:
			h.logger.Warn("dropping client event, outbound buffer full", "client_id", c.ID, "type", msg.Event.Type)
		}
	}
}
