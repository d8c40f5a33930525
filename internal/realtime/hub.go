package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Publisher publishes a group event for delivery by every instance (including this one).
type Publisher interface {
	PublishGroupEvent(ctx context.Context, group, event string, payload []byte) error
}

// Subscriber subscribes to a group channel and invokes handler for incoming events.
type Subscriber interface {
	SubscribeGroup(group string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains group -> set of connections. A client may be in many groups.
// With a Publisher, sends go through Redis and the per-group subscription delivers locally,
// so every instance delivers exactly once.
type Hub struct {
	name   string
	groups map[string]map[string]*Client // group -> clientID -> client
	subs   map[string]func()             // cancel Redis subscription per group
	mu     sync.RWMutex
	logger *zap.Logger
	pub    Publisher
	sub    Subscriber
}

// NewHub creates a new WebSocket hub. pub and sub may be nil for a single-instance hub.
func NewHub(name string, logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		name:   name,
		groups: make(map[string]map[string]*Client),
		subs:   make(map[string]func()),
		logger: logger.With(zap.String("hub", name)),
		pub:    pub,
		sub:    sub,
	}
}

// Join adds a client to a group. Starts the Redis subscription for the group if first local member.
// The subscribe round trip runs without the hub lock; a subscription that loses a race to
// another first member is cancelled.
func (h *Hub) Join(c *Client, group string) {
	h.mu.Lock()
	if members, ok := h.groups[group]; ok || h.sub == nil {
		if !ok {
			members = make(map[string]*Client)
			h.groups[group] = members
		}
		members[c.ID] = c
		h.mu.Unlock()
		h.joined(c, group)
		return
	}
	h.mu.Unlock()

	cancel, err := h.sub.SubscribeGroup(group, func(event string, payload []byte) {
		h.deliver(group, WSMessage{Event: event, Data: payload})
	})
	if err != nil {
		h.logger.Warn("subscribe group failed", zap.String("group", group), zap.Error(err))
	}

	h.mu.Lock()
	if h.groups[group] == nil {
		h.groups[group] = make(map[string]*Client)
		if cancel != nil {
			h.subs[group] = cancel
			cancel = nil
		}
	}
	h.groups[group][c.ID] = c
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	h.joined(c, group)
}

func (h *Hub) joined(c *Client, group string) {
	c.addGroup(group)
	h.logger.Debug("client joined group", zap.String("client_id", c.ID), zap.String("group", group))
}

// Leave removes a client from one group. Cancels the Redis subscription when the last local member leaves.
func (h *Hub) Leave(c *Client, group string) {
	h.mu.Lock()
	if m, ok := h.groups[group]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.groups, group)
			if cancel, ok := h.subs[group]; ok {
				cancel()
				delete(h.subs, group)
			}
		}
	}
	h.mu.Unlock()
	c.removeGroup(group)
	h.logger.Debug("client left group", zap.String("client_id", c.ID), zap.String("group", group))
}

// Unregister removes a client from every group it joined.
func (h *Hub) Unregister(c *Client) {
	for _, g := range c.Groups() {
		h.Leave(c, g)
	}
}

// SendToGroup delivers event to every member of group across instances.
// Delivery is best-effort: slow clients are skipped.
func (h *Hub) SendToGroup(ctx context.Context, group, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if h.pub != nil {
		return h.pub.PublishGroupEvent(ctx, group, event, data)
	}
	h.deliver(group, WSMessage{Event: event, Data: data})
	return nil
}

func (h *Hub) deliver(group string, msg WSMessage) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.groups[group]))
	for _, c := range h.groups[group] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// GroupSize returns the number of local clients in group.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}
