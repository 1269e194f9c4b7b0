package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/fegerV/arplatform/internal/models"
)

const (
	// PingInterval and PongWait bound the websocket heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub fans a single global Notification feed out to every connected admin
// websocket client. Collapsed from the teacher's per-webinar room map
// (webinarID -> clients) to one flat client set, since there is exactly
// one feed (no per-tenant rooms in the admin surface). Cross-instance
// fan-out still goes through Redis pub/sub so every server process
// delivers the same events.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
	logger  *zap.Logger
	redis   RedisPublisher

	unsubscribe func()
}

// NewHub creates the notification hub. If redisPub/redisSub are non-nil, the
// hub also relays through Redis so every server instance broadcasts every
// notification, not just the one that received it locally.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	h := &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
		redis:   redisPub,
	}
	if redisSub != nil {
		cancel, err := redisSub.SubscribeNotifications(func(payload []byte) {
			h.broadcastRaw(payload)
		})
		if err == nil {
			h.unsubscribe = cancel
		}
	}
	return h
}

// Close stops the Redis subscription, if any.
func (h *Hub) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
}

// Register adds a client to the broadcast set.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("admin client connected", zap.String("client_id", c.ID))
}

// Unregister removes a client from the broadcast set.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	h.mu.Unlock()
	h.logger.Debug("admin client disconnected", zap.String("client_id", c.ID))
}

// BroadcastNotification implements notifications.Broadcaster: it fans n out
// to every locally connected client and publishes it for other instances.
func (h *Hub) BroadcastNotification(n models.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		h.logger.Warn("marshal notification for broadcast failed", zap.Error(err))
		return
	}
	h.broadcastRaw(data)
	if h.redis != nil {
		if err := h.redis.PublishNotification(data); err != nil {
			h.logger.Warn("publish notification failed", zap.Error(err))
		}
	}
}

func (h *Hub) broadcastRaw(data []byte) {
	msg := WSMessage{Event: "notification", Data: data}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// ClientCount returns the number of currently connected admin clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
