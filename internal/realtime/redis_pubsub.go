// Package realtime implements the admin live-notification feed
// (GET /admin/notifications/stream), repurposed from the teacher's
// per-webinar broadcast hub into a single global fan-out channel: every
// appended Notification (internal/notifications.Repository.Notify) is
// pushed to every connected admin session.
package realtime

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	notificationsChannel = "arplatform:notifications"
	publishTimeout       = 5 * time.Second
)

// RedisPublisher publishes a notification event for cross-instance fan-out.
type RedisPublisher interface {
	PublishNotification(payload []byte) error
}

// RedisSubscriber subscribes to the global notification channel.
type RedisSubscriber interface {
	SubscribeNotifications(handler func(payload []byte)) (cancel func(), err error)
}

// RedisPubSub implements RedisPublisher/RedisSubscriber over a single
// Redis pub/sub channel, so every server instance's admin websocket
// clients see the same Notification feed.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for the notification feed.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	return &RedisPubSub{client: client, logger: logger}
}

// PublishNotification publishes a notification payload to every instance.
func (r *RedisPubSub) PublishNotification(payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, notificationsChannel, payload).Err()
}

// SubscribeNotifications subscribes to the global notification channel and
// calls handler for each message. Returns a cancel function.
func (r *RedisPubSub) SubscribeNotifications(handler func(payload []byte)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, notificationsChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancelCtx()
		return nil, err
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()
	return func() { cancelCtx() }, nil
}
