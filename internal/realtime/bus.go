package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/models"
)

// TopicNotificationAdded is the channel every created notification is published on.
const TopicNotificationAdded = "notificationAdded"

// ErrBusClosed is returned after Close.
var ErrBusClosed = errors.New("realtime: bus closed")

// Filter selects the messages a subscriber receives.
type Filter struct {
	UserID     string
	UnreadOnly bool
}

// Match reports whether msg passes the filter.
func (f Filter) Match(msg models.NotificationAdded) bool {
	if f.UserID != "" && msg.UserID != f.UserID {
		return false
	}
	if f.UnreadOnly && msg.NotificationAdded.Read {
		return false
	}
	return true
}

// RedisBus is the process-wide publish/subscribe bus backed by Redis pub/sub,
// so subscribers attached to any instance see every publish.
type RedisBus struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewRedisBus(client *redis.Client, logger *slog.Logger) *RedisBus {
	return &RedisBus{
		client:  client,
		channel: TopicNotificationAdded,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Publish sends msg to every subscriber of the topic.
func (b *RedisBus) Publish(ctx context.Context, msg models.NotificationAdded) error {
	select {
	case <-b.done:
		return ErrBusClosed
	default:
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", b.channel, err)
	}
	if err := b.client.Publish(ctx, b.channel, raw).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", b.channel, err)
	}
	return nil
}

// Subscribe returns the notifications matching filter. The channel is closed
// when ctx is cancelled or the bus is closed.
func (b *RedisBus) Subscribe(ctx context.Context, filter Filter) (<-chan models.Notification, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	b.wg.Add(1)
	b.mu.Unlock()

	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		b.wg.Done()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	out := make(chan models.Notification, 16)
	go func() {
		defer b.wg.Done()
		defer close(out)
		defer ps.Close()

		messages := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.done:
				return
			case m, ok := <-messages:
				if !ok {
					return
				}
				var msg models.NotificationAdded
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					b.logger.Warn("dropping malformed bus message", slog.Any("error", err))
					continue
				}
				if !filter.Match(msg) {
					continue
				}
				select {
				case out <- msg.NotificationAdded:
				case <-ctx.Done():
					return
				case <-b.done:
					return
				}
			}
		}
	}()
	return out, nil
}

// Close ends every subscription. The Redis client is owned by the caller.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
	b.mu.Unlock()
	b.wg.Wait()
	return nil
}
