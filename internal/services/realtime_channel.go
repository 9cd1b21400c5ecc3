package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/realtime"
)

// Publisher is the write side of the notificationAdded bus.
type Publisher interface {
	Publish(ctx context.Context, msg models.NotificationAdded) error
}

// ClientPusher pushes an event to a connected user.
type ClientPusher interface {
	Send(userID, event string, data any) error
}

// RealtimeChannel fans a stored notification out to streaming subscribers
// and, for push notifications, to the recipient's live connection.
type RealtimeChannel struct {
	bus     Publisher
	clients ClientPusher
	logger  *slog.Logger
}

func NewRealtimeChannel(bus Publisher, clients ClientPusher, logger *slog.Logger) *RealtimeChannel {
	return &RealtimeChannel{bus: bus, clients: clients, logger: logger}
}

// Deliver returns the bus publish error. Client push failures are only logged.
func (c *RealtimeChannel) Deliver(ctx context.Context, n models.Notification) error {
	err := c.bus.Publish(ctx, models.NotificationAdded{NotificationAdded: n, UserID: n.UserID})

	if c.clients != nil && n.Type.IncludesPush() {
		pushErr := c.clients.Send(n.UserID, realtime.EventNewNotification, n)
		switch {
		case pushErr == nil:
			c.logger.Debug("notification pushed", slog.String("user_id", n.UserID), slog.String("notification_id", n.ID))
		case errors.Is(pushErr, realtime.ErrNotConnected):
		default:
			c.logger.Warn("client push failed", slog.String("user_id", n.UserID), slog.Any("error", pushErr))
		}
	}
	return err
}
