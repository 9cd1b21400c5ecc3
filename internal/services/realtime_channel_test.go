package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/realtime"
	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/pkg/logger"
)

type capturePublisher struct {
	msgs []models.NotificationAdded
	err  error
}

func (p *capturePublisher) Publish(_ context.Context, msg models.NotificationAdded) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

type captureConn struct {
	events []string
}

func (c *captureConn) Send(event string, _ any) error {
	c.events = append(c.events, event)
	return nil
}

func (c *captureConn) Close() error { return nil }

func TestRealtimeChannelDeliver(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{}
	registry := realtime.NewRegistry()
	conn := &captureConn{}
	registry.Add("u1", conn)
	channel := NewRealtimeChannel(pub, registry, logger.Discard())

	require.NoError(t, channel.Deliver(context.Background(), models.Notification{ID: "n1", UserID: "u1", Type: models.TypeBoth}))
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "u1", pub.msgs[0].UserID)
	assert.Equal(t, "n1", pub.msgs[0].NotificationAdded.ID)
	assert.Equal(t, []string{realtime.EventNewNotification}, conn.events)

	// email-only notifications reach the bus but not the socket
	require.NoError(t, channel.Deliver(context.Background(), models.Notification{ID: "n2", UserID: "u1", Type: models.TypeEmail}))
	assert.Len(t, pub.msgs, 2)
	assert.Len(t, conn.events, 1)

	// an offline user is not an error
	require.NoError(t, channel.Deliver(context.Background(), models.Notification{ID: "n3", UserID: "u2", Type: models.TypePush}))
}

func TestRealtimeChannelReturnsPublishError(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{err: errors.New("redis down")}
	channel := NewRealtimeChannel(pub, nil, logger.Discard())
	assert.Error(t, channel.Deliver(context.Background(), models.Notification{ID: "n1", UserID: "u1", Type: models.TypePush}))
}
