package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/models"
)

// Events exchanged with websocket clients.
const (
	EventNewNotification    = "newNotification"
	EventInitialUnread      = "initialUnreadNotifications"
	EventMarkAsRead         = "markAsRead"
	EventNotificationRead   = "notificationRead"
	EventError              = "error"
	sendBufferSize          = 64
	writeWait               = 10 * time.Second
	pongWait                = 60 * time.Second
	pingPeriod              = 30 * time.Second
	maxInboundMessageLength = 4096
)

var (
	ErrClientClosed     = errors.New("realtime: client closed")
	ErrClientBacklogged = errors.New("realtime: client send buffer full")
)

// Frame is the JSON message exchanged over the socket.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// InitialUnread is sent right after a client connects.
type InitialUnread struct {
	Count         int                   `json:"count"`
	Notifications []models.Notification `json:"notifications"`
}

// Inbox is what the gateway needs from the notification service.
type Inbox interface {
	GetUnread(ctx context.Context, userID string) ([]models.Notification, error)
	MarkAsReadForUser(ctx context.Context, userID, id string) (*models.Notification, error)
}

// Gateway upgrades HTTP requests to websocket connections and keeps the
// registry in sync with them.
type Gateway struct {
	registry *Registry
	inbox    Inbox
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewGateway(registry *Registry, inbox Inbox, logger *slog.Logger) *Gateway {
	return &Gateway{
		registry: registry,
		inbox:    inbox,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type client struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *client) Send(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Frame{Event: event, Data: raw})
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrClientBacklogged
	}
}

func (c *client) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// ServeHTTP handles /ws?userId=<id>. Requests without a user id are rejected.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &client{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
	if prev := g.registry.Add(userID, c); prev != nil {
		_ = prev.Close()
	}
	g.logger.Info("client connected", slog.String("user_id", userID), slog.String("conn_id", c.id))

	go g.writePump(c)
	g.sendInitialUnread(r.Context(), c)
	go g.readPump(c)
}

func (g *Gateway) sendInitialUnread(ctx context.Context, c *client) {
	unread, err := g.inbox.GetUnread(ctx, c.userID)
	if err != nil {
		g.logger.Error("failed to load unread notifications", slog.String("user_id", c.userID), slog.Any("error", err))
		return
	}
	if len(unread) == 0 {
		return
	}
	if err := c.Send(EventInitialUnread, InitialUnread{Count: len(unread), Notifications: unread}); err != nil {
		g.logger.Warn("failed to send unread notifications", slog.String("user_id", c.userID), slog.Any("error", err))
	}
}

func (g *Gateway) readPump(c *client) {
	defer func() {
		g.registry.Remove(c.userID, c)
		_ = c.Close()
		g.logger.Info("client disconnected", slog.String("user_id", c.userID), slog.String("conn_id", c.id))
	}()

	c.conn.SetReadLimit(maxInboundMessageLength)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			_ = c.Send(EventError, "malformed frame")
			continue
		}
		g.handleFrame(c, frame)
	}
}

func (g *Gateway) handleFrame(c *client, frame Frame) {
	switch frame.Event {
	case EventMarkAsRead:
		var id string
		if err := json.Unmarshal(frame.Data, &id); err != nil || id == "" {
			_ = c.Send(EventError, "markAsRead expects a notification id")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		n, err := g.inbox.MarkAsReadForUser(ctx, c.userID, id)
		if err != nil {
			g.logger.Warn("markAsRead failed", slog.String("user_id", c.userID), slog.String("notification_id", id), slog.Any("error", err))
			_ = c.Send(EventError, err.Error())
			return
		}
		_ = c.Send(EventNotificationRead, n)
	default:
		_ = c.Send(EventError, "unsupported event "+frame.Event)
	}
}

func (g *Gateway) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
