package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/models"
)

const streamKeepAlive = 25 * time.Second

// Subscriber is the read side of the bus.
type Subscriber interface {
	Subscribe(ctx context.Context, filter Filter) (<-chan models.Notification, error)
}

// StreamHandler serves notificationAdded as server-sent events. Requests
// without a user id are rejected.
// GET /notifications/stream?userId=<id>&unreadOnly=true
type StreamHandler struct {
	bus    Subscriber
	logger *slog.Logger
}

func NewStreamHandler(bus Subscriber, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{bus: bus, logger: logger}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	filter := Filter{UserID: r.URL.Query().Get("userId")}
	if filter.UserID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}
	if raw := r.URL.Query().Get("unreadOnly"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "unreadOnly must be a boolean", http.StatusBadRequest)
			return
		}
		filter.UnreadOnly = v
	}

	ctx := r.Context()
	events, err := h.bus.Subscribe(ctx, filter)
	if err != nil {
		h.logger.Error("stream subscribe failed", slog.Any("error", err))
		http.Error(w, "subscription unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case n, ok := <-events:
			if !ok {
				return
			}
			raw, err := json.Marshal(n)
			if err != nil {
				h.logger.Warn("failed to encode stream event", slog.Any("error", err))
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", n.ID, TopicNotificationAdded, raw)
			flusher.Flush()
		}
	}
}
