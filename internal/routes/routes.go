package routes

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/consumer"
	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/pkg/metrics"
)

// BrokerStatus reports the broker connection state.
type BrokerStatus interface {
	State() consumer.State
}

// ClientCounter reports connected websocket clients.
type ClientCounter interface {
	Count() int
}

// Deps are the handlers and collaborators the router exposes.
type Deps struct {
	Metrics *metrics.Metrics
	Broker  BrokerStatus
	Clients ClientCounter
	Gateway http.Handler
	Stream  http.Handler
	Started time.Time
}

// NewRouter wires health, metrics and the realtime endpoints.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler(deps))
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	if deps.Gateway != nil {
		r.Method(http.MethodGet, "/ws", deps.Gateway)
	}
	if deps.Stream != nil {
		r.Method(http.MethodGet, "/notifications/stream", deps.Stream)
	}
	return r
}

func healthHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := consumer.StateDisconnected
		if deps.Broker != nil {
			state = deps.Broker.State()
		}
		clients := 0
		if deps.Clients != nil {
			clients = deps.Clients.Count()
		}

		healthy := state == consumer.StateConsuming
		status := http.StatusOK
		message := "notification service healthy"
		if !healthy {
			status = http.StatusServiceUnavailable
			message = "broker " + state.String()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": healthy,
			"message": message,
			"meta": map[string]any{
				"broker_state":      state.String(),
				"connected_clients": clients,
				"uptime_seconds":    int(time.Since(deps.Started).Seconds()),
				"timestamp":         time.Now().UTC(),
			},
		})
	}
}
