package consumer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/pkg/metrics"
)

// Dispatcher handles a parsed event.
type Dispatcher interface {
	Dispatch(ctx context.Context, env *models.Envelope) error
}

// Router turns deliveries into envelopes and owns the ack/nack decision.
// A message is acked only when its handler succeeds or its event type is
// unknown; every failure is nacked without requeue so it is dead-lettered.
type Router struct {
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewRouter(dispatcher Dispatcher, metrics *metrics.Metrics, logger *slog.Logger) *Router {
	return &Router{
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
	}
}

// Handle processes one delivery. The returned error is an ack/nack failure.
func (r *Router) Handle(ctx context.Context, msg amqp.Delivery) error {
	r.metrics.IncConsumed()

	env, err := models.ParseEnvelope(msg.Body)
	if err != nil {
		r.logger.Error("failed to parse event envelope, dead-lettering",
			slog.Uint64("delivery_tag", msg.DeliveryTag),
			slog.Any("error", err),
		)
		return r.nack(msg)
	}

	log := r.logger.With(slog.String("event_id", env.EventID), slog.String("event_type", string(env.EventType)))
	if !env.EventType.Known() {
		return r.ackUnknown(log, msg)
	}

	log.Debug("dispatching event")
	if err := r.dispatcher.Dispatch(ctx, env); err != nil {
		if errors.Is(err, models.ErrUnknownEventType) {
			return r.ackUnknown(log, msg)
		}
		log.Error("event handler failed, dead-lettering", slog.Any("error", err))
		return r.nack(msg)
	}

	r.metrics.IncAcked()
	return msg.Ack(false)
}

func (r *Router) ackUnknown(log *slog.Logger, msg amqp.Delivery) error {
	log.Warn("no handler for event type, acknowledging")
	r.metrics.IncUnknown()
	r.metrics.IncAcked()
	return msg.Ack(false)
}

func (r *Router) nack(msg amqp.Delivery) error {
	r.metrics.IncNacked()
	return msg.Nack(false, false)
}
