package consumer

import (
	"fmt"

	"github.com/streadway/amqp"
)

const wildcardRoutingKey = "#"

// Declarer is the part of an AMQP channel used to declare topology.
type Declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// Topology names the exchanges and queues the consumer relies on.
type Topology struct {
	Exchange           string
	DeadLetterExchange string
	Queue              string
	DeadLetterQueue    string
}

// Declare creates the topology. Every call is idempotent so it can be
// repeated after each reconnect.
//
// Rejected messages reach the dead-letter exchange through the primary
// queue's x-dead-letter-exchange argument.
func (t Topology) Declare(ch Declarer) error {
	for _, exchange := range []string{t.Exchange, t.DeadLetterExchange} {
		if err := ch.ExchangeDeclare(
			exchange,
			amqp.ExchangeTopic,
			true,  // durable
			false, // autoDelete
			false, // internal
			false, // noWait
			nil,
		); err != nil {
			return fmt.Errorf("declare exchange %s: %w", exchange, err)
		}
	}

	if _, err := ch.QueueDeclare(
		t.Queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		amqp.Table{"x-dead-letter-exchange": t.DeadLetterExchange},
	); err != nil {
		return fmt.Errorf("declare queue %s: %w", t.Queue, err)
	}
	if err := ch.QueueBind(t.Queue, wildcardRoutingKey, t.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s: %w", t.Queue, t.Exchange, err)
	}

	if _, err := ch.QueueDeclare(t.DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", t.DeadLetterQueue, err)
	}
	if err := ch.QueueBind(t.DeadLetterQueue, wildcardRoutingKey, t.DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s: %w", t.DeadLetterQueue, t.DeadLetterExchange, err)
	}
	return nil
}
