package consumer

import (
	"context"
	"errors"
	"sync"

	"github.com/streadway/amqp"

	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/models"
)

// fakeAcknowledger records what the router decided for each delivery.
type fakeAcknowledger struct {
	mu       sync.Mutex
	acks     []uint64
	nacks    []uint64
	requeued []bool
}

func (a *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, tag)
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks = append(a.nacks, tag)
	a.requeued = append(a.requeued, requeue)
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *fakeAcknowledger) counts() (acks, nacks int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acks), len(a.nacks)
}

type fakeDispatcher struct {
	mu   sync.Mutex
	seen []models.EventType
	err  error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, env *models.Envelope) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = append(d.seen, env.EventType)
	return d.err
}

// fakeBroker hands out fake connections and records topology declarations.
type fakeBroker struct {
	mu          sync.Mutex
	dials       int
	failDials   int
	hangDials   bool
	conns       []*fakeConn
	exchanges   []string
	queues      map[string]amqp.Table
	bindings    []string
	closeOrder  []string
	qos         []int
	consumeErrs int
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{queues: make(map[string]amqp.Table)}
}

func (b *fakeBroker) Dial(ctx context.Context, _ string) (Connection, error) {
	b.mu.Lock()
	b.dials++
	hang := b.hangDials
	b.mu.Unlock()
	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failDials > 0 {
		b.failDials--
		return nil, errors.New("connection refused")
	}
	c := &fakeConn{broker: b, deliveries: make(chan amqp.Delivery, 8)}
	b.conns = append(b.conns, c)
	return c, nil
}

func (b *fakeBroker) dialCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

func (b *fakeBroker) exchangeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.exchanges)
}

func (b *fakeBroker) last() *fakeConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.conns) == 0 {
		return nil
	}
	return b.conns[len(b.conns)-1]
}

type fakeConn struct {
	broker     *fakeBroker
	deliveries chan amqp.Delivery

	mu       sync.Mutex
	notify   []chan *amqp.Error
	closed   bool
	chClosed bool
}

func (c *fakeConn) Channel() (Channel, error) {
	return &fakeChannel{conn: c}, nil
}

func (c *fakeConn) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = append(c.notify, receiver)
	return receiver
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return amqp.ErrClosed
	}
	c.closed = true
	c.broker.mu.Lock()
	c.broker.closeOrder = append(c.broker.closeOrder, "connection")
	c.broker.mu.Unlock()
	return nil
}

// drop simulates the server closing the connection.
func (c *fakeConn) drop() {
	c.mu.Lock()
	receivers := c.notify
	c.notify = nil
	c.closed = true
	c.chClosed = true
	c.mu.Unlock()
	for _, r := range receivers {
		r <- &amqp.Error{Code: amqp.ConnectionForced, Reason: "CONNECTION_FORCED"}
		close(r)
	}
}

type fakeChannel struct {
	conn *fakeConn
}

func (ch *fakeChannel) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp.Table) error {
	b := ch.conn.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exchanges = append(b.exchanges, name+":"+kind)
	return nil
}

func (ch *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, args amqp.Table) (amqp.Queue, error) {
	b := ch.conn.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queues[name] = args
	return amqp.Queue{Name: name}, nil
}

func (ch *fakeChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	b := ch.conn.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bindings = append(b.bindings, name+"<-"+exchange+":"+key)
	return nil
}

func (ch *fakeChannel) Qos(prefetchCount, _ int, _ bool) error {
	b := ch.conn.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	b.qos = append(b.qos, prefetchCount)
	return nil
}

func (ch *fakeChannel) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	b := ch.conn.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consumeErrs > 0 {
		b.consumeErrs--
		return nil, errors.New("queue not found")
	}
	return ch.conn.deliveries, nil
}

func (ch *fakeChannel) Close() error {
	ch.conn.mu.Lock()
	defer ch.conn.mu.Unlock()
	if ch.conn.chClosed {
		return amqp.ErrClosed
	}
	ch.conn.chClosed = true
	b := ch.conn.broker
	b.mu.Lock()
	b.closeOrder = append(b.closeOrder, "channel")
	b.mu.Unlock()
	return nil
}
