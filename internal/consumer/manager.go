package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/streadway/amqp"

	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/pkg/metrics"
)

// State is the broker connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateTopologyReady
	StateConsuming
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateTopologyReady:
		return "topology_ready"
	case StateConsuming:
		return "consuming"
	default:
		return "unknown"
	}
}

var errDeliveriesClosed = errors.New("delivery channel closed")

// Channel is the part of *amqp.Channel the manager uses.
type Channel interface {
	Declarer
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Connection is the part of *amqp.Connection the manager uses.
type Connection interface {
	Channel() (Channel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

// Dialer opens a broker connection. It returns once ctx is cancelled.
type Dialer func(ctx context.Context, url string) (Connection, error)

type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (Channel, error) {
	return c.Connection.Channel()
}

const (
	dialTimeout      = 30 * time.Second
	defaultHeartbeat = 10 * time.Second
)

// DialAMQP is the production Dialer. The TCP dial and the AMQP handshake are
// both abandoned when ctx is cancelled.
func DialAMQP(ctx context.Context, url string) (Connection, error) {
	var stopWatch func() bool
	cfg := amqp.Config{
		Heartbeat: defaultHeartbeat,
		Locale:    "en_US",
		Dial: func(network, addr string) (net.Conn, error) {
			d := net.Dialer{Timeout: dialTimeout}
			conn, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			// Cleared by amqp once the handshake completes.
			if err := conn.SetDeadline(time.Now().Add(dialTimeout)); err != nil {
				_ = conn.Close()
				return nil, err
			}
			stopWatch = context.AfterFunc(ctx, func() { _ = conn.Close() })
			return conn, nil
		},
	}

	conn, err := amqp.DialConfig(url, cfg)
	if stopWatch != nil {
		stopWatch()
	}
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn}, nil
}

// Handler processes one delivery and is responsible for acknowledging it.
type Handler func(ctx context.Context, msg amqp.Delivery) error

// Options configures a Manager.
type Options struct {
	URL            string
	Topology       Topology
	ReconnectDelay time.Duration
	ConsumerTag    string
	Dial           Dialer
}

// Manager owns the broker connection and channel. A single goroutine runs
// connect, declare, consume and reconnect, so at most one reconnect is ever
// in flight. Connection failures are logged and retried after a fixed delay.
type Manager struct {
	opts    Options
	handler Handler
	metrics *metrics.Metrics
	logger  *slog.Logger

	state atomic.Int32

	mu     sync.Mutex
	conn   Connection
	ch     Channel
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(opts Options, handler Handler, metrics *metrics.Metrics, logger *slog.Logger) *Manager {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.Dial == nil {
		opts.Dial = DialAMQP
	}
	return &Manager{
		opts:    opts,
		handler: handler,
		metrics: metrics,
		logger:  logger,
	}
}

// State reports the current connection state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

func (m *Manager) setState(s State) {
	if State(m.state.Swap(int32(s))) != s {
		m.logger.Debug("broker state changed", slog.String("state", s.String()))
	}
}

// Start launches the connection loop and returns immediately. Calling it
// again while running is a no-op.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(runCtx, m.done)
}

// Stop ends consumption, waits for the in-flight message and closes the
// channel, then the connection.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	<-done

	m.mu.Lock()
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()
}

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		err := m.session(ctx)
		m.teardown()
		m.setState(StateDisconnected)
		if ctx.Err() != nil {
			m.logger.Info("broker consumer stopped")
			return
		}

		m.metrics.IncReconnect()
		m.logger.Warn("broker connection lost, reconnecting",
			slog.Duration("delay", m.opts.ReconnectDelay),
			slog.Any("error", err),
		)

		timer := time.NewTimer(m.opts.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.logger.Info("broker consumer stopped")
			return
		case <-timer.C:
		}
	}
}

// session connects, declares the topology and consumes until the connection
// drops or ctx is cancelled.
func (m *Manager) session(ctx context.Context) error {
	m.setState(StateConnecting)

	conn, err := m.opts.Dial(ctx, m.opts.URL)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	m.mu.Lock()
	m.ch = ch
	m.mu.Unlock()

	if err := m.opts.Topology.Declare(ch); err != nil {
		return fmt.Errorf("declare topology: %w", err)
	}
	m.setState(StateTopologyReady)

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("qos configuration failed: %w", err)
	}
	deliveries, err := ch.Consume(
		m.opts.Topology.Queue,
		m.opts.ConsumerTag,
		false, // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", m.opts.Topology.Queue, err)
	}
	m.setState(StateConsuming)
	m.logger.Info("consuming events", slog.String("queue", m.opts.Topology.Queue))

	// In-flight messages finish even when Stop is called mid-handler.
	handlerCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr, ok := <-closed:
			if !ok || amqpErr == nil {
				return errors.New("connection closed")
			}
			return fmt.Errorf("connection closed: %w", amqpErr)
		case msg, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			if err := m.handler(handlerCtx, msg); err != nil {
				m.logger.Error("failed to acknowledge delivery",
					slog.Uint64("delivery_tag", msg.DeliveryTag),
					slog.Any("error", err),
				)
			}
		}
	}
}

// teardown closes the channel before the connection. Resources that are
// already closed are ignored.
func (m *Manager) teardown() {
	m.mu.Lock()
	ch, conn := m.ch, m.conn
	m.ch, m.conn = nil, nil
	m.mu.Unlock()

	if ch != nil {
		if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			m.logger.Warn("failed to close channel", slog.Any("error", err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			m.logger.Warn("failed to close connection", slog.Any("error", err))
		}
	}
}
