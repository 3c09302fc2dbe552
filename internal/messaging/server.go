package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

var ErrNotStarted = errors.New("nats server not started")

// Handler processes one message. A non-nil return is sent back when the
// sender asked for a reply.
type Handler func(data []byte) []byte

// NatsServer is an embedded NATS broker with an in-process client
// connection.
type NatsServer struct {
	ns *server.Server

	mu   sync.Mutex
	conn *nats.Conn

	startupTimeout time.Duration
	host           string
	port           int

	ready chan struct{}
}

func NewNatsServer(opts ...NatsServerOpt) (*NatsServer, error) {
	s := &NatsServer{
		startupTimeout: 10 * time.Second,
		host:           "127.0.0.1",
		port:           server.DEFAULT_PORT,
		ready:          make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	ns, err := server.NewServer(&server.Options{
		Host:   s.host,
		Port:   s.port,
		NoSigs: true, // Let the application handle signals
		NoLog:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}
	s.ns = ns

	return s, nil
}

func (n *NatsServer) Start(ctx context.Context) error {
	n.ns.Start()

	if !n.ns.ReadyForConnections(n.startupTimeout) {
		n.ns.Shutdown()
		return fmt.Errorf("nats server not ready for connections")
	}

	// Create internal client connection
	conn, err := nats.Connect(n.ns.ClientURL(), nats.Name("mindmaze-internal"))
	if err != nil {
		n.ns.Shutdown()
		return fmt.Errorf("creating nats client connection: %w", err)
	}
	n.mu.Lock()
	n.conn = conn
	n.mu.Unlock()
	close(n.ready)

	slog.InfoContext(ctx, "nats server listening", "addr", n.ns.Addr())

	<-ctx.Done()
	if err := conn.Drain(); err != nil {
		slog.Warn("draining nats connection", "error", err)
	}
	n.ns.Shutdown()
	n.ns.WaitForShutdown()

	return nil
}

// Ready is closed once the server accepts connections and Publish and
// Subscribe may be used.
func (n *NatsServer) Ready() <-chan struct{} {
	return n.ready
}

// ClientURL is the address remote clients connect to.
func (n *NatsServer) ClientURL() string {
	return n.ns.ClientURL()
}

func (n *NatsServer) connection() (*nats.Conn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn == nil || n.conn.IsClosed() {
		return nil, ErrNotStarted
	}
	return n.conn, nil
}

// Subscribe calls handler for each message on subject and returns a
// function that removes the subscription.
func (n *NatsServer) Subscribe(subject string, handler Handler) (func(), error) {
	conn, err := n.connection()
	if err != nil {
		return nil, err
	}
	return subscribe(conn, subject, handler)
}

// Publish sends a message to the given subject
func (n *NatsServer) Publish(subject string, data []byte) error {
	conn, err := n.connection()
	if err != nil {
		return err
	}
	return conn.Publish(subject, data)
}

// Flush waits until every published message reached the server.
func (n *NatsServer) Flush(timeout time.Duration) error {
	conn, err := n.connection()
	if err != nil {
		return err
	}
	return conn.FlushTimeout(timeout)
}

// Request publishes data and waits for one reply. It fails with
// nats.ErrNoResponders when nobody subscribes to subject.
func (n *NatsServer) Request(subject string, data []byte, timeout time.Duration) ([]byte, error) {
	conn, err := n.connection()
	if err != nil {
		return nil, err
	}
	return request(conn, subject, data, timeout)
}

func subscribe(conn *nats.Conn, subject string, handler Handler) (func(), error) {
	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		reply := handler(msg.Data)
		if msg.Reply == "" || reply == nil {
			return
		}
		if err := msg.Respond(reply); err != nil {
			slog.Warn("replying", "subject", subject, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	// Interest must reach the server before publishers on other connections
	// can be routed to it.
	if err := conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("registering subscription to %s: %w", subject, err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			slog.Debug("unsubscribing", "subject", subject, "error", err)
		}
	}, nil
}

func request(conn *nats.Conn, subject string, data []byte, timeout time.Duration) ([]byte, error) {
	msg, err := conn.Request(subject, data, timeout)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", subject, err)
	}
	return msg.Data, nil
}
