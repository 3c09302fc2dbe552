package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NatsClient is a connection to a remote NATS server. It keeps retrying in
// the background when the server is not reachable yet.
type NatsClient struct {
	url  string
	name string

	mu   sync.Mutex
	conn *nats.Conn
}

func NewNatsClient(url string, name string) *NatsClient {
	return &NatsClient{url: url, name: name}
}

func (c *NatsClient) Start(ctx context.Context) error {
	conn, err := nats.Connect(c.url,
		nats.Name(c.name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "url", c.url, "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	slog.InfoContext(ctx, "nats client started", "url", c.url)

	<-ctx.Done()
	conn.Close()
	return nil
}

func (c *NatsClient) connection() (*nats.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.conn.IsClosed() {
		return nil, ErrNotStarted
	}
	return c.conn, nil
}

func (c *NatsClient) Publish(subject string, data []byte) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	return conn.Publish(subject, data)
}

// Flush waits until every published message reached the server. It fails
// while disconnected.
func (c *NatsClient) Flush(timeout time.Duration) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	return conn.FlushTimeout(timeout)
}

func (c *NatsClient) Subscribe(subject string, handler Handler) (func(), error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	return subscribe(conn, subject, handler)
}

// Request publishes data and waits for one reply.
func (c *NatsClient) Request(subject string, data []byte, timeout time.Duration) ([]byte, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	return request(conn, subject, data, timeout)
}
