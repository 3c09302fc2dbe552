package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pixil98/go-testutil"
)

func startServer(t *testing.T) *NatsServer {
	t.Helper()

	s, err := NewNatsServer(WithPort(-1), WithStartTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("stopping server: %v", err)
		}
	})

	select {
	case <-s.Ready():
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("server not ready")
	}

	return s
}

func receive(t *testing.T, ch <-chan []byte) string {
	t.Helper()
	select {
	case data := <-ch:
		return string(data)
	case <-time.After(2 * time.Second):
		t.Fatalf("no message received")
		return ""
	}
}

func TestNatsServer_PublishSubscribe(t *testing.T) {
	s := startServer(t)

	got := make(chan []byte, 1)
	unsub, err := s.Subscribe("mindmaze.test", func(data []byte) []byte { got <- data; return nil })
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer unsub()

	if err := s.Publish("mindmaze.test", []byte("hello")); err != nil {
		t.Fatalf("publishing: %v", err)
	}
	if err := s.Flush(time.Second); err != nil {
		t.Fatalf("flushing: %v", err)
	}

	testutil.AssertEqual(t, "message", receive(t, got), "hello")
}

func TestNatsServer_NotStarted(t *testing.T) {
	s, err := NewNatsServer(WithPort(-1))
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}

	err = s.Publish("mindmaze.test", nil)
	if !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}

	_, err = s.Request("mindmaze.test", nil, time.Second)
	if !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}

	_, err = s.Subscribe("mindmaze.test", func([]byte) []byte { return nil })
	if !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
}

func TestNatsClient_PublishToServer(t *testing.T) {
	s := startServer(t)

	got := make(chan []byte, 8)
	unsub, err := s.Subscribe("mindmaze.beacon", func(data []byte) []byte { got <- data; return nil })
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer unsub()

	c := NewNatsClient(s.ClientURL(), "test-client")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// The client connects in the background.
	deadline := time.Now().Add(2 * time.Second)
	for {
		err := c.Publish("mindmaze.beacon", []byte("batch"))
		if err == nil {
			err = c.Flush(time.Second)
		}
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("publishing: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	testutil.AssertEqual(t, "message", receive(t, got), "batch")
}

func TestNatsServer_Request(t *testing.T) {
	tests := map[string]struct {
		subscribe bool
		expReply  string
		expErr    error
	}{
		"answered": {
			subscribe: true,
			expReply:  "ack:batch",
		},
		"nobody listening": {
			expErr: nats.ErrNoResponders,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			s := startServer(t)

			if tt.subscribe {
				unsub, err := s.Subscribe("mindmaze.beacon", func(data []byte) []byte {
					return append([]byte("ack:"), data...)
				})
				if err != nil {
					t.Fatalf("subscribing: %v", err)
				}
				defer unsub()
			}

			reply, err := s.Request("mindmaze.beacon", []byte("batch"), time.Second)
			if tt.expErr != nil {
				if !errors.Is(err, tt.expErr) {
					t.Fatalf("expected %v, got %v", tt.expErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "reply", string(reply), tt.expReply)
		})
	}
}
