package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/pixil98/mindmaze/internal/messaging"
	"github.com/pixil98/mindmaze/internal/storage"
	"github.com/pixil98/mindmaze/internal/telemetry"
	"github.com/pixil98/mindmaze/internal/transport"
)

const (
	DefaultAddr         = "127.0.0.1:8080"
	DefaultMaxBodyBytes = 8 << 20
)

var ErrInvalidBatch = errors.New("invalid batch")

// BeaconSource delivers beacon messages published by clients.
type BeaconSource interface {
	Ready() <-chan struct{}
	Subscribe(subject string, handler messaging.Handler) (func(), error)
}

// IngestResult reports what a batch added to its session.
type IngestResult struct {
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
}

// Collector is the receiving end of the telemetry protocol. Every record is
// stored at most once per (sessionId, eventSequenceId).
type Collector struct {
	addr    string
	maxBody int64
	subject string
	beacons BeaconSource

	store *storage.FileStore[*SessionLog]
	hub   *Hub

	mu sync.Mutex
}

type CollectorOpt func(*Collector)

func WithAddr(addr string) CollectorOpt {
	return func(c *Collector) {
		c.addr = addr
	}
}

func WithMaxBodyBytes(n int64) CollectorOpt {
	return func(c *Collector) {
		c.maxBody = n
	}
}

// WithBeaconSource makes the collector ingest batches published on subject.
func WithBeaconSource(src BeaconSource, subject string) CollectorOpt {
	return func(c *Collector) {
		c.beacons = src
		c.subject = subject
	}
}

func NewCollector(dataDir string, opts ...CollectorOpt) (*Collector, error) {
	c := &Collector{
		addr:    DefaultAddr,
		maxBody: DefaultMaxBodyBytes,
		subject: transport.DefaultBeaconSubject,
		hub:     NewHub(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	store, err := storage.NewFileStore[*SessionLog](dataDir)
	if err != nil {
		return nil, fmt.Errorf("loading sessions: %w", err)
	}
	c.store = store

	return c, nil
}

func (c *Collector) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              c.addr,
		Handler:           c.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	slog.InfoContext(ctx, "collector listening", "addr", c.addr, "sessions", len(c.store.Ids()))

	if c.beacons != nil {
		select {
		case <-c.beacons.Ready():
		case <-ctx.Done():
		case err := <-errCh:
			return fmt.Errorf("serving collector: %w", err)
		}

		if ctx.Err() == nil {
			unsub, err := c.beacons.Subscribe(c.subject, c.handleBeacon)
			if err != nil {
				c.shutdown(srv)
				return fmt.Errorf("subscribing to beacons: %w", err)
			}
			defer unsub()
			slog.InfoContext(ctx, "collector receiving beacons", "subject", c.subject)
		}
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving collector: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	c.shutdown(srv)
	return nil
}

func (c *Collector) shutdown(srv *http.Server) {
	c.hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("shutting down collector", "error", err)
	}
}

// handleBeacon ingests one beacon and returns the encoded acknowledgement.
func (c *Collector) handleBeacon(data []byte) []byte {
	var ack transport.BeaconAck

	var b telemetry.Batch
	if err := json.Unmarshal(data, &b); err != nil {
		slog.Warn("decoding beacon", "bytes", len(data), "error", err)
		ack.Error = fmt.Sprintf("decoding batch: %v", err)
		return encodeAck(ack)
	}

	res, err := c.Ingest(&b)
	if err != nil {
		slog.Warn("ingesting beacon", "session", b.SessionID, "error", err)
		ack.Error = err.Error()
		return encodeAck(ack)
	}
	slog.Info("beacon ingested", "session", b.SessionID, "accepted", res.Accepted, "duplicates", res.Duplicates, "final", b.IsFinalChunk)

	ack.Accepted = res.Accepted
	ack.Duplicates = res.Duplicates
	return encodeAck(ack)
}

func encodeAck(ack transport.BeaconAck) []byte {
	data, err := json.Marshal(ack)
	if err != nil {
		slog.Error("encoding beacon ack", "error", err)
		return nil
	}
	return data
}

// Ingest stores the new records of a batch. Records already held for the
// session are counted as duplicates and left untouched.
func (c *Collector) Ingest(b *telemetry.Batch) (IngestResult, error) {
	if err := b.Validate(); err != nil {
		return IngestResult{}, fmt.Errorf("%w: %w", ErrInvalidBatch, err)
	}
	if !storage.ValidIdentifier(b.SessionID) {
		return IngestResult{}, fmt.Errorf("%w: malformed sessionId %q", ErrInvalidBatch, b.SessionID)
	}

	records := make([]telemetry.Record, 0, len(b.Events))
	for i, r := range b.Events {
		raw, err := sanitizePayload(r.EventPayload)
		if err != nil {
			return IngestResult{}, fmt.Errorf("%w: event %d: %w", ErrInvalidBatch, i, err)
		}
		r.EventPayload = raw
		if r.SessionID == "" {
			r.SessionID = b.SessionID
		}
		if r.ParticipantID == "" {
			r.ParticipantID = b.ParticipantID
		}
		records = append(records, r)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	log := &SessionLog{ParticipantID: b.ParticipantID}
	if existing, ok := c.store.Get(b.SessionID); ok {
		log = existing.clone()
	}

	added := log.merge(records)
	finalized := b.IsFinalChunk && !log.Final
	log.Final = log.Final || b.IsFinalChunk

	res := IngestResult{Accepted: len(added), Duplicates: len(records) - len(added)}
	if len(added) == 0 && !finalized {
		return res, nil
	}

	if err := c.store.Save(b.SessionID, log); err != nil {
		return IngestResult{}, fmt.Errorf("saving session %s: %w", b.SessionID, err)
	}

	c.hub.Broadcast(added)
	return res, nil
}

// Session returns the stored log for id.
func (c *Collector) Session(id string) (*SessionLog, bool) {
	return c.store.Get(id)
}
