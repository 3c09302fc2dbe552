package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultSendInterval = 5 * time.Second
	DefaultSendTimeout  = 10 * time.Second
)

// maxFinalRounds bounds how many chunks one final send delivers while
// events keep arriving.
const maxFinalRounds = 5

var (
	ErrSendInProgress = errors.New("send already in progress")
	ErrStillLogging   = errors.New("events still arriving after final send")
)

// Transport delivers a batch and reports success only once the receiver
// accepted it.
type Transport interface {
	Post(ctx context.Context, batch *Batch) error
}

// Beacon is a fire-and-forget delivery primitive that survives process
// teardown. Payloads larger than MaxPayload must not be enqueued.
type Beacon interface {
	Enqueue(data []byte) error
	MaxPayload() int
}

// Shipper delivers the undelivered suffix of a Logger's session on a timer
// and once more, as the final chunk, when it stops.
type Shipper struct {
	logger    *Logger
	transport Transport
	beacon    Beacon
	interval  time.Duration
	timeout   time.Duration

	stopAfter <-chan struct{}

	sendMu sync.Mutex
}

type ShipperOpt func(*Shipper)

func WithBeacon(b Beacon) ShipperOpt {
	return func(s *Shipper) {
		s.beacon = b
	}
}

func WithSendInterval(d time.Duration) ShipperOpt {
	return func(s *Shipper) {
		s.interval = d
	}
}

func WithSendTimeout(d time.Duration) ShipperOpt {
	return func(s *Shipper) {
		s.timeout = d
	}
}

func NewShipper(logger *Logger, transport Transport, opts ...ShipperOpt) *Shipper {
	s := &Shipper{
		logger:    logger,
		transport: transport,
		interval:  DefaultSendInterval,
		timeout:   DefaultSendTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// StopAfter holds the shutdown delivery until done is closed, so that the
// component still producing events can record them first. It must be called
// before Start.
func (s *Shipper) StopAfter(done <-chan struct{}) {
	s.stopAfter = done
}

func (s *Shipper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case <-ticker.C:
			s.sendIncremental(ctx)
		case <-s.logger.Flush():
			s.sendIncremental(ctx)
		}
	}
}

func (s *Shipper) sendIncremental(ctx context.Context) {
	err := s.Send(ctx, false)
	if err != nil && !errors.Is(err, ErrSendInProgress) {
		slog.WarnContext(ctx, "sending telemetry", "session", s.logger.SessionID(), "error", err)
	}
}

func (s *Shipper) shutdown() {
	if s.stopAfter != nil {
		<-s.stopAfter
	}

	if err := s.logger.EndSession(ReasonUserClosed, nil); err != nil {
		slog.Warn("recording session end", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.Send(ctx, true); err != nil {
		slog.Warn("final telemetry send failed, events are kept for the next run", "session", s.logger.SessionID(), "error", err)
	}
}

// Send delivers every event after the watermark. Incremental sends return
// ErrSendInProgress when another send holds the guard; final sends wait for
// it. A final send repeats until the whole log is delivered and then purges
// the session.
func (s *Shipper) Send(ctx context.Context, final bool) error {
	if final {
		s.sendMu.Lock()
	} else if !s.sendMu.TryLock() {
		return ErrSendInProgress
	}
	defer s.sendMu.Unlock()

	if !final {
		_, err := s.sendPending(ctx, false)
		return err
	}

	for range maxFinalRounds {
		upto, err := s.sendPending(ctx, true)
		if err != nil {
			return err
		}
		purged, err := s.logger.purge(upto)
		if err != nil || purged {
			return err
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("final send: %w", err)
		}
	}
	return ErrStillLogging
}

// sendPending delivers one chunk and returns the log length it covered.
func (s *Shipper) sendPending(ctx context.Context, final bool) (int, error) {
	batch, upto := s.logger.pending(final)
	if len(batch.Events) == 0 {
		return upto, nil
	}

	var err error
	if final {
		err = s.deliverFinal(ctx, batch)
	} else {
		err = s.post(ctx, batch)
	}
	if err != nil {
		return 0, fmt.Errorf("delivering %d events: %w", len(batch.Events), err)
	}

	s.logger.acknowledge(upto)
	slog.DebugContext(ctx, "telemetry delivered", "session", batch.SessionID, "events", len(batch.Events), "final", final)
	return upto, nil
}

func (s *Shipper) deliverFinal(ctx context.Context, batch *Batch) error {
	if s.beacon != nil {
		data, err := json.Marshal(batch)
		switch {
		case err != nil:
			return fmt.Errorf("encoding batch: %w", err)
		case len(data) > s.beacon.MaxPayload():
			slog.DebugContext(ctx, "final batch exceeds beacon ceiling", "bytes", len(data), "max", s.beacon.MaxPayload())
		default:
			err := s.beacon.Enqueue(data)
			if err == nil {
				return nil
			}
			slog.WarnContext(ctx, "beacon enqueue failed, falling back to post", "error", err)
		}
	}

	return s.post(ctx, batch)
}

func (s *Shipper) post(ctx context.Context, batch *Batch) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.transport.Post(ctx, batch)
}
