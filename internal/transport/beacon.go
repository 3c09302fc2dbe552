package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultBeaconSubject    = "mindmaze.telemetry.beacon"
	DefaultBeaconMaxPayload = 64 << 10
	DefaultBeaconAckTimeout = 2 * time.Second
)

var ErrBeaconRejected = errors.New("beacon rejected")

// Requester is the part of a NATS connection the beacon needs.
type Requester interface {
	Request(subject string, data []byte, timeout time.Duration) ([]byte, error)
}

// BeaconAck is the reply a collector sends for every beacon it received.
type BeaconAck struct {
	Accepted   int    `json:"accepted"`
	Duplicates int    `json:"duplicates"`
	Error      string `json:"error,omitempty"`
}

// NatsBeacon hands a final batch to a collector in one message. Enqueue
// returns nil only once a collector acknowledged storing it; with no
// collector subscribed it fails at once.
type NatsBeacon struct {
	req        Requester
	subject    string
	maxPayload int
	ackTimeout time.Duration
}

type NatsBeaconOpt func(*NatsBeacon)

func WithSubject(subject string) NatsBeaconOpt {
	return func(b *NatsBeacon) {
		b.subject = subject
	}
}

func WithMaxPayload(n int) NatsBeaconOpt {
	return func(b *NatsBeacon) {
		b.maxPayload = n
	}
}

func WithAckTimeout(d time.Duration) NatsBeaconOpt {
	return func(b *NatsBeacon) {
		b.ackTimeout = d
	}
}

func NewNatsBeacon(req Requester, opts ...NatsBeaconOpt) *NatsBeacon {
	b := &NatsBeacon{
		req:        req,
		subject:    DefaultBeaconSubject,
		maxPayload: DefaultBeaconMaxPayload,
		ackTimeout: DefaultBeaconAckTimeout,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

func (b *NatsBeacon) MaxPayload() int {
	return b.maxPayload
}

func (b *NatsBeacon) Enqueue(data []byte) error {
	if len(data) > b.maxPayload {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrBeaconRejected, len(data), b.maxPayload)
	}

	reply, err := b.req.Request(b.subject, data, b.ackTimeout)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBeaconRejected, err)
	}

	var ack BeaconAck
	if err := json.Unmarshal(reply, &ack); err != nil {
		return fmt.Errorf("%w: decoding ack: %w", ErrBeaconRejected, err)
	}
	if ack.Error != "" {
		return fmt.Errorf("%w: %s", ErrBeaconRejected, ack.Error)
	}

	return nil
}
