package command

import (
	"fmt"
	"net/url"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/mindmaze/internal/storage"
	"github.com/pixil98/mindmaze/internal/telemetry"
	"github.com/pixil98/mindmaze/internal/transport"
)

type TelemetryConfig struct {
	Endpoint       string       `json:"endpoint"`
	SendInterval   string       `json:"send_interval"`
	SendTimeout    string       `json:"send_timeout"`
	FlushThreshold int          `json:"flush_threshold"`
	Beacon         BeaconConfig `json:"beacon"`
}

// BeaconConfig enables the acknowledged NATS request used for the final
// chunk. A collector must answer on Subject, otherwise the chunk is posted
// over HTTP instead. When NatsURL is empty the embedded server is used.
type BeaconConfig struct {
	Enabled    bool   `json:"enabled"`
	NatsURL    string `json:"nats_url"`
	Subject    string `json:"subject"`
	MaxPayload int    `json:"max_payload"`
	AckTimeout string `json:"ack_timeout"`
}

func (c *TelemetryConfig) validate() error {
	el := errors.NewErrorList()

	if c.Endpoint == "" {
		el.Add(fmt.Errorf("telemetry.endpoint is required"))
	} else if u, err := url.Parse(c.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		el.Add(fmt.Errorf("telemetry.endpoint must be an absolute url"))
	}
	if c.FlushThreshold < 0 {
		el.Add(fmt.Errorf("telemetry.flush_threshold must not be negative"))
	}
	if c.Beacon.MaxPayload < 0 {
		el.Add(fmt.Errorf("telemetry.beacon.max_payload must not be negative"))
	}

	el.Add(validateDurations(map[string]string{
		"telemetry.send_interval":      c.SendInterval,
		"telemetry.send_timeout":       c.SendTimeout,
		"telemetry.beacon.ack_timeout": c.Beacon.AckTimeout,
	}))

	return el.Err()
}

func (c *TelemetryConfig) buildLogger(kv storage.KV) *telemetry.Logger {
	var opts []telemetry.LoggerOpt
	if c.FlushThreshold > 0 {
		opts = append(opts, telemetry.WithFlushThreshold(c.FlushThreshold))
	}
	return telemetry.NewLogger(kv, opts...)
}

func (c *TelemetryConfig) buildShipper(logger *telemetry.Logger, beacon telemetry.Beacon) (*telemetry.Shipper, error) {
	interval, err := parseDuration("telemetry.send_interval", c.SendInterval, telemetry.DefaultSendInterval)
	if err != nil {
		return nil, err
	}
	timeout, err := parseDuration("telemetry.send_timeout", c.SendTimeout, telemetry.DefaultSendTimeout)
	if err != nil {
		return nil, err
	}

	opts := []telemetry.ShipperOpt{
		telemetry.WithSendInterval(interval),
		telemetry.WithSendTimeout(timeout),
	}
	if beacon != nil {
		opts = append(opts, telemetry.WithBeacon(beacon))
	}

	return telemetry.NewShipper(logger, transport.NewHTTPPoster(c.Endpoint), opts...), nil
}

func (c *BeaconConfig) subject() string {
	if c.Subject == "" {
		return transport.DefaultBeaconSubject
	}
	return c.Subject
}

func (c *BeaconConfig) buildBeacon(req transport.Requester) (*transport.NatsBeacon, error) {
	opts := []transport.NatsBeaconOpt{transport.WithSubject(c.subject())}
	if c.MaxPayload > 0 {
		opts = append(opts, transport.WithMaxPayload(c.MaxPayload))
	}
	if c.AckTimeout != "" {
		d, err := parseDuration("telemetry.beacon.ack_timeout", c.AckTimeout, 0)
		if err != nil {
			return nil, err
		}
		opts = append(opts, transport.WithAckTimeout(d))
	}
	return transport.NewNatsBeacon(req, opts...), nil
}
