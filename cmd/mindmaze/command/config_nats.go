package command

import (
	"fmt"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/mindmaze/internal/messaging"
)

// NatsConfig controls the embedded broker that carries beacons to an
// in-process collector.
type NatsConfig struct {
	Enabled      bool   `json:"enabled"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	StartTimeout string `json:"start_timeout"`
}

func (n *NatsConfig) validate() error {
	el := errors.NewErrorList()

	if _, err := parseDuration("nats.start_timeout", n.StartTimeout, 0); err != nil {
		el.Add(err)
	}
	if n.Port < -1 || n.Port > 65535 {
		el.Add(fmt.Errorf("nats.port must be -1 or a valid port"))
	}

	return el.Err()
}

func (n *NatsConfig) buildNatsServer() (*messaging.NatsServer, error) {
	var opts []messaging.NatsServerOpt
	if n.StartTimeout != "" {
		d, err := parseDuration("nats.start_timeout", n.StartTimeout, 0)
		if err != nil {
			return nil, err
		}
		opts = append(opts, messaging.WithStartTimeout(d))
	}
	if n.Host != "" {
		opts = append(opts, messaging.WithHost(n.Host))
	}
	if n.Port != 0 {
		opts = append(opts, messaging.WithPort(n.Port))
	}

	s, err := messaging.NewNatsServer(opts...)
	if err != nil {
		return nil, err
	}

	return s, nil
}
