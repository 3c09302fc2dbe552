package command

import (
	"fmt"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/mindmaze/internal/collector"
	"github.com/pixil98/mindmaze/internal/messaging"
)

// CollectorConfig runs the receiving end of the telemetry protocol in the
// same process, for pilots and local testing.
type CollectorConfig struct {
	Enabled      bool   `json:"enabled"`
	Addr         string `json:"addr"`
	DataDir      string `json:"data_dir"`
	MaxBodyBytes int64  `json:"max_body_bytes"`
	Beacons      bool   `json:"beacons"`
}

func (c *CollectorConfig) validate() error {
	if !c.Enabled {
		return nil
	}

	el := errors.NewErrorList()

	if c.DataDir == "" {
		el.Add(fmt.Errorf("collector.data_dir is required"))
	}
	if c.MaxBodyBytes < 0 {
		el.Add(fmt.Errorf("collector.max_body_bytes must not be negative"))
	}

	return el.Err()
}

func (c *CollectorConfig) buildCollector(ns *messaging.NatsServer, subject string) (*collector.Collector, error) {
	var opts []collector.CollectorOpt
	if c.Addr != "" {
		opts = append(opts, collector.WithAddr(c.Addr))
	}
	if c.MaxBodyBytes > 0 {
		opts = append(opts, collector.WithMaxBodyBytes(c.MaxBodyBytes))
	}
	if c.Beacons && ns != nil {
		opts = append(opts, collector.WithBeaconSource(ns, subject))
	}

	col, err := collector.NewCollector(c.DataDir, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating collector: %w", err)
	}
	return col, nil
}
