package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
)

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Levels    LevelsConfig    `json:"levels"`
	Game      GameConfig      `json:"game"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Nats      NatsConfig      `json:"nats"`
	Collector CollectorConfig `json:"collector"`
	UI        UIConfig        `json:"ui"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	el.Add(c.Logging.validate())
	el.Add(c.Storage.validate())
	el.Add(c.Levels.validate())
	el.Add(c.Game.validate())
	el.Add(c.Telemetry.validate())
	el.Add(c.Nats.validate())
	el.Add(c.Collector.validate())
	el.Add(c.UI.validate())

	if c.Telemetry.Beacon.Enabled && c.Telemetry.Beacon.NatsURL == "" && !c.Nats.Enabled {
		el.Add(fmt.Errorf("telemetry.beacon requires nats_url or the embedded nats server"))
	}
	if c.Collector.Enabled && c.Collector.Beacons && !c.Nats.Enabled {
		el.Add(fmt.Errorf("collector.beacons requires the embedded nats server"))
	}

	return el.Err()
}

// parseDuration parses an optional duration field. Empty values yield def.
func parseDuration(field string, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", field)
	}
	return d, nil
}

func validateDurations(fields map[string]string) error {
	el := errors.NewErrorList()
	for name, v := range fields {
		if _, err := parseDuration(name, v, 0); err != nil {
			el.Add(err)
		}
	}
	return el.Err()
}
