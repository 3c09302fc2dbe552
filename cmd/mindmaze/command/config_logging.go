package command

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pixil98/go-errors"
)

// LoggingConfig routes slog output to a file so it does not draw over the
// terminal UI.
type LoggingConfig struct {
	Path  string `json:"path"`
	Level string `json:"level"`
}

func (c *LoggingConfig) validate() error {
	el := errors.NewErrorList()

	if c.Path == "" {
		el.Add(fmt.Errorf("logging.path is required"))
	}
	if c.Level != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
			el.Add(fmt.Errorf("parsing logging.level: %w", err))
		}
	}

	return el.Err()
}

// install makes the configured log file the default slog destination.
func (c *LoggingConfig) install() (*os.File, error) {
	var lvl slog.Level
	if c.Level != "" {
		if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
			return nil, fmt.Errorf("parsing logging.level: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(c.Path), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(c.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: lvl})))
	return f, nil
}
