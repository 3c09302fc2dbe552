package command

import (
	"fmt"
	"log/slog"

	"github.com/pixil98/go-service"
	"github.com/pixil98/mindmaze/internal/display"
	"github.com/pixil98/mindmaze/internal/game"
	"github.com/pixil98/mindmaze/internal/messaging"
	"github.com/pixil98/mindmaze/internal/storage"
	"github.com/pixil98/mindmaze/internal/telemetry"
	"github.com/pixil98/mindmaze/internal/transport"
)

// WorkerBuilder returns the worker factory for the application. quit is
// called once the participant closes the terminal UI.
func WorkerBuilder(quit func()) func(config interface{}) (service.WorkerList, error) {
	return func(config interface{}) (service.WorkerList, error) {
		cfg, ok := config.(*Config)
		if !ok {
			return nil, fmt.Errorf("unable to cast config")
		}
		return cfg.buildWorkers(quit)
	}
}

func (cfg *Config) buildWorkers(quit func()) (service.WorkerList, error) {
	if _, err := cfg.Logging.install(); err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}

	// Participant state
	kv, err := cfg.Storage.BuildKV()
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	logger := cfg.Telemetry.buildLogger(kv)
	slog.Info("session ready", "session", logger.SessionID(), "participant", logger.ParticipantID(), "resumed", logger.Resumed())

	workers, err := cfg.buildSessionWorkers(kv, logger, quit)
	if err != nil {
		// Kept locally and delivered with the next launch.
		if endErr := logger.EndSession(telemetry.ReasonError, err); endErr != nil {
			slog.Warn("recording session end", "error", endErr)
		}
		return nil, err
	}

	return workers, nil
}

func (cfg *Config) buildSessionWorkers(kv *storage.FileKV, logger *telemetry.Logger, quit func()) (service.WorkerList, error) {
	workers := service.WorkerList{}

	// Messaging
	var ns *messaging.NatsServer
	if cfg.Nats.Enabled {
		var err error
		ns, err = cfg.Nats.buildNatsServer()
		if err != nil {
			return nil, fmt.Errorf("creating nats server: %w", err)
		}
		workers["nats"] = ns
	}

	var beacon telemetry.Beacon
	if b := cfg.Telemetry.Beacon; b.Enabled {
		var req transport.Requester = ns
		if b.NatsURL != "" {
			client := messaging.NewNatsClient(b.NatsURL, "mindmaze-"+logger.SessionID())
			workers["nats-client"] = client
			req = client
		}
		nb, err := b.buildBeacon(req)
		if err != nil {
			return nil, fmt.Errorf("creating beacon: %w", err)
		}
		beacon = nb
	}

	// Telemetry delivery
	shipper, err := cfg.Telemetry.buildShipper(logger, beacon)
	if err != nil {
		return nil, fmt.Errorf("creating shipper: %w", err)
	}
	workers["shipper"] = shipper

	if cfg.Collector.Enabled {
		col, err := cfg.Collector.buildCollector(ns, cfg.Telemetry.Beacon.subject())
		if err != nil {
			return nil, err
		}
		workers["collector"] = col
	}

	// Game and terminal UI
	levels, err := cfg.Levels.BuildLevels()
	if err != nil {
		return nil, err
	}
	renderer, err := cfg.UI.buildRenderer()
	if err != nil {
		return nil, fmt.Errorf("creating results renderer: %w", err)
	}
	appOpts, err := cfg.UI.appOpts(quit)
	if err != nil {
		return nil, err
	}
	ctrlOpts, err := cfg.Game.controllerOpts()
	if err != nil {
		return nil, err
	}

	ui := display.NewApp(logger, shipper, kv, renderer, appOpts...)
	ui.SetGame(game.NewController(levels, ui, logger, ctrlOpts...))
	// The UI stops the game and makes the final send itself.
	shipper.StopAfter(ui.Done())
	workers["ui"] = ui

	return workers, nil
}
