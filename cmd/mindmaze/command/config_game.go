package command

import (
	"fmt"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/mindmaze/internal/display"
	"github.com/pixil98/mindmaze/internal/game"
	"github.com/pixil98/mindmaze/internal/maze"
	"github.com/pixil98/mindmaze/internal/results"
	"golang.org/x/text/language"
)

type GameConfig struct {
	FrameInterval     string `json:"frame_interval"`
	CountdownInterval string `json:"countdown_interval"`
	GraceDelay        string `json:"grace_delay"`
	MaxAttempts       int    `json:"max_attempts"`
}

func (c *GameConfig) validate() error {
	el := errors.NewErrorList()

	el.Add(validateDurations(map[string]string{
		"game.frame_interval":     c.FrameInterval,
		"game.countdown_interval": c.CountdownInterval,
		"game.grace_delay":        c.GraceDelay,
	}))
	if c.MaxAttempts < 0 {
		el.Add(fmt.Errorf("game.max_attempts must not be negative"))
	}

	return el.Err()
}

func (c *GameConfig) controllerOpts() ([]game.ControllerOpt, error) {
	frame, err := parseDuration("game.frame_interval", c.FrameInterval, game.DefaultFrameInterval)
	if err != nil {
		return nil, err
	}
	countdown, err := parseDuration("game.countdown_interval", c.CountdownInterval, game.DefaultCountdownInterval)
	if err != nil {
		return nil, err
	}
	grace, err := parseDuration("game.grace_delay", c.GraceDelay, game.DefaultGraceDelay)
	if err != nil {
		return nil, err
	}

	var genOpts []maze.GeneratorOpt
	if c.MaxAttempts > 0 {
		genOpts = append(genOpts, maze.WithMaxAttempts(c.MaxAttempts))
	}

	return []game.ControllerOpt{
		game.WithFrameInterval(frame),
		game.WithCountdownInterval(countdown),
		game.WithGraceDelay(grace),
		game.WithGenerator(maze.NewGenerator(genOpts...)),
	}, nil
}

type UIConfig struct {
	Language         string `json:"language"`
	Width            int    `json:"width"`
	FinalSendTimeout string `json:"final_send_timeout"`
}

func (c *UIConfig) validate() error {
	el := errors.NewErrorList()

	if c.Language != "" {
		if _, err := language.Parse(c.Language); err != nil {
			el.Add(fmt.Errorf("parsing ui.language: %w", err))
		}
	}
	if c.Width < 0 {
		el.Add(fmt.Errorf("ui.width must not be negative"))
	}
	if _, err := parseDuration("ui.final_send_timeout", c.FinalSendTimeout, 0); err != nil {
		el.Add(err)
	}

	return el.Err()
}

func (c *UIConfig) buildRenderer() (*results.Renderer, error) {
	var opts []results.RendererOpt
	if c.Language != "" {
		tag, err := language.Parse(c.Language)
		if err != nil {
			return nil, fmt.Errorf("parsing ui.language: %w", err)
		}
		opts = append(opts, results.WithLanguage(tag))
	}
	if c.Width > 0 {
		opts = append(opts, results.WithWidth(c.Width))
	}
	return results.NewRenderer(opts...)
}

func (c *UIConfig) appOpts(quit func()) ([]display.AppOpt, error) {
	timeout, err := parseDuration("ui.final_send_timeout", c.FinalSendTimeout, display.DefaultFinalSendTimeout)
	if err != nil {
		return nil, err
	}
	return []display.AppOpt{
		display.WithQuit(quit),
		display.WithFinalSendTimeout(timeout),
	}, nil
}
