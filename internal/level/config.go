package level

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/mindmaze/internal/maze"
)

const DefaultPatrolInterval = 500 * time.Millisecond

// Settings are the movement and visibility rules for a level. The JSON keys
// match the logged level_start payload.
type Settings struct {
	FogOfWar         bool `json:"fogOfWar"`
	VisionRadius     int  `json:"visionRadius,omitempty"`
	PathMemoryLength int  `json:"pathMemoryLength,omitempty"`
	Countdown        int  `json:"countdown,omitempty"` // seconds, 0 disables the timer
}

func (s Settings) Validate() error {
	el := errors.NewErrorList()

	if s.VisionRadius < 0 {
		el.Add(fmt.Errorf("visionRadius must not be negative"))
	}
	if s.PathMemoryLength < 0 {
		el.Add(fmt.Errorf("pathMemoryLength must not be negative"))
	}
	if s.Countdown < 0 {
		el.Add(fmt.Errorf("countdown must not be negative"))
	}

	return el.Err()
}

// Config is an immutable level template. Each load works on a clone so
// runtime mutation never reaches the template.
type Config struct {
	Generator      *maze.GeneratorConfig `json:"generator,omitempty"`
	Grid           [][]maze.Cell         `json:"grid,omitempty"`
	Patrols        []maze.PatrolPath     `json:"patrols,omitempty"` // fixed grids only
	Settings       Settings              `json:"settings"`
	PatrolInterval string                `json:"patrol_interval,omitempty"`
	DynamicEvents  []DynamicEvent        `json:"dynamic_events,omitempty"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	switch {
	case c.Generator == nil && len(c.Grid) == 0:
		el.Add(fmt.Errorf("one of generator or grid is required"))
	case c.Generator != nil && len(c.Grid) > 0:
		el.Add(fmt.Errorf("generator and grid are mutually exclusive"))
	case c.Generator != nil:
		if err := c.Generator.Validate(); err != nil {
			el.Add(fmt.Errorf("generator: %w", err))
		}
		if len(c.Patrols) > 0 {
			el.Add(fmt.Errorf("patrols may only be set with a fixed grid"))
		}
	default:
		el.Add(validateGrid(c.Grid))
	}

	if c.PatrolInterval != "" {
		d, err := time.ParseDuration(c.PatrolInterval)
		if err != nil {
			el.Add(fmt.Errorf("parsing patrol_interval: %w", err))
		} else if d <= 0 {
			el.Add(fmt.Errorf("patrol_interval must be positive"))
		}
	}

	if err := c.Settings.Validate(); err != nil {
		el.Add(fmt.Errorf("settings: %w", err))
	}

	for i, p := range c.Patrols {
		if len(p.Path) == 0 {
			el.Add(fmt.Errorf("patrol %d: path is empty", i))
		}
	}

	for i, e := range c.DynamicEvents {
		if err := e.Validate(); err != nil {
			el.Add(fmt.Errorf("dynamic event %d: %w", i, err))
		}
	}

	return el.Err()
}

func validateGrid(rows [][]maze.Cell) error {
	g, err := maze.FromRows(rows)
	if err != nil {
		return fmt.Errorf("grid: %w", err)
	}

	el := errors.NewErrorList()
	if n := g.Count(maze.Start); n != 1 {
		el.Add(fmt.Errorf("grid must have exactly one start cell, found %d", n))
	}
	if n := g.Count(maze.Goal); n != 1 {
		el.Add(fmt.Errorf("grid must have exactly one goal cell, found %d", n))
	}
	if g.Count(maze.Key) > 1 || g.Count(maze.Door) > 1 {
		el.Add(fmt.Errorf("grid may hold at most one key and one door"))
	}
	return el.Err()
}

// patrolInterval returns the parsed interval. Validate has already rejected
// malformed values.
func (c *Config) patrolInterval() time.Duration {
	if c.PatrolInterval == "" {
		return DefaultPatrolInterval
	}
	d, err := time.ParseDuration(c.PatrolInterval)
	if err != nil || d <= 0 {
		return DefaultPatrolInterval
	}
	return d
}

// clone copies the parts of the template that a level mutates at runtime.
// The generator parameters and the fixed grid rows are never written and
// stay shared.
func (c *Config) clone() *Config {
	cp := *c

	if c.Patrols != nil {
		cp.Patrols = make([]maze.PatrolPath, len(c.Patrols))
		for i, p := range c.Patrols {
			cp.Patrols[i] = p.Clone()
		}
	}

	if c.DynamicEvents != nil {
		cp.DynamicEvents = make([]DynamicEvent, len(c.DynamicEvents))
		for i, e := range c.DynamicEvents {
			cp.DynamicEvents[i] = e.clone()
		}
	}

	return &cp
}
