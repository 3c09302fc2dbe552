package maze

import (
	"fmt"

	"github.com/pixil98/go-errors"
)

const MinDimension = 5

type PlaceableType string

const (
	PlaceKey        PlaceableType = "key"
	PlaceDoor       PlaceableType = "door"
	PlacePatrolPath PlaceableType = "patrol_path"
)

// Placeable requests a feature to be placed on a generated maze.
type Placeable struct {
	Type  PlaceableType `json:"type"`
	Count int           `json:"count,omitempty"` // patrol_path only
}

// GeneratorConfig holds the parameters for one generated level. It is never
// mutated after load and may be shared between level instances.
type GeneratorConfig struct {
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Goal       *Position   `json:"goal_pos,omitempty"`
	Placeables []Placeable `json:"placeables,omitempty"`
}

func (c *GeneratorConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("generator config is required")
	}

	el := errors.NewErrorList()

	if c.Width < MinDimension || c.Height < MinDimension {
		el.Add(fmt.Errorf("dimensions must be at least %dx%d, got %dx%d", MinDimension, MinDimension, c.Width, c.Height))
	}

	if c.Goal != nil {
		g := *c.Goal
		switch {
		case g.X <= 0 || g.Y <= 0 || g.X >= c.Width-1 || g.Y >= c.Height-1:
			el.Add(fmt.Errorf("goal_pos %v must be an interior cell", g))
		case g.X%2 == 0 || g.Y%2 == 0:
			el.Add(fmt.Errorf("goal_pos %v must have odd coordinates", g))
		case g == Position{X: 1, Y: 1}:
			el.Add(fmt.Errorf("goal_pos must differ from the start cell"))
		}
	}

	counts := map[PlaceableType]int{}
	for i, p := range c.Placeables {
		counts[p.Type]++
		switch p.Type {
		case PlaceKey, PlaceDoor:
		case PlacePatrolPath:
			if p.Count < 1 {
				el.Add(fmt.Errorf("placeable %d: patrol_path count must be at least 1", i))
			}
		default:
			el.Add(fmt.Errorf("placeable %d: unknown type %q", i, p.Type))
		}
	}
	if counts[PlaceKey] > 1 || counts[PlaceDoor] > 1 {
		el.Add(fmt.Errorf("at most one key and one door may be placed"))
	}
	if counts[PlaceKey] > 0 && counts[PlaceDoor] == 0 {
		el.Add(fmt.Errorf("a key placeable requires a door placeable"))
	}

	return el.Err()
}

// GoalPosition returns the configured goal or the far odd-coordinate corner.
func (c *GeneratorConfig) GoalPosition() Position {
	if c.Goal != nil {
		return *c.Goal
	}
	return Position{X: lastOdd(c.Width - 2), Y: lastOdd(c.Height - 2)}
}

func (c *GeneratorConfig) has(t PlaceableType) bool {
	for _, p := range c.Placeables {
		if p.Type == t {
			return true
		}
	}
	return false
}

func lastOdd(v int) int {
	if v%2 == 0 {
		return v - 1
	}
	return v
}
