package level

import "github.com/pixil98/mindmaze/internal/maze"

// Template pairs a level config with the id it is logged under.
type Template struct {
	ID     string
	Config *Config
}

func doorOpenEvent() DynamicEvent {
	return DynamicEvent{
		Type: "door_open",
		Trigger: Trigger{
			Kind:      TriggerItem,
			Item:      maze.Key,
			Condition: &Condition{Kind: ConditionItemDiscovered, Item: maze.Door},
		},
		Actions: []Action{
			{Action: ActionChangeItemType, ItemType: maze.Door, NewValue: maze.Path},
			{Action: ActionChangeItemType, ItemType: maze.Key, NewValue: maze.Path},
		},
	}
}

func hline(y, fromX, toX int) []maze.Position {
	var out []maze.Position
	for x := fromX; x <= toX; x++ {
		out = append(out, maze.Position{X: x, Y: y})
	}
	return out
}

func vline(x, fromY, toY int) []maze.Position {
	var out []maze.Position
	for y := fromY; y <= toY; y++ {
		out = append(out, maze.Position{X: x, Y: y})
	}
	return out
}

// DefaultLevels returns the built-in five level experiment. Every call
// builds fresh templates.
func DefaultLevels() []Template {
	return []Template{
		{
			ID: "level-1",
			Config: &Config{
				Generator: &maze.GeneratorConfig{Width: 19, Height: 19},
			},
		},
		{
			ID: "level-2",
			Config: &Config{
				Generator: &maze.GeneratorConfig{
					Width: 19, Height: 19,
					Placeables: []maze.Placeable{{Type: maze.PlaceKey}, {Type: maze.PlaceDoor}},
				},
				DynamicEvents: []DynamicEvent{doorOpenEvent()},
			},
		},
		{
			ID: "level-3",
			Config: &Config{
				Generator: &maze.GeneratorConfig{
					Width: 21, Height: 21,
					Placeables: []maze.Placeable{{Type: maze.PlacePatrolPath, Count: 2}},
				},
				PatrolInterval: "500ms",
				DynamicEvents: []DynamicEvent{
					{
						Type:    "mid_game_twist",
						Trigger: Trigger{Kind: TriggerProgress, Progress: 0.5},
						Actions: []Action{
							{Action: ActionMoveGoal, NewPos: &maze.Position{X: 1, Y: 19}},
							{Action: ActionChangePatrolPath, PatrolID: 0, NewPath: hline(15, 9, 13)},
							{Action: ActionChangePatrolPath, PatrolID: 1, NewPath: vline(5, 13, 17)},
						},
					},
				},
			},
		},
		{
			ID: "level-4",
			Config: &Config{
				Generator: &maze.GeneratorConfig{Width: 25, Height: 25},
				Settings:  Settings{FogOfWar: true, VisionRadius: 2, PathMemoryLength: 15},
			},
		},
		{
			ID: "level-5",
			Config: &Config{
				Generator: &maze.GeneratorConfig{
					Width: 21, Height: 21,
					Goal: &maze.Position{X: 1, Y: 19},
					Placeables: []maze.Placeable{
						{Type: maze.PlaceKey},
						{Type: maze.PlaceDoor},
						{Type: maze.PlacePatrolPath, Count: 1},
					},
				},
				Settings:       Settings{FogOfWar: true, VisionRadius: 3, Countdown: 60},
				PatrolInterval: "450ms",
				DynamicEvents:  []DynamicEvent{doorOpenEvent()},
			},
		},
	}
}
