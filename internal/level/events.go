package level

import (
	"fmt"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/mindmaze/internal/maze"
)

type TriggerKind string

const (
	// TriggerProgress fires once the player has walked a fraction of the
	// optimal path length.
	TriggerProgress TriggerKind = "progress"
	// TriggerItem fires when the player stands on a cell holding Item.
	TriggerItem TriggerKind = "item"
)

type ConditionKind string

const (
	ConditionItemDiscovered ConditionKind = "item_discovered"
)

// Condition gates an item trigger on explicit level state.
type Condition struct {
	Kind ConditionKind `json:"kind"`
	Item maze.Cell     `json:"item"`
}

func (c *Condition) Validate() error {
	switch c.Kind {
	case ConditionItemDiscovered:
		if c.Item != maze.Door {
			return fmt.Errorf("item_discovered only tracks the door, got %s", c.Item)
		}
		return nil
	default:
		return fmt.Errorf("unknown condition kind %q", c.Kind)
	}
}

type Trigger struct {
	Kind      TriggerKind `json:"kind"`
	Progress  float64     `json:"progress,omitempty"`
	Item      maze.Cell   `json:"item,omitempty"`
	Condition *Condition  `json:"condition,omitempty"`
}

func (t *Trigger) Validate() error {
	el := errors.NewErrorList()

	switch t.Kind {
	case TriggerProgress:
		if t.Progress <= 0 || t.Progress > 1 {
			el.Add(fmt.Errorf("progress must be in (0, 1], got %v", t.Progress))
		}
	case TriggerItem:
		if t.Item == maze.Path || t.Item == maze.Wall {
			el.Add(fmt.Errorf("item trigger cannot use %s", t.Item))
		}
	default:
		el.Add(fmt.Errorf("unknown trigger kind %q", t.Kind))
	}

	if t.Condition != nil {
		el.Add(t.Condition.Validate())
	}

	return el.Err()
}

type ActionKind string

const (
	ActionChangeItemType   ActionKind = "change_item_type"
	ActionMoveGoal         ActionKind = "move_goal"
	ActionChangePatrolPath ActionKind = "change_patrol_path"
)

// Action is one world mutation applied when a dynamic event fires. The JSON
// form is also the logged trigger detail.
type Action struct {
	Action   ActionKind      `json:"action"`
	ItemType maze.Cell       `json:"itemType,omitempty"`
	NewValue maze.Cell       `json:"newValue"`
	NewPos   *maze.Position  `json:"newPos,omitempty"`
	PatrolID int             `json:"patrolId,omitempty"`
	NewPath  []maze.Position `json:"newPath,omitempty"`
}

func (a *Action) Validate() error {
	switch a.Action {
	case ActionChangeItemType:
		if a.ItemType == maze.Start || a.ItemType == maze.Goal || a.NewValue == maze.Start || a.NewValue == maze.Goal {
			return fmt.Errorf("change_item_type cannot rewrite start or goal cells")
		}
		if a.ItemType == a.NewValue {
			return fmt.Errorf("change_item_type must change the cell, both are %s", a.ItemType)
		}
	case ActionMoveGoal:
		if a.NewPos == nil {
			return fmt.Errorf("move_goal requires newPos")
		}
	case ActionChangePatrolPath:
		if len(a.NewPath) < 2 {
			return fmt.Errorf("change_patrol_path requires at least two positions")
		}
	default:
		return fmt.Errorf("unknown action %q", a.Action)
	}
	return nil
}

// DynamicEvent is a one-shot rule that mutates the world when its trigger
// is satisfied.
type DynamicEvent struct {
	Type    string   `json:"type"`
	Trigger Trigger  `json:"trigger"`
	Actions []Action `json:"actions"`
}

func (e *DynamicEvent) Validate() error {
	el := errors.NewErrorList()

	if e.Type == "" {
		el.Add(fmt.Errorf("type is required"))
	}
	if err := e.Trigger.Validate(); err != nil {
		el.Add(fmt.Errorf("trigger: %w", err))
	}
	if len(e.Actions) == 0 {
		el.Add(fmt.Errorf("at least one action is required"))
	}
	for i := range e.Actions {
		if err := e.Actions[i].Validate(); err != nil {
			el.Add(fmt.Errorf("action %d: %w", i, err))
		}
	}

	return el.Err()
}

func (e DynamicEvent) clone() DynamicEvent {
	cp := e
	if e.Trigger.Condition != nil {
		c := *e.Trigger.Condition
		cp.Trigger.Condition = &c
	}
	cp.Actions = make([]Action, len(e.Actions))
	for i, a := range e.Actions {
		if a.NewPos != nil {
			p := *a.NewPos
			a.NewPos = &p
		}
		a.NewPath = append([]maze.Position(nil), a.NewPath...)
		cp.Actions[i] = a
	}
	return cp
}
