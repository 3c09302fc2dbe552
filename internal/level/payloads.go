package level

import "github.com/pixil98/mindmaze/internal/maze"

// Event types recorded by a level and by the controller that drives it.
const (
	EventLevelStart         = "level_start"
	EventPlayerIntent       = "player_intent_input"
	EventPlayerActionResult = "player_action_result"
	EventItemInteraction    = "item_interaction"
	EventDynamicTrigger     = "world_dynamic_event_trigger"
	EventPlayerStateChange  = "player_state_change"
	EventLevelEnd           = "level_end"
)

type MoveResult string

const (
	MoveSuccess     MoveResult = "move_success"
	MoveFailWall    MoveResult = "fail_wall"
	MoveFailDoor    MoveResult = "fail_door"
	MoveFailStunned MoveResult = "fail_stunned"
)

type Status string

const (
	StatusWin     Status = "win"
	StatusTimeout Status = "fail_timeout"
)

const (
	StunStart = "stun_start"
	StunEnd   = "stun_end"

	CausePatrolCollision = "patrol_collision"
	CauseTimeoutRecovery = "timeout_recovery"

	ItemDoorUnlocked = "door_unlocked"
)

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type MazeSnapshot struct {
	Dimensions        Dimensions      `json:"dimensions"`
	Grid              [][]maze.Cell   `json:"grid"`
	StartPosition     maze.Position   `json:"startPosition"`
	GoalPosition      maze.Position   `json:"goalPosition"`
	OptimalPathLength int             `json:"optimalPathLength"`
	DecisionPoints    []maze.Position `json:"decisionPoints"`
}

type LevelStartPayload struct {
	LevelIndex     int               `json:"levelIndex"`
	LevelID        string            `json:"levelId"`
	Maze           MazeSnapshot      `json:"maze"`
	Settings       Settings          `json:"settings"`
	InitialPatrols []maze.PatrolPath `json:"initialPatrols"`
}

type PlayerSnapshot struct {
	Position  maze.Position `json:"position"`
	Steps     int           `json:"steps"`
	IsStunned bool          `json:"isStunned"`
}

type PatrolSnapshot struct {
	ID       int           `json:"id"`
	Position maze.Position `json:"position"`
}

type GameState struct {
	Player  PlayerSnapshot   `json:"player"`
	Patrols []PatrolSnapshot `json:"patrols,omitempty"`
}

type IntentPayload struct {
	Key               Key       `json:"key"`
	GameStateAtIntent GameState `json:"gameStateAtIntent"`
}

type ActionResultPayload struct {
	InputKey Key           `json:"inputKey"`
	Result   MoveResult    `json:"result"`
	From     maze.Position `json:"from"`
	To       maze.Position `json:"to"`
}

type ItemInteractionPayload struct {
	ItemType string        `json:"itemType"`
	Position maze.Position `json:"position"`
}

type DynamicTriggerPayload struct {
	TriggerType        string    `json:"triggerType"`
	Details            []Action  `json:"details"`
	GameStateAtTrigger GameState `json:"gameStateAtTrigger"`
}

type StateChangePayload struct {
	Change         string        `json:"change"`
	Cause          string        `json:"cause"`
	PlayerPosition maze.Position `json:"playerPosition"`
}

type LevelEndPayload struct {
	LevelIndex      int       `json:"levelIndex"`
	LevelID         string    `json:"levelId"`
	Status          Status    `json:"status"`
	TotalDurationMs int64     `json:"totalDurationMs"`
	FinalGameState  GameState `json:"finalGameState"`
}
