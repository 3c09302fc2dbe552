package level

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/pixil98/mindmaze/internal/maze"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// Recorder receives the telemetry a level emits.
type Recorder interface {
	LogEvent(eventType string, payload any) error
}

// Deps carries the collaborators a level needs while loading and ticking.
type Deps struct {
	Generator *maze.Generator
	Clock     Clock
	Recorder  Recorder
}

type State int

const (
	StateLoading State = iota
	StateActive
	StateWon
	StateFailedTimeout
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	case StateWon:
		return "won"
	case StateFailedTimeout:
		return "failed_timeout"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Ended reports whether the level reached a terminal state.
func (s State) Ended() bool {
	return s == StateWon || s == StateFailedTimeout
}

// Status maps a terminal state onto the logged level_end status.
func (s State) Status() Status {
	if s == StateWon {
		return StatusWin
	}
	return StatusTimeout
}

type Key string

const (
	KeyUp    Key = "ArrowUp"
	KeyDown  Key = "ArrowDown"
	KeyLeft  Key = "ArrowLeft"
	KeyRight Key = "ArrowRight"
)

func (k Key) Direction() (maze.Direction, bool) {
	switch k {
	case KeyUp:
		return maze.Up, true
	case KeyDown:
		return maze.Down, true
	case KeyLeft:
		return maze.Left, true
	case KeyRight:
		return maze.Right, true
	default:
		return maze.Direction{}, false
	}
}

type pendingEvent struct {
	DynamicEvent
	triggerStep int
}

// Level is one loaded level instance. It is not safe for concurrent use;
// a single goroutine owns it from Load until it is discarded.
type Level struct {
	index int
	id    string
	cfg   *Config

	clock Clock
	rec   Recorder

	grid        *maze.Grid
	start, goal maze.Position
	player      *Player
	patrols     []*Patrol
	events      []*pendingEvent
	discovered  map[maze.Cell]bool

	optimalPath    []maze.Position
	decisionPoints []maze.Position

	patrolInterval time.Duration
	lastPatrolMove time.Time
	countdown      int
	timed          bool

	state     State
	startedAt time.Time
}

// Load builds an active level from tmpl and records level_start. On error
// no level is returned and nothing is recorded.
func Load(index int, tmpl Template, deps Deps) (*Level, error) {
	if tmpl.Config == nil {
		return nil, fmt.Errorf("level %q has no config", tmpl.ID)
	}
	if deps.Clock == nil {
		deps.Clock = ClockFunc(time.Now)
	}
	if deps.Generator == nil {
		deps.Generator = maze.NewGenerator()
	}

	cfg := tmpl.Config.clone()

	grid, patrols, err := buildGrid(cfg, deps.Generator)
	if err != nil {
		return nil, fmt.Errorf("generating level %q: %w", tmpl.ID, err)
	}

	start, ok := grid.Find(maze.Start)
	if !ok {
		return nil, fmt.Errorf("level %q has no start cell", tmpl.ID)
	}
	goal, ok := grid.Find(maze.Goal)
	if !ok {
		return nil, fmt.Errorf("level %q has no goal cell", tmpl.ID)
	}

	l := &Level{
		index:          index,
		id:             tmpl.ID,
		cfg:            cfg,
		clock:          deps.Clock,
		rec:            deps.Recorder,
		grid:           grid,
		start:          start,
		goal:           goal,
		player:         newPlayer(start, cfg.Settings.PathMemoryLength),
		discovered:     map[maze.Cell]bool{},
		patrolInterval: cfg.patrolInterval(),
		countdown:      cfg.Settings.Countdown,
		timed:          cfg.Settings.Countdown > 0,
		state:          StateLoading,
	}

	for _, p := range patrols {
		l.patrols = append(l.patrols, newPatrol(p))
	}

	l.optimalPath = maze.ShortestPath(grid, start, maze.ToPosition(goal), maze.Wall)
	l.decisionPoints = maze.DecisionPoints(grid)

	for _, e := range cfg.DynamicEvents {
		pe := &pendingEvent{DynamicEvent: e, triggerStep: -1}
		if e.Trigger.Kind == TriggerProgress && len(l.optimalPath) > 0 {
			pe.triggerStep = int(math.Floor(float64(len(l.optimalPath)) * e.Trigger.Progress))
		}
		l.events = append(l.events, pe)
	}

	l.record(EventLevelStart, l.startPayload(patrols))

	now := l.clock.Now()
	l.startedAt = now
	l.lastPatrolMove = now
	l.state = StateActive

	return l, nil
}

func buildGrid(cfg *Config, gen *maze.Generator) (*maze.Grid, []maze.PatrolPath, error) {
	if cfg.Generator != nil {
		out, err := gen.Generate(cfg.Generator)
		if err != nil {
			return nil, nil, err
		}
		return out.Grid, out.Patrols, nil
	}

	if err := validateGrid(cfg.Grid); err != nil {
		return nil, nil, err
	}
	grid, err := maze.FromRows(cfg.Grid)
	if err != nil {
		return nil, nil, err
	}
	return grid, cfg.Patrols, nil
}

func (l *Level) startPayload(patrols []maze.PatrolPath) LevelStartPayload {
	initial := make([]maze.PatrolPath, len(patrols))
	for i, p := range patrols {
		initial[i] = p.Clone()
	}

	return LevelStartPayload{
		LevelIndex: l.index,
		LevelID:    l.id,
		Maze: MazeSnapshot{
			Dimensions:        Dimensions{Width: l.grid.Width(), Height: l.grid.Height()},
			Grid:              l.grid.Rows(),
			StartPosition:     l.start,
			GoalPosition:      l.goal,
			OptimalPathLength: len(l.optimalPath),
			DecisionPoints:    l.decisionPoints,
		},
		Settings:       l.cfg.Settings,
		InitialPatrols: initial,
	}
}

// Tick advances the simulation by one frame. key is the buffered intent, or
// the empty key when none is pending.
func (l *Level) Tick(key Key) State {
	if l.state != StateActive {
		return l.state
	}

	now := l.clock.Now()

	l.recoverStun(now)

	if key != "" {
		l.move(key)
	}

	if l.timed && l.countdown <= 0 {
		l.state = StateFailedTimeout
		return l.state
	}

	l.advancePatrols(now)
	l.checkCollision(now)
	l.checkDynamicEvents()

	if l.player.Position == l.goal {
		l.state = StateWon
	}

	return l.state
}

// CountdownTick removes one second from the level timer.
func (l *Level) CountdownTick() {
	if l.state == StateActive && l.timed && l.countdown > 0 {
		l.countdown--
	}
}

func (l *Level) recoverStun(now time.Time) {
	if !l.player.Stunned || now.Before(l.player.StunUntil) {
		return
	}
	l.player.Stunned = false
	l.player.StunUntil = time.Time{}
	l.record(EventPlayerStateChange, StateChangePayload{
		Change:         StunEnd,
		Cause:          CauseTimeoutRecovery,
		PlayerPosition: l.player.Position,
	})
}

func (l *Level) move(key Key) {
	dir, ok := key.Direction()
	if !ok {
		return
	}

	from := l.player.Position
	l.record(EventPlayerIntent, IntentPayload{
		Key:               key,
		GameStateAtIntent: GameState{Player: l.player.snapshot()},
	})

	result := MoveSuccess
	if l.player.Stunned {
		result = MoveFailStunned
	} else {
		next := from.Add(dir)
		switch l.grid.At(next) {
		case maze.Wall:
			result = MoveFailWall
		case maze.Door:
			l.discovered[maze.Door] = true
			result = MoveFailDoor
		default:
			l.player.moveTo(next)
		}
	}

	l.record(EventPlayerActionResult, ActionResultPayload{
		InputKey: key,
		Result:   result,
		From:     from,
		To:       l.player.Position,
	})
}

func (l *Level) advancePatrols(now time.Time) {
	if len(l.patrols) == 0 || now.Sub(l.lastPatrolMove) < l.patrolInterval {
		return
	}
	l.lastPatrolMove = now
	for _, p := range l.patrols {
		p.Advance()
	}
}

func (l *Level) checkCollision(now time.Time) {
	if l.player.Stunned {
		return
	}
	for _, p := range l.patrols {
		if p.Position() != l.player.Position {
			continue
		}
		l.player.Stunned = true
		l.player.StunUntil = now.Add(StunDuration)
		l.record(EventPlayerStateChange, StateChangePayload{
			Change:         StunStart,
			Cause:          CausePatrolCollision,
			PlayerPosition: l.player.Position,
		})
		return
	}
}

func (l *Level) checkDynamicEvents() {
	if len(l.events) == 0 {
		return
	}

	current := l.grid.At(l.player.Position)
	for i := len(l.events) - 1; i >= 0; i-- {
		e := l.events[i]

		triggered := false
		switch e.Trigger.Kind {
		case TriggerProgress:
			triggered = e.triggerStep >= 0 && l.player.Steps >= e.triggerStep
		case TriggerItem:
			if current == e.Trigger.Item && l.conditionMet(e.Trigger.Condition) {
				l.record(EventItemInteraction, ItemInteractionPayload{
					ItemType: e.Trigger.Item.String(),
					Position: l.player.Position,
				})
				triggered = true
			}
		}

		if triggered {
			l.events = append(l.events[:i], l.events[i+1:]...)
			l.fire(e)
		}
	}
}

func (l *Level) conditionMet(c *Condition) bool {
	if c == nil {
		return true
	}
	switch c.Kind {
	case ConditionItemDiscovered:
		return l.discovered[c.Item]
	default:
		return false
	}
}

func (l *Level) fire(e *pendingEvent) {
	l.record(EventDynamicTrigger, DynamicTriggerPayload{
		TriggerType:        e.Type,
		Details:            e.Actions,
		GameStateAtTrigger: GameState{Player: l.player.snapshot()},
	})

	for _, a := range e.Actions {
		l.apply(a)
	}
}

func (l *Level) apply(a Action) {
	switch a.Action {
	case ActionChangeItemType:
		changed := l.grid.Replace(a.ItemType, a.NewValue)
		if a.ItemType == maze.Door && a.NewValue == maze.Path {
			for _, pos := range changed {
				l.record(EventItemInteraction, ItemInteractionPayload{ItemType: ItemDoorUnlocked, Position: pos})
			}
		}

	case ActionMoveGoal:
		if a.NewPos == nil || !l.grid.InBounds(*a.NewPos) || l.grid.At(*a.NewPos) == maze.Wall {
			slog.Warn("ignoring move_goal to a blocked cell", "level", l.id, "pos", a.NewPos)
			return
		}
		l.grid.Set(l.goal, maze.Path)
		l.goal = *a.NewPos
		l.grid.Set(l.goal, maze.Goal)

	case ActionChangePatrolPath:
		for _, p := range l.patrols {
			if p.ID() == a.PatrolID {
				p.SetPath(append([]maze.Position(nil), a.NewPath...))
				return
			}
		}
		slog.Warn("ignoring change_patrol_path for unknown patrol", "level", l.id, "patrol", a.PatrolID)
	}
}

func (l *Level) record(eventType string, payload any) {
	if l.rec == nil {
		return
	}
	if err := l.rec.LogEvent(eventType, payload); err != nil {
		slog.Warn("recording level event", "level", l.id, "event", eventType, "error", err)
	}
}

// EndPayload builds the level_end record for a finished level.
func (l *Level) EndPayload(status Status, duration time.Duration) LevelEndPayload {
	return LevelEndPayload{
		LevelIndex:      l.index,
		LevelID:         l.id,
		Status:          status,
		TotalDurationMs: duration.Milliseconds(),
		FinalGameState: GameState{
			Player:  l.player.snapshot(),
			Patrols: l.patrolSnapshots(),
		},
	}
}

func (l *Level) patrolSnapshots() []PatrolSnapshot {
	out := make([]PatrolSnapshot, len(l.patrols))
	for i, p := range l.patrols {
		out[i] = p.snapshot()
	}
	return out
}

func (l *Level) Index() int                { return l.index }
func (l *Level) ID() string                { return l.id }
func (l *Level) State() State              { return l.state }
func (l *Level) StartedAt() time.Time      { return l.startedAt }
func (l *Level) Goal() maze.Position       { return l.goal }
func (l *Level) Player() PlayerSnapshot    { return l.player.snapshot() }
func (l *Level) Patrols() []PatrolSnapshot { return l.patrolSnapshots() }
func (l *Level) OptimalPathLength() int    { return len(l.optimalPath) }
func (l *Level) PendingEvents() int        { return len(l.events) }
func (l *Level) DoorDiscovered() bool      { return l.discovered[maze.Door] }

// Countdown returns the remaining seconds and whether the level is timed.
func (l *Level) Countdown() (int, bool) {
	return l.countdown, l.timed
}

// Cell returns the current code at p.
func (l *Level) Cell(p maze.Position) maze.Cell {
	return l.grid.At(p)
}
