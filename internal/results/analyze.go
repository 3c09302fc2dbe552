package results

import (
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/pixil98/mindmaze/internal/level"
	"github.com/pixil98/mindmaze/internal/telemetry"
)

// LevelMetrics describes the last finished attempt at one level.
type LevelMetrics struct {
	Index             int          `json:"index"`
	LevelID           string       `json:"levelId"`
	Status            level.Status `json:"status"`
	DurationMs        int64        `json:"durationMs"`
	Steps             int          `json:"steps"`
	OptimalPathLength int          `json:"optimalPathLength"`
	// Efficiency is the shortest possible move count over the moves made,
	// capped at 1.
	Efficiency    float64 `json:"efficiency"`
	Intents       int     `json:"intents"`
	WallBumps     int     `json:"wallBumps"`
	DoorBumps     int     `json:"doorBumps"`
	StunnedInputs int     `json:"stunnedInputs"`
	Stuns         int     `json:"stuns"`
	Triggers      int     `json:"triggers"`
}

type Summary struct {
	SessionID       string         `json:"sessionId"`
	Levels          []LevelMetrics `json:"levels"`
	Completed       int            `json:"completed"`
	TotalDurationMs int64          `json:"totalDurationMs"`
	MeanEfficiency  float64        `json:"meanEfficiency"`
}

// Analyze derives per-level metrics from a session log. It reports false
// when no level has ended yet.
func Analyze(records []telemetry.Record) (*Summary, bool) {
	open := map[int]*LevelMetrics{}
	done := map[int]LevelMetrics{}
	current := -1

	var sessionID string
	for _, r := range records {
		if sessionID == "" {
			sessionID = r.SessionID
		}

		switch r.EventType {
		case level.EventLevelStart:
			var p level.LevelStartPayload
			if !decode(r, &p) {
				continue
			}
			current = p.LevelIndex
			open[current] = &LevelMetrics{
				Index:             p.LevelIndex,
				LevelID:           p.LevelID,
				OptimalPathLength: p.Maze.OptimalPathLength,
			}

		case level.EventPlayerIntent:
			if m := open[current]; m != nil {
				m.Intents++
			}

		case level.EventPlayerActionResult:
			var p level.ActionResultPayload
			m := open[current]
			if m == nil || !decode(r, &p) {
				continue
			}
			switch p.Result {
			case level.MoveFailWall:
				m.WallBumps++
			case level.MoveFailDoor:
				m.DoorBumps++
			case level.MoveFailStunned:
				m.StunnedInputs++
			}

		case level.EventPlayerStateChange:
			var p level.StateChangePayload
			m := open[current]
			if m == nil || !decode(r, &p) {
				continue
			}
			if p.Change == level.StunStart {
				m.Stuns++
			}

		case level.EventDynamicTrigger:
			if m := open[current]; m != nil {
				m.Triggers++
			}

		case level.EventLevelEnd:
			var p level.LevelEndPayload
			if !decode(r, &p) {
				continue
			}
			m, ok := open[p.LevelIndex]
			if !ok {
				m = &LevelMetrics{Index: p.LevelIndex, LevelID: p.LevelID}
			}
			m.Status = p.Status
			m.DurationMs = p.TotalDurationMs
			m.Steps = p.FinalGameState.Player.Steps
			m.Efficiency = efficiency(m.OptimalPathLength, m.Steps)
			done[p.LevelIndex] = *m
			delete(open, p.LevelIndex)
		}
	}

	if len(done) == 0 {
		return nil, false
	}

	s := &Summary{SessionID: sessionID}
	indexes := make([]int, 0, len(done))
	for i := range done {
		indexes = append(indexes, i)
	}
	slices.Sort(indexes)

	var effSum float64
	for _, i := range indexes {
		m := done[i]
		s.Levels = append(s.Levels, m)
		s.TotalDurationMs += m.DurationMs
		effSum += m.Efficiency
		if m.Status == level.StatusWin {
			s.Completed++
		}
	}
	s.MeanEfficiency = effSum / float64(len(s.Levels))

	return s, true
}

func efficiency(optimalPathLength, steps int) float64 {
	moves := optimalPathLength - 1
	if moves <= 0 || steps <= 0 {
		return 0
	}
	return min(1, float64(moves)/float64(steps))
}

func decode(r telemetry.Record, out any) bool {
	if err := json.Unmarshal(r.EventPayload, out); err != nil {
		slog.Warn("decoding event for results", "type", r.EventType, "seq", r.EventSequenceID, "error", err)
		return false
	}
	return true
}
