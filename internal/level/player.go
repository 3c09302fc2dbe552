package level

import (
	"time"

	"github.com/pixil98/mindmaze/internal/maze"
)

// StunDuration is how long a patrol collision freezes the player.
const StunDuration = 1500 * time.Millisecond

// History is a fixed-capacity ring buffer of recently visited cells. A zero
// capacity history records nothing.
type History struct {
	buf   []maze.Position
	start int
	n     int
}

func NewHistory(capacity int) *History {
	if capacity < 0 {
		capacity = 0
	}
	return &History{buf: make([]maze.Position, capacity)}
}

// Push appends p, evicting the oldest entry once full.
func (h *History) Push(p maze.Position) {
	if len(h.buf) == 0 {
		return
	}
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = p
		h.n++
		return
	}
	h.buf[h.start] = p
	h.start = (h.start + 1) % len(h.buf)
}

func (h *History) Contains(p maze.Position) bool {
	for i := 0; i < h.n; i++ {
		if h.buf[(h.start+i)%len(h.buf)] == p {
			return true
		}
	}
	return false
}

// Positions returns the buffered cells oldest first.
func (h *History) Positions() []maze.Position {
	out := make([]maze.Position, h.n)
	for i := range out {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

func (h *History) Len() int { return h.n }

// Player is the participant's avatar state for one level.
type Player struct {
	Position  maze.Position
	Steps     int
	Stunned   bool
	StunUntil time.Time
	History   *History
}

// newPlayer places a player on start. The start cell is the first entry of
// its history.
func newPlayer(start maze.Position, memory int) *Player {
	p := &Player{
		Position: start,
		History:  NewHistory(memory),
	}
	p.History.Push(start)
	return p
}

func (p *Player) moveTo(pos maze.Position) {
	p.Position = pos
	p.Steps++
	p.History.Push(pos)
}

func (p *Player) snapshot() PlayerSnapshot {
	return PlayerSnapshot{Position: p.Position, Steps: p.Steps, IsStunned: p.Stunned}
}
