package level

import "github.com/pixil98/mindmaze/internal/maze"

// Patrol walks back and forth along a fixed path, one index per move.
type Patrol struct {
	id    int
	path  []maze.Position
	index int
	dir   int
}

func newPatrol(p maze.PatrolPath) *Patrol {
	return &Patrol{id: p.ID, path: p.Path, dir: 1}
}

func (p *Patrol) ID() int { return p.id }

func (p *Patrol) Position() maze.Position {
	return p.path[p.index]
}

// Advance moves one step along the path, reversing at either end. Paths
// shorter than two cells stand still.
func (p *Patrol) Advance() {
	if len(p.path) < 2 {
		return
	}
	p.index += p.dir
	if p.index >= len(p.path)-1 || p.index <= 0 {
		p.dir = -p.dir
	}
}

// SetPath replaces the route and restarts it from its first cell.
func (p *Patrol) SetPath(path []maze.Position) {
	if len(path) == 0 {
		return
	}
	p.path = path
	p.index = 0
	p.dir = 1
}

func (p *Patrol) snapshot() PatrolSnapshot {
	return PatrolSnapshot{ID: p.id, Position: p.Position()}
}
