package maze

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

const (
	// DefaultMaxAttempts bounds how many whole mazes are carved before
	// generation gives up.
	DefaultMaxAttempts = 200

	MinDoorPathLength = 10
	DoorPathFraction  = 0.7
	KeyDistanceFactor = 1.0
	PatrolAttempts    = 50
	MinPatrolLength   = 5
)

// ErrGenerationFailed is returned when no maze satisfying the hard
// constraints could be built within the retry budget.
var ErrGenerationFailed = errors.New("maze generation failed")

// PatrolPath is a precomputed route a patrol walks back and forth along.
type PatrolPath struct {
	ID   int        `json:"id"`
	Path []Position `json:"path"`
}

// Clone returns a deep copy of the patrol path.
func (p PatrolPath) Clone() PatrolPath {
	return PatrolPath{ID: p.ID, Path: append([]Position(nil), p.Path...)}
}

// Generated is the output of a successful generation.
type Generated struct {
	Grid    *Grid
	Start   Position
	Goal    Position
	Patrols []PatrolPath
}

// Generator carves perfect mazes and places features on them. A Generator
// is not safe for concurrent use.
type Generator struct {
	rng         *rand.Rand
	maxAttempts int
}

type GeneratorOpt func(*Generator)

// WithRand sets the random source used for carving and placement.
func WithRand(r *rand.Rand) GeneratorOpt {
	return func(g *Generator) {
		g.rng = r
	}
}

// WithMaxAttempts overrides the whole-maze retry budget.
func WithMaxAttempts(n int) GeneratorOpt {
	return func(g *Generator) {
		g.maxAttempts = n
	}
}

func NewGenerator(opts ...GeneratorOpt) *Generator {
	g := &Generator{
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		maxAttempts: DefaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Generate builds a maze for cfg, retrying the whole carve and placement
// when a hard constraint fails.
func (gen *Generator) Generate(cfg *GeneratorConfig) (*Generated, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generator config: %w", err)
	}

	for attempt := 0; attempt < gen.maxAttempts; attempt++ {
		if out, ok := gen.attempt(cfg); ok {
			return out, nil
		}
	}

	return nil, fmt.Errorf("%w: no valid %dx%d maze after %d attempts", ErrGenerationFailed, cfg.Width, cfg.Height, gen.maxAttempts)
}

func (gen *Generator) attempt(cfg *GeneratorConfig) (*Generated, bool) {
	start := Position{X: 1, Y: 1}
	goal := cfg.GoalPosition()

	grid := NewGrid(cfg.Width, cfg.Height, Wall)
	gen.carve(grid, start)
	grid.Set(start, Start)
	grid.Set(goal, Goal)

	out := &Generated{Grid: grid, Start: start, Goal: goal}
	if len(cfg.Placeables) == 0 {
		return out, true
	}

	var door Position
	if cfg.has(PlaceDoor) {
		critical := ShortestPath(grid, start, ToPosition(goal), Wall)
		if len(critical) < MinDoorPathLength {
			return nil, false
		}
		door = critical[int(float64(len(critical))*DoorPathFraction)]
		grid.Set(door, Door)
	}

	if cfg.has(PlaceKey) {
		key, ok := gen.keyPosition(grid, start, door, cfg.Width)
		if !ok {
			return nil, false
		}
		grid.Set(key, Key)
	}

	out.Patrols = gen.patrols(grid, cfg)
	return out, true
}

// carve runs a randomized depth-first backtracker on a 2-cell stride using
// an explicit stack.
func (gen *Generator) carve(g *Grid, from Position) {
	g.Set(from, Path)
	stack := []Position{from}

	var options []Direction
	for len(stack) > 0 {
		cur := stack[len(stack)-1]

		options = options[:0]
		for _, d := range neighbors {
			next := Position{X: cur.X + 2*d.DX, Y: cur.Y + 2*d.DY}
			if next.X > 0 && next.Y > 0 && next.X < g.width-1 && next.Y < g.height-1 && g.At(next) == Wall {
				options = append(options, d)
			}
		}

		if len(options) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}

		d := options[gen.rng.IntN(len(options))]
		next := Position{X: cur.X + 2*d.DX, Y: cur.Y + 2*d.DY}
		g.Set(cur.Add(d), Path)
		g.Set(next, Path)
		stack = append(stack, next)
	}
}

// keyPosition picks a plain path cell reachable from start without crossing
// the door, preferring one far from the door.
func (gen *Generator) keyPosition(g *Grid, start, door Position, width int) (Position, bool) {
	var candidates []Position
	for _, p := range Reachable(g, start, Wall, Door) {
		if g.At(p) == Path {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return Position{}, false
	}

	gen.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	minDistance := float64(width) * KeyDistanceFactor
	for _, p := range candidates {
		if float64(p.Manhattan(door)) > minDistance {
			return p, true
		}
	}
	return candidates[0], true
}

func (gen *Generator) patrols(g *Grid, cfg *GeneratorConfig) []PatrolPath {
	cells := g.Positions(Path)
	if len(cells) == 0 {
		return nil
	}

	var out []PatrolPath
	id := 0
	for _, p := range cfg.Placeables {
		if p.Type != PlacePatrolPath {
			continue
		}
		for i := 0; i < p.Count; i++ {
			if path := gen.patrolPath(g, cells); path != nil {
				out = append(out, PatrolPath{ID: id, Path: path})
			}
			id++
		}
	}
	return out
}

func (gen *Generator) patrolPath(g *Grid, cells []Position) []Position {
	for attempt := 0; attempt < PatrolAttempts; attempt++ {
		from := cells[gen.rng.IntN(len(cells))]
		to := cells[gen.rng.IntN(len(cells))]
		path := ShortestPath(g, from, ToPosition(to), Wall, Door)
		if len(path) >= MinPatrolLength {
			return path
		}
	}
	return nil
}
