package maze

import "fmt"

// Cell is the code stored in a single grid square. The numeric values are
// part of the logged maze payload and must not change.
type Cell int

const (
	Path  Cell = 0
	Wall  Cell = 1
	Start Cell = 2
	Goal  Cell = 3
	Key   Cell = 4
	Door  Cell = 5
)

func (c Cell) String() string {
	switch c {
	case Path:
		return "path"
	case Wall:
		return "wall"
	case Start:
		return "start"
	case Goal:
		return "goal"
	case Key:
		return "key"
	case Door:
		return "door"
	default:
		return fmt.Sprintf("cell(%d)", int(c))
	}
}

// Position is a 0-indexed grid coordinate, X is the column and Y the row.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Position) Add(d Direction) Position {
	return Position{X: p.X + d.DX, Y: p.Y + d.DY}
}

// Manhattan returns the taxicab distance between two positions.
func (p Position) Manhattan(o Position) int {
	return abs(p.X-o.X) + abs(p.Y-o.Y)
}

// Direction is a unit step on the grid.
type Direction struct {
	DX int
	DY int
}

var (
	Up    = Direction{DX: 0, DY: -1}
	Down  = Direction{DX: 0, DY: 1}
	Left  = Direction{DX: -1, DY: 0}
	Right = Direction{DX: 1, DY: 0}
)

// neighbors is the 4-connected neighbourhood in search order.
var neighbors = [4]Direction{Down, Up, Right, Left}

// Grid is a W×H array of cell codes stored row-major.
type Grid struct {
	width  int
	height int
	cells  []Cell
}

// NewGrid returns a grid of the given size filled with fill.
func NewGrid(width, height int, fill Cell) *Grid {
	g := &Grid{
		width:  width,
		height: height,
		cells:  make([]Cell, width*height),
	}
	for i := range g.cells {
		g.cells[i] = fill
	}
	return g
}

// FromRows builds a grid from a row-major slice of rows. All rows must have
// the same length.
func FromRows(rows [][]Cell) (*Grid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("grid must have at least one row and column")
	}
	g := NewGrid(len(rows[0]), len(rows), Wall)
	for y, row := range rows {
		if len(row) != g.width {
			return nil, fmt.Errorf("row %d has %d cells, expected %d", y, len(row), g.width)
		}
		copy(g.cells[y*g.width:], row)
	}
	return g, nil
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

func (g *Grid) InBounds(p Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < g.width && p.Y < g.height
}

// At returns the cell at p. Out-of-bounds positions read as Wall.
func (g *Grid) At(p Position) Cell {
	if !g.InBounds(p) {
		return Wall
	}
	return g.cells[p.Y*g.width+p.X]
}

// Set writes c at p. Out-of-bounds writes are ignored.
func (g *Grid) Set(p Position, c Cell) {
	if !g.InBounds(p) {
		return
	}
	g.cells[p.Y*g.width+p.X] = c
}

// Replace rewrites every cell holding from to to and returns the affected
// positions.
func (g *Grid) Replace(from, to Cell) []Position {
	var changed []Position
	for i, c := range g.cells {
		if c == from {
			g.cells[i] = to
			changed = append(changed, Position{X: i % g.width, Y: i / g.width})
		}
	}
	return changed
}

// Find returns the first position holding c in row-major order.
func (g *Grid) Find(c Cell) (Position, bool) {
	for i, v := range g.cells {
		if v == c {
			return Position{X: i % g.width, Y: i / g.width}, true
		}
	}
	return Position{}, false
}

// Count returns how many cells hold c.
func (g *Grid) Count(c Cell) int {
	n := 0
	for _, v := range g.cells {
		if v == c {
			n++
		}
	}
	return n
}

// Positions returns every position holding c in row-major order.
func (g *Grid) Positions(c Cell) []Position {
	var out []Position
	for i, v := range g.cells {
		if v == c {
			out = append(out, Position{X: i % g.width, Y: i / g.width})
		}
	}
	return out
}

// Clone returns an independent copy of the grid.
func (g *Grid) Clone() *Grid {
	cp := &Grid{width: g.width, height: g.height, cells: make([]Cell, len(g.cells))}
	copy(cp.cells, g.cells)
	return cp
}

// Rows returns a copy of the grid as a slice of rows, the shape used in
// logged payloads.
func (g *Grid) Rows() [][]Cell {
	rows := make([][]Cell, g.height)
	for y := range rows {
		row := make([]Cell, g.width)
		copy(row, g.cells[y*g.width:(y+1)*g.width])
		rows[y] = row
	}
	return rows
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
