package level

import (
	"math"

	"github.com/pixil98/mindmaze/internal/maze"
)

type Visibility int

const (
	Visible Visibility = iota
	// Remembered cells are outside the vision radius but in the move
	// history. They are drawn dimmed.
	Remembered
	Hidden
)

// Frame is a read-only snapshot of a level for rendering.
type Frame struct {
	LevelIndex int
	LevelID    string
	Width      int
	Height     int
	Cells      []maze.Cell
	Visibility []Visibility
	Player     PlayerSnapshot
	Patrols    []PatrolSnapshot
	Countdown  int
	Timed      bool
}

// At returns the cell and its visibility at (x, y).
func (f *Frame) At(x, y int) (maze.Cell, Visibility) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return maze.Wall, Hidden
	}
	i := y*f.Width + x
	return f.Cells[i], f.Visibility[i]
}

// Frame builds the render view, applying the fog-of-war mask when the level
// enables it. A zero vision radius sees everything.
func (l *Level) Frame() Frame {
	w, h := l.grid.Width(), l.grid.Height()
	f := Frame{
		LevelIndex: l.index,
		LevelID:    l.id,
		Width:      w,
		Height:     h,
		Cells:      make([]maze.Cell, 0, w*h),
		Visibility: make([]Visibility, 0, w*h),
		Player:     l.player.snapshot(),
		Patrols:    l.patrolSnapshots(),
		Countdown:  l.countdown,
		Timed:      l.timed,
	}

	s := l.cfg.Settings
	radius := math.Inf(1)
	if s.VisionRadius > 0 {
		radius = float64(s.VisionRadius)
	}

	pp := l.player.Position
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pos := maze.Position{X: x, Y: y}
			f.Cells = append(f.Cells, l.grid.At(pos))

			vis := Visible
			if s.FogOfWar {
				inVision := math.Hypot(float64(pp.X-x), float64(pp.Y-y)) <= radius
				switch {
				case inVision:
				case l.player.History.Contains(pos):
					vis = Remembered
				default:
					vis = Hidden
				}
			}
			f.Visibility = append(f.Visibility, vis)
		}
	}

	return f
}
