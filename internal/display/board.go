package display

import (
	"github.com/gdamore/tcell/v2"
	"github.com/pixil98/mindmaze/internal/level"
	"github.com/pixil98/mindmaze/internal/maze"
	"github.com/rivo/tview"
)

// Each grid cell is drawn two columns wide so the maze keeps a roughly
// square aspect on a terminal.
const cellWidth = 2

type tile struct {
	r     rune
	fill  bool
	style tcell.Style
}

var (
	styleBase   = tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite)
	styleWall   = styleBase.Foreground(tcell.ColorGray)
	styleGoal   = styleBase.Foreground(tcell.ColorGreen).Bold(true)
	styleStart  = styleBase.Foreground(tcell.ColorTeal)
	styleKey    = styleBase.Foreground(tcell.ColorGold).Bold(true)
	styleDoor   = styleBase.Foreground(tcell.ColorOrange)
	stylePlayer = styleBase.Foreground(tcell.ColorYellow).Bold(true)
	styleStun   = styleBase.Foreground(tcell.ColorRed).Bold(true)
	stylePatrol = styleBase.Foreground(tcell.ColorRed)
)

// Board is the primitive that draws the active level.
type Board struct {
	*tview.Box
	frame *level.Frame
}

func NewBoard() *Board {
	b := &Board{Box: tview.NewBox()}
	b.SetBorder(true).SetTitle(" Maze ")
	return b
}

// SetFrame replaces the drawn frame. It must be called from the UI goroutine.
func (b *Board) SetFrame(f level.Frame) {
	b.frame = &f
	b.SetTitle(" " + f.LevelID + " ")
}

func (b *Board) Clear() {
	b.frame = nil
	b.SetTitle(" Maze ")
}

func (b *Board) Draw(screen tcell.Screen) {
	b.DrawForSubclass(screen, b)

	f := b.frame
	if f == nil {
		return
	}

	x0, y0, w, h := b.GetInnerRect()
	ox := x0 + max(0, (w-f.Width*cellWidth)/2)
	oy := y0 + max(0, (h-f.Height)/2)

	for y := 0; y < f.Height && y < h; y++ {
		for x := 0; x < f.Width && (x+1)*cellWidth <= w; x++ {
			t := tileAt(f, x, y)
			sx := ox + x*cellWidth
			screen.SetContent(sx, oy+y, t.r, nil, t.style)
			second := ' '
			if t.fill {
				second = t.r
			}
			screen.SetContent(sx+1, oy+y, second, nil, t.style)
		}
	}
}

func tileAt(f *level.Frame, x, y int) tile {
	cell, vis := f.At(x, y)
	if vis == level.Hidden {
		return tile{r: ' ', style: styleBase}
	}

	pos := maze.Position{X: x, Y: y}
	var t tile
	switch {
	case f.Player.Position == pos:
		t = tile{r: '@', style: stylePlayer}
		if f.Player.IsStunned {
			t.style = styleStun
		}
	case vis == level.Visible && patrolAt(f, pos):
		t = tile{r: 'P', style: stylePatrol}
	default:
		t = cellTile(cell)
	}

	if vis == level.Remembered {
		t.style = t.style.Dim(true)
	}
	return t
}

func cellTile(c maze.Cell) tile {
	switch c {
	case maze.Wall:
		return tile{r: '█', fill: true, style: styleWall}
	case maze.Start:
		return tile{r: 'S', style: styleStart}
	case maze.Goal:
		return tile{r: 'G', style: styleGoal}
	case maze.Key:
		return tile{r: 'k', style: styleKey}
	case maze.Door:
		return tile{r: '#', fill: true, style: styleDoor}
	default:
		return tile{r: '·', style: styleBase}
	}
}

func patrolAt(f *level.Frame, p maze.Position) bool {
	for _, pt := range f.Patrols {
		if pt.Position == p {
			return true
		}
	}
	return false
}
