package game

import "github.com/pixil98/mindmaze/internal/level"

// Host is the surface a Controller draws on. Its methods are called from
// the controller's driver goroutine and must not call back into the
// Controller synchronously.
type Host interface {
	// Render draws one frame of the active level.
	Render(f level.Frame)
	// Status updates the level counter and timer line.
	Status(s Status)
	// Alert shows a blocking error to the participant.
	Alert(msg string)
	// Idle restores the ready-to-start affordance.
	Idle()
}

type Status struct {
	LevelNumber int
	LevelCount  int
	State       level.State
	Countdown   int
	Timed       bool
}
