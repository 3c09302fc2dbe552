package display

import (
	"fmt"
	"strings"

	"github.com/muesli/reflow/wordwrap"
	"github.com/pixil98/mindmaze/internal/game"
	"github.com/pixil98/mindmaze/internal/level"
)

const dialogWidth = 56

// wrap word-wraps dialog text to dialogWidth.
func wrap(text string) string {
	return wordwrap.String(text, dialogWidth)
}

func statusLine(s game.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Level %d of %d", s.LevelNumber, s.LevelCount)

	if s.Timed {
		fmt.Fprintf(&b, "   Time left: %ds", s.Countdown)
	}

	switch s.State {
	case level.StateLoading:
		b.WriteString("   Loading...")
	case level.StateWon:
		b.WriteString("   Goal reached!")
	case level.StateFailedTimeout:
		b.WriteString("   Time is up")
	}

	return b.String()
}

func idleLine(levels int) string {
	return fmt.Sprintf("Press Enter to start (%d levels). Arrow keys move, Esc returns home.", levels)
}
