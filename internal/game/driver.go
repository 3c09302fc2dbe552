package game

import (
	"context"
	"time"

	"github.com/pixil98/mindmaze/internal/level"
)

const (
	DefaultFrameInterval     = 16 * time.Millisecond
	DefaultCountdownInterval = time.Second
	DefaultGraceDelay        = 50 * time.Millisecond
)

// levelDriver runs one active level until it ends or ctx is cancelled. It
// owns the frame ticker and, for timed levels, the countdown ticker.
type levelDriver struct {
	lvl   *level.Level
	host  Host
	input func() level.Key

	frameInterval     time.Duration
	countdownInterval time.Duration
	status            func(*level.Level) Status
}

// Start drives the level. It returns the terminal state, or StateActive
// when ctx was cancelled first.
func (d *levelDriver) Start(ctx context.Context) level.State {
	frames := time.NewTicker(d.frameInterval)
	defer frames.Stop()

	var countdown <-chan time.Time
	if _, timed := d.lvl.Countdown(); timed {
		t := time.NewTicker(d.countdownInterval)
		defer t.Stop()
		countdown = t.C
	}

	d.host.Status(d.status(d.lvl))
	d.host.Render(d.lvl.Frame())

	for {
		select {
		case <-ctx.Done():
			return level.StateActive
		case <-countdown:
			d.lvl.CountdownTick()
			d.host.Status(d.status(d.lvl))
		case <-frames.C:
			state := d.Tick()
			if state.Ended() {
				d.host.Status(d.status(d.lvl))
				return state
			}
		}
	}
}

// Tick runs one frame: the buffered intent is consumed, the level advances
// and the result is drawn.
func (d *levelDriver) Tick() level.State {
	state := d.lvl.Tick(d.input())
	d.host.Render(d.lvl.Frame())
	return state
}
