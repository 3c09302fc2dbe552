package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pixil98/mindmaze/internal/level"
	"github.com/pixil98/mindmaze/internal/maze"
)

var ErrRunning = errors.New("game already running")

// Controller sequences the levels of one run. All level state is owned by
// a single driver goroutine started by Start.
type Controller struct {
	levels []level.Template
	host   Host
	rec    level.Recorder
	gen    *maze.Generator
	clock  level.Clock

	frameInterval     time.Duration
	countdownInterval time.Duration
	graceDelay        time.Duration

	mu     sync.Mutex
	intent level.Key
	cancel context.CancelFunc
	done   chan struct{}
}

type ControllerOpt func(*Controller)

func WithGenerator(gen *maze.Generator) ControllerOpt {
	return func(c *Controller) {
		c.gen = gen
	}
}

func WithClock(clock level.Clock) ControllerOpt {
	return func(c *Controller) {
		c.clock = clock
	}
}

func WithFrameInterval(d time.Duration) ControllerOpt {
	return func(c *Controller) {
		c.frameInterval = d
	}
}

func WithCountdownInterval(d time.Duration) ControllerOpt {
	return func(c *Controller) {
		c.countdownInterval = d
	}
}

// WithGraceDelay sets the pause between a level ending and the next one
// loading.
func WithGraceDelay(d time.Duration) ControllerOpt {
	return func(c *Controller) {
		c.graceDelay = d
	}
}

func NewController(levels []level.Template, host Host, rec level.Recorder, opts ...ControllerOpt) *Controller {
	c := &Controller{
		levels:            levels,
		host:              host,
		rec:               rec,
		clock:             level.ClockFunc(time.Now),
		frameInterval:     DefaultFrameInterval,
		countdownInterval: DefaultCountdownInterval,
		graceDelay:        DefaultGraceDelay,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.gen == nil {
		c.gen = maze.NewGenerator()
	}

	return c
}

func (c *Controller) LevelCount() int {
	return len(c.levels)
}

// Running reports whether a run is in progress.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.runningLocked()
}

func (c *Controller) runningLocked() bool {
	if c.done == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Start begins a run at the first level. onComplete is called from the
// driver goroutine once every level has ended; it is not called when the
// run is stopped or a level fails to load.
func (c *Controller) Start(onComplete func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.runningLocked() {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.intent = ""

	go func() {
		completed := c.run(ctx)
		stopped := ctx.Err() != nil
		cancel()
		close(done)

		switch {
		case completed:
			c.host.Idle()
			if onComplete != nil {
				onComplete()
			}
		case !stopped:
			// A level failed to load; StopAndReset restores idle itself.
			c.host.Idle()
		}
	}()

	return nil
}

// StopAndReset abandons the current run. It waits for the driver to stop,
// records no level_end and restores the idle affordance.
func (c *Controller) StopAndReset() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.intent = ""
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	c.host.Idle()
}

// HandleKey buffers a movement intent for the next frame. A newer key
// replaces an unconsumed one. It reports whether the key was accepted.
func (c *Controller) HandleKey(key level.Key) bool {
	if _, ok := key.Direction(); !ok {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.runningLocked() {
		return false
	}
	c.intent = key
	return true
}

func (c *Controller) takeIntent() level.Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := c.intent
	c.intent = ""
	return k
}

// run plays every level in order. It reports whether the run completed.
func (c *Controller) run(ctx context.Context) bool {
	for i, tmpl := range c.levels {
		if ctx.Err() != nil {
			return false
		}

		lvl, err := level.Load(i, tmpl, level.Deps{
			Generator: c.gen,
			Clock:     c.clock,
			Recorder:  c.rec,
		})
		if err != nil {
			slog.Error("loading level", "index", i, "level", tmpl.ID, "error", err)
			c.host.Alert(fmt.Sprintf("Level %d could not be generated. Please restart the experiment.", i+1))
			return false
		}
		slog.Debug("level loaded", "index", i, "level", tmpl.ID, "optimal", lvl.OptimalPathLength())

		// Keys pressed during loading belong to no level.
		c.takeIntent()

		d := &levelDriver{
			lvl:               lvl,
			host:              c.host,
			input:             c.takeIntent,
			frameInterval:     c.frameInterval,
			countdownInterval: c.countdownInterval,
			status:            c.status,
		}

		state := d.Start(ctx)
		if !state.Ended() {
			return false
		}

		c.endLevel(lvl, state)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.graceDelay):
		}
	}

	return true
}

func (c *Controller) endLevel(lvl *level.Level, state level.State) {
	duration := c.clock.Now().Sub(lvl.StartedAt())
	slog.Info("level ended", "level", lvl.ID(), "status", state.Status(), "duration", duration, "steps", lvl.Player().Steps)

	if c.rec == nil {
		return
	}
	if err := c.rec.LogEvent(level.EventLevelEnd, lvl.EndPayload(state.Status(), duration)); err != nil {
		slog.Warn("recording level end", "level", lvl.ID(), "error", err)
	}
}

func (c *Controller) status(lvl *level.Level) Status {
	remaining, timed := lvl.Countdown()
	return Status{
		LevelNumber: lvl.Index() + 1,
		LevelCount:  len(c.levels),
		State:       lvl.State(),
		Countdown:   remaining,
		Timed:       timed,
	}
}
