package display

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/pixil98/mindmaze/internal/game"
	"github.com/pixil98/mindmaze/internal/level"
	"github.com/pixil98/mindmaze/internal/results"
	"github.com/pixil98/mindmaze/internal/storage"
	"github.com/pixil98/mindmaze/internal/telemetry"
	"github.com/rivo/tview"
)

const DefaultFinalSendTimeout = 5 * time.Second

const (
	pageHome    = "home"
	pageGame    = "game"
	pageResults = "results"
	pageAlert   = "alert"
)

const (
	welcomeText = `Welcome to the maze.

Find your way from S to G. Some levels hide the maze outside a small
radius, some lock the goal behind a door that needs a key (k), some are
timed, and some have patrols (P) that stun you on contact.

Your moves are recorded to study navigation behaviour.`

	completedText = "Well done, you finished every level. Your session data has been recorded and a summary is available under Results."
	noResultsText = "No level has been finished in this session yet."
)

var ErrNoGame = errors.New("no game attached")

// Game is the part of the game controller driven by the terminal UI.
type Game interface {
	Start(onComplete func()) error
	StopAndReset()
	HandleKey(k level.Key) bool
	Running() bool
	LevelCount() int
}

// App is the terminal front end. It implements game.Host and runs as a
// worker; when it stops, the session is ended and delivered.
type App struct {
	app     *tview.Application
	pages   *tview.Pages
	menu    *tview.List
	board   *Board
	status  *tview.TextView
	summary *tview.TextView
	alert   *tview.Modal
	onAlert func()

	game     Game
	logger   *telemetry.Logger
	shipper  *telemetry.Shipper
	kv       storage.KV
	renderer *results.Renderer

	sendTimeout time.Duration
	quit        func()

	ready     chan struct{}
	readyOnce sync.Once
	runDone   chan struct{}
	done      chan struct{}
	quitOnce  sync.Once
	closed    atomic.Bool
}

type AppOpt func(*App)

// WithScreen runs the UI on screen instead of the process terminal.
func WithScreen(screen tcell.Screen) AppOpt {
	return func(a *App) {
		a.app.SetScreen(screen)
	}
}

// WithQuit sets a function called once the UI has stopped and the final
// delivery has been attempted.
func WithQuit(quit func()) AppOpt {
	return func(a *App) {
		a.quit = quit
	}
}

func WithFinalSendTimeout(d time.Duration) AppOpt {
	return func(a *App) {
		a.sendTimeout = d
	}
}

func NewApp(logger *telemetry.Logger, shipper *telemetry.Shipper, kv storage.KV, renderer *results.Renderer, opts ...AppOpt) *App {
	a := &App{
		app:         tview.NewApplication(),
		logger:      logger,
		shipper:     shipper,
		kv:          kv,
		renderer:    renderer,
		sendTimeout: DefaultFinalSendTimeout,
		ready:       make(chan struct{}),
		runDone:     make(chan struct{}),
		done:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(a)
	}

	a.build()
	return a
}

// SetGame attaches the controller. It must be called before Start.
func (a *App) SetGame(g Game) {
	a.game = g
}

// Ready is closed after the first screen draw.
func (a *App) Ready() <-chan struct{} {
	return a.ready
}

// Done is closed once Start has returned and the final delivery was
// attempted.
func (a *App) Done() <-chan struct{} {
	return a.done
}

func (a *App) build() {
	intro := tview.NewTextView().SetText(welcomeText).SetWrap(true)
	intro.SetBorder(true).SetTitle(" Mind Maze ")

	a.menu = tview.NewList().
		AddItem("Start the maze", "Play every level in order", 's', a.showGame).
		AddItem("Results", "See a summary of this session", 'r', a.showResults).
		AddItem("Quit", "End the session and exit", 'q', a.requestQuit)
	a.menu.SetBorder(true).SetTitle(" Menu ")

	home := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(intro, 0, 2, false).
		AddItem(a.menu, 0, 1, true)

	a.board = NewBoard()
	a.board.SetInputCapture(a.gameKeys)
	a.status = tview.NewTextView()

	gameView := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.status, 1, 0, false).
		AddItem(a.board, 0, 1, true)

	a.summary = tview.NewTextView().SetWrap(true).SetScrollable(true)
	a.summary.SetBorder(true).SetTitle(" Results (Esc to return) ")
	a.summary.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyBackspace2 {
			a.showHome()
			return nil
		}
		return ev
	})

	a.alert = tview.NewModal().
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(int, string) {
			a.pages.HidePage(pageAlert)
			cb := a.onAlert
			a.onAlert = nil
			if cb != nil {
				cb()
				return
			}
			a.app.SetFocus(a.pages)
		})

	a.pages = tview.NewPages().
		AddPage(pageHome, home, true, true).
		AddPage(pageGame, gameView, true, false).
		AddPage(pageResults, a.summary, true, false).
		AddPage(pageAlert, a.alert, false, false)

	a.app.SetRoot(a.pages, true)
	a.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyCtrlC {
			a.requestQuit()
			return nil
		}
		return ev
	})
	a.app.SetAfterDrawFunc(func(tcell.Screen) {
		a.readyOnce.Do(func() { close(a.ready) })
	})
}

func (a *App) Start(ctx context.Context) error {
	defer close(a.done)

	if a.game == nil {
		return ErrNoGame
	}

	if err := a.logger.StartSession(telemetry.CurrentClientInfo()); err != nil {
		slog.WarnContext(ctx, "recording session start", "error", err)
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(a.runDone)
		errCh <- a.app.Run()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.requestQuit()
		runErr = <-errCh
	case runErr = <-errCh:
	}

	a.closed.Store(true)
	a.game.StopAndReset()
	a.finish(runErr)

	if a.quit != nil {
		a.quit()
	}

	if runErr != nil {
		return fmt.Errorf("running terminal ui: %w", runErr)
	}
	return nil
}

// finish ends the session and makes the terminal delivery attempt. Events
// that could not be delivered stay in the store for the next launch.
func (a *App) finish(runErr error) {
	reason := telemetry.ReasonUserClosed
	if runErr != nil {
		reason = telemetry.ReasonError
	}
	if err := a.logger.EndSession(reason, runErr); err != nil {
		slog.Warn("recording session end", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.sendTimeout)
	defer cancel()

	if err := a.shipper.Send(ctx, true); err != nil {
		slog.Warn("final telemetry send failed, events are kept for the next run", "session", a.logger.SessionID(), "error", err)
	}
}

// requestQuit stops the game and then the UI. The controller is stopped
// first since its driver may be waiting on a queued draw.
func (a *App) requestQuit() {
	a.quitOnce.Do(func() {
		go func() {
			if a.game != nil {
				a.game.StopAndReset()
			}
			a.closed.Store(true)

			select {
			case <-a.ready:
			case <-a.runDone:
				return
			}
			a.app.Stop()
		}()
	})
}

func (a *App) queue(f func()) {
	if a.closed.Load() {
		return
	}
	a.app.QueueUpdateDraw(f)
}

// Render implements game.Host.
func (a *App) Render(f level.Frame) {
	a.queue(func() {
		a.board.SetFrame(f)
	})
}

// Status implements game.Host.
func (a *App) Status(s game.Status) {
	line := statusLine(s)
	a.queue(func() {
		a.status.SetText(line)
	})
}

// Alert implements game.Host.
func (a *App) Alert(msg string) {
	a.queue(func() {
		a.showAlert(msg, nil)
	})
}

// Idle implements game.Host.
func (a *App) Idle() {
	line := idleLine(a.game.LevelCount())
	a.queue(func() {
		a.board.Clear()
		a.status.SetText(line)
	})
}

func (a *App) showAlert(msg string, onDone func()) {
	a.onAlert = onDone
	a.alert.SetText(wrap(msg))
	a.pages.ShowPage(pageAlert)
	a.app.SetFocus(a.alert)
}

func (a *App) showHome() {
	a.pages.HidePage(pageAlert)
	a.pages.SwitchToPage(pageHome)
	a.app.SetFocus(a.menu)
}

func (a *App) showGame() {
	a.board.Clear()
	a.status.SetText(idleLine(a.game.LevelCount()))
	a.pages.SwitchToPage(pageGame)
	a.app.SetFocus(a.board)
}

func (a *App) leaveGame() {
	go func() {
		a.game.StopAndReset()
		a.queue(a.showHome)
	}()
}

// showResults asks for an incremental delivery and renders the summary of
// the local log.
func (a *App) showResults() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.sendTimeout)
		defer cancel()
		if err := a.shipper.Send(ctx, false); err != nil && !errors.Is(err, telemetry.ErrSendInProgress) {
			slog.Warn("sending telemetry", "session", a.logger.SessionID(), "error", err)
		}
	}()

	text := noResultsText
	if s, ok := results.Current(a.kv, a.logger.Events()); ok {
		out, err := a.renderer.Render(s)
		if err != nil {
			slog.Error("rendering results", "error", err)
		} else {
			text = out
		}
	}

	a.summary.SetText(tview.Escape(text)).ScrollToBeginning()
	a.pages.SwitchToPage(pageResults)
	a.app.SetFocus(a.summary)
}

func (a *App) startRun() {
	err := a.game.Start(a.completed)
	switch {
	case errors.Is(err, game.ErrRunning):
	case err != nil:
		slog.Error("starting game", "error", err)
		a.showAlert("The game could not be started.", nil)
	default:
		a.status.SetText("Starting...")
	}
}

// completed runs on the controller goroutine once every level has ended.
func (a *App) completed() {
	if err := a.logger.EndSession(telemetry.ReasonCompleted, nil); err != nil {
		slog.Warn("recording session end", "error", err)
	}
	results.Current(a.kv, a.logger.Events())

	a.queue(func() {
		a.showAlert(completedText, a.showHome)
	})
}

func (a *App) gameKeys(ev *tcell.EventKey) *tcell.EventKey {
	switch ev.Key() {
	case tcell.KeyUp:
		a.game.HandleKey(level.KeyUp)
	case tcell.KeyDown:
		a.game.HandleKey(level.KeyDown)
	case tcell.KeyLeft:
		a.game.HandleKey(level.KeyLeft)
	case tcell.KeyRight:
		a.game.HandleKey(level.KeyRight)
	case tcell.KeyEnter:
		if !a.game.Running() {
			a.startRun()
		}
	case tcell.KeyEscape:
		a.leaveGame()
	default:
		return ev
	}
	return nil
}
