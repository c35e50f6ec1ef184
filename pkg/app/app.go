// Package app runs a monitor session: it connects the link, starts the
// background reader and dispatches keys until the operator quits.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/term"
	"pkt.systems/pslog"

	"serialmon/pkg/input"
	"serialmon/pkg/link"
	"serialmon/pkg/logx"
	"serialmon/pkg/scrollback"
	"serialmon/pkg/serial"
	"serialmon/pkg/ui"
)

const (
	welcomeText = "Welcome to serialmon. Press 'UP' and 'DOWN' keys to navigate, 'Enter' to enter edit mode, " +
		"'Ctrl+C' to exit edit mode or quit the program if you're not in edit mode"
	noDeviceText = "Error! No device found... Press 'ENTER' to retry or any key to quit."
	editPrompt   = "> "
	stopTimeout  = 2 * time.Second
)

// ErrDeclined is returned when no device was found and the operator chose
// not to retry.
var ErrDeclined = errors.New("no device found and retry declined")

// Outcome is the result of one connection attempt.
type Outcome int

const (
	OutcomeContinue Outcome = iota
	OutcomeRetry
	OutcomeTerminate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeContinue:
		return "continue"
	case OutcomeRetry:
		return "retry"
	case OutcomeTerminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// Options configures an Application.
type Options struct {
	// Port is opened directly when set; otherwise Candidates are tried.
	Port       string
	Serial     serial.Config
	Candidates link.Candidates
	Scrollback int
	Opener     serial.Opener
	// Screen defaults to the controlling terminal.
	Screen tcell.Screen
	Logger pslog.Logger
}

// Session records one run of the monitor.
type Session struct {
	ID        string
	Port      string
	Config    serial.Config
	StartTime time.Time
	EndTime   time.Time
	mu        sync.RWMutex
}

// NewSession creates a new session
func NewSession(cfg serial.Config) *Session {
	return &Session{
		ID:        generateSessionID(),
		Config:    cfg,
		StartTime: time.Now(),
	}
}

// SetPort records the port in use.
func (s *Session) SetPort(port string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Port = port
}

// End marks the session as ended
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EndTime.IsZero() {
		s.EndTime = time.Now()
	}
}

// IsActive reports whether End has not been called.
func (s *Session) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.EndTime.IsZero()
}

// Duration returns how long the session ran, or has run so far.
func (s *Session) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary is reported when a session ends.
type Summary struct {
	ID       string
	Port     string
	Settings string
	Duration time.Duration
	Stats    link.Stats
}

type redrawEvent struct {
	tcell.EventTime
}

type interruptEvent struct {
	tcell.EventTime
}

// Application wires the store, link, controller and surface together. The
// goroutine calling Run is the only one that draws.
type Application struct {
	port     string
	store    *scrollback.Store
	link     *link.Manager
	ctrl     *input.Controller
	surface  *ui.Surface
	log      pslog.Logger
	session  *Session
	guardTTY bool

	redrawPending atomic.Bool
}

// New creates an Application. Nothing touches the terminal or the device
// until Run.
func New(opts Options) (*Application, error) {
	if opts.Opener == nil {
		opts.Opener = serial.DeviceOpener{}
	}
	if opts.Logger == nil {
		opts.Logger = logx.Discard()
	}
	if opts.Scrollback <= 0 {
		opts.Scrollback = scrollback.DefaultCapacity
	}
	if opts.Candidates == (link.Candidates{}) {
		opts.Candidates = link.DefaultCandidates()
	}

	app := &Application{
		port:    opts.Port,
		ctrl:    input.New(),
		log:     opts.Logger,
		session: NewSession(opts.Serial),
	}

	if opts.Screen != nil {
		app.surface = ui.New(opts.Screen)
	} else {
		surface, err := ui.NewTerminal()
		if err != nil {
			return nil, err
		}
		app.surface = surface
		app.guardTTY = true
	}

	app.store = scrollback.New(opts.Scrollback, scrollback.WithNotify(app.requestRedraw))
	app.link = link.New(opts.Opener, opts.Serial, app.store,
		link.WithCandidates(opts.Candidates),
		link.WithLogger(opts.Logger),
		link.WithStateHook(func(s link.State) {
			app.log.Debug("link state changed", "state", s.String())
			app.requestRedraw()
		}),
	)
	return app, nil
}

// Store returns the scrollback shown in the output pane.
func (app *Application) Store() *scrollback.Store {
	return app.store
}

// Link returns the connection manager.
func (app *Application) Link() *link.Manager {
	return app.link
}

// Session returns the session record.
func (app *Application) Session() *Session {
	return app.session
}

// Summary reports the session totals.
func (app *Application) Summary() Summary {
	app.session.mu.RLock()
	port := app.session.Port
	app.session.mu.RUnlock()
	return Summary{
		ID:       app.session.ID,
		Port:     port,
		Settings: app.session.Config.String(),
		Duration: app.session.Duration(),
		Stats:    app.link.Stats(),
	}
}

// Run takes over the terminal, connects and processes keys until the
// operator quits or ctx is cancelled. The link is closed and the terminal
// restored on every return path, including panics.
func (app *Application) Run(ctx context.Context) (err error) {
	restore := app.saveTerminal()
	if err := app.surface.Init(); err != nil {
		restore()
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			app.log.Error("session panicked", "panic", fmt.Sprint(r))
			err = fmt.Errorf("session panicked: %v", r)
		}
		app.stop()
		app.surface.Fini()
		restore()
		app.session.End()

		s := app.Summary()
		app.log.Info("session ended",
			"port", s.Port,
			"duration", s.Duration.String(),
			"frames_in", s.Stats.FramesIn,
			"frames_out", s.Stats.FramesOut,
			"bytes_in", s.Stats.BytesIn,
			"bytes_out", s.Stats.BytesOut,
			"decode_errors", s.Stats.DecodeErrors,
		)
	}()

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			ev := &interruptEvent{}
			ev.SetEventNow()
			_ = app.surface.PostEvent(ev)
		case <-stopWatch:
		}
	}()

	app.layout()
	app.log.Info("session started", "id", app.session.ID, "settings", app.session.Config.String())

	if err := app.connect(ctx); err != nil {
		return err
	}
	app.store.AppendKind(scrollback.KindNotice, welcomeText, false)

	if err := app.link.StartReadLoop(); err != nil {
		return fmt.Errorf("failed to start reader: %w", err)
	}
	return app.loop(ctx)
}

// connect repeats connection attempts until one succeeds or the operator
// gives up.
func (app *Application) connect(ctx context.Context) error {
	for {
		outcome, err := app.attempt(ctx)
		switch outcome {
		case OutcomeContinue:
			return nil
		case OutcomeRetry:
			app.log.Info("retrying discovery")
		default:
			return err
		}
	}
}

func (app *Application) attempt(ctx context.Context) (Outcome, error) {
	name, err := app.link.Discover(app.port)
	if err == nil {
		app.session.SetPort(name)
		return OutcomeContinue, nil
	}
	if !link.IsKind(err, link.KindDiscovery) {
		if link.Fatal(err) {
			app.log.Error("cannot open requested port", "port", app.port, "err", err)
		}
		return OutcomeTerminate, err
	}

	app.store.AppendKind(scrollback.KindError, noDeviceText, true)
	app.draw()
	if app.waitRetry(ctx) {
		return OutcomeRetry, nil
	}
	return OutcomeTerminate, ErrDeclined
}

// waitRetry blocks for the key that answers the no-device prompt. Only Enter
// asks for another attempt.
func (app *Application) waitRetry(ctx context.Context) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		switch ev := app.surface.PollEvent().(type) {
		case nil, *interruptEvent:
			return false
		case *tcell.EventKey:
			return ev.Key() == tcell.KeyEnter
		case *tcell.EventResize:
			app.layout()
			app.surface.Sync()
		case *redrawEvent:
			app.redrawPending.Store(false)
		}
		app.draw()
	}
}

func (app *Application) loop(ctx context.Context) error {
	app.draw()
	for {
		if ctx.Err() != nil {
			app.log.Info("session interrupted")
			return nil
		}
		switch ev := app.surface.PollEvent().(type) {
		case nil:
			return nil
		case *interruptEvent:
			app.log.Info("session interrupted")
			return nil
		case *redrawEvent:
			app.redrawPending.Store(false)
		case *tcell.EventResize:
			app.layout()
			app.surface.Sync()
		case *tcell.EventKey:
			if app.apply(app.ctrl.Handle(ev)) {
				app.log.Info("operator quit")
				return nil
			}
		}
		app.draw()
	}
}

// apply carries out an action and reports whether the session should end.
func (app *Application) apply(a input.Action) bool {
	switch a.Kind {
	case input.ActionScroll:
		app.store.Scroll(a.Delta)
	case input.ActionScrollTop:
		app.store.ScrollToTop(app.surface.OutputPane().H)
	case input.ActionScrollBottom:
		app.store.ScrollToBottom()
	case input.ActionSubmit:
		app.submit(a.Message)
	case input.ActionReconnect:
		app.reconnect()
	case input.ActionClear:
		app.store.Clear()
	case input.ActionQuit:
		return true
	}
	return false
}

func (app *Application) submit(msg string) {
	app.store.AppendKind(scrollback.KindOutbound, "-> "+msg, true)
	if app.link.State() != link.StateConnected {
		app.store.AppendKind(scrollback.KindError, "Error! Not connected, press Ctrl+R to reconnect", true)
		return
	}
	// failures are already in the scrollback
	if err := app.link.Send(msg); err != nil {
		app.log.Debug("send failed", "err", err)
	}
}

// reconnect rediscovers the port. Failure is reported inline and never ends
// the session.
func (app *Application) reconnect() {
	app.log.Info("reconnect requested", "port", app.port)
	name, err := app.link.Discover(app.port)
	if err != nil {
		app.store.AppendKind(scrollback.KindError, "Error! "+err.Error(), true)
		return
	}
	app.session.SetPort(name)
	if err := app.link.StartReadLoop(); err != nil {
		app.store.AppendKind(scrollback.KindError, "Error! "+err.Error(), true)
	}
}

// stop closes the link and waits briefly for the reader to exit.
func (app *Application) stop() {
	done := app.link.Done()
	if err := app.link.Close(); err != nil {
		app.log.Debug("close failed", "err", err)
	}
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(stopTimeout):
		app.log.Warn("reader did not stop in time")
	}
}

func (app *Application) layout() {
	out := app.surface.OutputPane()
	app.store.SetWidth(out.W)
	page := out.H - 1
	if page < 1 {
		page = 1
	}
	app.ctrl.SetPage(page)
}

func (app *Application) draw() {
	out := app.surface.OutputPane()
	app.surface.DrawOutput(app.store.VisibleLines(out.H))
	if app.ctrl.Mode() == input.ModeEditing {
		ed := app.ctrl.Editor()
		app.surface.DrawInput(editPrompt, ed.Text(), ed.Cursor())
	} else {
		app.surface.DrawStatus(app.status())
	}
	app.surface.Show()
}

func (app *Application) status() string {
	port := app.link.Port()
	if port == "" {
		port = "no port"
	}
	view := ""
	if !app.store.Following() {
		view = " SCROLLED"
	}
	return fmt.Sprintf(" %s %s [%s]%s | Enter: edit  Ctrl+R: reconnect  Ctrl+C: quit",
		port, app.link.Config().String(), app.link.State(), view)
}

// requestRedraw wakes the event loop. Requests made while one is pending
// are merged.
func (app *Application) requestRedraw() {
	if !app.redrawPending.CompareAndSwap(false, true) {
		return
	}
	ev := &redrawEvent{}
	ev.SetEventNow()
	if err := app.surface.PostEvent(ev); err != nil {
		app.redrawPending.Store(false)
	}
}

// saveTerminal snapshots the tty mode so it can be put back even if the
// screen library fails to restore it.
func (app *Application) saveTerminal() func() {
	if !app.guardTTY {
		return func() {}
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}
	}
	state, err := term.GetState(fd)
	if err != nil {
		app.log.Debug("cannot snapshot terminal", "err", err)
		return func() {}
	}
	return func() {
		if err := term.Restore(fd, state); err != nil {
			app.log.Debug("cannot restore terminal", "err", err)
		}
	}
}

// generateSessionID generates a unique session ID
func generateSessionID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
