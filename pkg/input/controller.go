// Package input turns key events into monitor actions. It runs a two state
// machine: in Navigating the keys scroll the output pane, in Editing they
// edit the outgoing message. Exactly one state handles each key.
package input

import "github.com/gdamore/tcell/v2"

// Mode is the input state.
type Mode int

const (
	ModeNavigating Mode = iota
	ModeEditing
)

// String returns the string representation of Mode
func (m Mode) String() string {
	switch m {
	case ModeNavigating:
		return "navigating"
	case ModeEditing:
		return "editing"
	default:
		return "unknown"
	}
}

// ActionKind says what the coordinator should do with a key.
type ActionKind int

const (
	// ActionNone means the key was ignored.
	ActionNone ActionKind = iota
	// ActionRedraw means only the input pane changed.
	ActionRedraw
	// ActionScroll moves the viewport by Delta lines.
	ActionScroll
	// ActionScrollTop moves the viewport to the oldest line.
	ActionScrollTop
	// ActionScrollBottom moves the viewport to the newest line.
	ActionScrollBottom
	// ActionSubmit sends Message.
	ActionSubmit
	// ActionReconnect re-runs port discovery.
	ActionReconnect
	// ActionClear empties the scrollback.
	ActionClear
	// ActionQuit ends the session.
	ActionQuit
)

// Action is the result of handling one key.
type Action struct {
	Kind    ActionKind
	Delta   int
	Message string
}

// Controller holds the mode and the edit buffer.
type Controller struct {
	mode   Mode
	editor *Editor
	page   int
}

// New returns a controller in Navigating mode.
func New() *Controller {
	return &Controller{
		mode:   ModeNavigating,
		editor: NewEditor(),
		page:   10,
	}
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	return c.mode
}

// Editor exposes the edit buffer for rendering.
func (c *Controller) Editor() *Editor {
	return c.editor
}

// SetPage sets how many lines PgUp and PgDn scroll.
func (c *Controller) SetPage(lines int) {
	if lines < 1 {
		lines = 1
	}
	c.page = lines
}

// Handle dispatches ev to the current mode.
func (c *Controller) Handle(ev *tcell.EventKey) Action {
	if c.mode == ModeEditing {
		return c.handleEditing(ev)
	}
	return c.handleNavigating(ev)
}

func (c *Controller) handleNavigating(ev *tcell.EventKey) Action {
	switch ev.Key() {
	case tcell.KeyUp:
		return Action{Kind: ActionScroll, Delta: -1}
	case tcell.KeyDown:
		return Action{Kind: ActionScroll, Delta: 1}
	case tcell.KeyPgUp:
		return Action{Kind: ActionScroll, Delta: -c.page}
	case tcell.KeyPgDn:
		return Action{Kind: ActionScroll, Delta: c.page}
	case tcell.KeyHome:
		return Action{Kind: ActionScrollTop}
	case tcell.KeyEnd:
		return Action{Kind: ActionScrollBottom}
	case tcell.KeyEnter:
		c.mode = ModeEditing
		c.editor.Reset()
		return Action{Kind: ActionRedraw}
	case tcell.KeyCtrlC:
		return Action{Kind: ActionQuit}
	case tcell.KeyCtrlR:
		return Action{Kind: ActionReconnect}
	case tcell.KeyCtrlL:
		return Action{Kind: ActionClear}
	}
	return Action{Kind: ActionNone}
}

func (c *Controller) handleEditing(ev *tcell.EventKey) Action {
	e := c.editor
	changed := false
	switch ev.Key() {
	case tcell.KeyEnter:
		return Action{Kind: ActionSubmit, Message: e.Submit()}
	case tcell.KeyCtrlC, tcell.KeyEscape:
		e.Reset()
		c.mode = ModeNavigating
		return Action{Kind: ActionRedraw}
	case tcell.KeyRune:
		changed = e.Insert(ev.Rune())
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		changed = e.Backspace()
	case tcell.KeyDelete, tcell.KeyCtrlD:
		changed = e.Delete()
	case tcell.KeyLeft, tcell.KeyCtrlB:
		changed = e.MoveLeft()
	case tcell.KeyRight, tcell.KeyCtrlF:
		changed = e.MoveRight()
	case tcell.KeyHome, tcell.KeyCtrlA:
		e.MoveToStart()
		changed = true
	case tcell.KeyEnd, tcell.KeyCtrlE:
		e.MoveToEnd()
		changed = true
	case tcell.KeyCtrlU:
		changed = e.KillToStart()
	case tcell.KeyUp:
		changed = e.HistoryPrev()
	case tcell.KeyDown:
		changed = e.HistoryNext()
	}
	if changed {
		return Action{Kind: ActionRedraw}
	}
	return Action{Kind: ActionNone}
}
