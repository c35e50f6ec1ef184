// Package ui draws the two panes of the monitor on a tcell screen: the output
// pane above and the one-row input pane at the bottom.
package ui

import (
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"serialmon/pkg/scrollback"
)

// Rect is a drawable region in screen cells.
type Rect struct {
	X, Y, W, H int
}

var (
	outputStyle   = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorBlack)
	inputStyle    = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorWhite)
	stampStyle    = outputStyle.Foreground(tcell.ColorGray)
	outboundStyle = outputStyle.Foreground(tcell.ColorTeal)
	noticeStyle   = outputStyle.Foreground(tcell.ColorYellow)
	errorStyle    = outputStyle.Foreground(tcell.ColorRed)
)

// Surface owns the screen. Only the goroutine running the event loop may
// draw; PostEvent is safe from anywhere.
type Surface struct {
	screen   tcell.Screen
	initOnce sync.Once
	finiOnce sync.Once
	initErr  error
}

// New wraps screen. The screen is not initialised until Init.
func New(screen tcell.Screen) *Surface {
	return &Surface{screen: screen}
}

// NewTerminal creates a Surface on the controlling terminal.
func NewTerminal() (*Surface, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to create screen: %w", err)
	}
	return New(screen), nil
}

// Init puts the terminal into full-screen mode.
func (s *Surface) Init() error {
	s.initOnce.Do(func() {
		if err := s.screen.Init(); err != nil {
			s.initErr = fmt.Errorf("failed to initialize screen: %w", err)
			return
		}
		s.screen.SetStyle(outputStyle)
		s.screen.HideCursor()
		s.screen.Clear()
	})
	return s.initErr
}

// Fini restores the terminal. Only the first call has an effect.
func (s *Surface) Fini() {
	s.finiOnce.Do(func() {
		if s.initErr != nil {
			return
		}
		s.screen.Fini()
	})
}

// Size returns the screen size.
func (s *Surface) Size() (int, int) {
	return s.screen.Size()
}

// OutputPane covers every row but the last.
func (s *Surface) OutputPane() Rect {
	w, h := s.screen.Size()
	if h < 1 {
		return Rect{W: w}
	}
	return Rect{X: 0, Y: 0, W: w, H: h - 1}
}

// InputPane is the last row.
func (s *Surface) InputPane() Rect {
	w, h := s.screen.Size()
	if h < 1 {
		return Rect{W: w}
	}
	return Rect{X: 0, Y: h - 1, W: w, H: 1}
}

// DrawOutput fills the output pane with lines from the top. Lines wider than
// the pane are cut at the edge.
func (s *Surface) DrawOutput(lines []scrollback.Line) {
	r := s.OutputPane()
	s.fill(r, outputStyle)
	if len(lines) > r.H {
		lines = lines[len(lines)-r.H:]
	}
	for i, l := range lines {
		x := s.put(r.X, r.Y+i, r.X+r.W, l.Stamp, stampStyle)
		s.put(x, r.Y+i, r.X+r.W, l.Text, kindStyle(l.Kind))
	}
}

// DrawInput draws the edit buffer with the cursor at rune index cursor. When
// the text is wider than the pane the part around the cursor is shown.
func (s *Surface) DrawInput(prompt, text string, cursor int) {
	r := s.InputPane()
	s.fill(r, inputStyle)
	if r.W <= 0 || r.H <= 0 {
		return
	}

	runes := []rune(text)
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(runes) {
		cursor = len(runes)
	}
	avail := r.W - runewidth.StringWidth(prompt) - 1
	start := 0
	for avail > 0 && runewidth.StringWidth(string(runes[start:cursor])) > avail {
		start++
	}

	x := s.put(r.X, r.Y, r.X+r.W, prompt, inputStyle)
	before := x + runewidth.StringWidth(string(runes[start:cursor]))
	s.put(x, r.Y, r.X+r.W, string(runes[start:]), inputStyle)
	if before < r.X+r.W {
		s.screen.ShowCursor(before, r.Y)
	} else {
		s.screen.HideCursor()
	}
}

// DrawStatus shows a one-line status in the input pane and hides the cursor.
func (s *Surface) DrawStatus(status string) {
	r := s.InputPane()
	s.fill(r, inputStyle)
	s.put(r.X, r.Y, r.X+r.W, status, inputStyle)
	s.screen.HideCursor()
}

// Show flushes pending changes to the terminal.
func (s *Surface) Show() {
	s.screen.Show()
}

// Sync redraws the whole terminal, used after a resize.
func (s *Surface) Sync() {
	s.screen.Sync()
}

// PollEvent waits for the next event. It returns nil after Fini.
func (s *Surface) PollEvent() tcell.Event {
	return s.screen.PollEvent()
}

// PostEvent queues ev without blocking.
func (s *Surface) PostEvent(ev tcell.Event) error {
	return s.screen.PostEvent(ev)
}

func (s *Surface) fill(r Rect, style tcell.Style) {
	for y := r.Y; y < r.Y+r.H; y++ {
		for x := r.X; x < r.X+r.W; x++ {
			s.screen.SetContent(x, y, ' ', nil, style)
		}
	}
}

// put draws text from x and returns the column after it. Nothing is drawn
// at or beyond limit.
func (s *Surface) put(x, y, limit int, text string, style tcell.Style) int {
	for _, r := range text {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if x+w > limit {
			break
		}
		s.screen.SetContent(x, y, r, nil, style)
		x += w
	}
	return x
}

func kindStyle(k scrollback.Kind) tcell.Style {
	switch k {
	case scrollback.KindOutbound:
		return outboundStyle
	case scrollback.KindNotice:
		return noticeStyle
	case scrollback.KindError:
		return errorStyle
	default:
		return outputStyle
	}
}
