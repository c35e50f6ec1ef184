// Package scrollback holds the bounded line log shown in the output pane and
// the viewport cursor that selects which part of it is visible.
package scrollback

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// DefaultCapacity is the number of lines kept when no capacity is given.
const DefaultCapacity = 1000

// StampLayout is the time prefix put in front of timestamped lines.
const StampLayout = "15:04:05: "

const tabWidth = 4

// Kind classifies a line for rendering.
type Kind int

const (
	// KindInbound is text received from the device.
	KindInbound Kind = iota
	// KindOutbound is the echo of a message sent by the operator.
	KindOutbound
	// KindNotice is a message from the monitor itself.
	KindNotice
	// KindError is an inline error report.
	KindError
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindInbound:
		return "inbound"
	case KindOutbound:
		return "outbound"
	case KindNotice:
		return "notice"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Line is one row of the output pane. Lines are never modified after they
// are stored.
type Line struct {
	Stamp string
	Text  string
	Kind  Kind
}

// String returns the line as drawn.
func (l Line) String() string {
	return l.Stamp + l.Text
}

// Store is a bounded FIFO of lines plus a viewport cursor. The cursor is the
// index one past the last visible line; it follows appends until the view is
// scrolled away from the bottom.
type Store struct {
	mu       sync.Mutex
	lines    []Line
	capacity int
	cursor   int
	follow   bool
	width    int
	now      func() time.Time
	notify   func()
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithWidth sets the wrap width. Zero disables wrapping.
func WithWidth(width int) Option {
	return func(s *Store) { s.width = width }
}

// WithNotify registers a function called after every change. It runs on the
// goroutine that made the change, outside the store lock.
func WithNotify(fn func()) Option {
	return func(s *Store) { s.notify = fn }
}

// New creates a store holding at most capacity lines.
func New(capacity int, opts ...Option) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Store{
		lines:    make([]Line, 0, capacity),
		capacity: capacity,
		follow:   true,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append stores device text.
func (s *Store) Append(text string, withTimestamp bool) {
	s.AppendKind(KindInbound, text, withTimestamp)
}

// AppendKind splits text on newlines and at the wrap width and stores the
// resulting lines. The timestamp, when requested, is taken once and put on
// the first line only.
func (s *Store) AppendKind(kind Kind, text string, withTimestamp bool) {
	stamp := ""
	if withTimestamp {
		stamp = s.now().Format(StampLayout)
	}

	s.mu.Lock()
	segments := split(text, stamp, s.width)
	for i, seg := range segments {
		line := Line{Text: seg, Kind: kind}
		if i == 0 {
			line.Stamp = stamp
		}
		s.push(line)
	}
	s.mu.Unlock()

	s.changed()
}

// push appends one line, evicting the oldest when full. Callers hold s.mu.
func (s *Store) push(line Line) {
	if len(s.lines) == s.capacity {
		copy(s.lines, s.lines[1:])
		s.lines[len(s.lines)-1] = line
		if !s.follow && s.cursor > 0 {
			s.cursor--
		}
	} else {
		s.lines = append(s.lines, line)
	}
	if s.follow {
		s.cursor = len(s.lines)
	}
}

// Scroll moves the cursor by delta lines. Negative values move towards older
// lines. The cursor is clamped to the buffer; leaving the bottom stops the
// view from following new lines and returning to it resumes following.
func (s *Store) Scroll(delta int) {
	s.mu.Lock()
	before := s.cursor
	s.cursor = clamp(s.cursor+delta, 0, len(s.lines))
	s.follow = s.cursor == len(s.lines)
	moved := s.cursor != before
	s.mu.Unlock()

	if moved {
		s.changed()
	}
}

// ScrollToBottom resumes following new lines.
func (s *Store) ScrollToBottom() {
	s.mu.Lock()
	n := len(s.lines)
	s.mu.Unlock()
	s.Scroll(n)
}

// ScrollToTop moves the view so that the oldest line is at the top of a pane
// height rows tall. A buffer that fits the pane keeps following.
func (s *Store) ScrollToTop(height int) {
	s.mu.Lock()
	top := clamp(height, 0, len(s.lines))
	delta := top - s.cursor
	s.mu.Unlock()
	s.Scroll(delta)
}

// VisibleLines returns up to height lines ending at the cursor, oldest first.
func (s *Store) VisibleLines(height int) []Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	if height <= 0 {
		return nil
	}
	start := s.cursor - height
	if start < 0 {
		start = 0
	}
	out := make([]Line, s.cursor-start)
	copy(out, s.lines[start:s.cursor])
	return out
}

// Lines returns a copy of every stored line.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Line(nil), s.lines...)
}

// Clear drops every line and resumes following.
func (s *Store) Clear() {
	s.mu.Lock()
	s.lines = s.lines[:0]
	s.cursor = 0
	s.follow = true
	s.mu.Unlock()

	s.changed()
}

// SetWidth changes the wrap width for lines appended from now on.
func (s *Store) SetWidth(width int) {
	s.mu.Lock()
	s.width = width
	s.mu.Unlock()
}

// Len returns the number of stored lines.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// Cap returns the capacity.
func (s *Store) Cap() int {
	return s.capacity
}

// Cursor returns the viewport cursor.
func (s *Store) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Following reports whether the cursor tracks new lines.
func (s *Store) Following() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.follow
}

func (s *Store) changed() {
	if s.notify != nil {
		s.notify()
	}
}

// sanitizer drops control characters that the terminal would interpret.
var sanitizer = runes.Remove(runes.Predicate(func(r rune) bool {
	return r < 0x20 || r == 0x7f
}))

// split breaks text into display segments no wider than width. The first
// segment leaves room for the stamp.
func split(text, stamp string, width int) []string {
	var out []string
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSuffix(raw, "\r")
		raw = strings.ReplaceAll(raw, "\t", strings.Repeat(" ", tabWidth))
		clean, _, err := transform.String(sanitizer, raw)
		if err != nil {
			clean = raw
		}
		avail := width
		if len(out) == 0 {
			avail -= runewidth.StringWidth(stamp)
		}
		out = append(out, wrap(clean, avail, width)...)
	}
	return out
}

// wrap cuts s into pieces; the first is at most first cells wide and the rest
// at most width cells. Widths below one disable wrapping.
func wrap(s string, first, width int) []string {
	if width <= 0 {
		return []string{s}
	}
	if first < 1 {
		first = 1
	}
	var out []string
	limit := first
	for runewidth.StringWidth(s) > limit {
		head := runewidth.Truncate(s, limit, "")
		if head == "" {
			// a single rune wider than the limit
			_, size := utf8.DecodeRuneInString(s)
			head = s[:size]
		}
		out = append(out, head)
		s = s[len(head):]
		limit = width
	}
	if s != "" || len(out) == 0 {
		out = append(out, s)
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
