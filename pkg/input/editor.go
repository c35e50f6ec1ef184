package input

import "unicode"

const maxHistory = 100

// Editor is a single-line edit buffer with a cursor and a recall history of
// submitted lines.
type Editor struct {
	// buffer holds the message being typed.
	buffer []rune

	// cursorPos is the cursor position within buffer.
	cursorPos int

	// history holds previously submitted messages, oldest first.
	history []string

	// historyIndex is the current position in history (-1 = current input).
	historyIndex int

	// savedBuffer holds the in-progress buffer while browsing history.
	savedBuffer []rune
}

// NewEditor creates an empty editor.
func NewEditor() *Editor {
	return &Editor{
		buffer:       make([]rune, 0, 64),
		history:      make([]string, 0, maxHistory),
		historyIndex: -1,
	}
}

// Reset empties the buffer and leaves history browsing. History is kept.
func (e *Editor) Reset() {
	e.buffer = e.buffer[:0]
	e.cursorPos = 0
	e.historyIndex = -1
	e.savedBuffer = nil
}

// Text returns the buffer content.
func (e *Editor) Text() string {
	return string(e.buffer)
}

// SetText replaces the buffer and moves the cursor to the end.
func (e *Editor) SetText(s string) {
	e.buffer = []rune(s)
	e.cursorPos = len(e.buffer)
}

// Cursor returns the cursor position in runes.
func (e *Editor) Cursor() int {
	return e.cursorPos
}

// Insert inserts a printable rune at the cursor. Other runes are ignored.
func (e *Editor) Insert(r rune) bool {
	if !unicode.IsPrint(r) {
		return false
	}
	if e.cursorPos >= len(e.buffer) {
		e.buffer = append(e.buffer, r)
	} else {
		e.buffer = append(e.buffer[:e.cursorPos+1], e.buffer[e.cursorPos:]...)
		e.buffer[e.cursorPos] = r
	}
	e.cursorPos++
	return true
}

// Backspace deletes the character before the cursor.
func (e *Editor) Backspace() bool {
	if e.cursorPos == 0 {
		return false
	}
	e.buffer = append(e.buffer[:e.cursorPos-1], e.buffer[e.cursorPos:]...)
	e.cursorPos--
	return true
}

// Delete deletes the character at the cursor.
func (e *Editor) Delete() bool {
	if e.cursorPos >= len(e.buffer) {
		return false
	}
	e.buffer = append(e.buffer[:e.cursorPos], e.buffer[e.cursorPos+1:]...)
	return true
}

// KillToStart deletes everything before the cursor.
func (e *Editor) KillToStart() bool {
	if e.cursorPos == 0 {
		return false
	}
	e.buffer = append(e.buffer[:0], e.buffer[e.cursorPos:]...)
	e.cursorPos = 0
	return true
}

// MoveLeft moves the cursor left.
func (e *Editor) MoveLeft() bool {
	if e.cursorPos == 0 {
		return false
	}
	e.cursorPos--
	return true
}

// MoveRight moves the cursor right.
func (e *Editor) MoveRight() bool {
	if e.cursorPos >= len(e.buffer) {
		return false
	}
	e.cursorPos++
	return true
}

// MoveToStart moves the cursor to the start.
func (e *Editor) MoveToStart() {
	e.cursorPos = 0
}

// MoveToEnd moves the cursor to the end.
func (e *Editor) MoveToEnd() {
	e.cursorPos = len(e.buffer)
}

// Submit returns the buffer, records it in history and empties the buffer.
func (e *Editor) Submit() string {
	text := e.Text()
	e.addToHistory(text)
	e.Reset()
	return text
}

func (e *Editor) addToHistory(text string) {
	if text == "" {
		return
	}
	// Don't add duplicates of the last message
	if len(e.history) > 0 && e.history[len(e.history)-1] == text {
		return
	}
	e.history = append(e.history, text)
	if len(e.history) > maxHistory {
		e.history = e.history[1:]
	}
}

// History returns a copy of the submitted messages, oldest first.
func (e *Editor) History() []string {
	return append([]string(nil), e.history...)
}

// HistoryPrev replaces the buffer with the previous history entry.
func (e *Editor) HistoryPrev() bool {
	if len(e.history) == 0 {
		return false
	}
	if e.historyIndex == -1 {
		e.savedBuffer = append([]rune(nil), e.buffer...)
		e.historyIndex = len(e.history) - 1
	} else if e.historyIndex > 0 {
		e.historyIndex--
	} else {
		return false
	}
	e.SetText(e.history[e.historyIndex])
	return true
}

// HistoryNext moves towards newer entries and finally back to the line that
// was being typed before browsing started.
func (e *Editor) HistoryNext() bool {
	if e.historyIndex == -1 {
		return false
	}
	if e.historyIndex < len(e.history)-1 {
		e.historyIndex++
		e.SetText(e.history[e.historyIndex])
		return true
	}
	e.historyIndex = -1
	e.buffer = e.savedBuffer
	if e.buffer == nil {
		e.buffer = make([]rune, 0, 64)
	}
	e.savedBuffer = nil
	e.cursorPos = len(e.buffer)
	return true
}
