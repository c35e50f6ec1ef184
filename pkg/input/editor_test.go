package input

import "testing"

func TestEditorInsertAndMove(t *testing.T) {
	e := NewEditor()
	for _, r := range "ac" {
		e.Insert(r)
	}
	e.MoveLeft()
	e.Insert('b')

	if e.Text() != "abc" {
		t.Errorf("Text() = %q, want %q", e.Text(), "abc")
	}
	if e.Cursor() != 2 {
		t.Errorf("Cursor() = %d, want 2", e.Cursor())
	}
	if e.Insert('\x07') {
		t.Error("control rune should be rejected")
	}
}

func TestEditorBoundaries(t *testing.T) {
	e := NewEditor()
	if e.Backspace() || e.Delete() || e.MoveLeft() || e.MoveRight() || e.KillToStart() {
		t.Error("edits on an empty buffer should report no change")
	}

	e.SetText("xy")
	if e.MoveRight() {
		t.Error("MoveRight at end should report no change")
	}
	e.MoveToStart()
	if e.Backspace() {
		t.Error("Backspace at start should report no change")
	}
}

func TestEditorSubmit(t *testing.T) {
	e := NewEditor()
	e.SetText("status")

	if got := e.Submit(); got != "status" {
		t.Errorf("Submit() = %q", got)
	}
	if e.Text() != "" || e.Cursor() != 0 {
		t.Errorf("buffer not reset: %q at %d", e.Text(), e.Cursor())
	}

	e.SetText("status")
	e.Submit()
	e.Submit() // empty
	if h := e.History(); len(h) != 1 || h[0] != "status" {
		t.Errorf("History() = %v", h)
	}
}

func TestEditorHistoryBounded(t *testing.T) {
	e := NewEditor()
	for i := 0; i < maxHistory+10; i++ {
		e.SetText(string(rune('a' + i%26)) + string(rune('0'+i%10)) + string(rune(i)))
		e.Submit()
	}
	if n := len(e.History()); n != maxHistory {
		t.Errorf("history length = %d, want %d", n, maxHistory)
	}
}

func TestEditorHistoryNextWithoutBrowsing(t *testing.T) {
	e := NewEditor()
	e.SetText("keep")
	if e.HistoryNext() {
		t.Error("HistoryNext should do nothing when not browsing")
	}
	if e.Text() != "keep" {
		t.Errorf("buffer changed to %q", e.Text())
	}
}
