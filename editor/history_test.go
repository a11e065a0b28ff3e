package editor

import "testing"

func snap(texts ...string) Snapshot {
	layers := make([]TextLayer, len(texts))
	for i, text := range texts {
		layers[i] = TextLayer{ID: text, Text: text}
	}
	return NewSnapshot(layers)
}

func TestHistory_UndoRestoresPreCommit(t *testing.T) {
	h := NewHistory(0)
	s1 := snap("a")
	s2 := snap("a", "b")
	h.Commit(s1)
	h.Commit(s2)

	got, ok := h.Undo()
	if !ok || !got.Equal(s1) {
		t.Fatalf("Undo(): got %v (ok=%v), want s1", got.Layers(), ok)
	}

	got, ok = h.Redo()
	if !ok || !got.Equal(s2) {
		t.Fatalf("Redo(): got %v (ok=%v), want s2", got.Layers(), ok)
	}
}

func TestHistory_CommitAfterUndoClearsFuture(t *testing.T) {
	h := NewHistory(0)
	h.Commit(snap("a"))
	h.Commit(snap("b"))
	h.Undo()
	if !h.CanRedo() {
		t.Fatal("expected a redo entry after undo")
	}

	h.Commit(snap("c"))
	if h.CanRedo() {
		t.Error("commit should discard the redo branch")
	}
	if _, ok := h.Redo(); ok {
		t.Error("Redo() should be a no-op")
	}
}

func TestHistory_NoOpsOnEmpty(t *testing.T) {
	h := NewHistory(0)
	if _, ok := h.Undo(); ok {
		t.Error("Undo() on empty history should be a no-op")
	}
	if _, ok := h.Redo(); ok {
		t.Error("Redo() on empty history should be a no-op")
	}
	if h.Present().Len() != 0 {
		t.Error("present should start empty")
	}
}

func TestHistory_Reset(t *testing.T) {
	h := NewHistory(0)
	h.Commit(snap("a"))
	h.Commit(snap("b"))
	h.Undo()
	h.Reset()

	if h.CanUndo() || h.CanRedo() || h.Present().Len() != 0 {
		t.Error("Reset() should clear every stack")
	}
}

func TestHistory_Limit(t *testing.T) {
	h := NewHistory(3)
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		h.Commit(snap(s))
	}

	undos := 0
	for h.CanUndo() {
		h.Undo()
		undos++
	}
	if undos != 3 {
		t.Errorf("expected 3 undo steps, got %d", undos)
	}
	if got := h.Present().Layers(); len(got) != 1 || got[0].Text != "b" {
		t.Errorf("oldest reachable state: got %v", got)
	}
}

func TestSnapshot_IgnoresSelection(t *testing.T) {
	s := NewSnapshot([]TextLayer{{ID: "a", Selected: true}})
	if s.Layers()[0].Selected {
		t.Error("snapshots should not carry selection")
	}
}
