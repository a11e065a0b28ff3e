package editor

import (
	"errors"
	"testing"
)

type fixedMeasurer struct{ size Size }

func (f fixedMeasurer) Measure(TextLayer) Size { return f.size }

func newTestController() (*Controller, *Model, *History) {
	m := NewModel()
	h := NewHistory(0)
	return NewController(m, h), m, h
}

func TestConstrainBox(t *testing.T) {
	old := Box{Position: Position{X: 5, Y: 5}, Size: Size{Width: 100, Height: 40}}

	testCases := []struct {
		name string
		next Box
		want Box
	}{
		{"below floor", Box{Size: Size{Width: 10, Height: 10}}, old},
		{"narrow", Box{Size: Size{Width: 19, Height: 50}}, old},
		{"at floor", Box{Size: Size{Width: 20, Height: 20}}, Box{Size: Size{Width: 20, Height: 20}}},
		{"larger", Box{Position: Position{X: 1}, Size: Size{Width: 200, Height: 80}}, Box{Position: Position{X: 1}, Size: Size{Width: 200, Height: 80}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ConstrainBox(old, tc.next, MinBoxSize); got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}

	small := Box{Size: Size{Width: 10, Height: 10}}
	if got := ConstrainBox(small, small, 20); got != small {
		t.Errorf("rejection should return the input box, got %+v", got)
	}
}

func TestPointerDown(t *testing.T) {
	c, m, _ := newTestController()
	a := m.AddTextLayer()
	m.AddTextLayer()

	if !c.PointerDown(a) {
		t.Error("pressing another layer should change the selection")
	}
	if sel, _ := m.Selected(); sel.ID != a {
		t.Errorf("expected %s selected", a)
	}
	c.PointerDown("")
	if _, ok := m.Selected(); ok {
		t.Error("pressing empty canvas should clear the selection")
	}
	if c.PointerDown("unknown") {
		t.Error("unknown layer should not change anything")
	}
}

func TestDragEnd_Commits(t *testing.T) {
	c, m, h := newTestController()
	id := m.AddTextLayer()
	c.Commit()

	changed, err := c.DragEnd(id, Position{X: 120, Y: 80})
	if err != nil || !changed {
		t.Fatalf("DragEnd() = %v, %v", changed, err)
	}
	if got := h.Present().Layers()[0].Position; got != (Position{X: 120, Y: 80}) {
		t.Errorf("history present position: %+v", got)
	}

	if _, err := c.DragEnd("missing", Position{}); !errors.Is(err, ErrLayerNotFound) {
		t.Errorf("expected ErrLayerNotFound, got %v", err)
	}
}

func TestResize_RejectsBelowFloor(t *testing.T) {
	c, m, h := newTestController()
	id := m.AddTextLayer()
	c.Commit()
	undoDepth := len(h.past)

	old := Box{Position: DefaultPosition, Size: Size{Width: 100, Height: 40}}
	got, err := c.Resize(id, old, Box{Position: DefaultPosition, Size: Size{Width: 10, Height: 10}})
	if err != nil {
		t.Fatalf("Resize() failed: %v", err)
	}
	if got != old {
		t.Errorf("rejected resize should return old box, got %+v", got)
	}
	if len(h.past) != undoDepth {
		t.Error("rejected resize should not be committed")
	}

	next := Box{Position: Position{X: 40, Y: 40}, Size: Size{Width: 150, Height: 60}}
	got, _ = c.Resize(id, old, next)
	if got != next {
		t.Errorf("accepted resize: got %+v", got)
	}
	if l, _ := m.Layer(id); l.Box() != next {
		t.Errorf("layer box: got %+v", l.Box())
	}
}

func TestHandles(t *testing.T) {
	c, m, _ := newTestController()
	if _, ok := c.Handles(nil); ok {
		t.Error("no selection should mean no handles")
	}

	id := m.AddTextLayer()
	box, ok := c.Handles(fixedMeasurer{Size{Width: 90, Height: 30}})
	if !ok || box.Width != 90 || box.Height != 30 || box.Position != DefaultPosition {
		t.Errorf("measured handles: %+v", box)
	}

	m.ResizeLayer(id, Box{Position: DefaultPosition, Size: Size{Width: 200, Height: 0}})
	box, _ = c.Handles(fixedMeasurer{Size{Width: 90, Height: 30}})
	if box.Width != 200 || box.Height != 30 {
		t.Errorf("explicit width should win: %+v", box)
	}
}

func TestTextEdit(t *testing.T) {
	c, m, h := newTestController()
	id := m.AddTextLayer()
	c.Commit()

	if _, err := c.ConfirmTextEdit("x"); !errors.Is(err, ErrNoPendingEdit) {
		t.Errorf("confirm without edit: got %v", err)
	}

	current, err := c.BeginTextEdit(id)
	if err != nil || current != DefaultText {
		t.Fatalf("BeginTextEdit() = %q, %v", current, err)
	}
	c.CancelTextEdit()
	if l, _ := m.Layer(id); l.Text != DefaultText {
		t.Error("cancel should discard the edit")
	}

	c.BeginTextEdit(id)
	if changed, err := c.ConfirmTextEdit(""); err != nil || changed {
		t.Errorf("empty confirm should be discarded: %v, %v", changed, err)
	}

	c.BeginTextEdit(id)
	changed, err := c.ConfirmTextEdit("top text")
	if err != nil || !changed {
		t.Fatalf("ConfirmTextEdit() = %v, %v", changed, err)
	}
	if h.Present().Layers()[0].Text != "top text" {
		t.Error("confirmed text should be committed")
	}
	if c.PendingEdit() != "" {
		t.Error("edit should be closed after confirm")
	}
}
