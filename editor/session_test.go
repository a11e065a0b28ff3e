package editor

import (
	"errors"
	"image"
	"sync"
	"testing"
)

func loadedSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession("s1")
	s.LoadImage(image.NewRGBA(image.Rect(0, 0, 400, 300)), "https://example.com/bg.png")
	return s
}

func TestSession_StateMachine(t *testing.T) {
	s := NewSession("s1")
	if s.View().State != StateEmpty {
		t.Fatalf("initial state: %s", s.View().State)
	}
	if _, err := s.AddTextLayer(""); !errors.Is(err, ErrNoImage) {
		t.Errorf("editing before load: got %v", err)
	}

	v := s.LoadImage(image.NewRGBA(image.Rect(0, 0, 400, 300)), "bg")
	if v.State != StateLoaded || !v.HasImage {
		t.Fatalf("after load: %+v", v)
	}

	v, _ = s.AddTextLayer("")
	if v.State != StateEditing {
		t.Errorf("after add: %s", v.State)
	}
	if v = s.MarkExported(); v.State != StateExported {
		t.Errorf("after export: %s", v.State)
	}
	v, _ = s.UpdateLayerText(v.Layers[0].ID, "again")
	if v.State != StateEditing {
		t.Errorf("editing after export: %s", v.State)
	}
	if v = s.Reset(); v.State != StateLoaded || len(v.Layers) != 0 {
		t.Errorf("after reset: %+v", v)
	}
}

func TestSession_UndoRedoScenario(t *testing.T) {
	s := loadedSession(t)

	v, err := s.AddTextLayer("hello")
	if err != nil {
		t.Fatalf("AddTextLayer() failed: %v", err)
	}
	if len(v.Layers) != 1 || !v.CanUndo {
		t.Fatalf("after add: %+v", v)
	}

	v, _ = s.Undo()
	if len(v.Layers) != 0 {
		t.Fatalf("after undo: expected no layers, got %d", len(v.Layers))
	}

	v, _ = s.Redo()
	if len(v.Layers) != 1 || v.Layers[0].Text != "hello" {
		t.Fatalf("after redo: %+v", v.Layers)
	}
}

func TestSession_SelectionNotInHistory(t *testing.T) {
	s := loadedSession(t)
	v, _ := s.AddTextLayer("a")
	id := v.SelectedID

	s.SelectLayer("")
	v, _ = s.Undo()
	if len(v.Layers) != 0 {
		t.Errorf("undo should revert the add, not the selection: %+v", v.Layers)
	}
	v, _ = s.Redo()
	if v.SelectedID != "" {
		t.Errorf("redo should not restore selection, got %s", v.SelectedID)
	}
	if v.Layers[0].ID != id {
		t.Error("layer id should survive undo/redo")
	}
}

func TestSession_Observers(t *testing.T) {
	s := loadedSession(t)

	var mu sync.Mutex
	var versions []uint64
	cancel := s.Subscribe(func(v View) {
		mu.Lock()
		versions = append(versions, v.Version)
		mu.Unlock()
	})

	s.AddTextLayer("one")
	s.Undo()
	s.Undo() // no-op, no notification
	cancel()
	s.Redo()

	mu.Lock()
	defer mu.Unlock()
	if len(versions) != 2 {
		t.Fatalf("expected 2 notifications, got %v", versions)
	}
	if versions[0] >= versions[1] {
		t.Errorf("versions should increase: %v", versions)
	}
}

func TestSession_ConcurrentCommands(t *testing.T) {
	s := loadedSession(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddTextLayer("x")
		}()
	}
	wg.Wait()

	v := s.View()
	if len(v.Layers) != 20 {
		t.Errorf("expected 20 layers, got %d", len(v.Layers))
	}
	if selectedCount(v.Layers) != 1 {
		t.Errorf("expected exactly one selected layer, got %d", selectedCount(v.Layers))
	}
}

func TestSession_Apply(t *testing.T) {
	s := loadedSession(t)

	v, err := s.Apply(Command{Type: CmdAddText, Text: "top"})
	if err != nil {
		t.Fatalf("addText failed: %v", err)
	}
	id := v.SelectedID

	size := 40.0
	if v, err = s.Apply(Command{Type: CmdUpdateStyle, Style: &StyleUpdate{FontSize: &size}}); err != nil {
		t.Fatalf("updateStyle failed: %v", err)
	}
	if v.Layers[0].FontSize != 40 {
		t.Errorf("font size: %v", v.Layers[0].FontSize)
	}

	if v, err = s.Apply(Command{Type: CmdMove, LayerID: id, Position: &Position{X: 10, Y: 20}}); err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if v.Layers[0].Position != (Position{X: 10, Y: 20}) {
		t.Errorf("position: %+v", v.Layers[0].Position)
	}

	if _, err = s.Apply(Command{Type: CmdMove, LayerID: id}); err == nil {
		t.Error("move without position should fail")
	}
	if _, err = s.Apply(Command{Type: "explode"}); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}

	bad := "blue"
	if _, err = s.Apply(Command{Type: CmdUpdateStyle, Style: &StyleUpdate{Fill: &bad}}); !errors.Is(err, ErrInvalidStyle) {
		t.Errorf("expected ErrInvalidStyle, got %v", err)
	}
}

func TestSession_LoadDocument(t *testing.T) {
	s := NewSession("s2")
	layers := []TextLayer{{Text: "top", FontSize: 30}, {Text: "bottom", FontSize: 30}}
	v := s.LoadDocument(image.NewRGBA(image.Rect(0, 0, 800, 600)), "src", layers)

	if len(v.Layers) != 2 || v.Layers[0].ID == "" {
		t.Fatalf("loaded layers: %+v", v.Layers)
	}
	if v.CanUndo {
		t.Error("a loaded document should start with empty history")
	}
	if v.SelectedID != "" {
		t.Error("loaded layers should not be selected")
	}
}
