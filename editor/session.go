package editor

import (
	"errors"
	"image"
	"sync"
)

type State string

const (
	StateEmpty    State = "empty"
	StateLoaded   State = "loaded"
	StateEditing  State = "editing"
	StateExported State = "exported"
)

var ErrNoImage = errors.New("no background image loaded")

// View is an immutable snapshot of a session handed to callers and observers.
type View struct {
	ID            string      `json:"id"`
	State         State       `json:"state"`
	Layers        []TextLayer `json:"layers"`
	SelectedID    string      `json:"selectedId,omitempty"`
	PendingEditID string      `json:"pendingEditId,omitempty"`
	HasImage      bool        `json:"hasImage"`
	ImageURL      string      `json:"imageUrl,omitempty"`
	Bounds        Bounds      `json:"bounds"`
	Viewport      Size        `json:"viewport"`
	CanUndo       bool        `json:"canUndo"`
	CanRedo       bool        `json:"canRedo"`
	Version       uint64      `json:"version"`
}

// Scene is everything needed to rasterize a session.
type Scene struct {
	Background image.Image
	Bounds     Bounds
	Layers     []TextLayer
}

// Session is one editing document: a background, its layers, their history
// and the gesture controller. Commands are serialized; observers are called
// after the lock is released, in command order.
type Session struct {
	id string

	mu         sync.Mutex
	state      State
	background *Background
	model      *Model
	history    *History
	ctrl       *Controller
	version    uint64

	notifyMu     sync.Mutex
	observers    map[int]func(View)
	nextObserver int
}

func NewSession(id string) *Session {
	model := NewModel()
	history := NewHistory(DefaultHistoryLimit)
	return &Session{
		id:        id,
		state:     StateEmpty,
		model:     model,
		history:   history,
		ctrl:      NewController(model, history),
		observers: make(map[int]func(View)),
	}
}

func (s *Session) ID() string {
	return s.id
}

// Subscribe registers fn for every future change. Observers must not issue
// commands on the same session from inside fn.
func (s *Session) Subscribe(fn func(View)) (cancel func()) {
	s.mu.Lock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Scene returns the data needed to render the session.
func (s *Session) Scene() Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := Scene{Layers: s.model.Layers()}
	if s.background != nil {
		sc.Background = s.background.Image
		sc.Bounds = s.background.ImageBounds()
	}
	return sc
}

// Handles returns the transform box of the selected layer.
func (s *Session) Handles(m Measurer) (Box, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Handles(m)
}

// LoadImage sets the background. Existing layers are kept.
func (s *Session) LoadImage(img image.Image, source string) View {
	return s.mutate(func() (bool, error) {
		s.background = &Background{Image: img, Source: source}
		s.state = StateLoaded
		return true, nil
	})
}

// LoadDocument replaces background and layers at once and starts a fresh
// history, as when reopening a saved meme.
func (s *Session) LoadDocument(img image.Image, source string, layers []TextLayer) View {
	return s.mutate(func() (bool, error) {
		s.background = &Background{Image: img, Source: source}
		s.model.Restore(Snapshot{})
		for _, l := range layers {
			s.model.Insert(l)
		}
		s.history.ResetTo(s.model.Snapshot())
		s.ctrl.CancelTextEdit()
		s.state = StateLoaded
		return true, nil
	})
}

// AddTextLayer adds a layer seeded with text, or the default text when empty.
// The new layer is the selected one in the returned view.
func (s *Session) AddTextLayer(text string) (View, error) {
	return s.edit(func() (bool, error) {
		if text == "" {
			s.model.AddTextLayer()
		} else {
			s.model.AddTextLayerWith(text)
		}
		return s.ctrl.Commit(), nil
	})
}

func (s *Session) UpdateLayerText(id, text string) (View, error) {
	return s.edit(func() (bool, error) {
		if !s.model.UpdateLayerText(id, text) {
			return false, nil
		}
		return s.ctrl.Commit(), nil
	})
}

func (s *Session) UpdateSelectedStyle(u StyleUpdate) (View, error) {
	if err := u.Validate(); err != nil {
		return s.View(), err
	}
	return s.edit(func() (bool, error) {
		if !s.model.UpdateSelectedLayerStyle(u) {
			return false, nil
		}
		return s.ctrl.Commit(), nil
	})
}

func (s *Session) MoveLayer(id string, pos Position) (View, error) {
	return s.edit(func() (bool, error) {
		return s.ctrl.DragEnd(id, pos)
	})
}

func (s *Session) ResizeLayer(id string, old, next Box) (View, error) {
	return s.edit(func() (bool, error) {
		box, err := s.ctrl.Resize(id, old, next)
		return err == nil && box != old, err
	})
}

func (s *Session) RemoveLayer(id string) (View, error) {
	return s.edit(func() (bool, error) {
		if !s.model.RemoveLayer(id) {
			return false, nil
		}
		if s.ctrl.PendingEdit() == id {
			s.ctrl.CancelTextEdit()
		}
		return s.ctrl.Commit(), nil
	})
}

// SelectLayer selects a layer, or clears the selection for an empty id.
// Selection is not recorded in history.
func (s *Session) SelectLayer(id string) (View, error) {
	return s.edit(func() (bool, error) {
		return s.ctrl.PointerDown(id), nil
	})
}

func (s *Session) BeginTextEdit(id string) (View, error) {
	return s.edit(func() (bool, error) {
		if _, err := s.ctrl.BeginTextEdit(id); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (s *Session) ConfirmTextEdit(text string) (View, error) {
	return s.edit(func() (bool, error) {
		if _, err := s.ctrl.ConfirmTextEdit(text); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (s *Session) CancelTextEdit() (View, error) {
	return s.edit(func() (bool, error) {
		if s.ctrl.PendingEdit() == "" {
			return false, nil
		}
		s.ctrl.CancelTextEdit()
		return true, nil
	})
}

func (s *Session) Undo() (View, error) {
	return s.edit(func() (bool, error) {
		snap, ok := s.history.Undo()
		if !ok {
			return false, nil
		}
		s.ctrl.CancelTextEdit()
		s.model.Restore(snap)
		return true, nil
	})
}

func (s *Session) Redo() (View, error) {
	return s.edit(func() (bool, error) {
		snap, ok := s.history.Redo()
		if !ok {
			return false, nil
		}
		s.ctrl.CancelTextEdit()
		s.model.Restore(snap)
		return true, nil
	})
}

// Reset clears all layers and history. The background stays loaded.
func (s *Session) Reset() View {
	return s.mutate(func() (bool, error) {
		s.ctrl.CancelTextEdit()
		s.history.Reset()
		s.model.Restore(Snapshot{})
		if s.background != nil {
			s.state = StateLoaded
		}
		return true, nil
	})
}

// MarkExported records a completed export. Further edits return the session
// to the editing state.
func (s *Session) MarkExported() View {
	return s.mutate(func() (bool, error) {
		if s.background == nil || s.state == StateExported {
			return false, nil
		}
		s.state = StateExported
		return true, nil
	})
}

// edit runs a layer command. Layer commands require a background.
func (s *Session) edit(fn func() (bool, error)) (View, error) {
	var err error
	view := s.mutate(func() (bool, error) {
		if s.background == nil {
			err = ErrNoImage
			return false, err
		}
		changed, ferr := fn()
		if ferr != nil {
			err = ferr
		}
		if changed {
			s.state = StateEditing
		}
		return changed, ferr
	})
	return view, err
}

func (s *Session) mutate(fn func() (bool, error)) View {
	s.mu.Lock()
	changed, _ := fn()
	if changed {
		s.version++
	}
	view := s.viewLocked()
	if !changed {
		s.mu.Unlock()
		return view
	}
	observers := make([]func(View), 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, o := range observers {
		o(view)
	}
	return view
}

func (s *Session) viewLocked() View {
	v := View{
		ID:            s.id,
		State:         s.state,
		Layers:        s.model.Layers(),
		PendingEditID: s.ctrl.PendingEdit(),
		Viewport:      Viewport(),
		CanUndo:       s.history.CanUndo(),
		CanRedo:       s.history.CanRedo(),
		Version:       s.version,
	}
	if l, ok := s.model.Selected(); ok {
		v.SelectedID = l.ID
	}
	if s.background != nil {
		v.HasImage = true
		v.ImageURL = s.background.Source
		v.Bounds = s.background.ImageBounds()
	}
	return v
}
