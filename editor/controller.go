package editor

import (
	"errors"
	"fmt"
)

// MinBoxSize is the smallest width or height a resize may leave a text box with.
const MinBoxSize = 20

var (
	ErrLayerNotFound = errors.New("layer not found")
	ErrNoPendingEdit = errors.New("no text edit in progress")
)

// Measurer sizes a layer whose text box has no explicit dimensions.
type Measurer interface {
	Measure(layer TextLayer) Size
}

// Controller turns pointer gestures into model mutations and records each
// completed gesture in the history.
type Controller struct {
	model   *Model
	history *History
	editing string
	minSize float64
}

func NewController(model *Model, history *History) *Controller {
	return &Controller{model: model, history: history, minSize: MinBoxSize}
}

// Commit records the live layer set if it differs from the history present.
func (c *Controller) Commit() bool {
	s := c.model.Snapshot()
	if s.Equal(c.history.Present()) {
		return false
	}
	c.history.Commit(s)
	return true
}

// PointerDown handles a press on the canvas. An empty id is a press on empty
// canvas and clears the selection.
func (c *Controller) PointerDown(layerID string) bool {
	if layerID != "" {
		if _, ok := c.model.Layer(layerID); !ok {
			return false
		}
	}
	return c.model.SelectLayer(layerID)
}

// DragEnd commits the final position of a drag. Intermediate drag frames are
// never sent here.
func (c *Controller) DragEnd(layerID string, pos Position) (bool, error) {
	if _, ok := c.model.Layer(layerID); !ok {
		return false, fmt.Errorf("%w: %s", ErrLayerNotFound, layerID)
	}
	if !c.model.MoveLayer(layerID, pos) {
		return false, nil
	}
	return c.Commit(), nil
}

// Resize applies a handle resize. When next is below the minimum size the
// previous box is returned and nothing changes.
func (c *Controller) Resize(layerID string, old, next Box) (Box, error) {
	if _, ok := c.model.Layer(layerID); !ok {
		return old, fmt.Errorf("%w: %s", ErrLayerNotFound, layerID)
	}
	box := ConstrainBox(old, next, c.minSize)
	if box == old {
		return old, nil
	}
	if c.model.ResizeLayer(layerID, box) {
		c.Commit()
	}
	return box, nil
}

// ConstrainBox returns next unless either of its dimensions is below min, in
// which case old is returned unchanged.
func ConstrainBox(old, next Box, min float64) Box {
	if next.Width < min || next.Height < min {
		return old
	}
	return next
}

// Handles returns the transform box of the selected layer. Layers without an
// explicit size are measured.
func (c *Controller) Handles(m Measurer) (Box, bool) {
	l, ok := c.model.Selected()
	if !ok {
		return Box{}, false
	}
	box := l.Box()
	if (box.Width == 0 || box.Height == 0) && m != nil {
		measured := m.Measure(l)
		if box.Width == 0 {
			box.Width = measured.Width
		}
		if box.Height == 0 {
			box.Height = measured.Height
		}
	}
	return box, true
}

// BeginTextEdit opens the in-place editor on a layer and returns its current
// text. The layer becomes selected.
func (c *Controller) BeginTextEdit(layerID string) (string, error) {
	l, ok := c.model.Layer(layerID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrLayerNotFound, layerID)
	}
	c.model.SelectLayer(layerID)
	c.editing = layerID
	return l.Text, nil
}

// PendingEdit returns the id of the layer being edited, if any.
func (c *Controller) PendingEdit() string {
	return c.editing
}

// ConfirmTextEdit closes the pending edit. Non-empty text replaces the layer
// content and is committed; empty text is discarded like a cancel.
func (c *Controller) ConfirmTextEdit(text string) (bool, error) {
	if c.editing == "" {
		return false, ErrNoPendingEdit
	}
	id := c.editing
	c.editing = ""
	if text == "" {
		return false, nil
	}
	if _, ok := c.model.Layer(id); !ok {
		return false, fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	if !c.model.UpdateLayerText(id, text) {
		return false, nil
	}
	return c.Commit(), nil
}

func (c *Controller) CancelTextEdit() {
	c.editing = ""
}
