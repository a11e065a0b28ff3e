package editor

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Defaults for a freshly added text layer.
const (
	DefaultText       = "Double-click to edit"
	DefaultFontSize   = 24
	DefaultFontFamily = "Arial"
	DefaultFill       = "#000000"
)

var DefaultPosition = Position{X: 50, Y: 50}

var ErrInvalidStyle = errors.New("invalid layer style")

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// TextLayer is one positionable text annotation. Position is the top-left of
// the text box in viewport pixels. A zero Width or Height means the box is
// sized by its content.
type TextLayer struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	Position    Position `json:"position"`
	FontSize    float64  `json:"fontSize"`
	FontFamily  string   `json:"fontFamily"`
	Fill        string   `json:"fill"`
	Stroke      string   `json:"stroke,omitempty"`
	StrokeWidth float64  `json:"strokeWidth,omitempty"`
	Width       float64  `json:"width,omitempty"`
	Height      float64  `json:"height,omitempty"`
	Selected    bool     `json:"selected"`
}

// Box returns the layer's explicit transform box.
func (l TextLayer) Box() Box {
	return Box{Position: l.Position, Size: Size{Width: l.Width, Height: l.Height}}
}

// StyleUpdate carries optional presentation changes. Nil fields are left alone.
type StyleUpdate struct {
	FontSize    *float64 `json:"fontSize,omitempty"`
	FontFamily  *string  `json:"fontFamily,omitempty"`
	Fill        *string  `json:"fill,omitempty"`
	Stroke      *string  `json:"stroke,omitempty"`
	StrokeWidth *float64 `json:"strokeWidth,omitempty"`
}

func (u StyleUpdate) Validate() error {
	if u.FontSize != nil && *u.FontSize <= 0 {
		return fmt.Errorf("%w: font size must be positive", ErrInvalidStyle)
	}
	if u.FontFamily != nil && *u.FontFamily == "" {
		return fmt.Errorf("%w: font family is empty", ErrInvalidStyle)
	}
	if u.Fill != nil && !hexColor.MatchString(*u.Fill) {
		return fmt.Errorf("%w: fill %q is not a hex color", ErrInvalidStyle, *u.Fill)
	}
	if u.Stroke != nil && *u.Stroke != "" && !hexColor.MatchString(*u.Stroke) {
		return fmt.Errorf("%w: stroke %q is not a hex color", ErrInvalidStyle, *u.Stroke)
	}
	if u.StrokeWidth != nil && *u.StrokeWidth < 0 {
		return fmt.Errorf("%w: stroke width is negative", ErrInvalidStyle)
	}
	return nil
}

// Model is the authoritative layer set of one document. Layer order is z-order.
// At most one layer is selected at any time.
type Model struct {
	layers []TextLayer
	newID  func() string
}

func NewModel() *Model {
	return &Model{newID: uuid.NewString}
}

// Layers returns a copy of the layer list.
func (m *Model) Layers() []TextLayer {
	out := make([]TextLayer, len(m.layers))
	copy(out, m.layers)
	return out
}

func (m *Model) Len() int {
	return len(m.layers)
}

func (m *Model) Layer(id string) (TextLayer, bool) {
	if i := m.index(id); i >= 0 {
		return m.layers[i], true
	}
	return TextLayer{}, false
}

// Selected returns the selected layer, if any.
func (m *Model) Selected() (TextLayer, bool) {
	for _, l := range m.layers {
		if l.Selected {
			return l, true
		}
	}
	return TextLayer{}, false
}

// Restore replaces the layer set with a snapshot. The current selection
// survives when the selected layer exists in the snapshot.
func (m *Model) Restore(s Snapshot) {
	selected := ""
	if l, ok := m.Selected(); ok {
		selected = l.ID
	}
	m.layers = s.Layers()
	if selected != "" {
		m.SelectLayer(selected)
	}
}

// Snapshot captures the current layer set.
func (m *Model) Snapshot() Snapshot {
	return NewSnapshot(m.layers)
}

// AddTextLayer appends a layer with the default content and placement, and
// makes it the only selected layer.
func (m *Model) AddTextLayer() string {
	return m.AddTextLayerWith(DefaultText)
}

func (m *Model) AddTextLayerWith(text string) string {
	m.clearSelection()
	layer := TextLayer{
		ID:         m.newID(),
		Text:       text,
		Position:   DefaultPosition,
		FontSize:   DefaultFontSize,
		FontFamily: DefaultFontFamily,
		Fill:       DefaultFill,
		Selected:   true,
	}
	m.layers = append(m.layers, layer)
	return layer.ID
}

// Insert appends an already built layer, typically when rebuilding a document
// from a stored record. The layer is never selected on insert.
func (m *Model) Insert(layer TextLayer) string {
	if layer.ID == "" {
		layer.ID = m.newID()
	}
	layer.Selected = false
	m.layers = append(m.layers, layer)
	return layer.ID
}

func (m *Model) UpdateLayerText(id, text string) bool {
	i := m.index(id)
	if i < 0 || m.layers[i].Text == text {
		return false
	}
	m.layers[i].Text = text
	return true
}

// UpdateSelectedLayerStyle applies u to the selected layer only.
func (m *Model) UpdateSelectedLayerStyle(u StyleUpdate) bool {
	i := m.selectedIndex()
	if i < 0 {
		return false
	}
	l := &m.layers[i]
	before := *l
	if u.FontSize != nil {
		l.FontSize = *u.FontSize
	}
	if u.FontFamily != nil {
		l.FontFamily = *u.FontFamily
	}
	if u.Fill != nil {
		l.Fill = *u.Fill
	}
	if u.Stroke != nil {
		l.Stroke = *u.Stroke
	}
	if u.StrokeWidth != nil {
		l.StrokeWidth = *u.StrokeWidth
	}
	return *l != before
}

func (m *Model) MoveLayer(id string, pos Position) bool {
	i := m.index(id)
	if i < 0 || m.layers[i].Position == pos {
		return false
	}
	m.layers[i].Position = pos
	return true
}

// ResizeLayer sets the layer's position and explicit box size.
func (m *Model) ResizeLayer(id string, box Box) bool {
	i := m.index(id)
	if i < 0 || m.layers[i].Box() == box {
		return false
	}
	m.layers[i].Position = box.Position
	m.layers[i].Width = box.Width
	m.layers[i].Height = box.Height
	return true
}

func (m *Model) RemoveLayer(id string) bool {
	i := m.index(id)
	if i < 0 {
		return false
	}
	m.layers = append(m.layers[:i], m.layers[i+1:]...)
	return true
}

// SelectLayer selects exactly the named layer. An empty or unknown id clears
// the selection.
func (m *Model) SelectLayer(id string) bool {
	changed := false
	for i := range m.layers {
		want := id != "" && m.layers[i].ID == id
		if m.layers[i].Selected != want {
			m.layers[i].Selected = want
			changed = true
		}
	}
	return changed
}

func (m *Model) clearSelection() {
	for i := range m.layers {
		m.layers[i].Selected = false
	}
}

func (m *Model) index(id string) int {
	for i, l := range m.layers {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (m *Model) selectedIndex() int {
	for i, l := range m.layers {
		if l.Selected {
			return i
		}
	}
	return -1
}
