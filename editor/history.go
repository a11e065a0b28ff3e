package editor

// DefaultHistoryLimit bounds the number of undo steps kept per document.
const DefaultHistoryLimit = 100

// Snapshot is an immutable copy of a layer set. Selection is not part of a
// snapshot: it is view state and never undone.
type Snapshot struct {
	layers []TextLayer
}

func NewSnapshot(layers []TextLayer) Snapshot {
	s := Snapshot{layers: make([]TextLayer, len(layers))}
	copy(s.layers, layers)
	for i := range s.layers {
		s.layers[i].Selected = false
	}
	return s
}

// Layers returns a copy of the captured layers.
func (s Snapshot) Layers() []TextLayer {
	out := make([]TextLayer, len(s.layers))
	copy(out, s.layers)
	return out
}

func (s Snapshot) Len() int {
	return len(s.layers)
}

// Equal compares two snapshots layer by layer.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s.layers) != len(o.layers) {
		return false
	}
	for i := range s.layers {
		if s.layers[i] != o.layers[i] {
			return false
		}
	}
	return true
}

// History is a linear undo/redo stack. The last element of future is the
// next state Redo returns to.
type History struct {
	past    []Snapshot
	present Snapshot
	future  []Snapshot
	limit   int
}

// NewHistory returns an empty history keeping at most limit undo steps. A
// non-positive limit selects DefaultHistoryLimit.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

func (h *History) Present() Snapshot {
	return h.present
}

func (h *History) CanUndo() bool {
	return len(h.past) > 0
}

func (h *History) CanRedo() bool {
	return len(h.future) > 0
}

// Commit records s as the new present and discards any redo branch.
func (h *History) Commit(s Snapshot) {
	h.past = append(h.past, h.present)
	if len(h.past) > h.limit {
		h.past = append(h.past[:0], h.past[len(h.past)-h.limit:]...)
	}
	h.present = s
	h.future = nil
}

// Undo steps back one entry. It reports false when there is nothing to undo.
func (h *History) Undo() (Snapshot, bool) {
	if len(h.past) == 0 {
		return h.present, false
	}
	prev := h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	h.future = append(h.future, h.present)
	h.present = prev
	return h.present, true
}

func (h *History) Redo() (Snapshot, bool) {
	if len(h.future) == 0 {
		return h.present, false
	}
	next := h.future[len(h.future)-1]
	h.future = h.future[:len(h.future)-1]
	h.past = append(h.past, h.present)
	h.present = next
	return h.present, true
}

// Reset drops all entries and returns to an empty document.
func (h *History) Reset() {
	h.ResetTo(Snapshot{})
}

// ResetTo drops all entries and starts over from s.
func (h *History) ResetTo(s Snapshot) {
	h.past = nil
	h.future = nil
	h.present = s
}
