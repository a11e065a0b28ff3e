package core

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultPageSize matches the gallery grid: three rows of four.
	DefaultPageSize = 12
	MaxPageSize     = 50
)

var (
	ErrNotFound  = errors.New("meme not found")
	ErrForbidden = errors.New("meme belongs to another user")
)

type (
	// LayerRecord is the persisted form of a text layer. X, Y and Width are
	// percentages of the background image bounds, not canvas pixels.
	LayerRecord struct {
		Text        string  `json:"text"`
		X           float64 `json:"x"`
		Y           float64 `json:"y"`
		Width       float64 `json:"width,omitempty"`
		FontSize    float64 `json:"fontSize"`
		FontFamily  string  `json:"fontFamily"`
		Fill        string  `json:"fill"`
		Stroke      string  `json:"stroke,omitempty"`
		StrokeWidth float64 `json:"strokeWidth,omitempty"`
	}

	// MemeRecord is an exported meme as stored in the record store.
	MemeRecord struct {
		ID           string        `json:"id"`
		Name         string        `json:"name"`
		ImageURL     string        `json:"imageUrl"`
		DeleteHandle string        `json:"deleteHandle,omitempty"`
		CreatedAt    time.Time     `json:"createdAt"`
		CreatedBy    string        `json:"createdBy"`
		Layers       []LayerRecord `json:"layers"`
		Likes        int           `json:"likes"`
		Views        int           `json:"views"`
	}

	SortOrder string

	// MemeQuery selects one gallery page. An empty Owner lists every meme.
	MemeQuery struct {
		Owner     string
		Order     SortOrder
		PageToken string
		PageSize  int
	}

	MemePage struct {
		Memes         []*MemeRecord `json:"memes"`
		NextPageToken string        `json:"nextPageToken,omitempty"`
	}

	// MemeStore persists meme records. Implementations return errors wrapping
	// ErrNotFound for unknown ids.
	MemeStore interface {
		// Create stores a new record, assigning ID and CreatedAt when they are empty.
		Create(ctx context.Context, meme *MemeRecord) (string, error)
		Get(ctx context.Context, id string) (*MemeRecord, error)
		List(ctx context.Context, query MemeQuery) (*MemePage, error)
		Delete(ctx context.Context, id string) error
		IncrementLikes(ctx context.Context, id string) (int, error)
		IncrementViews(ctx context.Context, id string) error
	}
)

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

// ParseSortOrder falls back to newest-first for anything it does not know.
func ParseSortOrder(s string) SortOrder {
	if SortOrder(s) == SortOldest {
		return SortOldest
	}
	return SortNewest
}

// Normalize fills in defaults and clamps the page size.
func (q MemeQuery) Normalize() MemeQuery {
	if q.Order != SortOldest {
		q.Order = SortNewest
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

// Clone returns a deep copy so stores never hand out their own records.
func (m *MemeRecord) Clone() *MemeRecord {
	if m == nil {
		return nil
	}
	c := *m
	if m.Layers != nil {
		c.Layers = make([]LayerRecord, len(m.Layers))
		copy(c.Layers, m.Layers)
	}
	return &c
}
