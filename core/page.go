package core

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidPageToken = errors.New("invalid page token")

// Cursor marks the last record of a page. Records are ordered by CreatedAt and
// then by ID so the position is unique even for equal timestamps.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

func EncodeCursor(m *MemeRecord) string {
	raw := strconv.FormatInt(m.CreatedAt.UnixNano(), 10) + ":" + m.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	nanos, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return Cursor{}, ErrInvalidPageToken
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	return Cursor{CreatedAt: time.Unix(0, n).UTC(), ID: id}, nil
}

// After reports whether m sorts strictly after the cursor position in the
// given order, i.e. whether it belongs on a following page.
func (c Cursor) After(m *MemeRecord, order SortOrder) bool {
	cmp := compareRecord(m, c.CreatedAt, c.ID)
	if order == SortOldest {
		return cmp > 0
	}
	return cmp < 0
}

func compareRecord(m *MemeRecord, createdAt time.Time, id string) int {
	switch {
	case m.CreatedAt.Before(createdAt):
		return -1
	case m.CreatedAt.After(createdAt):
		return 1
	}
	return strings.Compare(m.ID, id)
}

// SortMemes orders records in place for the given order.
func SortMemes(memes []*MemeRecord, order SortOrder) {
	sort.SliceStable(memes, func(i, j int) bool {
		cmp := compareRecord(memes[i], memes[j].CreatedAt, memes[j].ID)
		if order == SortOldest {
			return cmp < 0
		}
		return cmp > 0
	})
}

// Paginate applies a query to an unfiltered, unsorted record set. Stores that
// cannot query natively (memory, filesystem) share it.
func Paginate(all []*MemeRecord, query MemeQuery) (*MemePage, error) {
	query = query.Normalize()

	filtered := make([]*MemeRecord, 0, len(all))
	for _, m := range all {
		if query.Owner != "" && m.CreatedBy != query.Owner {
			continue
		}
		filtered = append(filtered, m)
	}
	SortMemes(filtered, query.Order)

	start := 0
	if query.PageToken != "" {
		cursor, err := DecodeCursor(query.PageToken)
		if err != nil {
			return nil, err
		}
		start = len(filtered)
		for i, m := range filtered {
			if cursor.After(m, query.Order) {
				start = i
				break
			}
		}
	}

	end := start + query.PageSize
	page := &MemePage{Memes: []*MemeRecord{}}
	if end < len(filtered) {
		page.Memes = append(page.Memes, filtered[start:end]...)
		page.NextPageToken = EncodeCursor(filtered[end-1])
	} else {
		page.Memes = append(page.Memes, filtered[start:]...)
	}
	return page, nil
}
