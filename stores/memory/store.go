package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"meme-studio/core"
)

// memStore keeps meme records in a map. Records are cloned on the way in and
// out so callers never share memory with the store.
type memStore struct {
	mu    sync.RWMutex
	memes map[string]*core.MemeRecord
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{memes: make(map[string]*core.MemeRecord)}
}

func (s *memStore) Create(ctx context.Context, meme *core.MemeRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := meme.Clone()
	if record.ID == "" {
		record.ID = ulid.Make().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if _, exists := s.memes[record.ID]; exists {
		return "", fmt.Errorf("meme with id %s already exists", record.ID)
	}
	s.memes[record.ID] = record

	logrus.WithFields(logrus.Fields{
		"meme_id": record.ID,
		"user_id": record.CreatedBy,
	}).Info("Meme created successfully")
	return record.ID, nil
}

func (s *memStore) Get(ctx context.Context, id string) (*core.MemeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meme, ok := s.memes[id]
	if !ok {
		logrus.WithField("meme_id", id).Warn("Meme with specified ID not found")
		return nil, fmt.Errorf("meme %s: %w", id, core.ErrNotFound)
	}
	return meme.Clone(), nil
}

func (s *memStore) List(ctx context.Context, query core.MemeQuery) (*core.MemePage, error) {
	s.mu.RLock()
	all := make([]*core.MemeRecord, 0, len(s.memes))
	for _, m := range s.memes {
		all = append(all, m.Clone())
	}
	s.mu.RUnlock()

	page, err := core.Paginate(all, query)
	if err != nil {
		return nil, err
	}
	logrus.WithField("owner", query.Owner).Debugf("Listed %d memes", len(page.Memes))
	return page, nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.memes[id]; !ok {
		return fmt.Errorf("meme %s: %w", id, core.ErrNotFound)
	}
	delete(s.memes, id)
	logrus.WithField("meme_id", id).Info("Meme deleted successfully")
	return nil
}

func (s *memStore) IncrementLikes(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meme, ok := s.memes[id]
	if !ok {
		return 0, fmt.Errorf("meme %s: %w", id, core.ErrNotFound)
	}
	meme.Likes++
	return meme.Likes, nil
}

func (s *memStore) IncrementViews(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meme, ok := s.memes[id]
	if !ok {
		return fmt.Errorf("meme %s: %w", id, core.ErrNotFound)
	}
	meme.Views++
	return nil
}
