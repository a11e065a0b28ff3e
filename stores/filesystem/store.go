package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"meme-studio/core"
)

// fsStore keeps one JSON file per meme under basePath.
type fsStore struct {
	basePath string
	// mu serializes read-modify-write of the counters.
	mu sync.Mutex
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

// memePath resolves id to a file inside basePath, rejecting ids that would
// escape it.
func (s *fsStore) memePath(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid meme id %q", id)
	}
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", err
	}
	p := filepath.Join(absBase, id+".json")
	if !strings.HasPrefix(p, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path: access denied")
	}
	return p, nil
}

func (s *fsStore) Create(ctx context.Context, meme *core.MemeRecord) (string, error) {
	record := meme.Clone()
	if record.ID == "" {
		record.ID = ulid.Make().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	path, err := s.memePath(record.ID)
	if err != nil {
		return "", err
	}
	log := logrus.WithFields(logrus.Fields{"meme_id": record.ID, "file_path": path})

	data, err := json.Marshal(record)
	if err != nil {
		log.WithError(err).Error("Failed to marshal meme")
		return "", err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		log.WithError(err).Error("Failed to create meme file")
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	log.Info("Meme created successfully")
	return record.ID, nil
}

func (s *fsStore) read(id string) (*core.MemeRecord, error) {
	path, err := s.memePath(id)
	if err != nil {
		return nil, fmt.Errorf("meme %s: %w", id, core.ErrNotFound)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("meme %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	var meme core.MemeRecord
	if err := json.Unmarshal(data, &meme); err != nil {
		return nil, fmt.Errorf("failed to unmarshal meme %s: %w", id, err)
	}
	return &meme, nil
}

func (s *fsStore) write(meme *core.MemeRecord) error {
	path, err := s.memePath(meme.ID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(meme)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *fsStore) Get(ctx context.Context, id string) (*core.MemeRecord, error) {
	meme, err := s.read(id)
	if err != nil {
		logrus.WithFields(logrus.Fields{"meme_id": id, "error": err}).Warn("Failed to read meme")
		return nil, err
	}
	return meme, nil
}

func (s *fsStore) List(ctx context.Context, query core.MemeQuery) (*core.MemePage, error) {
	files, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, err
	}

	all := make([]*core.MemeRecord, 0, len(files))
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		meme, err := s.read(strings.TrimSuffix(file.Name(), ".json"))
		if err != nil {
			logrus.WithError(err).Warnf("Failed to read meme file %s, skipping", file.Name())
			continue
		}
		all = append(all, meme)
	}
	return core.Paginate(all, query)
}

func (s *fsStore) Delete(ctx context.Context, id string) error {
	path, err := s.memePath(id)
	if err != nil {
		return fmt.Errorf("meme %s: %w", id, core.ErrNotFound)
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("meme %s: %w", id, core.ErrNotFound)
		}
		logrus.WithFields(logrus.Fields{"meme_id": id, "error": err}).Error("Failed to delete meme file")
		return err
	}
	logrus.WithField("meme_id", id).Info("Meme deleted successfully")
	return nil
}

func (s *fsStore) IncrementLikes(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meme, err := s.read(id)
	if err != nil {
		return 0, err
	}
	meme.Likes++
	if err := s.write(meme); err != nil {
		return 0, err
	}
	return meme.Likes, nil
}

func (s *fsStore) IncrementViews(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meme, err := s.read(id)
	if err != nil {
		return err
	}
	meme.Views++
	return s.write(meme)
}
