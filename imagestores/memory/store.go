package memory

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"meme-studio/core"
)

type image struct {
	data        []byte
	contentType string
}

// memStore hosts images in memory and serves them itself. The delete handle
// is the image name.
type memStore struct {
	mu      sync.RWMutex
	images  map[string]image
	baseURL string
}

// NewStore creates an in-memory image store whose URLs start with
// baseURL + "/media/".
func NewStore(baseURL string) *memStore {
	return &memStore{
		images:  make(map[string]image),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *memStore) Upload(ctx context.Context, data []byte, title string) (*core.StoredImage, error) {
	contentType, err := core.ValidateStoredImage(data)
	if err != nil {
		return nil, err
	}
	name := strings.ToLower(ulid.Make().String()) + core.ImageExtension(contentType)

	buf := make([]byte, len(data))
	copy(buf, data)
	s.mu.Lock()
	s.images[name] = image{data: buf, contentType: contentType}
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{"name": name, "title": title, "size": len(data)}).Info("Image stored in memory")
	return &core.StoredImage{URL: s.baseURL + "/media/" + name, DeleteHandle: name}, nil
}

func (s *memStore) Delete(ctx context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.images[handle]; !ok {
		return fmt.Errorf("image %s not found", handle)
	}
	delete(s.images, handle)
	return nil
}

// ServeHTTP serves stored images by the last path segment.
func (s *memStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	img, ok := s.images[path.Base(r.URL.Path)]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", img.contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Write(img.data)
}
