package filesystem

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"meme-studio/core"
)

// fsStore writes images to a directory and serves them at baseURL/media/.
// The delete handle is the file name.
type fsStore struct {
	basePath string
	baseURL  string
}

// NewStore creates a new filesystem-based image store.
func NewStore(basePath, baseURL string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create media directory: %v", err)
	}
	return &fsStore{basePath: basePath, baseURL: strings.TrimRight(baseURL, "/")}
}

func validName(name string) bool {
	return name != "" && name == filepath.Base(name) && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

func (s *fsStore) Upload(ctx context.Context, data []byte, title string) (*core.StoredImage, error) {
	contentType, err := core.ValidateStoredImage(data)
	if err != nil {
		return nil, err
	}
	name := strings.ToLower(ulid.Make().String()) + core.ImageExtension(contentType)
	filePath := filepath.Join(s.basePath, name)
	log := logrus.WithFields(logrus.Fields{"file_path": filePath, "title": title})

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write image")
		return nil, err
	}
	log.Info("Image stored")
	return &core.StoredImage{URL: s.baseURL + "/media/" + name, DeleteHandle: name}, nil
}

func (s *fsStore) Delete(ctx context.Context, handle string) error {
	if !validName(handle) {
		return fmt.Errorf("invalid delete handle %q", handle)
	}
	err := os.Remove(filepath.Join(s.basePath, handle))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("image %s not found", handle)
	}
	return err
}

func (s *fsStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := path.Base(r.URL.Path)
	if !validName(name) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeFile(w, r, filepath.Join(s.basePath, name))
}
