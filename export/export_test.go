package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"math/rand"
	"strings"
	"testing"
	"time"

	"meme-studio/core"
	"meme-studio/editor"
	imagememory "meme-studio/imagestores/memory"
	"meme-studio/render"
)

type mockImageStore struct {
	uploads   [][]byte
	deleted   []string
	uploadErr error
	deleteErr error
	result    core.StoredImage
}

func (m *mockImageStore) Upload(ctx context.Context, data []byte, title string) (*core.StoredImage, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	m.uploads = append(m.uploads, data)
	result := m.result
	return &result, nil
}

func (m *mockImageStore) Delete(ctx context.Context, handle string) error {
	m.deleted = append(m.deleted, handle)
	return m.deleteErr
}

type mockMemeStore struct {
	core.MemeStore
	created   []*core.MemeRecord
	createErr error
}

func (m *mockMemeStore) Create(ctx context.Context, meme *core.MemeRecord) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	m.created = append(m.created, meme)
	return "meme-1", nil
}

func newTestPipeline(images core.ImageStore, memes core.MemeStore) *Pipeline {
	p := NewPipeline(render.NewRenderer(1, nil), images, memes, "https://memes.example.com/")
	p.now = func() time.Time { return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC) }
	return p
}

func loadedSession() *editor.Session {
	s := editor.NewSession("s1")
	s.LoadImage(image.NewRGBA(image.Rect(0, 0, 400, 300)), "bg")
	s.AddTextLayer("hello")
	return s
}

func TestRenderToImage(t *testing.T) {
	p := newTestPipeline(nil, nil)
	s := loadedSession()

	data, err := p.RenderToImage(s)
	if err != nil {
		t.Fatalf("RenderToImage() failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 800 {
		t.Errorf("width: got %d, want 800", img.Bounds().Dx())
	}
	if s.View().State != editor.StateExported {
		t.Errorf("session state: %s", s.View().State)
	}
}

func TestRenderToImage_NoBackground(t *testing.T) {
	p := newTestPipeline(nil, nil)
	s := editor.NewSession("empty")

	if _, err := p.RenderToImage(s); !errors.Is(err, render.ErrNoBackground) {
		t.Fatalf("expected ErrNoBackground, got %v", err)
	}
	if s.View().State != editor.StateEmpty {
		t.Error("failed export should not change state")
	}
}

func TestUploadAndPersist(t *testing.T) {
	images := &mockImageStore{result: core.StoredImage{URL: "https://x/1.png", DeleteHandle: "h1"}}
	memes := &mockMemeStore{}
	p := newTestPipeline(images, memes)

	record, err := p.UploadAndPersist(context.Background(), loadedSession(), "user-1", "Test")
	if err != nil {
		t.Fatalf("UploadAndPersist() failed: %v", err)
	}
	if record.ImageURL != "https://x/1.png" || record.DeleteHandle != "h1" {
		t.Errorf("record: %+v", record)
	}
	if record.ID != "meme-1" || record.Name != "Test" || record.CreatedBy != "user-1" {
		t.Errorf("record metadata: %+v", record)
	}
	if len(record.Layers) != 1 || record.Layers[0].Text != "hello" {
		t.Errorf("record layers: %+v", record.Layers)
	}
	if len(images.uploads) != 1 || len(memes.created) != 1 {
		t.Errorf("expected one upload and one record, got %d and %d", len(images.uploads), len(memes.created))
	}
}

func TestUploadAndPersist_DefaultName(t *testing.T) {
	memes := &mockMemeStore{}
	p := newTestPipeline(&mockImageStore{}, memes)

	record, err := p.UploadAndPersist(context.Background(), loadedSession(), "u", "")
	if err != nil {
		t.Fatalf("UploadAndPersist() failed: %v", err)
	}
	if record.Name != "Meme 2024-03-09" {
		t.Errorf("default name: got %q", record.Name)
	}
}

func TestUploadAndPersist_RenderFailureSkipsUpload(t *testing.T) {
	images := &mockImageStore{}
	p := newTestPipeline(images, &mockMemeStore{})

	_, err := p.UploadAndPersist(context.Background(), editor.NewSession("empty"), "u", "x")
	if !errors.Is(err, render.ErrNoBackground) {
		t.Fatalf("expected ErrNoBackground, got %v", err)
	}
	if len(images.uploads) != 0 {
		t.Error("nothing should be uploaded when rendering fails")
	}
}

func TestUploadAndPersist_UploadFailure(t *testing.T) {
	images := &mockImageStore{uploadErr: errors.New("provider says no")}
	memes := &mockMemeStore{}
	p := newTestPipeline(images, memes)
	s := loadedSession()

	_, err := p.UploadAndPersist(context.Background(), s, "u", "x")
	if err == nil || !strings.Contains(err.Error(), "provider says no") {
		t.Fatalf("provider error should be surfaced, got %v", err)
	}
	if len(memes.created) != 0 {
		t.Error("no record should be written after a failed upload")
	}
	if state := s.View().State; state == editor.StateExported {
		t.Errorf("failed save left the session %s", state)
	}
}

func TestUploadAndPersist_RecordFailureRemovesImage(t *testing.T) {
	images := &mockImageStore{result: core.StoredImage{URL: "https://x/1.png", DeleteHandle: "h1"}}
	memes := &mockMemeStore{createErr: errors.New("db down")}
	p := newTestPipeline(images, memes)

	if _, err := p.UploadAndPersist(context.Background(), loadedSession(), "u", "x"); err == nil {
		t.Fatal("expected an error")
	}
	if len(images.deleted) != 1 || images.deleted[0] != "h1" {
		t.Errorf("uploaded image should be deleted, got %v", images.deleted)
	}
}

func TestUploadAndPersist_MarksExportedAfterSave(t *testing.T) {
	p := newTestPipeline(&mockImageStore{}, &mockMemeStore{})
	s := loadedSession()

	if _, err := p.UploadAndPersist(context.Background(), s, "u", "x"); err != nil {
		t.Fatal(err)
	}
	if state := s.View().State; state != editor.StateExported {
		t.Errorf("state: got %s, want %s", state, editor.StateExported)
	}
}

type sizeRecorder struct {
	core.ImageStore
	sizes []int
}

func (r *sizeRecorder) Upload(ctx context.Context, data []byte, title string) (*core.StoredImage, error) {
	stored, err := r.ImageStore.Upload(ctx, data, title)
	if err == nil {
		r.sizes = append(r.sizes, len(data))
	}
	return stored, err
}

// noiseImage is a background whose PNG export compresses badly.
func noiseImage(w, h int) *image.RGBA {
	rng := rand.New(rand.NewSource(7))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(rng.Intn(256))
		img.Pix[i+1] = uint8(rng.Intn(256))
		img.Pix[i+2] = uint8(rng.Intn(256))
		img.Pix[i+3] = 0xff
	}
	return img
}

func TestUploadAndPersist_ExportLargerThanUploadLimit(t *testing.T) {
	images := &sizeRecorder{ImageStore: imagememory.NewStore("https://memes.example.com")}
	memes := &mockMemeStore{}
	p := NewPipeline(render.NewRenderer(render.DefaultPixelRatio, nil), images, memes, "https://memes.example.com")

	s := editor.NewSession("noisy")
	s.LoadImage(noiseImage(1600, 1200), "noise")
	s.AddTextLayer("loud")

	if _, err := p.UploadAndPersist(context.Background(), s, "u", "noise"); err != nil {
		t.Fatalf("UploadAndPersist() failed: %v", err)
	}
	if len(images.sizes) != 1 || images.sizes[0] <= core.MaxImageSize {
		t.Fatalf("upload sizes %v, expected one export above the upload limit", images.sizes)
	}
}

func TestDownload(t *testing.T) {
	p := newTestPipeline(nil, nil)

	var buf bytes.Buffer
	if err := p.DownloadLocal(loadedSession(), &buf); err != nil {
		t.Fatalf("DownloadLocal() failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("download should be PNG data")
	}
	if got := p.DownloadFilename(); got != "meme-1709985600000.png" {
		t.Errorf("filename: got %q", got)
	}
}

func TestShareLinks(t *testing.T) {
	p := newTestPipeline(nil, nil)
	record := &core.MemeRecord{ID: "abc123"}

	if got := p.ShareLink(record); got != "https://memes.example.com/meme/abc123" {
		t.Errorf("ShareLink() = %q", got)
	}

	links := p.SocialLinks(record, "my meme")
	if !strings.HasPrefix(links.Twitter, "https://twitter.com/intent/tweet?text=my+meme&url=https%3A%2F%2Fmemes.example.com%2Fmeme%2Fabc123") {
		t.Errorf("twitter link: %s", links.Twitter)
	}
	if links.Facebook != "https://www.facebook.com/sharer/sharer.php?u=https%3A%2F%2Fmemes.example.com%2Fmeme%2Fabc123" {
		t.Errorf("facebook link: %s", links.Facebook)
	}
}
