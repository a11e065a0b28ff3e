package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"meme-studio/core"
	"meme-studio/editor"
	"meme-studio/render"
)

// DefaultShareText is used for social links when no title is given.
const DefaultShareText = "Check out this meme made with Meme Studio!"

// Document is the part of an editing session the pipeline reads.
type Document interface {
	Scene() editor.Scene
	MarkExported() editor.View
}

// SocialLinks are prefilled share intents for a persisted meme.
type SocialLinks struct {
	Twitter  string `json:"twitter"`
	Facebook string `json:"facebook"`
}

// Pipeline turns editing sessions into images and persisted memes.
type Pipeline struct {
	renderer *render.Renderer
	images   core.ImageStore
	memes    core.MemeStore
	baseURL  string
	now      func() time.Time
}

func NewPipeline(renderer *render.Renderer, images core.ImageStore, memes core.MemeStore, baseURL string) *Pipeline {
	return &Pipeline{
		renderer: renderer,
		images:   images,
		memes:    memes,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      time.Now,
	}
}

// RenderToImage returns the session as PNG data and marks it exported.
func (p *Pipeline) RenderToImage(doc Document) ([]byte, error) {
	data, _, err := p.render(doc)
	if err != nil {
		return nil, err
	}
	doc.MarkExported()
	return data, nil
}

func (p *Pipeline) render(doc Document) ([]byte, editor.Scene, error) {
	scene := doc.Scene()
	img, err := p.renderer.Render(scene)
	if err != nil {
		return nil, scene, err
	}
	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, img); err != nil {
		return nil, scene, err
	}
	return buf.Bytes(), scene, nil
}

// DownloadLocal writes the rendered PNG to w.
func (p *Pipeline) DownloadLocal(doc Document, w io.Writer) error {
	data, err := p.RenderToImage(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (p *Pipeline) DownloadFilename() string {
	return fmt.Sprintf("meme-%d.png", p.now().UnixMilli())
}

// DefaultName is the name given to memes saved without one.
func (p *Pipeline) DefaultName() string {
	return "Meme " + p.now().Format("2006-01-02")
}

// UploadAndPersist renders the session, uploads the image and stores a
// record pointing at it. When the record cannot be written the uploaded
// image is deleted again on a best-effort basis. The session is marked
// exported only once the record exists.
func (p *Pipeline) UploadAndPersist(ctx context.Context, doc Document, owner, name string) (*core.MemeRecord, error) {
	if name == "" {
		name = p.DefaultName()
	}
	data, scene, err := p.render(doc)
	if err != nil {
		return nil, err
	}

	stored, err := p.images.Upload(ctx, data, name)
	if err != nil {
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}

	record := &core.MemeRecord{
		Name:         name,
		ImageURL:     stored.URL,
		DeleteHandle: stored.DeleteHandle,
		CreatedAt:    p.now().UTC(),
		CreatedBy:    owner,
		Layers:       editor.ToRecordLayers(scene.Layers, scene.Bounds),
	}
	id, err := p.memes.Create(ctx, record)
	if err != nil {
		log := logrus.WithFields(logrus.Fields{
			"error":     err,
			"image_url": stored.URL,
			"user_id":   owner,
		})
		if derr := p.images.Delete(ctx, stored.DeleteHandle); derr != nil {
			log.WithField("delete_error", derr).Error("Failed to save meme record, uploaded image is orphaned")
		} else {
			log.Warn("Failed to save meme record, uploaded image removed")
		}
		return nil, fmt.Errorf("failed to save meme: %w", err)
	}
	record.ID = id
	doc.MarkExported()

	logrus.WithFields(logrus.Fields{
		"meme_id": id,
		"user_id": owner,
		"size":    len(data),
	}).Info("Meme saved")
	return record, nil
}

// ShareLink is the public viewer URL of a saved meme.
func (p *Pipeline) ShareLink(record *core.MemeRecord) string {
	return p.baseURL + "/meme/" + url.PathEscape(record.ID)
}

func (p *Pipeline) SocialLinks(record *core.MemeRecord, title string) SocialLinks {
	if title == "" {
		title = DefaultShareText
	}
	link := url.QueryEscape(p.ShareLink(record))
	return SocialLinks{
		Twitter:  "https://twitter.com/intent/tweet?text=" + url.QueryEscape(title) + "&url=" + link,
		Facebook: "https://www.facebook.com/sharer/sharer.php?u=" + link,
	}
}
