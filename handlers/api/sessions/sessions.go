package sessions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"meme-studio/core"
	"meme-studio/editor"
	"meme-studio/export"
	"meme-studio/fetch"
	"meme-studio/handlers/api/memes"
	"meme-studio/middleware"
	memerender "meme-studio/render"
)

// DefaultThumbnailWidth is used when ?width= is missing.
const DefaultThumbnailWidth = 300

type (
	// Fetcher downloads remote background images.
	Fetcher interface {
		Get(ctx context.Context, url string) (*fetch.Image, error)
	}

	CreateRequest struct {
		ImageURL string `json:"imageUrl"`
		MemeID   string `json:"memeId"`
	}

	ImageRequest struct {
		URL string `json:"url"`
	}

	SaveRequest struct {
		Name string `json:"name"`
	}

	SaveResponse struct {
		Meme     memes.Meme `json:"meme"`
		ShareURL string     `json:"shareUrl"`
	}

	HandlesResponse struct {
		Selected bool       `json:"selected"`
		Box      editor.Box `json:"box"`
	}
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, editor.ErrLayerNotFound), errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrNoImage), errors.Is(err, editor.ErrNoPendingEdit),
		errors.Is(err, memerender.ErrNoBackground):
		return http.StatusConflict
	case errors.Is(err, fetch.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, fetch.ErrTooLarge), errors.Is(err, core.ErrImageTooLarge),
		errors.Is(err, core.ErrStoredImageTooBig), errors.Is(err, core.ErrImageDimensions):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadRequest
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": err.Error()})
}

// session resolves {id} or writes a 404.
func session(reg *Registry, w http.ResponseWriter, r *http.Request) (*editor.Session, bool) {
	id := chi.URLParam(r, "id")
	s, ok := reg.Get(id)
	if !ok {
		logrus.WithField("session_id", id).Warn("Session not found")
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "Session not found"})
	}
	return s, ok
}

func fetchImage(ctx context.Context, client Fetcher, url string, stored bool) (*editor.Background, error) {
	remote, err := client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	decode := editor.DecodeImage
	if stored {
		decode = editor.DecodeStoredImage
	}
	img, _, err := decode(bytes.NewReader(remote.Data))
	if err != nil {
		return nil, err
	}
	return &editor.Background{Image: img, Source: url}, nil
}

// HandleCreate starts a session. The body may name a background image URL or
// a saved meme to reopen.
func HandleCreate(reg *Registry, client Fetcher, store core.MemeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": "Invalid JSON in request body"})
				return
			}
		}

		var (
			bg     *editor.Background
			layers []core.LayerRecord
		)
		switch {
		case req.MemeID != "":
			meme, err := store.Get(r.Context(), req.MemeID)
			if err != nil {
				logrus.WithFields(logrus.Fields{"meme_id": req.MemeID, "error": err}).Warn("Failed to reopen meme")
				if errors.Is(err, core.ErrNotFound) {
					writeError(w, r, http.StatusNotFound, err)
				} else {
					writeError(w, r, http.StatusInternalServerError, err)
				}
				return
			}
			if bg, err = fetchImage(r.Context(), client, meme.ImageURL, true); err != nil {
				writeError(w, r, statusFor(err), err)
				return
			}
			layers = meme.Layers
		case req.ImageURL != "":
			var err error
			if bg, err = fetchImage(r.Context(), client, req.ImageURL, false); err != nil {
				writeError(w, r, statusFor(err), err)
				return
			}
		}

		s := reg.Create()
		view := s.View()
		switch {
		case layers != nil:
			view = s.LoadDocument(bg.Image, bg.Source, editor.FromRecordLayers(layers, bg.ImageBounds()))
		case bg != nil:
			view = s.LoadImage(bg.Image, bg.Source)
		}
		logrus.WithFields(logrus.Fields{
			"session_id": s.ID(),
			"meme_id":    req.MemeID,
			"sessions":   reg.Len(),
		}).Info("Session created")

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, view)
	}
}

func HandleGet(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		render.JSON(w, r, s.View())
	}
}

func HandleDelete(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !reg.Delete(id) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Session not found"})
			return
		}
		logrus.WithField("session_id", id).Info("Session closed")
		render.JSON(w, r, map[string]bool{"success": true})
	}
}

// HandleLoadImage sets the background from a multipart "image" field, a JSON
// {"url"} body or the raw request body.
func HandleLoadImage(reg *Registry, client Fetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}

		var (
			bg  *editor.Background
			err error
		)
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch mediaType {
		case "application/json":
			var req ImageRequest
			if err = json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": "Image url is required"})
				return
			}
			bg, err = fetchImage(r.Context(), client, req.URL, false)
		case "multipart/form-data":
			r.Body = http.MaxBytesReader(w, r.Body, core.MaxImageSize+1<<20)
			file, header, ferr := r.FormFile("image")
			if ferr != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": "Image file is required"})
				return
			}
			defer file.Close()
			img, _, derr := editor.DecodeImage(file)
			bg, err = &editor.Background{Image: img, Source: header.Filename}, derr
		default:
			img, _, derr := editor.DecodeImage(r.Body)
			bg, err = &editor.Background{Image: img}, derr
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{"session_id": s.ID(), "error": err}).Warn("Failed to load image")
			writeError(w, r, statusFor(err), err)
			return
		}

		render.JSON(w, r, s.LoadImage(bg.Image, bg.Source))
	}
}

// HandleCommand applies one editor command and returns the resulting view.
func HandleCommand(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		var cmd editor.Command
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid JSON in request body"})
			return
		}

		view, err := s.Apply(cmd)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"session_id": s.ID(),
				"command":    cmd.Type,
				"error":      err,
			}).Warn("Command rejected")
			writeError(w, r, statusFor(err), err)
			return
		}
		render.JSON(w, r, view)
	}
}

// HandleHandles returns the transform box of the selected layer.
func HandleHandles(reg *Registry, m editor.Measurer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		box, selected := s.Handles(m)
		render.JSON(w, r, HandlesResponse{Selected: selected, Box: box})
	}
}

// HandleExport renders the session and sends it as a PNG download.
func HandleExport(reg *Registry, pipeline *export.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		data, err := pipeline.RenderToImage(s)
		if err != nil {
			logrus.WithFields(logrus.Fields{"session_id": s.ID(), "error": err}).Warn("Export failed")
			writeError(w, r, statusFor(err), err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", pipeline.DownloadFilename()))
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

// HandleThumbnail renders a small preview without marking the session
// exported.
func HandleThumbnail(reg *Registry, renderer *memerender.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		width := DefaultThumbnailWidth
		if v := r.URL.Query().Get("width"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": "width must be a positive number"})
				return
			}
			width = n
		}

		img, err := renderer.Render(s.Scene())
		if err != nil {
			writeError(w, r, statusFor(err), err)
			return
		}
		var buf bytes.Buffer
		if err := memerender.EncodePNG(&buf, memerender.Thumbnail(img, width)); err != nil {
			writeError(w, r, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(buf.Bytes())
	}
}

// HandleSave uploads the rendered session and stores it as the caller's meme.
func HandleSave(reg *Registry, pipeline *export.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Please sign in to save memes"})
			return
		}
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		var req SaveRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": "Invalid JSON in request body"})
				return
			}
		}

		record, err := pipeline.UploadAndPersist(r.Context(), s, claims.Subject, req.Name)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"session_id": s.ID(),
				"user_id":    claims.Subject,
				"error":      err,
			}).Error("Failed to save meme")
			status := http.StatusBadGateway
			switch {
			case errors.Is(err, memerender.ErrNoBackground):
				status = http.StatusConflict
			case errors.Is(err, core.ErrStoredImageTooBig):
				status = http.StatusRequestEntityTooLarge
			}
			writeError(w, r, status, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, SaveResponse{Meme: memes.PublicMeme(record), ShareURL: pipeline.ShareLink(record)})
	}
}
