package memes

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"meme-studio/core"
	"meme-studio/export"
	"meme-studio/gallery"
	"meme-studio/middleware"
)

type (
	// Meme is the public form of a record. The delete handle never leaves
	// the server.
	Meme struct {
		ID        string             `json:"id"`
		Name      string             `json:"name"`
		ImageURL  string             `json:"imageUrl"`
		CreatedAt time.Time          `json:"createdAt"`
		CreatedBy string             `json:"createdBy"`
		Layers    []core.LayerRecord `json:"layers"`
		Likes     int                `json:"likes"`
		Views     int                `json:"views"`
	}

	ListResponse struct {
		Memes         []Meme `json:"memes"`
		NextPageToken string `json:"nextPageToken,omitempty"`
	}

	ViewResponse struct {
		Meme     Meme               `json:"meme"`
		ShareURL string             `json:"shareUrl"`
		Social   export.SocialLinks `json:"social"`
	}

	// Linker builds share links for saved memes.
	Linker interface {
		ShareLink(record *core.MemeRecord) string
		SocialLinks(record *core.MemeRecord, title string) export.SocialLinks
	}
)

// PublicMeme strips server-only fields from a record.
func PublicMeme(m *core.MemeRecord) Meme {
	layers := m.Layers
	if layers == nil {
		layers = []core.LayerRecord{}
	}
	return Meme{
		ID:        m.ID,
		Name:      m.Name,
		ImageURL:  m.ImageURL,
		CreatedAt: m.CreatedAt,
		CreatedBy: m.CreatedBy,
		Layers:    layers,
		Likes:     m.Likes,
		Views:     m.Views,
	}
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error, fields logrus.Fields, action string) {
	fields["error"] = err
	switch {
	case errors.Is(err, core.ErrNotFound):
		logrus.WithFields(fields).Warn(action + ": meme not found")
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "Meme not found"})
	case errors.Is(err, core.ErrForbidden):
		logrus.WithFields(fields).Warn(action + ": not the owner")
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, map[string]string{"error": "You can only delete your own memes"})
	default:
		logrus.WithFields(fields).Error(action)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": action})
	}
}

// HandleListMemes serves one gallery page. filter=mine needs a valid token.
func HandleListMemes(svc *gallery.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query := core.MemeQuery{
			Order:     core.ParseSortOrder(q.Get("sort")),
			PageToken: q.Get("pageToken"),
		}
		if s := q.Get("pageSize"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": "pageSize must be a number"})
				return
			}
			query.PageSize = n
		}
		if q.Get("filter") == "mine" {
			claims, ok := middleware.ClaimsFromContext(r.Context())
			if !ok {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "Sign in to see your memes"})
				return
			}
			query.Owner = claims.Subject
		}

		page, err := svc.List(r.Context(), query)
		if err != nil {
			if errors.Is(err, core.ErrInvalidPageToken) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": err.Error()})
				return
			}
			writeStoreError(w, r, err, logrus.Fields{"owner": query.Owner}, "Failed to list memes")
			return
		}

		resp := ListResponse{Memes: make([]Meme, 0, len(page.Memes)), NextPageToken: page.NextPageToken}
		for _, m := range page.Memes {
			resp.Memes = append(resp.Memes, PublicMeme(m))
		}
		render.JSON(w, r, resp)
	}
}

// HandleGetMeme serves the viewer and counts the view.
func HandleGetMeme(svc *gallery.Service, links Linker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		meme, err := svc.View(r.Context(), id)
		if err != nil {
			writeStoreError(w, r, err, logrus.Fields{"meme_id": id}, "Failed to load meme")
			return
		}
		render.JSON(w, r, ViewResponse{
			Meme:     PublicMeme(meme),
			ShareURL: links.ShareLink(meme),
			Social:   links.SocialLinks(meme, meme.Name),
		})
	}
}

func HandleLikeMeme(svc *gallery.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		likes, err := svc.Like(r.Context(), id)
		if err != nil {
			writeStoreError(w, r, err, logrus.Fields{"meme_id": id}, "Failed to like meme")
			return
		}
		render.JSON(w, r, map[string]int{"likes": likes})
	}
}

// HandleDeleteMeme removes a meme and its hosted image. Owner only.
func HandleDeleteMeme(svc *gallery.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		id := chi.URLParam(r, "id")
		if err := svc.Delete(r.Context(), claims.Subject, id); err != nil {
			writeStoreError(w, r, err, logrus.Fields{"meme_id": id, "user_id": claims.Subject}, "Failed to delete meme")
			return
		}
		render.JSON(w, r, map[string]bool{"success": true})
	}
}
