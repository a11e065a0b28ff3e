package proxy

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"meme-studio/fetch"
)

// Fetcher downloads remote images.
type Fetcher interface {
	Get(ctx context.Context, url string) (*fetch.Image, error)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, fetch.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, fetch.ErrNotAnImage):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, fetch.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadGateway
	}
}

// HandleImageProxy fetches ?url= server-side so the editor can draw remote
// images onto its canvas without tainting it.
func HandleImageProxy(client Fetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("url")
		if target == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "URL parameter is required"})
			return
		}

		img, err := client.Get(r.Context(), target)
		if err != nil {
			status := statusFor(err)
			entry := logrus.WithFields(logrus.Fields{"error": err, "url": target})
			if status == http.StatusBadGateway {
				entry.Error("Failed to proxy image")
			} else {
				entry.Warn("Rejected image proxy request")
			}
			render.Status(r, status)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", img.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.WriteHeader(http.StatusOK)
		w.Write(img.Data)
	}
}
