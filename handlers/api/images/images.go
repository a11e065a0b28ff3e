package images

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"meme-studio/core"
	"meme-studio/middleware"
)

type (
	UploadRequest struct {
		Image string `json:"image"`
		Title string `json:"title"`
	}

	UploadResponse struct {
		URL          string `json:"url"`
		DeleteHandle string `json:"deleteHandle"`
	}

	// legacyUploadResponse keeps the field name older clients read.
	legacyUploadResponse struct {
		URL        string `json:"url"`
		DeleteHash string `json:"deleteHash"`
	}
)

// DecodeImage accepts plain base64 or a data URL.
func DecodeImage(s string) ([]byte, error) {
	if i := strings.Index(s, ","); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, core.ErrInvalidImage
	}
	return data, nil
}

func uploadStatus(err error) int {
	if errors.Is(err, core.ErrInvalidImage) || errors.Is(err, core.ErrImageTooLarge) || errors.Is(err, core.ErrStoredImageTooBig) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func upload(store core.ImageStore, legacy bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UploadRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 2*core.MaxImageSize)).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid JSON in request body"})
			return
		}
		if req.Image == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "No image provided"})
			return
		}

		data, err := DecodeImage(req.Image)
		if err == nil {
			_, err = core.ValidateImage(data)
		}
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}

		stored, err := store.Upload(r.Context(), data, req.Title)
		if err != nil {
			fields := logrus.Fields{"error": err, "size": len(data)}
			if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
				fields["user_id"] = claims.Subject
			}
			logrus.WithFields(fields).Error("Failed to upload image")
			render.Status(r, uploadStatus(err))
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}

		if legacy {
			render.JSON(w, r, legacyUploadResponse{URL: stored.URL, DeleteHash: stored.DeleteHandle})
			return
		}
		render.JSON(w, r, UploadResponse{URL: stored.URL, DeleteHandle: stored.DeleteHandle})
	}
}

func remove(store core.ImageStore, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle := r.URL.Query().Get(param)
		if handle == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "No " + param + " provided"})
			return
		}

		if err := store.Delete(r.Context(), handle); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":         err,
				"delete_handle": handle,
			}).Error("Failed to delete image")
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}
		render.JSON(w, r, map[string]bool{"success": true})
	}
}

// HandleUpload stores a base64 image and returns its URL and delete handle.
func HandleUpload(store core.ImageStore) http.HandlerFunc {
	return upload(store, false)
}

// HandleDelete removes an image by ?deleteHandle=.
func HandleDelete(store core.ImageStore) http.HandlerFunc {
	return remove(store, "deleteHandle")
}

// HandleLegacyUpload answers with deleteHash instead of deleteHandle.
func HandleLegacyUpload(store core.ImageStore) http.HandlerFunc {
	return upload(store, true)
}

// HandleLegacyDelete reads the handle from ?deleteHash=.
func HandleLegacyDelete(store core.ImageStore) http.HandlerFunc {
	return remove(store, "deleteHash")
}
