package imgur

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"meme-studio/core"
)

// DefaultAPIURL is the Imgur v3 API root.
const DefaultAPIURL = "https://api.imgur.com/3"

const defaultTitle = "Meme Upload"

// ErrProvider wraps every error reported by Imgur itself.
var ErrProvider = errors.New("imgur")

type imgurStore struct {
	client   *http.Client
	apiURL   string
	clientID string
}

// NewStore creates an Imgur-backed image store authenticating with an
// anonymous Client-ID.
func NewStore(clientID, apiURL string) *imgurStore {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &imgurStore{
		client:   &http.Client{Timeout: 30 * time.Second},
		apiURL:   strings.TrimRight(apiURL, "/"),
		clientID: clientID,
	}
}

// envelope is Imgur's response wrapper. data is an object for uploads and
// failures but a bare boolean for successful deletes.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
	Status  int             `json:"status"`
}

type imageData struct {
	Link       string `json:"link"`
	DeleteHash string `json:"deletehash"`
}

// errorMessage extracts data.error, which is a string on most failures and
// an object on some.
func (e *envelope) errorMessage() string {
	var data struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(e.Data, &data) != nil || len(data.Error) == 0 {
		return ""
	}
	raw := data.Error
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &obj) == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}

func (s *imgurStore) do(req *http.Request, fallback string) (*envelope, error) {
	req.Header.Set("Authorization", "Client-ID "+s.clientID)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.errorMessage()
		if decodeErr != nil || msg == "" {
			msg = fallback
		}
		return nil, fmt.Errorf("%w: %s (status %d)", ErrProvider, msg, resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: invalid response: %v", ErrProvider, decodeErr)
	}
	return &env, nil
}

func (s *imgurStore) Upload(ctx context.Context, data []byte, title string) (*core.StoredImage, error) {
	if _, err := core.ValidateStoredImage(data); err != nil {
		return nil, err
	}
	if title == "" {
		title = defaultTitle
	}
	body, err := json.Marshal(map[string]string{
		"image": base64.StdEncoding.EncodeToString(data),
		"title": title,
		"type":  "base64",
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/image", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	env, err := s.do(req, "Failed to upload to Imgur")
	if err != nil {
		logrus.WithError(err).Error("Imgur upload failed")
		return nil, err
	}
	var img imageData
	if err := json.Unmarshal(env.Data, &img); err != nil || img.Link == "" || img.DeleteHash == "" {
		return nil, fmt.Errorf("%w: response is missing link or deletehash", ErrProvider)
	}
	logrus.WithField("url", img.Link).Info("Image uploaded to Imgur")
	return &core.StoredImage{URL: img.Link, DeleteHandle: img.DeleteHash}, nil
}

func (s *imgurStore) Delete(ctx context.Context, handle string) error {
	if handle == "" {
		return fmt.Errorf("delete hash is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.apiURL+"/image/"+url.PathEscape(handle), nil)
	if err != nil {
		return err
	}
	if _, err := s.do(req, "Failed to delete from Imgur"); err != nil {
		logrus.WithFields(logrus.Fields{"error": err, "delete_hash": handle}).Error("Imgur delete failed")
		return err
	}
	return nil
}
