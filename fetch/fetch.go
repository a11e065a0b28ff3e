package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultMaxBytes = 10 * 1024 * 1024
	DefaultTimeout  = 30 * time.Second
)

var (
	ErrInvalidURL = errors.New("invalid image url")
	ErrNotAnImage = errors.New("url does not point to an image")
	ErrTooLarge   = errors.New("remote image is too large")
	ErrUpstream   = errors.New("failed to fetch image")
)

// Image is a fetched remote image.
type Image struct {
	Data        []byte
	ContentType string
}

// Client fetches remote images for the canvas so their pixels can be read
// without cross-origin restrictions.
type Client struct {
	http     *http.Client
	maxBytes int64
}

func NewClient() *Client {
	return &Client{
		http:     &http.Client{Timeout: DefaultTimeout},
		maxBytes: DefaultMaxBytes,
	}
}

// ParseURL accepts absolute http and https URLs only.
func ParseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: only http and https urls are allowed", ErrInvalidURL)
	}
	return u, nil
}

// Get downloads an image. The upstream content type must be image/*.
func (c *Client) Get(ctx context.Context, raw string) (*Image, error) {
	u, err := ParseURL(raw)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: upstream returned %d", ErrUpstream, resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, fmt.Errorf("%w: got %q", ErrNotAnImage, contentType)
	}
	if resp.ContentLength > c.maxBytes {
		return nil, ErrTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, ErrTooLarge
	}
	return &Image{Data: data, ContentType: contentType}, nil
}
