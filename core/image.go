package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

const (
	// MaxImageSize is the largest payload accepted from a user, either as an
	// upload or as an editor background.
	MaxImageSize = 5 * 1024 * 1024
	// MaxStoredImageSize is the largest payload an image store accepts.
	// Rendered exports are bigger than their source image.
	MaxStoredImageSize = 20 * 1024 * 1024

	// MaxImageDimension and MaxImagePixels bound the decoded size of a
	// background image.
	MaxImageDimension = 10000
	MaxImagePixels    = 40_000_000
)

var (
	ErrInvalidImage      = errors.New("please upload a valid image (PNG, JPG, GIF, WebP)")
	ErrImageTooLarge     = errors.New("image must not exceed 5MB")
	ErrStoredImageTooBig = errors.New("image must not exceed 20MB")
	ErrImageDimensions   = errors.New("image dimensions are too large")
)

var allowedImageTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type (
	// StoredImage is what an image host hands back after an upload.
	StoredImage struct {
		URL          string `json:"url"`
		DeleteHandle string `json:"deleteHandle"`
	}

	// ImageStore hosts exported images. The delete handle returned by Upload
	// is the only thing needed to remove the image again.
	ImageStore interface {
		Upload(ctx context.Context, data []byte, title string) (*StoredImage, error)
		Delete(ctx context.Context, deleteHandle string) error
	}
)

// ValidateImage rejects user payloads before any network call is made. It
// returns the sniffed content type on success.
func ValidateImage(data []byte) (string, error) {
	if len(data) > MaxImageSize {
		return "", ErrImageTooLarge
	}
	return validateContent(data)
}

// ValidateStoredImage is the check image stores apply. It allows rendered
// exports up to MaxStoredImageSize.
func ValidateStoredImage(data []byte) (string, error) {
	if len(data) > MaxStoredImageSize {
		return "", ErrStoredImageTooBig
	}
	return validateContent(data)
}

func validateContent(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}
	contentType := http.DetectContentType(data)
	if _, ok := allowedImageTypes[contentType]; !ok {
		return "", fmt.Errorf("%w: got %s", ErrInvalidImage, contentType)
	}
	return contentType, nil
}

// ValidateDimensions rejects images whose decoded size exceeds the pixel
// limits.
func ValidateDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	if width > MaxImageDimension || height > MaxImageDimension || width*height > MaxImagePixels {
		return fmt.Errorf("%w: %dx%d", ErrImageDimensions, width, height)
	}
	return nil
}

// ImageExtension maps a content type accepted by ValidateImage to a file suffix.
func ImageExtension(contentType string) string {
	if ext, ok := allowedImageTypes[contentType]; ok {
		return ext
	}
	return ".bin"
}
