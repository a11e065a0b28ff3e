package editor

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/webp"

	"meme-studio/core"
)

// DecodeImage validates and decodes a user supplied background image. It
// accepts the same formats as the image stores. The header is checked
// against the pixel limits before any pixel data is decoded.
func DecodeImage(r io.Reader) (image.Image, string, error) {
	return decode(r, core.MaxImageSize, core.ValidateImage)
}

// DecodeStoredImage decodes an image read back from an image store, such as
// the export of a saved meme.
func DecodeStoredImage(r io.Reader) (image.Image, string, error) {
	return decode(r, core.MaxStoredImageSize, core.ValidateStoredImage)
}

func decode(r io.Reader, limit int64, validate func([]byte) (string, error)) (image.Image, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading image: %w", err)
	}
	if _, err := validate(data); err != nil {
		return nil, "", err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", core.ErrInvalidImage, err)
	}
	if err := core.ValidateDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, "", err
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", core.ErrInvalidImage, err)
	}
	return img, format, nil
}
