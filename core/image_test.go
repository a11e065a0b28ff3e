package core

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"
)

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("png.Encode() failed: %v", err)
	}
	return buf.Bytes()
}

func TestValidateImage(t *testing.T) {
	contentType, err := ValidateImage(tinyPNG(t))
	if err != nil {
		t.Fatalf("ValidateImage() failed: %v", err)
	}
	if contentType != "image/png" {
		t.Errorf("content type: got %q", contentType)
	}
	if ImageExtension(contentType) != ".png" {
		t.Errorf("extension: got %q", ImageExtension(contentType))
	}
}

func TestValidateImage_Rejections(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrInvalidImage},
		{"text", []byte("definitely not an image"), ErrInvalidImage},
		{"too large", bytes.Repeat([]byte{0}, MaxImageSize+1), ErrImageTooLarge},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateImage(tc.data)
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestValidateStoredImage(t *testing.T) {
	// Rendered exports may exceed the user upload limit.
	export := append(tinyPNG(t), make([]byte, MaxImageSize)...)
	if _, err := ValidateImage(export); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("ValidateImage: got %v, want %v", err, ErrImageTooLarge)
	}
	if _, err := ValidateStoredImage(export); err != nil {
		t.Errorf("ValidateStoredImage() failed: %v", err)
	}

	huge := append(tinyPNG(t), make([]byte, MaxStoredImageSize)...)
	if _, err := ValidateStoredImage(huge); !errors.Is(err, ErrStoredImageTooBig) {
		t.Errorf("got %v, want %v", err, ErrStoredImageTooBig)
	}
	if _, err := ValidateStoredImage([]byte("plain text")); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("got %v, want %v", err, ErrInvalidImage)
	}
}

func TestValidateDimensions(t *testing.T) {
	testCases := []struct {
		w, h int
		want error
	}{
		{800, 600, nil},
		{MaxImageDimension, 4000, nil},
		{0, 10, ErrInvalidImage},
		{MaxImageDimension + 1, 1, ErrImageDimensions},
		{1, MaxImageDimension + 1, ErrImageDimensions},
		{8000, 8000, ErrImageDimensions},
	}
	for _, tc := range testCases {
		err := ValidateDimensions(tc.w, tc.h)
		if (tc.want == nil && err != nil) || (tc.want != nil && !errors.Is(err, tc.want)) {
			t.Errorf("ValidateDimensions(%d, %d) = %v, want %v", tc.w, tc.h, err, tc.want)
		}
	}
}
