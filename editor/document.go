package editor

import (
	"image"
	"math"
)

// Viewport dimensions of the editing canvas in pixels.
const (
	ViewportWidth  = 800
	ViewportHeight = 600
)

type (
	Position struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}

	Size struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}

	// Bounds is a placed rectangle in viewport pixels.
	Bounds struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}

	// Box is a text layer's transform box: its top-left corner and size.
	Box struct {
		Position
		Size
	}

	// Background is the decoded image a document is built on.
	Background struct {
		Image  image.Image
		Source string
	}
)

// Viewport returns the fixed canvas size.
func Viewport() Size {
	return Size{Width: ViewportWidth, Height: ViewportHeight}
}

// Empty reports whether the bounds cover no area.
func (b Bounds) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Rect rounds the bounds to an integer rectangle scaled by ratio.
func (b Bounds) Rect(ratio float64) image.Rectangle {
	return image.Rect(
		int(math.Round(b.X*ratio)),
		int(math.Round(b.Y*ratio)),
		int(math.Round((b.X+b.Width)*ratio)),
		int(math.Round((b.Y+b.Height)*ratio)),
	)
}

// FitImage places an image of the given natural size inside the viewport,
// keeping its aspect ratio and centering it on the unconstrained axis.
func FitImage(natural Size, viewport Size) Bounds {
	if natural.Width <= 0 || natural.Height <= 0 {
		return Bounds{}
	}
	scale := math.Min(viewport.Width/natural.Width, viewport.Height/natural.Height)
	w := natural.Width * scale
	h := natural.Height * scale
	return Bounds{
		X:      (viewport.Width - w) / 2,
		Y:      (viewport.Height - h) / 2,
		Width:  w,
		Height: h,
	}
}

// ImageBounds returns the placement of the background inside the viewport, or
// empty bounds when no background is loaded.
func (bg *Background) ImageBounds() Bounds {
	if bg == nil || bg.Image == nil {
		return Bounds{}
	}
	r := bg.Image.Bounds()
	return FitImage(Size{Width: float64(r.Dx()), Height: float64(r.Dy())}, Viewport())
}
