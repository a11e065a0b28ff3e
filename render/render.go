package render

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"strings"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"

	"meme-studio/editor"
)

// DefaultPixelRatio oversamples exports for sharper text.
const DefaultPixelRatio = 2

// lineSpacing matches the editor's text line height.
const lineSpacing = 1.2

var ErrNoBackground = errors.New("nothing to export: no background image loaded")

// Renderer rasterizes editor scenes. It is safe for concurrent use.
type Renderer struct {
	PixelRatio float64
	Fonts      *FontBook
}

func NewRenderer(ratio float64, fonts *FontBook) *Renderer {
	if ratio <= 0 {
		ratio = DefaultPixelRatio
	}
	if fonts == nil {
		fonts = NewFontBook()
	}
	return &Renderer{PixelRatio: ratio, Fonts: fonts}
}

// Render draws the background and every layer, cropped to the image bounds
// and scaled by the pixel ratio. Layers outside the bounds are clipped.
func (r *Renderer) Render(scene editor.Scene) (image.Image, error) {
	if scene.Background == nil || scene.Bounds.Empty() {
		return nil, ErrNoBackground
	}
	ratio := r.PixelRatio
	out := scene.Bounds.Rect(ratio)
	canvas := image.NewRGBA(image.Rect(0, 0, out.Dx(), out.Dy()))
	xdraw.CatmullRom.Scale(canvas, canvas.Bounds(), scene.Background, scene.Background.Bounds(), xdraw.Src, nil)

	dc := gg.NewContextForRGBA(canvas)
	for _, l := range scene.Layers {
		if err := r.drawLayer(dc, l, scene.Bounds, ratio); err != nil {
			return nil, fmt.Errorf("failed to draw layer %s: %w", l.ID, err)
		}
	}
	return dc.Image(), nil
}

func (r *Renderer) drawLayer(dc *gg.Context, l editor.TextLayer, bounds editor.Bounds, ratio float64) error {
	if l.Text == "" {
		return nil
	}
	size := l.FontSize * ratio
	face, err := r.Fonts.Face(l.FontFamily, size)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)

	x := (l.Position.X - bounds.X) * ratio
	y := (l.Position.Y - bounds.Y) * ratio
	lines := wrapLines(dc, l.Text, l.Width*ratio)
	lineHeight := dc.FontHeight() * lineSpacing

	if l.Stroke != "" && l.StrokeWidth > 0 {
		dc.SetHexColor(l.Stroke)
		for _, off := range outlineOffsets(l.StrokeWidth * ratio) {
			drawLines(dc, lines, x+off.X, y+off.Y, lineHeight)
		}
	}
	dc.SetHexColor(l.Fill)
	drawLines(dc, lines, x, y, lineHeight)
	return nil
}

func drawLines(dc *gg.Context, lines []string, x, y, lineHeight float64) {
	for i, line := range lines {
		dc.DrawStringAnchored(line, x, y+float64(i)*lineHeight, 0, 1)
	}
}

// wrapLines splits explicit newlines and word-wraps each line when the layer
// has a box width.
func wrapLines(dc *gg.Context, text string, width float64) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		if width <= 0 || para == "" {
			lines = append(lines, para)
			continue
		}
		lines = append(lines, dc.WordWrap(para, width)...)
	}
	return lines
}

// outlineOffsets returns points on a circle of radius w, dense enough that
// the offset passes read as a solid outline.
func outlineOffsets(w float64) []editor.Position {
	steps := int(math.Max(8, math.Ceil(2*math.Pi*w)))
	offsets := make([]editor.Position, 0, steps)
	for i := 0; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / float64(steps)
		offsets = append(offsets, editor.Position{X: w * math.Cos(a), Y: w * math.Sin(a)})
	}
	return offsets
}

// Measure returns the unscaled size of a layer's text block. It satisfies
// editor.Measurer.
func (r *Renderer) Measure(l editor.TextLayer) editor.Size {
	face, err := r.Fonts.Face(l.FontFamily, l.FontSize)
	if err != nil {
		return editor.Size{}
	}
	dc := gg.NewContext(1, 1)
	dc.SetFontFace(face)

	lines := wrapLines(dc, l.Text, l.Width)
	var w float64
	for _, line := range lines {
		if lw, _ := dc.MeasureString(line); lw > w {
			w = lw
		}
	}
	if l.Width > 0 {
		w = l.Width
	}
	h := float64(len(lines)) * dc.FontHeight() * lineSpacing
	return editor.Size{Width: math.Ceil(w), Height: math.Ceil(h)}
}

// Thumbnail downscales img to at most maxWidth pixels wide. Smaller images are
// returned as is.
func Thumbnail(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	h := int(math.Round(float64(b.Dy()) * float64(maxWidth) / float64(b.Dx())))
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}
