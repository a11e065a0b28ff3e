package editor

import "meme-studio/core"

// ToRecordLayers converts pixel layers to the stored form, where position and
// box width are percentages of the image bounds.
func ToRecordLayers(layers []TextLayer, bounds Bounds) []core.LayerRecord {
	out := make([]core.LayerRecord, 0, len(layers))
	for _, l := range layers {
		out = append(out, core.LayerRecord{
			Text:        l.Text,
			X:           percentOf(l.Position.X-bounds.X, bounds.Width),
			Y:           percentOf(l.Position.Y-bounds.Y, bounds.Height),
			Width:       percentOf(l.Width, bounds.Width),
			FontSize:    l.FontSize,
			FontFamily:  l.FontFamily,
			Fill:        l.Fill,
			Stroke:      l.Stroke,
			StrokeWidth: l.StrokeWidth,
		})
	}
	return out
}

// FromRecordLayers places stored layers back onto an image with the given
// bounds. The returned layers have no ids and are not selected.
func FromRecordLayers(records []core.LayerRecord, bounds Bounds) []TextLayer {
	out := make([]TextLayer, 0, len(records))
	for _, r := range records {
		l := TextLayer{
			Text: r.Text,
			Position: Position{
				X: bounds.X + r.X*bounds.Width/100,
				Y: bounds.Y + r.Y*bounds.Height/100,
			},
			Width:       r.Width * bounds.Width / 100,
			FontSize:    r.FontSize,
			FontFamily:  r.FontFamily,
			Fill:        r.Fill,
			Stroke:      r.Stroke,
			StrokeWidth: r.StrokeWidth,
		}
		if l.FontSize <= 0 {
			l.FontSize = DefaultFontSize
		}
		if l.FontFamily == "" {
			l.FontFamily = DefaultFontFamily
		}
		if l.Fill == "" {
			l.Fill = DefaultFill
		}
		out = append(out, l)
	}
	return out
}

func percentOf(v, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return v / total * 100
}
