package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// builtinFamilies maps the families offered by the editor's font picker to
// the Go fonts bundled with x/image.
var builtinFamilies = map[string][]byte{
	"arial":           goregular.TTF,
	"helvetica":       goregular.TTF,
	"verdana":         goregular.TTF,
	"comic sans ms":   goregular.TTF,
	"impact":          gobold.TTF,
	"courier new":     gomono.TTF,
	"times new roman": gomedium.TTF,
	"georgia":         gomedium.TTF,
}

const fallbackFamily = "arial"

// FontBook resolves font families to faces. Parsed fonts are cached and
// shared; faces carry glyph caches and are created per call. It is safe for
// concurrent use.
type FontBook struct {
	mu    sync.Mutex
	data  map[string][]byte
	fonts map[string]*truetype.Font
}

func NewFontBook() *FontBook {
	fb := &FontBook{
		data:  make(map[string][]byte, len(builtinFamilies)),
		fonts: make(map[string]*truetype.Font),
	}
	for family, ttf := range builtinFamilies {
		fb.data[family] = ttf
	}
	return fb
}

// Register adds or replaces a family with TrueType data.
func (fb *FontBook) Register(family string, ttf []byte) error {
	f, err := truetype.Parse(ttf)
	if err != nil {
		return fmt.Errorf("failed to parse font %q: %w", family, err)
	}
	key := strings.ToLower(family)

	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.data[key] = ttf
	fb.fonts[key] = f
	return nil
}

// LoadDir registers every .ttf file in dir under its base name.
func (fb *FontBook) LoadDir(dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.ttf"))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range paths {
		ttf, err := os.ReadFile(p)
		if err != nil {
			return n, err
		}
		family := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		if err := fb.Register(family, ttf); err != nil {
			logrus.WithFields(logrus.Fields{"path": p, "error": err}).Warn("Skipping font")
			continue
		}
		n++
	}
	return n, nil
}

// Face returns a face for family at size pixels. Unknown families fall back
// to the default sans font.
func (fb *FontBook) Face(family string, size float64) (font.Face, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	key := strings.ToLower(family)
	if _, ok := fb.data[key]; !ok {
		key = fallbackFamily
	}
	f, ok := fb.fonts[key]
	if !ok {
		var err error
		f, err = truetype.Parse(fb.data[key])
		if err != nil {
			return nil, fmt.Errorf("failed to parse font %q: %w", key, err)
		}
		fb.fonts[key] = f
	}
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	}), nil
}
