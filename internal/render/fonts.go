package render

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomediumitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

const (
	familySans = "go"
	familyMono = "go mono"
)

// genericFamilies maps CSS generic and common system family names to the
// bundled families.
var genericFamilies = map[string]string{
	"sans-serif":      familySans,
	"serif":           familySans,
	"system-ui":       familySans,
	"ui-sans-serif":   familySans,
	"arial":           familySans,
	"helvetica":       familySans,
	"helvetica neue":  familySans,
	"inter":           familySans,
	"roboto":          familySans,
	"open sans":       familySans,
	"montserrat":      familySans,
	"monospace":       familyMono,
	"ui-monospace":    familyMono,
	"courier":         familyMono,
	"courier new":     familyMono,
	"menlo":           familyMono,
	"consolas":        familyMono,
	"source code pro": familyMono,
}

type fontStyle struct {
	weight int
	italic bool
}

// FontBook resolves a family, weight and italic flag to a parsed font. It
// ships the Go font families and can load more from a directory. Safe for
// concurrent use.
type FontBook struct {
	mu       sync.RWMutex
	families map[string]map[fontStyle]*opentype.Font
}

// NewFontBook returns a book holding the bundled Go fonts.
func NewFontBook() (*FontBook, error) {
	b := &FontBook{families: make(map[string]map[fontStyle]*opentype.Font)}
	bundled := []struct {
		family string
		style  fontStyle
		ttf    []byte
	}{
		{familySans, fontStyle{400, false}, goregular.TTF},
		{familySans, fontStyle{400, true}, goitalic.TTF},
		{familySans, fontStyle{500, false}, gomedium.TTF},
		{familySans, fontStyle{500, true}, gomediumitalic.TTF},
		{familySans, fontStyle{700, false}, gobold.TTF},
		{familySans, fontStyle{700, true}, gobolditalic.TTF},
		{familyMono, fontStyle{400, false}, gomono.TTF},
		{familyMono, fontStyle{400, true}, gomonoitalic.TTF},
		{familyMono, fontStyle{700, false}, gomonobold.TTF},
		{familyMono, fontStyle{700, true}, gomonobolditalic.TTF},
	}
	for _, f := range bundled {
		parsed, err := opentype.Parse(f.ttf)
		if err != nil {
			return nil, fmt.Errorf("parse bundled font %s: %w", f.family, err)
		}
		b.add(f.family, f.style, parsed)
	}
	return b, nil
}

func (b *FontBook) add(family string, style fontStyle, f *opentype.Font) {
	b.mu.Lock()
	defer b.mu.Unlock()
	styles, ok := b.families[family]
	if !ok {
		styles = make(map[fontStyle]*opentype.Font)
		b.families[family] = styles
	}
	styles[style] = f
}

// Register parses a TrueType or OpenType file and adds it under the family
// and style its name table declares. It returns the family name.
func (b *FontBook) Register(data []byte) (string, error) {
	f, err := opentype.Parse(data)
	if err != nil {
		return "", fmt.Errorf("parse font: %w", err)
	}

	var buf sfnt.Buffer
	family, err := f.Name(&buf, sfnt.NameIDTypographicFamily)
	if err != nil || family == "" {
		family, err = f.Name(&buf, sfnt.NameIDFamily)
		if err != nil {
			return "", fmt.Errorf("read font family: %w", err)
		}
	}
	sub, err := f.Name(&buf, sfnt.NameIDTypographicSubfamily)
	if err != nil || sub == "" {
		sub, _ = f.Name(&buf, sfnt.NameIDSubfamily)
	}

	b.add(normalizeFamily(family), parseSubfamily(sub), f)
	return family, nil
}

// LoadDir registers every .ttf and .otf file below dir and returns how many
// were loaded. Files that fail to parse are skipped and reported together.
func (b *FontBook) LoadDir(dir string) (int, error) {
	var n int
	var errs []error
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".ttf", ".otf":
		default:
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if _, err := b.Register(data); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			return nil
		}
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("walk font dir: %w", err)
	}
	return n, errors.Join(errs...)
}

// Families lists the registered family names.
func (b *FontBook) Families() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.families))
	for name := range b.families {
		out = append(out, name)
	}
	return out
}

// Resolve picks the font for a CSS family list, weight and italic flag.
// Families are tried in order; unknown ones fall back to the bundled sans
// with found == false.
func (b *FontBook) Resolve(family string, weight int, italic bool) (f *opentype.Font, found bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, name := range strings.Split(family, ",") {
		name = normalizeFamily(name)
		if name == "" {
			continue
		}
		if styles, ok := b.families[name]; ok {
			return pickStyle(styles, weight, italic), true
		}
		if generic, ok := genericFamilies[name]; ok {
			return pickStyle(b.families[generic], weight, italic), true
		}
	}
	return pickStyle(b.families[familySans], weight, italic), false
}

// NewFace creates a face at size pixels. Faces are not safe for concurrent
// use, so each text run gets its own.
func NewFace(f *opentype.Font, size float64) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// pickStyle prefers a matching italic flag, then the closest weight. Ties
// go heavier above 500 and lighter otherwise, as CSS font matching does.
func pickStyle(styles map[fontStyle]*opentype.Font, weight int, italic bool) *opentype.Font {
	var best *opentype.Font
	bestScore := 0
	for st, f := range styles {
		score := abs(st.weight-weight) * 2
		if (st.weight > weight) != (weight > 500) {
			score++
		}
		if st.italic != italic {
			score += 10000
		}
		if best == nil || score < bestScore {
			best, bestScore = f, score
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func normalizeFamily(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, `"'`)
	return strings.ToLower(strings.TrimSpace(name))
}

// parseSubfamily reads a style from a subfamily name such as "SemiBold
// Italic".
func parseSubfamily(sub string) fontStyle {
	s := strings.ToLower(strings.ReplaceAll(sub, " ", ""))
	st := fontStyle{weight: 400, italic: strings.Contains(s, "italic") || strings.Contains(s, "oblique")}
	switch {
	case strings.Contains(s, "thin") || strings.Contains(s, "hairline"):
		st.weight = 100
	case strings.Contains(s, "extralight") || strings.Contains(s, "ultralight"):
		st.weight = 200
	case strings.Contains(s, "light"):
		st.weight = 300
	case strings.Contains(s, "medium"):
		st.weight = 500
	case strings.Contains(s, "semibold") || strings.Contains(s, "demibold"):
		st.weight = 600
	case strings.Contains(s, "extrabold") || strings.Contains(s, "ultrabold"):
		st.weight = 800
	case strings.Contains(s, "black") || strings.Contains(s, "heavy"):
		st.weight = 900
	case strings.Contains(s, "bold"):
		st.weight = 700
	}
	return st
}
