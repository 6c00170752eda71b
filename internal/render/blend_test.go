package render

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/tdewolff/test"

	"github.com/templa/templa/backend-go/internal/document"
)

func pixel(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, c)
	return img
}

func TestComposite(t *testing.T) {
	backdrop := color.RGBA{255, 0, 128, 255}
	source := color.RGBA{128, 128, 128, 255}
	tests := []struct {
		mode     document.BlendMode
		expected color.RGBA
	}{
		{document.BlendNormal, color.RGBA{128, 128, 128, 255}},
		{document.BlendMultiply, color.RGBA{128, 0, 64, 255}},
		{document.BlendScreen, color.RGBA{255, 128, 192, 255}},
		{document.BlendDarken, color.RGBA{128, 0, 128, 255}},
		{document.BlendLighten, color.RGBA{255, 128, 128, 255}},
		{"bogus", color.RGBA{128, 128, 128, 255}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			dst := pixel(backdrop)
			composite(dst, pixel(source), 1, tt.mode)
			test.T(t, dst.RGBAAt(0, 0), tt.expected)
		})
	}
}

func TestCompositeOpacity(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 1, 1))
	composite(dst, pixel(color.RGBA{255, 0, 0, 255}), 0.5, document.BlendNormal)
	test.T(t, dst.RGBAAt(0, 0), color.RGBA{128, 0, 0, 128})

	dst = pixel(color.RGBA{10, 20, 30, 255})
	composite(dst, pixel(color.RGBA{255, 255, 255, 255}), 0, document.BlendNormal)
	test.T(t, dst.RGBAAt(0, 0), color.RGBA{10, 20, 30, 255})
}

func TestCompositeOverTransparentIgnoresMode(t *testing.T) {
	for _, mode := range document.BlendModes {
		dst := image.NewRGBA(image.Rect(0, 0, 1, 1))
		composite(dst, pixel(color.RGBA{200, 100, 50, 255}), 1, mode.CompositeOperator())
		test.T(t, dst.RGBAAt(0, 0), color.RGBA{200, 100, 50, 255}, mode)
	}
}

func TestBlendFuncs(t *testing.T) {
	test.Float(t, colorBurn(1, 0.3), 1)
	test.Float(t, colorBurn(0.5, 0), 0)
	test.Float(t, colorBurn(0.5, 0.5), 0)
	test.Float(t, colorBurn(0.8, 0.5), 0.6)

	overlay := blendFuncs[document.BlendOverlay]
	test.Float(t, overlay(0.25, 0.5), 0.25)
	test.Float(t, overlay(0.75, 0.5), 0.75)
	test.Float(t, overlay(0.5, 1), 1)

	for _, mode := range document.BlendModes {
		_, ok := blendFuncs[mode.CompositeOperator()]
		test.That(t, ok, "no blend function for", mode)
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in       string
		expected color.NRGBA
		ok       bool
	}{
		{"#000000", color.NRGBA{0, 0, 0, 255}, true},
		{"#FF8800", color.NRGBA{255, 136, 0, 255}, true},
		{"#f80", color.NRGBA{255, 136, 0, 255}, true},
		{"#f808", color.NRGBA{255, 136, 0, 136}, true},
		{"#11223344", color.NRGBA{17, 34, 51, 68}, true},
		{"rgb(10, 20, 30)", color.NRGBA{10, 20, 30, 255}, true},
		{"rgba(10,20,30,0.5)", color.NRGBA{10, 20, 30, 128}, true},
		{"rgb(100% 0% 50% / 25%)", color.NRGBA{255, 0, 128, 64}, true},
		{"  White ", color.NRGBA{255, 255, 255, 255}, true},
		{"transparent", color.NRGBA{}, true},
		{"#12345", color.NRGBA{0, 0, 0, 255}, false},
		{"#ggg", color.NRGBA{0, 0, 0, 255}, false},
		{"rgb(1,2)", color.NRGBA{0, 0, 0, 255}, false},
		{"hsl(0, 100%, 50%)", color.NRGBA{0, 0, 0, 255}, false},
		{"", color.NRGBA{0, 0, 0, 255}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, ok := ParseColor(tt.in)
			test.T(t, ok, tt.ok)
			test.T(t, c, tt.expected)
		})
	}
}

// tenPerRune measures every rune as 10 pixels wide.
func tenPerRune(s string) float64 {
	return float64(len([]rune(s))) * 10
}

func TestWrapLine(t *testing.T) {
	test.T(t, WrapLine("aa bb cc", 55, tenPerRune), []string{"aa bb", "cc"})
	test.T(t, WrapLine("aa bb cc", 50, tenPerRune), []string{"aa", "bb", "cc"})
	test.T(t, WrapLine("abcdefgh", 20, tenPerRune), []string{"abcdefgh"})
	test.T(t, WrapLine("", 20, tenPerRune), []string{""})
	test.T(t, WrapLine("a  b", 100, tenPerRune), []string{"a  b"})
}

func TestLayoutLines(t *testing.T) {
	test.T(t, LayoutLines("a\nb c", 25, tenPerRune), []string{"a", "b", "c"})
	test.T(t, LayoutLines("a\nb c", 0, tenPerRune), []string{"a", "b c"})
	test.T(t, LayoutLines("a\n\nb", 100, tenPerRune), []string{"a", "", "b"})
}

func TestMeasureLetterSpacing(t *testing.T) {
	fonts, err := NewFontBook()
	test.Error(t, err)
	f, _ := fonts.Resolve("monospace", 400, false)
	face, err := NewFace(f, 20)
	test.Error(t, err)
	defer face.Close()

	plain := textFace{face: face}
	spaced := textFace{face: face, spacing: 3}
	test.Float(t, spaced.measure("abcd"), plain.measure("abcd")+12)
	test.Float(t, plain.measure("abcd"), 4*plain.measure("a"))

	long := strings.Repeat("word ", 20)
	lines := LayoutLines(long, 100, spaced.measure)
	for _, line := range lines {
		test.That(t, spaced.measure(line) < 100 || !strings.Contains(line, " "), "line too wide:", line)
	}
}

func TestFontResolve(t *testing.T) {
	fonts, err := NewFontBook()
	test.Error(t, err)

	bold, found := fonts.Resolve(`"Inter", sans-serif`, 700, false)
	test.T(t, found, true)
	goBold, _ := fonts.Resolve("go", 700, false)
	test.That(t, bold == goBold)

	semibold, _ := fonts.Resolve("sans-serif", 600, false)
	test.That(t, semibold == goBold, "600 should resolve heavier")

	regular, _ := fonts.Resolve("sans-serif", 400, false)
	test.That(t, regular != goBold)

	italic, _ := fonts.Resolve("sans-serif", 400, true)
	test.That(t, italic != regular)

	_, found = fonts.Resolve("No Such Family", 400, false)
	test.T(t, found, false)
	_, found = fonts.Resolve("No Such Family, monospace", 400, false)
	test.T(t, found, true)

	test.T(t, parseSubfamily("SemiBold Italic"), fontStyle{600, true})
	test.T(t, parseSubfamily("Bold"), fontStyle{700, false})
	test.T(t, parseSubfamily("ExtraLight"), fontStyle{200, false})
	test.T(t, parseSubfamily("Regular"), fontStyle{400, false})
}
