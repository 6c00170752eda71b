package render

import (
	"fmt"
	"image"
	"math"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/templa/templa/backend-go/internal/engine"
)

// minTextLimit is the smallest font size cap, so tiny previews still show
// legible text.
const minTextLimit = 64

// maxTextSize caps a font size against the surface. Glyph masks grow with the
// square of the size; past twice the surface's longer side a glyph covers
// the whole surface anyway.
func maxTextSize(surface image.Rectangle) float64 {
	return max(minTextLimit, 2*float64(max(surface.Dx(), surface.Dy())))
}

// measureFunc returns the advance width of a string in pixels.
type measureFunc func(s string) float64

// WrapLine breaks a line on single spaces so that each piece measures less
// than maxWidth. A word wider than maxWidth stays on its own line unbroken.
func WrapLine(line string, maxWidth float64, measure measureFunc) []string {
	words := strings.Split(line, " ")
	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if measure(current+" "+word) < maxWidth {
			current += " " + word
		} else {
			lines = append(lines, current)
			current = word
		}
	}
	return append(lines, current)
}

// LayoutLines splits content on newlines, then wraps each line to maxWidth.
// A box without width does not wrap.
func LayoutLines(content string, maxWidth float64, measure measureFunc) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if maxWidth > 0 {
			out = append(out, WrapLine(line, maxWidth, measure)...)
		} else {
			out = append(out, line)
		}
	}
	return out
}

// textFace is a sized face plus the run's letter spacing. Spacing follows
// every character, the last one included, and counts toward measurement.
type textFace struct {
	face    font.Face
	spacing float64
}

func (t textFace) measure(s string) float64 {
	var adv fixed.Int26_6
	var n int
	prev := rune(-1)
	for _, r := range s {
		if prev >= 0 {
			adv += t.face.Kern(prev, r)
		}
		a, _ := t.face.GlyphAdvance(r)
		adv += a
		prev = r
		n++
	}
	return fixed26ToFloat(adv) + t.spacing*float64(n)
}

// drawLines paints the lines top-aligned with the box's top-left corner at
// (x, y) in dst coordinates.
func (t textFace) drawLines(dst draw.Image, lines []string, x, y, lineHeight float64, fill image.Image) {
	ascent := fixed26ToFloat(t.face.Metrics().Ascent)
	for i, line := range lines {
		baseline := y + float64(i)*lineHeight + ascent
		pen := x
		prev := rune(-1)
		for _, r := range line {
			if prev >= 0 {
				pen += fixed26ToFloat(t.face.Kern(prev, r))
			}
			dot := fixed.Point26_6{X: floatToFixed26(pen), Y: floatToFixed26(baseline)}
			adv, _ := t.face.GlyphAdvance(r)
			if t.visible(dst.Bounds(), dot, r) {
				dr, mask, maskp, _, _ := t.face.Glyph(dot, r)
				if mask != nil && !dr.Empty() {
					draw.DrawMask(dst, dr, fill, image.Point{}, mask, maskp, draw.Over)
				}
			}
			pen += fixed26ToFloat(adv) + t.spacing
			prev = r
		}
	}
}

// visible reports whether the glyph for r drawn at dot touches clip. Glyphs
// off the surface are never rasterized.
func (t textFace) visible(clip image.Rectangle, dot fixed.Point26_6, r rune) bool {
	b, _, ok := t.face.GlyphBounds(r)
	if !ok {
		return true
	}
	gr := image.Rect(
		(dot.X + b.Min.X).Floor(), (dot.Y + b.Min.Y).Floor(),
		(dot.X + b.Max.X).Ceil(), (dot.Y + b.Max.Y).Ceil(),
	)
	return gr.Overlaps(clip)
}

// extent returns the size the laid out lines cover.
func (t textFace) extent(lines []string, lineHeight float64) (w, h float64) {
	for _, line := range lines {
		w = max(w, t.measure(line))
	}
	m := t.face.Metrics()
	h = float64(len(lines)-1)*lineHeight + fixed26ToFloat(m.Ascent+m.Descent)
	return w, h
}

// drawText paints a text node onto the layer buffer. Unrotated runs go
// straight onto the buffer; rotated ones are laid out in box space and
// resampled through the node transform.
func (r *Renderer) drawText(buf *image.RGBA, cmd engine.DrawCommand, m engine.Matrix2D) []Warning {
	run := cmd.Text
	if run == nil || run.Content == "" || run.Size <= 0 {
		return nil
	}

	var warnings []Warning
	f, found := r.fonts.Resolve(run.Family, run.Weight, run.Italic)
	if !found {
		warnings = append(warnings, Warning{LayerID: cmd.ObjectID, Message: "font family " + run.Family + " not available, using sans-serif"})
	}
	size := run.Size
	if limit := maxTextSize(buf.Rect); size > limit {
		warnings = append(warnings, Warning{LayerID: cmd.ObjectID, Message: fmt.Sprintf("font size %gpx exceeds the surface, drawn at %gpx", size, limit)})
		size = limit
	}
	face, err := NewFace(f, size)
	if err != nil {
		return append(warnings, Warning{LayerID: cmd.ObjectID, Message: "create font face", Err: err})
	}
	defer face.Close()

	c, ok := ParseColor(run.Color)
	if !ok {
		warnings = append(warnings, Warning{LayerID: cmd.ObjectID, Message: "invalid color " + run.Color + ", using black"})
	}
	fill := image.NewUniform(c)

	tf := textFace{face: face, spacing: run.LetterSpacing}
	lines := LayoutLines(run.Content, cmd.Width, tf.measure)

	if m.IsTranslation() {
		tf.drawLines(buf, lines, m[4], m[5], run.LineHeight, fill)
		return warnings
	}

	w, h := tf.extent(lines, run.LineHeight)
	pad := math.Ceil(size)
	box := engine.Rect{X: -pad, Y: -pad, Width: max(w, cmd.Width) + 2*pad, Height: max(h, cmd.Height) + 2*pad}
	region := localRegion(m, buf.Rect, box)
	if region.Empty() {
		return warnings
	}
	local := image.NewRGBA(region)
	tf.drawLines(local, lines, 0, 0, run.LineHeight, fill)
	draw.BiLinear.Transform(buf, affine(m), local, local.Bounds(), draw.Over, nil)
	return warnings
}

// localRegion returns the part of box, in box space, that m places on
// surface. Only that part of a rotated run is laid out.
func localRegion(m engine.Matrix2D, surface image.Rectangle, box engine.Rect) image.Rectangle {
	if surface.Empty() || box.IsEmpty() {
		return image.Rectangle{}
	}
	onSurface := m.Invert().TransformRect(engine.Rect{
		X:      float64(surface.Min.X),
		Y:      float64(surface.Min.Y),
		Width:  float64(surface.Dx()),
		Height: float64(surface.Dy()),
	})
	visible := onSurface.Intersect(box)
	if visible.IsEmpty() {
		return image.Rectangle{}
	}
	return pixelRect(visible)
}

func fixed26ToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func floatToFixed26(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}
