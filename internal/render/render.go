// Package render rasterizes a scene graph. It executes the display list
// compiled by the engine package, so preview and export pixels come from the
// exact same commands; only the scale the graph was built at differs.
package render

import (
	"fmt"
	"image"
	"log/slog"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/templa/templa/backend-go/internal/document"
	"github.com/templa/templa/backend-go/internal/engine"
)

// Resources holds the decoded images a render needs, keyed by source URI.
// Sources that failed to load are listed in Failures.
type Resources struct {
	Images   map[string]image.Image
	Failures map[string]error
}

// Warning is a non-fatal problem with one layer. The layer is skipped or
// drawn with a fallback; every other layer renders normally.
type Warning struct {
	LayerID string `json:"layerId"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (w Warning) Error() string {
	if w.Err != nil {
		return fmt.Sprintf("layer %s: %s: %v", w.LayerID, w.Message, w.Err)
	}
	return fmt.Sprintf("layer %s: %s", w.LayerID, w.Message)
}

func (w Warning) Unwrap() error { return w.Err }

// Renderer turns scene graphs into pixels. It holds no per-render state and
// is safe for concurrent use.
type Renderer struct {
	fonts  *FontBook
	logger *slog.Logger
}

// New creates a renderer. A nil logger uses slog.Default().
func New(fonts *FontBook, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{fonts: fonts, logger: logger}
}

// Rasterize paints the scene graph onto a transparent surface of
// sg.Width x sg.Height pixels. Output depends only on its inputs.
func (r *Renderer) Rasterize(sg *engine.SceneGraph, res Resources) (*image.RGBA, []Warning) {
	dst := image.NewRGBA(image.Rect(0, 0, sg.Width, sg.Height))
	p := &painter{r: r, dst: dst, res: res}
	for _, cmd := range engine.CompileDrawCommands(sg) {
		p.exec(cmd)
	}
	for _, w := range p.warnings {
		r.logger.Warn("render degraded", "layer", w.LayerID, "message", w.Message, "error", w.Err)
	}
	return dst, p.warnings
}

// layerState is what a "save" command opens: an isolated buffer painted
// by the node's commands, then composited onto the surface on "restore".
type layerState struct {
	id        string
	opacity   float64
	composite document.BlendMode
	region    image.Rectangle
	buf       *image.RGBA
	mask      *image.Alpha // covers region, origin at region.Min
	skip      bool
}

type painter struct {
	r        *Renderer
	dst      *image.RGBA
	res      Resources
	state    *layerState
	warnings []Warning
}

func (p *painter) exec(cmd engine.DrawCommand) {
	if cmd.Op == engine.OpSave {
		p.save(cmd)
		return
	}
	st := p.state
	if st == nil {
		return
	}

	switch cmd.Op {
	case engine.OpClip:
		if !st.skip {
			st.mask = clipMask(cmd.Path, matrix(cmd.Transform), st.region)
		}

	case engine.OpImage:
		if st.skip || cmd.Width <= 0 || cmd.Height <= 0 {
			return
		}
		img, ok := p.res.Images[cmd.Source]
		if !ok || img == nil {
			p.warn(cmd.ObjectID, "image not available", p.res.Failures[cmd.Source])
			st.skip = true
			return
		}
		drawImage(p.buffer(st.region), img, matrix(cmd.Transform), cmd.Width, cmd.Height)

	case engine.OpText:
		if st.skip {
			return
		}
		// Text may overflow its box, so it gets the whole surface.
		st.region = p.dst.Rect
		st.mask = nil
		p.warnings = append(p.warnings, p.r.drawText(p.buffer(st.region), cmd, matrix(cmd.Transform))...)

	case engine.OpRestore:
		if !st.skip && st.buf != nil {
			out := st.buf
			if st.mask != nil {
				out = image.NewRGBA(st.buf.Rect)
				draw.DrawMask(out, st.region, st.buf, st.region.Min, st.mask, image.Point{}, draw.Over)
			}
			composite(p.dst, out, st.opacity, st.composite)
		}
		p.state = nil
	}
}

func (p *painter) save(cmd engine.DrawCommand) {
	st := &layerState{
		id:        cmd.ObjectID,
		opacity:   1,
		composite: document.BlendMode(cmd.Composite).CompositeOperator(),
		region:    p.dst.Rect,
	}
	if cmd.Opacity != nil {
		st.opacity = *cmd.Opacity
	}
	if cmd.Bounds != nil {
		st.region = pixelRect(*cmd.Bounds).Intersect(p.dst.Rect)
	}
	st.skip = st.opacity <= 0
	p.state = st
}

// buffer returns the open layer's buffer, allocating it over region.
func (p *painter) buffer(region image.Rectangle) *image.RGBA {
	st := p.state
	if st.buf == nil || !region.In(st.buf.Rect) {
		buf := image.NewRGBA(region)
		if st.buf != nil {
			draw.Draw(buf, st.buf.Rect, st.buf, st.buf.Rect.Min, draw.Src)
		}
		st.buf = buf
	}
	return st.buf
}

func (p *painter) warn(layerID, msg string, err error) {
	p.warnings = append(p.warnings, Warning{LayerID: layerID, Message: msg, Err: err})
}

// drawImage stretches img over the w x h box that m places on the surface.
func drawImage(dst *image.RGBA, img image.Image, m engine.Matrix2D, w, h float64) {
	b := img.Bounds()
	if b.Empty() || dst.Rect.Empty() {
		return
	}
	s2d := m.
		Multiply(engine.Scale(w/float64(b.Dx()), h/float64(b.Dy()))).
		Multiply(engine.Translate(-float64(b.Min.X), -float64(b.Min.Y)))
	draw.BiLinear.Transform(dst, affine(s2d), img, b, draw.Over, nil)
}

// affine converts a canvas-order matrix [a b c d e f] to the row-major
// form x/image/draw expects.
func affine(m engine.Matrix2D) f64.Aff3 {
	return f64.Aff3{m[0], m[2], m[4], m[1], m[3], m[5]}
}

func matrix(t []float64) engine.Matrix2D {
	if len(t) != 6 {
		return engine.Identity()
	}
	return engine.Matrix2D{t[0], t[1], t[2], t[3], t[4], t[5]}
}

// pixelRect rounds a surface rect out to whole pixels, with a pixel of slack
// for resampling.
func pixelRect(r engine.Rect) image.Rectangle {
	return image.Rect(
		int(math.Floor(r.X))-1,
		int(math.Floor(r.Y))-1,
		int(math.Ceil(r.X+r.Width))+1,
		int(math.Ceil(r.Y+r.Height))+1,
	)
}
