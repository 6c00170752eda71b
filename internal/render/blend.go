package render

import (
	"image"
	"math"

	"github.com/templa/templa/backend-go/internal/document"
)

// blendFunc combines one unpremultiplied channel of the backdrop (cb) and
// the source (cs), both in [0,1].
type blendFunc func(cb, cs float64) float64

// blendFuncs holds the separable blend modes. Every operator a layer can
// resolve to through document.BlendMode.CompositeOperator has an entry.
var blendFuncs = map[document.BlendMode]blendFunc{
	document.BlendNormal:    func(cb, cs float64) float64 { return cs },
	document.BlendMultiply:  func(cb, cs float64) float64 { return cb * cs },
	document.BlendScreen:    screen,
	document.BlendOverlay:   func(cb, cs float64) float64 { return hardLight(cs, cb) },
	document.BlendDarken:    math.Min,
	document.BlendLighten:   math.Max,
	document.BlendColorBurn: colorBurn,
}

func screen(cb, cs float64) float64 {
	return cb + cs - cb*cs
}

func hardLight(cb, cs float64) float64 {
	if cs <= 0.5 {
		return cb * 2 * cs
	}
	return screen(cb, 2*cs-1)
}

func colorBurn(cb, cs float64) float64 {
	switch {
	case cb >= 1:
		return 1
	case cs <= 0:
		return 0
	default:
		return 1 - min(1, (1-cb)/cs)
	}
}

// composite paints src over dst with the given opacity and blend operator,
// using the separable blending and source-over compositing formulas:
//
//	co = as*(1-ab)*Cs + as*ab*B(Cb, Cs) + (1-as)*ab*Cb
//	ao = as + ab*(1-as)
//
// Both images hold premultiplied pixels. Unknown operators paint as normal.
func composite(dst, src *image.RGBA, opacity float64, op document.BlendMode) {
	if opacity <= 0 {
		return
	}
	opacity = min(opacity, 1)
	fn, ok := blendFuncs[op]
	if !ok {
		fn = blendFuncs[document.BlendNormal]
	}

	r := src.Rect.Intersect(dst.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		si := src.PixOffset(r.Min.X, y)
		di := dst.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x, si, di = x+1, si+4, di+4 {
			sa8 := src.Pix[si+3]
			if sa8 == 0 {
				continue
			}
			as := float64(sa8) / 255 * opacity
			ab := float64(dst.Pix[di+3]) / 255

			for c := 0; c < 3; c++ {
				sp := float64(src.Pix[si+c]) / 255 * opacity // as*Cs
				dp := float64(dst.Pix[di+c]) / 255           // ab*Cb
				cs := min(sp/as, 1)
				var cb float64
				if ab > 0 {
					cb = min(dp/ab, 1)
				}
				co := (1-ab)*sp + as*ab*fn(cb, cs) + (1-as)*dp
				dst.Pix[di+c] = toByte(co)
			}
			dst.Pix[di+3] = toByte(as + ab*(1-as))
		}
	}
}

func toByte(v float64) uint8 {
	return uint8(math.Round(min(max(v, 0), 1) * 255))
}
