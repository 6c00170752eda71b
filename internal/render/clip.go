package render

import (
	"image"

	"golang.org/x/image/vector"

	"github.com/templa/templa/backend-go/internal/engine"
)

// clipMask rasterizes a clip path, given in box coordinates and placed by m,
// into an alpha mask covering region. The mask's origin is region.Min.
func clipMask(path []engine.PathCommand, m engine.Matrix2D, region image.Rectangle) *image.Alpha {
	if region.Empty() {
		return image.NewAlpha(image.Rectangle{})
	}
	ox, oy := float64(region.Min.X), float64(region.Min.Y)
	pt := func(x, y interface{}) (float32, float32) {
		sx, sy := m.TransformPoint(toFloat64(x), toFloat64(y))
		return float32(sx - ox), float32(sy - oy)
	}

	z := vector.NewRasterizer(region.Dx(), region.Dy())
	for _, cmd := range path {
		if len(cmd) == 0 {
			continue
		}
		op, _ := cmd[0].(string)
		switch {
		case op == "M" && len(cmd) >= 3:
			z.MoveTo(pt(cmd[1], cmd[2]))
		case op == "L" && len(cmd) >= 3:
			z.LineTo(pt(cmd[1], cmd[2]))
		case op == "C" && len(cmd) >= 7:
			bx, by := pt(cmd[1], cmd[2])
			cx, cy := pt(cmd[3], cmd[4])
			dx, dy := pt(cmd[5], cmd[6])
			z.CubeTo(bx, by, cx, cy, dx, dy)
		case op == "Z":
			z.ClosePath()
		}
	}

	mask := image.NewAlpha(image.Rect(0, 0, region.Dx(), region.Dy()))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	return mask
}

// toFloat64 reads a path coordinate, which is a float64 when built in
// process and may be any number type after a round trip through JSON.
func toFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
