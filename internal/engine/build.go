package engine

import (
	"math"

	"github.com/templa/templa/backend-go/internal/document"
)

// LineHeightFactor is the line advance as a multiple of the font size.
const LineHeightFactor = 1.2

// SurfaceSize returns the pixel size of a surface showing a natural-size
// base at scale.
func SurfaceSize(naturalWidth, naturalHeight int, scale float64) (int, int) {
	scale = normalizeScale(scale)
	return int(math.Round(float64(naturalWidth) * scale)), int(math.Round(float64(naturalHeight) * scale))
}

// PreviewScale returns the scale that fits a natural-size base into a
// surface displayedWidth pixels wide.
func PreviewScale(displayedWidth, naturalWidth int) float64 {
	if displayedWidth <= 0 || naturalWidth <= 0 {
		return 1
	}
	return float64(displayedWidth) / float64(naturalWidth)
}

func normalizeScale(scale float64) float64 {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return 1
	}
	return scale
}

// BuildSceneGraph resolves a scene against its base image's natural size at
// the given scale factor. Export uses scale 1; preview uses the displayed to
// natural width ratio. Both go through this function, so they place every
// layer with the same math.
func BuildSceneGraph(scene *document.Scene, naturalWidth, naturalHeight int, scale float64) *SceneGraph {
	scale = normalizeScale(scale)
	w, h := SurfaceSize(naturalWidth, naturalHeight, scale)
	sg := &SceneGraph{
		Width:         w,
		Height:        h,
		Scale:         scale,
		NaturalWidth:  naturalWidth,
		NaturalHeight: naturalHeight,
		NodesByID:     make(map[string]*SceneNode),
	}
	if scene == nil {
		return sg
	}

	sg.Base = buildBase(scene, float64(w), float64(h), scale)

	for _, l := range document.SortByZOrder(scene.Layers) {
		node := buildNode(l, float64(naturalWidth), float64(naturalHeight), scale)
		if node == nil {
			continue
		}
		sg.Nodes = append(sg.Nodes, node)
		sg.NodesByID[node.ID] = node
	}
	return sg
}

// buildBase fills the whole surface, rotated about its center.
func buildBase(scene *document.Scene, w, h, scale float64) *SceneNode {
	m := BoxTransform(0, 0, w, h, finiteOr(scene.BaseRotation, 0))
	return &SceneNode{
		ID:           string(NodeBase),
		Kind:         NodeBase,
		Transform:    m,
		Width:        w,
		Height:       h,
		Opacity:      clampUnit(scene.BaseOpacity),
		Composite:    scene.BaseBlendMode.CompositeOperator(),
		CornerRadius: max(finiteOr(scene.BaseBorderRadius, 0), 0) * scale,
		Source:       scene.BaseImage,
		Bounds:       m.TransformRect(Rect{Width: w, Height: h}),
	}
}

// buildNode places one layer. Positions are percents of the natural size;
// sizes are natural pixels. Everything is multiplied by scale.
func buildNode(l document.Layer, naturalWidth, naturalHeight, scale float64) *SceneNode {
	var kind NodeKind
	switch {
	case l.IsPhoto():
		kind = NodePhoto
	case l.IsText():
		kind = NodeText
	default:
		return nil
	}

	x := finiteOr(l.X, 0) / 100 * naturalWidth * scale
	y := finiteOr(l.Y, 0) / 100 * naturalHeight * scale
	w := max(finiteOr(l.Width, 0), 0) * scale
	h := max(finiteOr(l.Height, 0), 0) * scale

	m := BoxTransform(x, y, w, h, finiteOr(l.Rotation, 0))
	node := &SceneNode{
		ID:           l.ID,
		Kind:         kind,
		Transform:    m,
		Width:        w,
		Height:       h,
		Opacity:      clampUnit(l.Opacity),
		Composite:    l.BlendMode.CompositeOperator(),
		CornerRadius: max(finiteOr(l.CornerRadius, 0), 0) * scale,
		Bounds:       m.TransformRect(Rect{Width: w, Height: h}),
	}

	switch kind {
	case NodePhoto:
		node.Source = l.Photo.Source
	case NodeText:
		t := l.Text
		node.Text = &TextRun{
			Content:       t.Content,
			Family:        t.FontFamily,
			Weight:        t.FontWeight(),
			Italic:        t.Italic,
			Size:          max(finiteOr(t.FontSize, 0), 0) * scale,
			Color:         t.Color,
			LetterSpacing: finiteOr(t.LetterSpacing, 0) * scale,
		}
		node.Text.LineHeight = node.Text.Size * LineHeightFactor
	}
	return node
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 1
	}
	return min(max(v, 0), 1)
}
