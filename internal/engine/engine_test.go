package engine

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/tdewolff/test"

	"github.com/templa/templa/backend-go/internal/document"
)

func placementScene() *document.Scene {
	s := document.NewScene("scene_1", "placement", "base.png", 1)

	p := document.NewPhotoLayer("photo", "p.png", 1)
	p.X, p.Y = 25, 50
	p.Width, p.Height = 100, 40
	p.ZOrder = 2
	p.CornerRadius = 8
	p.BlendMode = document.BlendLinearBurn

	t := document.NewTextLayer("text", 1)
	t.X, t.Y = 10, 10
	t.Width, t.Height = 200, 60
	t.ZOrder = 1
	t.Text.FontFamily = "Inter"
	t.Text.Bold = true
	t.Text.Semibold = true
	t.Text.LetterSpacing = 2

	s.Layers = append(s.Layers, p, t)
	return s
}

func TestBuildPlacement(t *testing.T) {
	for _, scale := range []float64{1, 0.5, 2} {
		sg := BuildSceneGraph(placementScene(), 800, 600, scale)
		test.T(t, sg.Width, int(800*scale))
		test.T(t, sg.Height, int(600*scale))

		test.T(t, len(sg.Nodes), 2)
		test.T(t, sg.Nodes[0].ID, "text")
		test.T(t, sg.Nodes[1].ID, "photo")

		photo := sg.NodesByID["photo"]
		x, y := photo.Transform.TransformPoint(0, 0)
		test.Float(t, x, 0.25*800*scale)
		test.Float(t, y, 0.5*600*scale)
		test.Float(t, photo.Width, 100*scale)
		test.Float(t, photo.Height, 40*scale)
		test.Float(t, photo.CornerRadius, 8*scale)
		test.T(t, photo.Composite, document.BlendMultiply)

		text := sg.NodesByID["text"].Text
		test.Float(t, text.Size, 24*scale)
		test.Float(t, text.LineHeight, 24*scale*1.2)
		test.Float(t, text.LetterSpacing, 2*scale)
		test.T(t, text.Weight, 700)
	}
}

func TestBuildRotationAboutCenter(t *testing.T) {
	s := placementScene()
	s.Layers[0].Rotation = 90
	sg := BuildSceneGraph(s, 800, 600, 1)
	photo := sg.NodesByID["photo"]

	cx, cy := photo.Transform.TransformPoint(50, 20)
	test.Float(t, cx, 200+50)
	test.Float(t, cy, 300+20)

	// top-left corner swings to the top-right under a quarter turn
	x, y := photo.Transform.TransformPoint(0, 0)
	test.Float(t, x, 250+20)
	test.Float(t, y, 320-50)
	test.Float(t, photo.Bounds.Width, 40)
	test.Float(t, photo.Bounds.Height, 100)
}

func TestBuildBase(t *testing.T) {
	s := placementScene()
	s.BaseOpacity = 0.5
	s.BaseBorderRadius = 10
	s.BaseBlendMode = "unknown"
	sg := BuildSceneGraph(s, 300, 200, 0.5)
	test.T(t, sg.Base.Kind, NodeBase)
	test.T(t, sg.Base.Source, "base.png")
	test.Float(t, sg.Base.Width, 150)
	test.Float(t, sg.Base.CornerRadius, 5)
	test.T(t, sg.Base.Opacity, 0.5)
	test.T(t, sg.Base.Composite, document.BlendNormal)
}

func TestBuildInvalidScale(t *testing.T) {
	for _, scale := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		sg := BuildSceneGraph(placementScene(), 80, 60, scale)
		test.T(t, sg.Scale, 1.0)
		test.T(t, sg.Width, 80)
	}
	test.Float(t, PreviewScale(400, 800), 0.5)
	test.Float(t, PreviewScale(0, 800), 1)
}

func TestFontString(t *testing.T) {
	run := TextRun{Family: "Inter", Weight: 600, Italic: true, Size: 12.5}
	test.String(t, run.FontString(), `italic 600 12.5px "Inter", sans-serif`)
	run = TextRun{Family: "Roboto", Weight: 400, Size: 24}
	test.String(t, run.FontString(), `normal 24px "Roboto", sans-serif`)
}

func TestCompileDrawCommands(t *testing.T) {
	sg := BuildSceneGraph(placementScene(), 800, 600, 1)
	cmds := CompileDrawCommands(sg)

	var ops []string
	for _, c := range cmds {
		ops = append(ops, c.Op+":"+c.ObjectID)
	}
	test.T(t, ops, []string{
		"save:base", "image:base", "restore:base",
		"save:text", "text:text", "restore:text",
		"save:photo", "clip:photo", "image:photo", "restore:photo",
	})
	test.T(t, cmds[6].Composite, "multiply")

	js, err := DrawCommandsToJSON(cmds)
	test.Error(t, err)
	var decoded []map[string]any
	test.Error(t, json.Unmarshal([]byte(js), &decoded))
	test.T(t, len(decoded), len(cmds))
	_, ok := decoded[0]["opacity"]
	test.That(t, ok, "save carries opacity")
	_, ok = decoded[2]["opacity"]
	test.T(t, ok, false)
}

func TestRoundRectPathClampsRadius(t *testing.T) {
	path := RoundRectPath(10, 4, 50)
	test.T(t, path[0], PathCommand{"M", 2.0, 0.0})
	test.T(t, len(RoundRectPath(10, 4, 0)), 5)
}

func TestHitTest(t *testing.T) {
	s := placementScene()
	s.Layers[0].X, s.Layers[0].Y = 10, 10
	s.Layers[0].Width, s.Layers[0].Height = 50, 50
	s.Layers[0].Rotation = 45
	sg := BuildSceneGraph(s, 800, 600, 1)

	// photo (front) overlaps text at its center
	test.T(t, HitTest(sg, 80+25, 60+25), "photo")
	// inside the photo's bounding box but outside the rotated square
	test.T(t, HitTest(sg, 81, 61), "text")
	test.T(t, HitTest(sg, 700, 500), "base")
	test.T(t, HitTest(sg, 900, 500), "")

	hit := HitTestLocal(sg, 80+25, 60+25)
	test.T(t, hit.ObjectID, "photo")
	test.Float(t, hit.X, 25)
	test.Float(t, hit.Y, 25)
	test.T(t, HitTestLocal(nil, 0, 0), HitTestResult{})

	bounds := GetSelectionBounds(sg, []string{"photo", "missing"})
	test.Float(t, bounds.Width, 50*math.Sqrt2)
}
