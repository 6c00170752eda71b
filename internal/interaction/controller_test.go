package interaction

import (
	"testing"

	"github.com/tdewolff/test"

	"github.com/templa/templa/backend-go/internal/document"
)

func testScene() *document.Scene {
	s := document.NewScene("scene_1", "drag", "base.png", 1)
	a := document.NewPhotoLayer("a", "a.png", 1)
	a.X, a.Y, a.ZOrder = 10, 20, 1
	locked := document.NewTextLayer("locked", 1)
	locked.LockEnabled, locked.ZOrder = true, 2
	s.Layers = append(s.Layers, a, locked)
	return s
}

// surface maps 1 pixel to 1 percent.
func newController() *Controller {
	c := NewController()
	c.SetSurface(Rect{X: 0, Y: 0, Width: 100, Height: 100})
	return c
}

func position(t *testing.T, s *document.Scene, id string) (float64, float64) {
	t.Helper()
	l, ok := s.Layer(id)
	test.That(t, ok, "layer", id, "missing")
	return l.X, l.Y
}

func TestDragKeepsGrabOffset(t *testing.T) {
	c := newController()
	s := testScene()
	c.PointerDown(s, PointerEvent{X: 15, Y: 30, Target: "a"})
	test.T(t, c.Phase(), DraggingLayer)
	test.T(t, c.Active(), "a")

	next, changed := c.PointerMove(s, PointerEvent{X: 25, Y: 35})
	test.T(t, changed, true)
	x, y := position(t, next, "a")
	test.Float(t, x, 20)
	test.Float(t, y, 25)

	x, y = position(t, s, "a")
	test.Float(t, x, 10)
	test.Float(t, y, 20)
}

func TestDragClamp(t *testing.T) {
	c := newController()
	s := testScene()
	c.PointerDown(s, PointerEvent{X: 10, Y: 20, Target: "a"})
	next, _ := c.PointerMove(s, PointerEvent{X: 200, Y: -80})
	x, y := position(t, next, "a")
	test.T(t, x, 150.0)
	test.T(t, y, -50.0)
}

func TestDragSnap(t *testing.T) {
	c := newController()
	c.SetSnap(true)
	s := testScene()
	c.PointerDown(s, PointerEvent{X: 10, Y: 20, Target: "a"})
	next, _ := c.PointerMove(s, PointerEvent{X: 17.3, Y: 41})
	x, y := position(t, next, "a")
	test.Float(t, x, 18)
	test.Float(t, y, 42)

	test.Float(t, Snap(-3.2), -4)
	test.Float(t, Snap(149.1), 150)
	test.Float(t, Clamp(Snap(151.5)), 150)
}

func TestDragScaledSurface(t *testing.T) {
	c := NewController()
	c.SetSurface(Rect{X: 100, Y: 50, Width: 400, Height: 200})
	s := testScene()
	c.PointerDown(s, PointerEvent{X: 140, Y: 90, Target: "a"})
	next, _ := c.PointerMove(s, PointerEvent{X: 180, Y: 110})
	x, y := position(t, next, "a")
	test.Float(t, x, 20)
	test.Float(t, y, 30)
}

func TestLockedLayerIgnoresDrag(t *testing.T) {
	c := newController()
	s := testScene()
	c.PointerDown(s, PointerEvent{X: 50, Y: 50, Target: "locked"})
	test.T(t, c.Phase(), Idle)
	next, changed := c.PointerMove(s, PointerEvent{X: 60, Y: 60})
	test.T(t, changed, false)
	test.T(t, next == s, true)
}

func TestLockDuringDrag(t *testing.T) {
	c := newController()
	s := testScene()
	c.PointerDown(s, PointerEvent{X: 10, Y: 20, Target: "a"})

	s.Layers[0].LockEnabled = true
	next, changed := c.PointerMove(s, PointerEvent{X: 40, Y: 40})
	test.T(t, changed, false)
	test.T(t, next == s, true)
	x, _ := position(t, s, "a")
	test.Float(t, x, 10)
}

func TestBaseHold(t *testing.T) {
	c := newController()
	s := testScene()
	c.PointerDown(s, PointerEvent{X: 50, Y: 50, Target: BaseTarget})
	test.T(t, c.Phase(), DraggingBase)
	test.T(t, c.Active(), BaseTarget)
	_, changed := c.PointerMove(s, PointerEvent{X: 60, Y: 60})
	test.T(t, changed, false)
	c.PointerUp()
	test.T(t, c.Phase(), Idle)
}

func TestPanning(t *testing.T) {
	c := newController()
	s := testScene()
	c.KeyDown(" ")
	c.PointerDown(s, PointerEvent{X: 10, Y: 10, Target: "a"})
	test.T(t, c.Phase(), Panning)

	next, changed := c.PointerMove(s, PointerEvent{X: 25, Y: 5})
	test.T(t, changed, false)
	test.T(t, next == s, true)
	c.PointerMove(s, PointerEvent{X: 30, Y: 0})
	test.T(t, c.View(), View{PanX: 20, PanY: -10, Zoom: 1})

	c.KeyUp("Space")
	test.T(t, c.Phase(), Idle)
	test.T(t, c.PanMode(), false)
}

func TestPointerLeaveReleases(t *testing.T) {
	for _, end := range []func(*Controller){(*Controller).PointerUp, (*Controller).PointerLeave} {
		c := newController()
		s := testScene()
		c.PointerDown(s, PointerEvent{X: 10, Y: 20, Target: "a"})
		end(c)
		test.T(t, c.Phase(), Idle)
		_, changed := c.PointerMove(s, PointerEvent{X: 90, Y: 90})
		test.T(t, changed, false)
	}
}

func TestWheel(t *testing.T) {
	c := newController()
	test.T(t, c.Wheel(WheelEvent{DeltaY: -100}), false)
	test.T(t, c.View().Zoom, 1.0)

	test.T(t, c.Wheel(WheelEvent{DeltaY: -100, Zoom: true}), true)
	test.Float(t, c.View().Zoom, 1.1)
	c.Wheel(WheelEvent{DeltaY: 100, Zoom: true})
	test.Float(t, c.View().Zoom, 0.99)
	c.Wheel(WheelEvent{Zoom: true})
	test.Float(t, c.View().Zoom, 0.99)

	for range 100 {
		c.Wheel(WheelEvent{DeltaY: -1, Zoom: true})
	}
	test.T(t, c.View().Zoom, MaxZoom)
	for range 100 {
		c.Wheel(WheelEvent{DeltaY: 1, Zoom: true})
	}
	test.T(t, c.View().Zoom, MinZoom)
}

func TestReset(t *testing.T) {
	c := newController()
	c.SetSnap(true)
	c.KeyDown(" ")
	c.PointerDown(testScene(), PointerEvent{X: 0, Y: 0})
	c.PointerMove(nil, PointerEvent{X: 40, Y: 40})
	c.Wheel(WheelEvent{DeltaY: -1, Zoom: true})

	c.Reset()
	test.T(t, c.Phase(), Idle)
	test.T(t, c.View(), IdentityView)
	test.T(t, c.PanMode(), false)
	test.T(t, c.Snap(), true)
}
