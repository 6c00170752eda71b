// Package interaction turns pointer, wheel and keyboard input into layer
// moves and view changes. The controller keeps only presentation state
// (phase, pan, zoom); scene edits are returned as new snapshots for the
// caller to publish.
package interaction

import (
	"math"

	"github.com/templa/templa/backend-go/internal/document"
	"github.com/templa/templa/backend-go/internal/layers"
)

// BaseTarget is the pointer target naming the base image.
const BaseTarget = "base"

const (
	MinPosition = -50.0
	MaxPosition = 150.0
	MinZoom     = 0.1
	MaxZoom     = 5.0
	ZoomIn      = 1.1
	ZoomOut     = 0.9
	SnapStep    = 2.0
)

type Phase int

const (
	Idle Phase = iota
	DraggingLayer
	DraggingBase
	Panning
)

func (p Phase) String() string {
	switch p {
	case DraggingLayer:
		return "dragging-layer"
	case DraggingBase:
		return "dragging-base"
	case Panning:
		return "panning"
	default:
		return "idle"
	}
}

// Rect is the on-screen bounds of the rendering surface, in the same
// coordinate space as pointer events.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// View is the presentation-only transform applied to the whole surface.
type View struct {
	PanX float64 `json:"panX"`
	PanY float64 `json:"panY"`
	Zoom float64 `json:"zoom"`
}

// IdentityView is the view a fresh session starts with.
var IdentityView = View{Zoom: 1}

type PointerEvent struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	// Target is the id of the layer under the pointer, BaseTarget, or empty.
	Target string `json:"target,omitempty"`
}

type WheelEvent struct {
	DeltaY float64 `json:"deltaY"`
	// Zoom reports whether the zoom modifier (ctrl or meta) was held.
	Zoom bool `json:"zoom"`
}

// IsPanKey reports whether key is the pan modifier.
func IsPanKey(key string) bool {
	return key == " " || key == "Space"
}

// Controller is the interaction state machine. It is not safe for concurrent
// use; the owning session serializes events.
type Controller struct {
	phase   Phase
	layerID string
	grabX   float64
	grabY   float64
	lastX   float64
	lastY   float64

	panKey  bool
	snap    bool
	view    View
	surface Rect
}

func NewController() *Controller {
	return &Controller{view: IdentityView}
}

func (c *Controller) Phase() Phase   { return c.phase }
func (c *Controller) View() View     { return c.view }
func (c *Controller) Snap() bool     { return c.snap }
func (c *Controller) PanMode() bool  { return c.panKey }
func (c *Controller) Surface() Rect  { return c.surface }
func (c *Controller) SetSnap(b bool) { c.snap = b }

// SetSurface records where the rendering surface currently sits on screen.
func (c *Controller) SetSurface(r Rect) { c.surface = r }

// Active returns the id of the layer being dragged, BaseTarget while the
// base is held, or empty.
func (c *Controller) Active() string {
	switch c.phase {
	case DraggingLayer:
		return c.layerID
	case DraggingBase:
		return BaseTarget
	}
	return ""
}

// Reset returns to Idle with the identity view. Called on scene switch.
func (c *Controller) Reset() {
	snap := c.snap
	*c = Controller{view: IdentityView, snap: snap, surface: c.surface}
}

// percent converts a pointer position to scene percentages. A degenerate
// surface yields ok == false.
func (c *Controller) percent(x, y float64) (px, py float64, ok bool) {
	if c.surface.Width <= 0 || c.surface.Height <= 0 {
		return 0, 0, false
	}
	px = (x - c.surface.X) / c.surface.Width * 100
	py = (y - c.surface.Y) / c.surface.Height * 100
	return px, py, finite(px) && finite(py)
}

// PointerDown starts a drag, a base hold or a pan.
func (c *Controller) PointerDown(s *document.Scene, ev PointerEvent) {
	if c.panKey {
		c.phase = Panning
		c.lastX, c.lastY = ev.X, ev.Y
		return
	}
	if ev.Target == BaseTarget {
		c.phase = DraggingBase
		return
	}
	if s == nil {
		return
	}
	l, ok := s.Layer(ev.Target)
	if !ok || l.LockEnabled {
		return
	}
	px, py, ok := c.percent(ev.X, ev.Y)
	if !ok {
		return
	}
	c.phase = DraggingLayer
	c.layerID = l.ID
	c.grabX = px - l.X
	c.grabY = py - l.Y
}

// PointerMove advances the active gesture. It returns the next scene and
// whether it differs from s.
func (c *Controller) PointerMove(s *document.Scene, ev PointerEvent) (*document.Scene, bool) {
	switch c.phase {
	case Panning:
		c.view.PanX += ev.X - c.lastX
		c.view.PanY += ev.Y - c.lastY
		c.lastX, c.lastY = ev.X, ev.Y
		return s, false
	case DraggingLayer:
		if s == nil {
			return s, false
		}
		// a layer locked mid-drag stops following the pointer
		if l, ok := s.Layer(c.layerID); !ok || l.LockEnabled {
			return s, false
		}
		px, py, ok := c.percent(ev.X, ev.Y)
		if !ok {
			return s, false
		}
		x, y := c.place(px-c.grabX), c.place(py-c.grabY)
		return layers.UpdateLayer(s, c.layerID, layers.Move(x, y)), true
	}
	return s, false
}

// place snaps then clamps one drag coordinate.
func (c *Controller) place(v float64) float64 {
	if c.snap {
		v = Snap(v)
	}
	return Clamp(v)
}

// PointerUp ends whatever gesture is active.
func (c *Controller) PointerUp() { c.release() }

// PointerLeave ends whatever gesture is active, so releasing the button
// outside the surface never leaves a drag stuck.
func (c *Controller) PointerLeave() { c.release() }

func (c *Controller) release() {
	c.phase = Idle
	c.layerID = ""
	c.grabX, c.grabY = 0, 0
}

// Wheel zooms when the zoom modifier is held and reports whether the event
// was consumed. Unconsumed wheels should scroll normally.
func (c *Controller) Wheel(ev WheelEvent) bool {
	if !ev.Zoom {
		return false
	}
	z := c.view.Zoom
	switch {
	case ev.DeltaY < 0:
		z *= ZoomIn
	case ev.DeltaY > 0:
		z *= ZoomOut
	}
	c.view.Zoom = min(max(z, MinZoom), MaxZoom)
	return true
}

func (c *Controller) KeyDown(key string) {
	if IsPanKey(key) {
		c.panKey = true
	}
}

func (c *Controller) KeyUp(key string) {
	if !IsPanKey(key) {
		return
	}
	c.panKey = false
	if c.phase == Panning {
		c.release()
	}
}

// Snap rounds v to the nearest multiple of SnapStep. Halves round up.
func Snap(v float64) float64 {
	return math.Floor(v/SnapStep+0.5) * SnapStep
}

// Clamp keeps a position within reach of the surface.
func Clamp(v float64) float64 {
	return min(max(v, MinPosition), MaxPosition)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
