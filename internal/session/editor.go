package session

import (
	"math"

	"github.com/templa/templa/backend-go/internal/document"
	"github.com/templa/templa/backend-go/internal/engine"
	"github.com/templa/templa/backend-go/internal/interaction"
	"github.com/templa/templa/backend-go/internal/layers"
	"github.com/templa/templa/backend-go/internal/typeid"
)

// Editor owns the active scene snapshot and the interaction state for one
// editing session. Every operation computes a complete next snapshot before
// publishing it, so readers never see a partial edit. An Editor is not safe
// for concurrent use; its owner serializes calls.
type Editor struct {
	scene *document.Scene
	ctrl  *interaction.Controller

	naturalWidth  int
	naturalHeight int
	scale         float64

	// Retained scene graph
	graph *engine.SceneGraph
	dirty bool

	loads   map[string]uint64 // target -> newest load
	loadSeq uint64

	newLayerID func() string
}

// NewEditor creates an editor with no scene loaded.
func NewEditor() *Editor {
	return &Editor{
		ctrl:       interaction.NewController(),
		scale:      1,
		dirty:      true,
		loads:      make(map[string]uint64),
		newLayerID: typeid.NewLayerID,
	}
}

// --- Scene lifecycle ---

// Load makes scene the active snapshot. Switching scenes resets the
// controller to Idle with the identity view and forgets in-flight image
// loads. The natural size is unknown until the base image load completes.
func (e *Editor) Load(scene *document.Scene) {
	e.scene = scene
	e.ctrl.Reset()
	e.loads = make(map[string]uint64)
	e.naturalWidth, e.naturalHeight = 0, 0
	e.dirty = true
}

// Scene returns the current snapshot. Callers must not modify it.
func (e *Editor) Scene() *document.Scene { return e.scene }

func (e *Editor) Controller() *interaction.Controller { return e.ctrl }

// SetNaturalSize records the decoded base image size.
func (e *Editor) SetNaturalSize(w, h int) {
	if w == e.naturalWidth && h == e.naturalHeight {
		return
	}
	e.naturalWidth, e.naturalHeight = w, h
	e.dirty = true
}

func (e *Editor) NaturalSize() (int, int) { return e.naturalWidth, e.naturalHeight }

// SetDisplayWidth sizes the preview to displayedWidth pixels.
func (e *Editor) SetDisplayWidth(displayedWidth int) {
	e.SetScale(engine.PreviewScale(displayedWidth, e.naturalWidth))
}

func (e *Editor) SetScale(scale float64) {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		scale = 1
	}
	if scale != e.scale {
		e.scale = scale
		e.dirty = true
	}
}

func (e *Editor) Scale() float64 { return e.scale }

// publish swaps in next and reports whether it differs from the current
// snapshot.
func (e *Editor) publish(next *document.Scene) bool {
	if next == nil || next == e.scene {
		return false
	}
	e.scene = next
	e.dirty = true
	return true
}

// --- Input ---

// PointerDown starts a gesture. An empty target is resolved by hit testing
// the pointer against the current scene graph.
func (e *Editor) PointerDown(ev interaction.PointerEvent) {
	if ev.Target == "" {
		if x, y, ok := e.surfacePoint(ev.X, ev.Y); ok {
			ev.Target = e.HitTest(x, y)
		}
	}
	e.ctrl.PointerDown(e.scene, ev)
}

// PointerMove advances the gesture and reports whether the scene changed.
func (e *Editor) PointerMove(ev interaction.PointerEvent) bool {
	next, changed := e.ctrl.PointerMove(e.scene, ev)
	return changed && e.publish(next)
}

func (e *Editor) PointerUp()    { e.ctrl.PointerUp() }
func (e *Editor) PointerLeave() { e.ctrl.PointerLeave() }

func (e *Editor) Wheel(ev interaction.WheelEvent) bool { return e.ctrl.Wheel(ev) }
func (e *Editor) KeyDown(key string)                   { e.ctrl.KeyDown(key) }
func (e *Editor) KeyUp(key string)                     { e.ctrl.KeyUp(key) }

// surfacePoint maps a pointer position to surface pixels.
func (e *Editor) surfacePoint(x, y float64) (float64, float64, bool) {
	r := e.ctrl.Surface()
	g := e.Graph()
	if r.Width <= 0 || r.Height <= 0 || g == nil {
		return 0, 0, false
	}
	return (x - r.X) / r.Width * float64(g.Width), (y - r.Y) / r.Height * float64(g.Height), true
}

// --- Layer operations ---

// AddText adds a default text layer and returns its id.
func (e *Editor) AddText(color string) string {
	if e.scene == nil {
		return ""
	}
	id := e.newLayerID()
	e.publish(layers.AddText(e.scene, id, color))
	return id
}

// AddPhoto adds a photo layer showing source and starts the load that
// refines its aspect ratio once the image is decoded.
func (e *Editor) AddPhoto(source string) (string, ImageLoad) {
	if e.scene == nil {
		return "", ImageLoad{}
	}
	id := e.newLayerID()
	e.publish(layers.AddPhoto(e.scene, id, source))
	return id, e.BeginImageLoad(id, source)
}

func (e *Editor) Remove(id string) bool {
	if e.scene == nil {
		return false
	}
	delete(e.loads, id)
	return e.publish(layers.RemoveLayer(e.scene, id))
}

// Update merges a partial update. A new photo source is not applied
// directly; it starts an image load and takes effect when that completes,
// keeping the previous image visible meanwhile.
func (e *Editor) Update(id string, p layers.Patch) (bool, *ImageLoad) {
	if e.scene == nil {
		return false, nil
	}
	var load *ImageLoad
	if p.Photo != nil && p.Photo.Source != nil {
		if l, ok := e.scene.Layer(id); ok && l.IsPhoto() && l.Photo.Source != *p.Photo.Source {
			next := e.BeginImageLoad(id, *p.Photo.Source)
			load = &next
		}
		photo := *p.Photo
		photo.Source = nil
		p.Photo = &photo
	}
	return e.publish(layers.UpdateLayer(e.scene, id, p)), load
}

func (e *Editor) Reorder(id string, dir layers.Direction) bool {
	if e.scene == nil {
		return false
	}
	return e.publish(layers.Reorder(e.scene, id, dir))
}

func (e *Editor) ResizeWidth(id string, w float64) bool {
	if e.scene == nil {
		return false
	}
	return e.publish(layers.ResizeWidth(e.scene, id, w))
}

func (e *Editor) ResizeHeight(id string, h float64) bool {
	if e.scene == nil {
		return false
	}
	return e.publish(layers.ResizeHeight(e.scene, id, h))
}

func (e *Editor) ToggleLock(id string) bool {
	if e.scene == nil {
		return false
	}
	return e.publish(layers.ToggleAspectLock(e.scene, id))
}

// UpdateBase merges base styling. A new base image starts a load like
// Update does for photo sources.
func (e *Editor) UpdateBase(p layers.BasePatch) (bool, *ImageLoad) {
	if e.scene == nil {
		return false, nil
	}
	var load *ImageLoad
	if p.BaseImage != nil {
		if *p.BaseImage != e.scene.BaseImage {
			next := e.BeginImageLoad(interaction.BaseTarget, *p.BaseImage)
			load = &next
		}
		p.BaseImage = nil
	}
	return e.publish(layers.UpdateBase(e.scene, p)), load
}

// --- Image loads ---

// ImageLoad identifies one image decode. Target is a layer id or
// interaction.BaseTarget.
type ImageLoad struct {
	Target string `json:"target"`
	Source string `json:"source"`
	Seq    uint64 `json:"seq"`
}

// BeginImageLoad registers a decode of source for target. Any earlier load
// for the same target is superseded.
func (e *Editor) BeginImageLoad(target, source string) ImageLoad {
	e.loadSeq++
	e.loads[target] = e.loadSeq
	return ImageLoad{Target: target, Source: source, Seq: e.loadSeq}
}

// CompleteImageLoad applies a finished decode of width x height pixels. A
// superseded load, or one whose layer has since been removed, is ignored.
// It reports whether the scene or its natural size changed.
func (e *Editor) CompleteImageLoad(load ImageLoad, width, height int) bool {
	if !e.current(load) {
		return false
	}
	delete(e.loads, load.Target)
	if e.scene == nil {
		return false
	}

	if load.Target == interaction.BaseTarget {
		changed := false
		if load.Source != e.scene.BaseImage {
			src := load.Source
			changed = e.publish(layers.UpdateBase(e.scene, layers.BasePatch{BaseImage: &src}))
		}
		if width != e.naturalWidth || height != e.naturalHeight {
			e.SetNaturalSize(width, height)
			changed = true
		}
		return changed
	}
	l, ok := e.scene.Layer(load.Target)
	if !ok || !l.IsPhoto() {
		return false
	}
	if next := l.ApplyImageSize(width, height); l.Photo.Source == load.Source && *next.Photo == *l.Photo && next.Height == l.Height {
		return false
	}
	return e.publish(layers.ReplacePhoto(e.scene, load.Target, load.Source, width, height))
}

// FailImageLoad drops a failed decode. The target keeps its previous image.
func (e *Editor) FailImageLoad(load ImageLoad) bool {
	if !e.current(load) {
		return false
	}
	delete(e.loads, load.Target)
	return true
}

// PendingLoads returns the number of in-flight image loads.
func (e *Editor) PendingLoads() int { return len(e.loads) }

func (e *Editor) current(load ImageLoad) bool {
	seq, ok := e.loads[load.Target]
	return ok && seq == load.Seq
}

// --- Queries ---

// Graph returns the scene graph for the current snapshot, rebuilding it
// only when something changed.
func (e *Editor) Graph() *engine.SceneGraph {
	if e.dirty || e.graph == nil {
		e.graph = engine.BuildSceneGraph(e.scene, e.naturalWidth, e.naturalHeight, e.scale)
		e.dirty = false
	}
	return e.graph
}

// Commands compiles the current scene into a display list.
func (e *Editor) Commands() []engine.DrawCommand {
	if e.scene == nil {
		return nil
	}
	return engine.CompileDrawCommands(e.Graph())
}

// Render returns the display list as JSON.
func (e *Editor) Render() string {
	if e.scene == nil {
		return "[]"
	}
	result, _ := engine.DrawCommandsToJSON(e.Commands())
	return result
}

// HitTest returns the topmost layer id at a surface pixel, "base", or empty.
func (e *Editor) HitTest(x, y float64) string {
	if e.scene == nil {
		return ""
	}
	return engine.HitTest(e.Graph(), x, y)
}

// HitTestLocal is HitTest that also reports the point in the hit node's box.
func (e *Editor) HitTestLocal(x, y float64) engine.HitTestResult {
	if e.scene == nil {
		return engine.HitTestResult{}
	}
	return engine.HitTestLocal(e.Graph(), x, y)
}

// SelectionBounds returns the surface-space bounds of the given ids.
func (e *Editor) SelectionBounds(ids []string) engine.Rect {
	if e.scene == nil {
		return engine.Rect{}
	}
	return engine.GetSelectionBounds(e.Graph(), ids)
}
