//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/templa/templa/backend-go/internal/document"
	"github.com/templa/templa/backend-go/internal/engine"
	"github.com/templa/templa/backend-go/internal/interaction"
	"github.com/templa/templa/backend-go/internal/layers"
	"github.com/templa/templa/backend-go/internal/session"
)

var ed *session.Editor

func main() {
	ed = session.NewEditor()

	// Create the editor API object
	templaEditor := js.Global().Get("Object").New()

	// --- Commands (frontend → editor) ---
	templaEditor.Set("loadScene", js.FuncOf(loadScene))
	templaEditor.Set("setNaturalSize", js.FuncOf(setNaturalSize))
	templaEditor.Set("setDisplayWidth", js.FuncOf(setDisplayWidth))
	templaEditor.Set("setSurface", js.FuncOf(setSurface))
	templaEditor.Set("setSnap", js.FuncOf(setSnap))
	templaEditor.Set("pointerDown", js.FuncOf(pointerDown))
	templaEditor.Set("pointerMove", js.FuncOf(pointerMove))
	templaEditor.Set("pointerUp", js.FuncOf(pointerUp))
	templaEditor.Set("pointerLeave", js.FuncOf(pointerLeave))
	templaEditor.Set("wheel", js.FuncOf(wheel))
	templaEditor.Set("keyDown", js.FuncOf(keyDown))
	templaEditor.Set("keyUp", js.FuncOf(keyUp))
	templaEditor.Set("addText", js.FuncOf(addText))
	templaEditor.Set("addPhoto", js.FuncOf(addPhoto))
	templaEditor.Set("updateLayer", js.FuncOf(updateLayer))
	templaEditor.Set("removeLayer", js.FuncOf(removeLayer))
	templaEditor.Set("reorderLayer", js.FuncOf(reorderLayer))
	templaEditor.Set("resizeWidth", js.FuncOf(resizeWidth))
	templaEditor.Set("resizeHeight", js.FuncOf(resizeHeight))
	templaEditor.Set("toggleLock", js.FuncOf(toggleLock))
	templaEditor.Set("updateBase", js.FuncOf(updateBase))
	templaEditor.Set("beginImageLoad", js.FuncOf(beginImageLoad))
	templaEditor.Set("completeImageLoad", js.FuncOf(completeImageLoad))
	templaEditor.Set("failImageLoad", js.FuncOf(failImageLoad))

	// --- Queries (frontend ← editor) ---
	templaEditor.Set("render", js.FuncOf(render))
	templaEditor.Set("hitTest", js.FuncOf(hitTest))
	templaEditor.Set("getSelectionBounds", js.FuncOf(getSelectionBounds))
	templaEditor.Set("getScene", js.FuncOf(getScene))
	templaEditor.Set("getState", js.FuncOf(getState))

	// Register on global scope
	js.Global().Set("templaEditor", templaEditor)

	// Signal that WASM is ready
	js.Global().Set("templaWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func errorResult(msg string) interface{} {
	return js.ValueOf(map[string]interface{}{"error": msg})
}

func okResult() interface{} {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

// stringResult returns v as JSON, the way queries hand data to the frontend.
func stringResult(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return js.ValueOf("")
	}
	return js.ValueOf(string(data))
}

// --- Command Handlers ---

func loadScene(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("missing scene JSON")
	}

	scene, err := document.Decode([]byte(args[0].String()))
	if err != nil {
		return errorResult(err.Error())
	}

	ed.Load(scene)
	return okResult()
}

func setNaturalSize(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	ed.SetNaturalSize(args[0].Int(), args[1].Int())
	return nil
}

func setDisplayWidth(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	ed.SetDisplayWidth(args[0].Int())
	return nil
}

func setSurface(this js.Value, args []js.Value) interface{} {
	if len(args) < 4 {
		return nil
	}
	ed.Controller().SetSurface(interaction.Rect{
		X:      args[0].Float(),
		Y:      args[1].Float(),
		Width:  args[2].Float(),
		Height: args[3].Float(),
	})
	return nil
}

func setSnap(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	ed.Controller().SetSnap(args[0].Truthy())
	return nil
}

func pointerEvent(args []js.Value) (interaction.PointerEvent, bool) {
	if len(args) < 2 {
		return interaction.PointerEvent{}, false
	}
	ev := interaction.PointerEvent{X: args[0].Float(), Y: args[1].Float()}
	if len(args) > 2 && args[2].Type() == js.TypeString {
		ev.Target = args[2].String()
	}
	return ev, true
}

func pointerDown(this js.Value, args []js.Value) interface{} {
	ev, ok := pointerEvent(args)
	if !ok {
		return nil
	}
	ed.PointerDown(ev)
	return js.ValueOf(ed.Controller().Active())
}

// pointerMove returns true when the scene changed and needs a re-render.
func pointerMove(this js.Value, args []js.Value) interface{} {
	ev, ok := pointerEvent(args)
	if !ok {
		return js.ValueOf(false)
	}
	return js.ValueOf(ed.PointerMove(ev))
}

func pointerUp(this js.Value, args []js.Value) interface{} {
	ed.PointerUp()
	return nil
}

func pointerLeave(this js.Value, args []js.Value) interface{} {
	ed.PointerLeave()
	return nil
}

func wheel(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf(false)
	}
	return js.ValueOf(ed.Wheel(interaction.WheelEvent{DeltaY: args[0].Float(), Zoom: args[1].Truthy()}))
}

func keyDown(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	ed.KeyDown(args[0].String())
	return nil
}

func keyUp(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	ed.KeyUp(args[0].String())
	return nil
}

func addText(this js.Value, args []js.Value) interface{} {
	color := ""
	if len(args) > 0 && args[0].Type() == js.TypeString {
		color = args[0].String()
	}
	return js.ValueOf(ed.AddText(color))
}

// addPhoto returns {id, load}; the frontend decodes the image and reports
// back through completeImageLoad.
func addPhoto(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("missing source")
	}
	id, load := ed.AddPhoto(args[0].String())
	return stringResult(map[string]interface{}{"id": id, "load": load})
}

func updateLayer(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("missing id or patch")
	}
	var patch layers.Patch
	if err := json.Unmarshal([]byte(args[1].String()), &patch); err != nil {
		return errorResult(err.Error())
	}
	changed, load := ed.Update(args[0].String(), patch)
	return stringResult(map[string]interface{}{"changed": changed, "load": load})
}

func removeLayer(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(false)
	}
	return js.ValueOf(ed.Remove(args[0].String()))
}

func reorderLayer(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf(false)
	}
	return js.ValueOf(ed.Reorder(args[0].String(), layers.Direction(args[1].String())))
}

func resizeWidth(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf(false)
	}
	return js.ValueOf(ed.ResizeWidth(args[0].String(), args[1].Float()))
}

func resizeHeight(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf(false)
	}
	return js.ValueOf(ed.ResizeHeight(args[0].String(), args[1].Float()))
}

func toggleLock(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(false)
	}
	return js.ValueOf(ed.ToggleLock(args[0].String()))
}

func updateBase(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("missing patch")
	}
	var patch layers.BasePatch
	if err := json.Unmarshal([]byte(args[0].String()), &patch); err != nil {
		return errorResult(err.Error())
	}
	changed, load := ed.UpdateBase(patch)
	return stringResult(map[string]interface{}{"changed": changed, "load": load})
}

func beginImageLoad(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("missing target or source")
	}
	return stringResult(ed.BeginImageLoad(args[0].String(), args[1].String()))
}

func decodeLoad(v js.Value) (session.ImageLoad, bool) {
	var load session.ImageLoad
	if err := json.Unmarshal([]byte(v.String()), &load); err != nil {
		return load, false
	}
	return load, true
}

func completeImageLoad(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return js.ValueOf(false)
	}
	load, ok := decodeLoad(args[0])
	if !ok {
		return js.ValueOf(false)
	}
	return js.ValueOf(ed.CompleteImageLoad(load, args[1].Int(), args[2].Int()))
}

func failImageLoad(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(false)
	}
	load, ok := decodeLoad(args[0])
	if !ok {
		return js.ValueOf(false)
	}
	return js.ValueOf(ed.FailImageLoad(load))
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(ed.Render())
}

func hitTest(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return stringResult(engine.HitTestResult{})
	}
	return stringResult(ed.HitTestLocal(args[0].Float(), args[1].Float()))
}

func getSelectionBounds(this js.Value, args []js.Value) interface{} {
	var ids []string
	if len(args) > 0 && args[0].Type() == js.TypeObject {
		length := args[0].Length()
		ids = make([]string, length)
		for i := 0; i < length; i++ {
			ids[i] = args[0].Index(i).String()
		}
	}
	return js.ValueOf(engine.RectToJSON(ed.SelectionBounds(ids)))
}

func getScene(this js.Value, args []js.Value) interface{} {
	scene := ed.Scene()
	if scene == nil {
		return js.ValueOf("")
	}
	data, err := document.Marshal(scene)
	if err != nil {
		return js.ValueOf("")
	}
	return js.ValueOf(string(data))
}

func getState(this js.Value, args []js.Value) interface{} {
	w, h := ed.NaturalSize()
	c := ed.Controller()
	return stringResult(map[string]interface{}{
		"phase":         c.Phase().String(),
		"view":          c.View(),
		"active":        c.Active(),
		"snap":          c.Snap(),
		"panMode":       c.PanMode(),
		"naturalWidth":  w,
		"naturalHeight": h,
		"scale":         ed.Scale(),
		"pendingLoads":  ed.PendingLoads(),
	})
}
