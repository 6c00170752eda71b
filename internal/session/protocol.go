package session

import (
	"encoding/json"

	"github.com/templa/templa/backend-go/internal/document"
	"github.com/templa/templa/backend-go/internal/engine"
	"github.com/templa/templa/backend-go/internal/interaction"
	"github.com/templa/templa/backend-go/internal/layers"
)

type Message struct {
	Type    string          `json:"type"`
	Seq     int64           `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	// Input
	TypePointerDown  = "pointer.down"
	TypePointerMove  = "pointer.move"
	TypePointerUp    = "pointer.up"
	TypePointerLeave = "pointer.leave"
	TypeWheel        = "wheel"
	TypeKeyDown      = "key.down"
	TypeKeyUp        = "key.up"
	TypeSurface      = "surface.update"

	// Layer store
	TypeLayerAdd          = "layer.add"
	TypeLayerUpdate       = "layer.update"
	TypeLayerRemove       = "layer.remove"
	TypeLayerReorder      = "layer.reorder"
	TypeLayerResizeWidth  = "layer.resizeWidth"
	TypeLayerResizeHeight = "layer.resizeHeight"
	TypeLayerToggleLock   = "layer.toggleLock"
	TypeBaseUpdate        = "base.update"

	TypeRender = "render"
	TypeSave   = "save"

	// Server replies
	TypeSceneState     = "scene.state"
	TypeRenderCommands = "render.commands"
	TypeSaved          = "saved"
	TypeError          = "error"
)

type KeyPayload struct {
	Key string `json:"key"`
}

// SurfacePayload tells the session where the preview sits on screen and how
// wide it is drawn.
type SurfacePayload struct {
	Surface      interaction.Rect `json:"surface"`
	DisplayWidth int              `json:"displayWidth,omitempty"`
	Snap         *bool            `json:"snap,omitempty"`
}

type LayerAddPayload struct {
	Kind   document.LayerKind `json:"kind"`
	Color  string             `json:"color,omitempty"`
	Source string             `json:"source,omitempty"`
}

type LayerIDPayload struct {
	ID string `json:"id"`
}

type LayerUpdatePayload struct {
	ID    string       `json:"id"`
	Patch layers.Patch `json:"patch"`
}

type LayerReorderPayload struct {
	ID        string           `json:"id"`
	Direction layers.Direction `json:"direction"`
}

type LayerResizePayload struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
}

type SceneStatePayload struct {
	Scene         *document.Scene  `json:"scene"`
	Phase         string           `json:"phase"`
	View          interaction.View `json:"view"`
	Active        string           `json:"active,omitempty"`
	NaturalWidth  int              `json:"naturalWidth"`
	NaturalHeight int              `json:"naturalHeight"`
	PendingLoads  int              `json:"pendingLoads"`
	// Added is the id of the layer a layer.add created.
	Added string `json:"added,omitempty"`
}

type RenderCommandsPayload struct {
	Width    int                  `json:"width"`
	Height   int                  `json:"height"`
	Scale    float64              `json:"scale"`
	Commands []engine.DrawCommand `json:"commands"`
}

type SavedPayload struct {
	ID           string `json:"id"`
	LastModified int64  `json:"lastModified"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	// Ref is the type of the message that caused the error.
	Ref string `json:"ref,omitempty"`
}
