package engine

import (
	"encoding/json"
)

// PathCommand represents a single path segment.
// Format matches Canvas2D: ["M", x, y], ["L", x, y], ["C", x1, y1, x2, y2, x, y], ["Z"].
type PathCommand []interface{}

// DrawCommand represents a single drawing operation. The rasterizer executes
// the list in order; a browser client can replay it on a Canvas2D context.
type DrawCommand struct {
	Op        string        `json:"op"`                  // "save", "clip", "image", "text", "restore"
	ObjectID  string        `json:"objectId,omitempty"`  // For hit correlation
	Transform []float64     `json:"transform,omitempty"` // [a, b, c, d, e, f] affine matrix
	Path      []PathCommand `json:"path,omitempty"`      // Clip path in box coordinates
	Opacity   *float64      `json:"opacity,omitempty"`   // Global alpha, set by "save"
	Composite string        `json:"composite,omitempty"` // Blend operator, set by "save"
	Bounds    *Rect         `json:"bounds,omitempty"`    // Surface area the layer may touch
	Source    string        `json:"source,omitempty"`    // Image URI
	Width     float64       `json:"width,omitempty"`     // Box width
	Height    float64       `json:"height,omitempty"`    // Box height
	Text      *TextRun      `json:"text,omitempty"`
}

const (
	OpSave    = "save"
	OpClip    = "clip"
	OpImage   = "image"
	OpText    = "text"
	OpRestore = "restore"
)

// CompileDrawCommands generates a draw command buffer from a scene graph.
// Commands are in painter's order (back to front), base first. Every node is
// bracketed by save/restore so state never leaks into the next one.
func CompileDrawCommands(sg *SceneGraph) []DrawCommand {
	if sg == nil {
		return nil
	}

	var commands []DrawCommand
	if sg.Base != nil {
		compileNode(sg.Base, &commands)
	}
	for _, node := range sg.Nodes {
		compileNode(node, &commands)
	}
	return commands
}

// compileNode generates draw commands for one node.
func compileNode(node *SceneNode, commands *[]DrawCommand) {
	bounds := node.Bounds
	opacity := node.Opacity
	*commands = append(*commands, DrawCommand{
		Op:        OpSave,
		ObjectID:  node.ID,
		Opacity:   &opacity,
		Composite: string(node.Composite),
		Bounds:    &bounds,
	})

	transform := node.Transform.ToSlice()

	switch node.Kind {
	case NodeBase, NodePhoto:
		if node.CornerRadius > 0 {
			*commands = append(*commands, DrawCommand{
				Op:        OpClip,
				ObjectID:  node.ID,
				Transform: transform,
				Path:      RoundRectPath(node.Width, node.Height, node.CornerRadius),
			})
		}
		*commands = append(*commands, DrawCommand{
			Op:        OpImage,
			ObjectID:  node.ID,
			Transform: transform,
			Source:    node.Source,
			Width:     node.Width,
			Height:    node.Height,
		})

	case NodeText:
		*commands = append(*commands, DrawCommand{
			Op:        OpText,
			ObjectID:  node.ID,
			Transform: transform,
			Width:     node.Width,
			Height:    node.Height,
			Text:      node.Text,
		})
	}

	*commands = append(*commands, DrawCommand{Op: OpRestore, ObjectID: node.ID})
}

// RoundRectPath generates a w x h rounded rectangle with its top-left corner
// at the origin. Like canvas roundRect, the radius shrinks to fit the box.
func RoundRectPath(w, h, r float64) []PathCommand {
	r = min(r, w/2, h/2)
	if r <= 0 {
		return []PathCommand{
			{"M", 0.0, 0.0},
			{"L", w, 0.0},
			{"L", w, h},
			{"L", 0.0, h},
			{"Z"},
		}
	}

	// Magic number for bezier approximation of a circle/ellipse
	// k = 4 * (sqrt(2) - 1) / 3 ≈ 0.5522847498
	k := r * 0.5522847498
	return []PathCommand{
		{"M", r, 0.0},
		{"L", w - r, 0.0},
		{"C", w - r + k, 0.0, w, r - k, w, r},
		{"L", w, h - r},
		{"C", w, h - r + k, w - r + k, h, w - r, h},
		{"L", r, h},
		{"C", r - k, h, 0.0, h - r + k, 0.0, h - r},
		{"L", 0.0, r},
		{"C", 0.0, r - k, r - k, 0.0, r, 0.0},
		{"Z"},
	}
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}

// HitTestResult is a hit with the point expressed in the node's own box,
// origin at its top-left corner.
type HitTestResult struct {
	ObjectID string  `json:"objectId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// HitTest returns the ID of the topmost node containing the surface point:
// a layer ID, "base", or empty. Rotated nodes are tested against their
// actual box, not their bounding box.
func HitTest(sg *SceneGraph, x, y float64) string {
	return HitTestLocal(sg, x, y).ObjectID
}

// HitTestLocal is HitTest that also reports where inside the node the
// point landed.
func HitTestLocal(sg *SceneGraph, x, y float64) HitTestResult {
	if sg == nil {
		return HitTestResult{}
	}

	// Front to back
	for i := len(sg.Nodes) - 1; i >= 0; i-- {
		if lx, ly, ok := hitTestNode(sg.Nodes[i], x, y); ok {
			return HitTestResult{ObjectID: sg.Nodes[i].ID, X: lx, Y: ly}
		}
	}
	if sg.Base != nil {
		if lx, ly, ok := hitTestNode(sg.Base, x, y); ok {
			return HitTestResult{ObjectID: sg.Base.ID, X: lx, Y: ly}
		}
	}
	return HitTestResult{}
}

func hitTestNode(node *SceneNode, x, y float64) (float64, float64, bool) {
	if node.Width <= 0 || node.Height <= 0 || !node.Bounds.Contains(x, y) {
		return 0, 0, false
	}
	lx, ly := node.Transform.Invert().TransformPoint(x, y)
	return lx, ly, Rect{Width: node.Width, Height: node.Height}.Contains(lx, ly)
}

// GetSelectionBounds returns the combined bounding box of the given object IDs.
func GetSelectionBounds(sg *SceneGraph, objectIDs []string) Rect {
	if sg == nil || len(objectIDs) == 0 {
		return Rect{}
	}

	var result Rect
	for _, id := range objectIDs {
		node, ok := sg.NodesByID[id]
		if !ok && id == string(NodeBase) {
			node, ok = sg.Base, sg.Base != nil
		}
		if !ok || node.Bounds.IsEmpty() {
			continue
		}
		result = result.Union(node.Bounds)
	}

	return result
}

// RectToJSON serializes a Rect to JSON.
func RectToJSON(r Rect) string {
	data, _ := json.Marshal(r)
	return string(data)
}
