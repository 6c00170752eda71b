package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/templa/templa/backend-go/internal/document"
)

// SceneGraph is a scene resolved to surface pixels at one scale factor.
// Building it is pure; the same scene and scale always give the same graph.
type SceneGraph struct {
	// Surface size in pixels.
	Width  int
	Height int
	Scale  float64

	// Decoded size of the base image. Percent positions resolve against it.
	NaturalWidth  int
	NaturalHeight int

	Base      *SceneNode
	Nodes     []*SceneNode // layers in paint order
	NodesByID map[string]*SceneNode
}

type NodeKind string

const (
	NodeBase  NodeKind = "base"
	NodePhoto NodeKind = "photo"
	NodeText  NodeKind = "text"
)

// SceneNode is one drawable resolved to surface pixels.
type SceneNode struct {
	ID   string
	Kind NodeKind

	// Transform maps the node's box, with (0,0) at its top-left corner, onto
	// the surface.
	Transform Matrix2D
	Width     float64
	Height    float64

	Opacity      float64
	Composite    document.BlendMode // operator actually painted with
	CornerRadius float64

	// Source is the image URI for base and photo nodes.
	Source string
	Text   *TextRun

	// Bounds is the axis-aligned box covering the rotated node.
	Bounds Rect
}

// TextRun is a text payload with every size already scaled.
type TextRun struct {
	Content       string  `json:"content"`
	Family        string  `json:"family"`
	Weight        int     `json:"weight"`
	Italic        bool    `json:"italic,omitempty"`
	Size          float64 `json:"size"`
	Color         string  `json:"color"`
	LetterSpacing float64 `json:"letterSpacing,omitempty"`
	LineHeight    float64 `json:"lineHeight"`
}

// FontString formats the run the way a canvas font property does, e.g.
// `italic bold 24px "Inter", sans-serif`.
func (t TextRun) FontString() string {
	var b strings.Builder
	if t.Italic {
		b.WriteString("italic ")
	}
	switch t.Weight {
	case 700:
		b.WriteString("bold")
	case 400:
		b.WriteString("normal")
	default:
		b.WriteString(strconv.Itoa(t.Weight))
	}
	fmt.Fprintf(&b, " %spx %q, sans-serif", strconv.FormatFloat(t.Size, 'f', -1, 64), t.Family)
	return b.String()
}

// Lines splits the content on explicit newlines. Wrapping to the box width
// needs font metrics and happens at raster time.
func (t TextRun) Lines() []string {
	return strings.Split(t.Content, "\n")
}

// Rect represents an axis-aligned bounding box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains checks if a point is inside the rect.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// IsEmpty checks if the rect has zero or negative area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Union returns the smallest rect containing both rects.
func (r Rect) Union(other Rect) Rect {
	if r.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return r
	}

	minX := min(r.X, other.X)
	minY := min(r.Y, other.Y)
	maxX := max(r.X+r.Width, other.X+other.Width)
	maxY := max(r.Y+r.Height, other.Y+other.Height)

	return Rect{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}
}

// Intersect returns the overlap of both rects, or an empty rect.
func (r Rect) Intersect(other Rect) Rect {
	minX := max(r.X, other.X)
	minY := max(r.Y, other.Y)
	maxX := min(r.X+r.Width, other.X+other.Width)
	maxY := min(r.Y+r.Height, other.Y+other.Height)
	if maxX <= minX || maxY <= minY {
		return Rect{}
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Center returns the center point of the rect.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}
