package document

import "fmt"

const (
	DefaultFontFamily = "sans-serif"
	DefaultFontSize   = 24
	DefaultTextColor  = "#000000"
)

// DefaultTextStyle is the styling new text layers start with.
func DefaultTextStyle() TextContent {
	return TextContent{
		FontFamily: DefaultFontFamily,
		FontSize:   DefaultFontSize,
		Color:      DefaultTextColor,
	}
}

// NewScene creates an empty scene over a base image.
func NewScene(id, name, baseImage string, now int64) *Scene {
	return &Scene{
		ID:             id,
		Name:           name,
		BaseImage:      baseImage,
		BaseOpacity:    1,
		BaseBlendMode:  BlendNormal,
		BaseIsExpanded: true,
		Layers:         []Layer{},
		LastModified:   now,
	}
}

// NewSampleScene creates a scene seeded with a single placeholder photo layer,
// the way a freshly created template starts out.
func NewSampleScene(id, name, baseImage, layerID, photoSource string, now int64) *Scene {
	s := NewScene(id, name, baseImage, now)
	l := NewPhotoLayer(layerID, photoSource, 1)
	l.Name = "Base layer"
	l.X, l.Y = 10, 10
	l.Width, l.Height = 200, 150
	l.Photo.AspectRatio = 400.0 / 300.0
	l.ZOrder = 1
	s.Layers = append(s.Layers, l)
	return s
}

// NewTextLayer builds a text layer with default styling. n numbers the
// default name.
func NewTextLayer(id string, n int) Layer {
	style := DefaultTextStyle()
	style.Content = "New text block"
	return Layer{
		ID:         id,
		Kind:       LayerKindText,
		Name:       fmt.Sprintf("Text %d", n),
		X:          40,
		Y:          40,
		Width:      400,
		Height:     150,
		Opacity:    1,
		BlendMode:  BlendNormal,
		IsExpanded: true,
		Text:       &style,
	}
}

// NewPhotoLayer builds an aspect-locked photo layer with a 1:1 ratio until
// the image's natural size is known.
func NewPhotoLayer(id, source string, n int) Layer {
	return Layer{
		ID:         id,
		Kind:       LayerKindPhoto,
		Name:       fmt.Sprintf("Photo %d", n),
		X:          20,
		Y:          20,
		Width:      200,
		Height:     200,
		Opacity:    1,
		BlendMode:  BlendNormal,
		IsExpanded: true,
		Photo: &PhotoContent{
			Source:       source,
			AspectRatio:  1,
			AspectLocked: true,
		},
	}
}

// CountKind returns how many layers of the given kind the scene holds.
func (s *Scene) CountKind(kind LayerKind) int {
	n := 0
	for _, l := range s.Layers {
		if l.Kind == kind {
			n++
		}
	}
	return n
}
