package document

import "encoding/json"

// Scene is one editable composition: a base image plus stacked layers.
// Layer positions are percentages of the base image's natural size, which is
// not stored here; it comes from decoding BaseImage.
type Scene struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	BaseImage        string    `json:"baseImage"`
	BaseOpacity      float64   `json:"baseOpacity"`
	BaseRotation     float64   `json:"baseRotation"`
	BaseBlendMode    BlendMode `json:"baseBlendMode"`
	BaseBorderRadius float64   `json:"baseBorderRadius"`
	BaseIsExpanded   bool      `json:"baseIsExpanded"`
	Layers           []Layer   `json:"layers"`
	LastModified     int64     `json:"lastModified"`
}

type LayerKind string

const (
	LayerKindText  LayerKind = "text"
	LayerKindPhoto LayerKind = "photo"
)

// Layer is one positioned, styled element. Exactly one of Text or Photo is
// set, matching Kind.
type Layer struct {
	ID           string    `json:"id"`
	Kind         LayerKind `json:"kind"`
	Name         string    `json:"name,omitempty"`
	X            float64   `json:"x"` // percent of natural width
	Y            float64   `json:"y"` // percent of natural height
	Width        float64   `json:"width"`
	Height       float64   `json:"height"`
	Rotation     float64   `json:"rotation"`
	Opacity      float64   `json:"opacity"`
	BlendMode    BlendMode `json:"blendMode"`
	CornerRadius float64   `json:"cornerRadius"`
	ZOrder       int       `json:"zOrder"`
	LockEnabled  bool      `json:"lockEnabled"`
	IsExpanded   bool      `json:"isExpanded,omitempty"`

	Text  *TextContent  `json:"text,omitempty"`
	Photo *PhotoContent `json:"photo,omitempty"`
}

type TextContent struct {
	Content       string  `json:"content"`
	FontFamily    string  `json:"fontFamily"`
	FontSize      float64 `json:"fontSize"`
	Color         string  `json:"color"`
	Bold          bool    `json:"bold"`
	Semibold      bool    `json:"semibold"`
	Italic        bool    `json:"italic"`
	LetterSpacing float64 `json:"letterSpacing"`
}

// FontWeight resolves the CSS weight; bold wins over semibold.
func (t TextContent) FontWeight() int {
	switch {
	case t.Bold:
		return 700
	case t.Semibold:
		return 600
	default:
		return 400
	}
}

type PhotoContent struct {
	Source       string  `json:"source"`
	AspectRatio  float64 `json:"aspectRatio"`
	AspectLocked bool    `json:"aspectLocked"`
}

// UnmarshalJSON defaults a missing opacity to fully opaque.
func (l *Layer) UnmarshalJSON(data []byte) error {
	type plain Layer
	p := plain{Opacity: 1}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*l = Layer(p)
	return nil
}

// UnmarshalJSON defaults a missing base opacity to fully opaque.
func (s *Scene) UnmarshalJSON(data []byte) error {
	type plain Scene
	p := plain{BaseOpacity: 1}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Scene(p)
	return nil
}

// Clone returns a deep copy of the layer.
func (l Layer) Clone() Layer {
	if l.Text != nil {
		t := *l.Text
		l.Text = &t
	}
	if l.Photo != nil {
		p := *l.Photo
		l.Photo = &p
	}
	return l
}

// IsPhoto reports whether the layer carries a photo payload.
func (l Layer) IsPhoto() bool {
	return l.Kind == LayerKindPhoto && l.Photo != nil
}

// IsText reports whether the layer carries a text payload.
func (l Layer) IsText() bool {
	return l.Kind == LayerKindText && l.Text != nil
}

// Clone returns a deep copy of the scene. Snapshots handed out by the layer
// store are never mutated, so callers clone before editing.
func (s *Scene) Clone() *Scene {
	if s == nil {
		return nil
	}
	out := *s
	out.Layers = make([]Layer, len(s.Layers))
	for i, l := range s.Layers {
		out.Layers[i] = l.Clone()
	}
	return &out
}

// Layer returns a copy of the layer with the given id.
func (s *Scene) Layer(id string) (Layer, bool) {
	if i := s.LayerIndex(id); i >= 0 {
		return s.Layers[i].Clone(), true
	}
	return Layer{}, false
}

// LayerIndex returns the array index of the layer, or -1.
func (s *Scene) LayerIndex(id string) int {
	for i := range s.Layers {
		if s.Layers[i].ID == id {
			return i
		}
	}
	return -1
}

// MaxZOrder returns the highest zOrder in the scene, or 0 when empty.
func (s *Scene) MaxZOrder() int {
	maxZ := 0
	for i, l := range s.Layers {
		if i == 0 || l.ZOrder > maxZ {
			maxZ = l.ZOrder
		}
	}
	return maxZ
}
