package document

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMissingLayers = errors.New("scene has no layers field")
	ErrMalformed     = errors.New("malformed scene")
)

// Marshal serializes a scene in its persisted layout.
func Marshal(s *Scene) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil scene", ErrMalformed)
	}
	out := s.Clone()
	if out.Layers == nil {
		out.Layers = []Layer{}
	}
	return json.Marshal(out)
}

// Decode parses a stored scene. It accepts the same shapes as Import but
// keeps the scene's id and timestamp.
func Decode(data []byte) (*Scene, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	_, hasLayers := fields["layers"]
	legacy, hasElements := fields["elements"]
	if !hasLayers && !hasElements {
		return nil, ErrMissingLayers
	}

	var s Scene
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if !hasLayers {
		layers, err := decodeLegacyElements(legacy)
		if err != nil {
			return nil, err
		}
		s.Layers = layers
	}
	if s.Layers == nil {
		s.Layers = []Layer{}
	}
	return &s, nil
}

// Import validates an externally supplied scene and gives it a fresh
// identity. Only the presence of the layers field is checked; everything
// else is taken as-is.
func Import(data []byte, newID string, now int64) (*Scene, error) {
	s, err := Decode(data)
	if err != nil {
		return nil, err
	}
	s.ID = newID
	s.LastModified = now
	return s, nil
}

// legacyElement is the flat element shape older exports used, with text
// styling and photo fields side by side.
type legacyElement struct {
	ID              string   `json:"id"`
	Type            string   `json:"type"`
	Name            string   `json:"name"`
	Content         string   `json:"content"`
	X               float64  `json:"x"`
	Y               float64  `json:"y"`
	Width           float64  `json:"width"`
	Height          float64  `json:"height"`
	Rotation        float64  `json:"rotation"`
	ZIndex          int      `json:"zIndex"`
	IsLocked        bool     `json:"isLocked"`
	IsExpanded      bool     `json:"isExpanded"`
	Opacity         *float64 `json:"opacity"`
	BlendMode       string   `json:"blendMode"`
	KeepAspectRatio bool     `json:"keepAspectRatio"`
	AspectRatio     float64  `json:"aspectRatio"`
	BorderRadius    float64  `json:"borderRadius"`
	Styling         struct {
		FontFamily    string  `json:"fontFamily"`
		FontSize      float64 `json:"fontSize"`
		Color         string  `json:"color"`
		Bold          bool    `json:"bold"`
		Semibold      bool    `json:"semibold"`
		Italic        bool    `json:"italic"`
		LetterSpacing float64 `json:"letterSpacing"`
	} `json:"styling"`
}

func decodeLegacyElements(raw json.RawMessage) ([]Layer, error) {
	var elems []legacyElement
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("%w: elements: %v", ErrMalformed, err)
	}

	layers := make([]Layer, 0, len(elems))
	for _, e := range elems {
		l := Layer{
			ID:           e.ID,
			Name:         e.Name,
			X:            e.X,
			Y:            e.Y,
			Width:        e.Width,
			Height:       e.Height,
			Rotation:     e.Rotation,
			Opacity:      1,
			BlendMode:    BlendMode(e.BlendMode),
			CornerRadius: e.BorderRadius,
			ZOrder:       e.ZIndex,
			LockEnabled:  e.IsLocked,
			IsExpanded:   e.IsExpanded,
		}
		if e.Opacity != nil {
			l.Opacity = *e.Opacity
		}
		if l.BlendMode == "" {
			l.BlendMode = BlendNormal
		}

		switch LayerKind(e.Type) {
		case LayerKindPhoto:
			l.Kind = LayerKindPhoto
			l.Photo = &PhotoContent{
				Source:       e.Content,
				AspectRatio:  e.AspectRatio,
				AspectLocked: e.KeepAspectRatio,
			}
		default:
			l.Kind = LayerKindText
			l.Text = &TextContent{
				Content:       e.Content,
				FontFamily:    e.Styling.FontFamily,
				FontSize:      e.Styling.FontSize,
				Color:         e.Styling.Color,
				Bold:          e.Styling.Bold,
				Semibold:      e.Styling.Semibold,
				Italic:        e.Styling.Italic,
				LetterSpacing: e.Styling.LetterSpacing,
			}
		}
		layers = append(layers, l)
	}
	return layers, nil
}
