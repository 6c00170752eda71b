// Package layers holds the layer store operations. Every operation takes a
// scene snapshot and returns a new one; the input is never modified, so the
// caller can publish the result by swapping a single reference.
package layers

import (
	"math"
	"time"

	"github.com/templa/templa/backend-go/internal/document"
)

// Now returns the current time in epoch milliseconds.
var Now = func() int64 { return time.Now().UnixMilli() }

type Direction string

const (
	Front    Direction = "front"
	Back     Direction = "back"
	Forward  Direction = "forward"
	Backward Direction = "backward"
)

// touch stamps the next snapshot. lastModified never goes backwards, even if
// the wall clock does.
func touch(s *document.Scene) {
	s.LastModified = max(Now(), s.LastModified+1)
}

// AddLayer appends the layer on top of the stack.
func AddLayer(s *document.Scene, l document.Layer) *document.Scene {
	next := s.Clone()
	l = l.Clone()
	if len(next.Layers) == 0 {
		l.ZOrder = 1
	} else {
		l.ZOrder = next.MaxZOrder() + 1
	}
	if l.BlendMode == "" {
		l.BlendMode = document.BlendNormal
	}
	next.Layers = append(next.Layers, l)
	touch(next)
	return next
}

// AddText appends a default text layer. An empty color keeps the default.
func AddText(s *document.Scene, id, color string) *document.Scene {
	l := document.NewTextLayer(id, s.CountKind(document.LayerKindText)+1)
	if color != "" {
		l.Text.Color = color
	}
	return AddLayer(s, l)
}

// AddPhoto appends a default photo layer showing source. The aspect ratio is
// refined once the image has been decoded (see ApplyImageSize).
func AddPhoto(s *document.Scene, id, source string) *document.Scene {
	return AddLayer(s, document.NewPhotoLayer(id, source, s.CountKind(document.LayerKindPhoto)+1))
}

// RemoveLayer drops the layer. Unknown ids return the input scene unchanged.
func RemoveLayer(s *document.Scene, id string) *document.Scene {
	if _, ok := s.Layer(id); !ok {
		return s
	}
	next := s.Clone()
	kept := next.Layers[:0]
	for _, l := range next.Layers {
		if l.ID != id {
			kept = append(kept, l)
		}
	}
	next.Layers = kept
	touch(next)
	return next
}

// UpdateLayer merges the patch into the layer. Unknown ids return the input
// scene unchanged.
func UpdateLayer(s *document.Scene, id string, p Patch) *document.Scene {
	return modify(s, id, func(l document.Layer) document.Layer {
		return p.Apply(l)
	})
}

// ResizeWidth resizes the layer, honoring its aspect lock.
func ResizeWidth(s *document.Scene, id string, w float64) *document.Scene {
	return modify(s, id, func(l document.Layer) document.Layer {
		return l.ResizeWidth(w)
	})
}

// ResizeHeight resizes the layer, honoring its aspect lock.
func ResizeHeight(s *document.Scene, id string, h float64) *document.Scene {
	return modify(s, id, func(l document.Layer) document.Layer {
		return l.ResizeHeight(h)
	})
}

// ToggleAspectLock flips the aspect lock of a photo layer.
func ToggleAspectLock(s *document.Scene, id string) *document.Scene {
	return modify(s, id, document.Layer.ToggleAspectLock)
}

// ApplyImageSize records a decoded photo's natural size.
func ApplyImageSize(s *document.Scene, id string, w, h int) *document.Scene {
	return modify(s, id, func(l document.Layer) document.Layer {
		return l.ApplyImageSize(w, h)
	})
}

// ReplacePhoto points a photo layer at a new source whose natural size is
// already known.
func ReplacePhoto(s *document.Scene, id, source string, w, h int) *document.Scene {
	return modify(s, id, func(l document.Layer) document.Layer {
		if !l.IsPhoto() {
			return l
		}
		out := l.Clone()
		out.Photo.Source = source
		return out.ApplyImageSize(w, h)
	})
}

func modify(s *document.Scene, id string, fn func(document.Layer) document.Layer) *document.Scene {
	i := s.LayerIndex(id)
	if i < 0 {
		return s
	}
	next := s.Clone()
	next.Layers[i] = fn(next.Layers[i])
	touch(next)
	return next
}

// Reorder moves the layer within the paint order and renumbers zOrder 1..N.
// Layers sharing a zOrder keep their relative array order. Forward on the
// topmost and backward on the bottommost layer leave the order unchanged.
func Reorder(s *document.Scene, id string, dir Direction) *document.Scene {
	sorted := document.SortByZOrder(s.Layers)
	idx := -1
	for i, l := range sorted {
		if l.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s
	}

	target := sorted[idx]
	switch dir {
	case Front:
		sorted = append(append(sorted[:idx:idx], sorted[idx+1:]...), target)
	case Back:
		rest := append(sorted[:idx:idx], sorted[idx+1:]...)
		sorted = append([]document.Layer{target}, rest...)
	case Forward:
		if idx < len(sorted)-1 {
			sorted[idx], sorted[idx+1] = sorted[idx+1], sorted[idx]
		}
	case Backward:
		if idx > 0 {
			sorted[idx], sorted[idx-1] = sorted[idx-1], sorted[idx]
		}
	}

	next := s.Clone()
	next.Layers = document.NormalizeZOrder(sorted)
	touch(next)
	return next
}

// BasePatch updates the base image and its styling.
type BasePatch struct {
	BaseImage        *string             `json:"baseImage,omitempty"`
	BaseOpacity      *float64            `json:"baseOpacity,omitempty"`
	BaseRotation     *float64            `json:"baseRotation,omitempty"`
	BaseBlendMode    *document.BlendMode `json:"baseBlendMode,omitempty"`
	BaseBorderRadius *float64            `json:"baseBorderRadius,omitempty"`
	BaseIsExpanded   *bool               `json:"baseIsExpanded,omitempty"`
	Name             *string             `json:"name,omitempty"`
}

// UpdateBase merges the patch into the scene's base fields.
func UpdateBase(s *document.Scene, p BasePatch) *document.Scene {
	next := s.Clone()
	if p.BaseImage != nil {
		next.BaseImage = *p.BaseImage
	}
	setFloat(&next.BaseOpacity, p.BaseOpacity)
	setFloat(&next.BaseRotation, p.BaseRotation)
	setFloat(&next.BaseBorderRadius, p.BaseBorderRadius)
	if p.BaseBlendMode != nil {
		next.BaseBlendMode = *p.BaseBlendMode
	}
	if p.BaseIsExpanded != nil {
		next.BaseIsExpanded = *p.BaseIsExpanded
	}
	if p.Name != nil {
		next.Name = *p.Name
	}
	touch(next)
	return next
}

// setFloat assigns a patched number, ignoring NaN and infinities.
func setFloat(dst *float64, v *float64) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return
	}
	*dst = *v
}
