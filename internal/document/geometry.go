package document

import (
	"cmp"
	"math"
	"slices"
)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// LockedRatio returns the ratio a resize must honor, or 0 when the lock
// does not apply.
func (l Layer) LockedRatio() float64 {
	if !l.IsPhoto() || !l.Photo.AspectLocked {
		return 0
	}
	r := l.Photo.AspectRatio
	if !finite(r) || r <= 0 {
		return 0
	}
	return r
}

// ResizeWidth sets the width, recomputing the height when the aspect ratio is
// locked. Non-finite input leaves the layer unchanged; negative input clamps
// to zero.
func (l Layer) ResizeWidth(w float64) Layer {
	if !finite(w) {
		return l
	}
	out := l.Clone()
	out.Width = max(w, 0)
	if r := l.LockedRatio(); r > 0 {
		out.Height = out.Width / r
	}
	return out
}

// ResizeHeight sets the height, recomputing the width when the aspect ratio
// is locked.
func (l Layer) ResizeHeight(h float64) Layer {
	if !finite(h) {
		return l
	}
	out := l.Clone()
	out.Height = max(h, 0)
	if r := l.LockedRatio(); r > 0 {
		out.Width = out.Height * r
	}
	return out
}

// ToggleAspectLock flips the lock on a photo layer. Enabling it without a
// recorded ratio derives one from the current size, or 1:1 when the height
// is zero.
func (l Layer) ToggleAspectLock() Layer {
	if !l.IsPhoto() {
		return l
	}
	out := l.Clone()
	out.Photo.AspectLocked = !l.Photo.AspectLocked
	if out.Photo.AspectLocked && (!finite(out.Photo.AspectRatio) || out.Photo.AspectRatio <= 0) {
		out.Photo.AspectRatio = 1
		if l.Height > 0 && finite(l.Width/l.Height) {
			out.Photo.AspectRatio = l.Width / l.Height
		}
	}
	return out
}

// ApplyImageSize records the natural size of a freshly decoded photo. The
// ratio is always updated; the height follows the width only when locked.
func (l Layer) ApplyImageSize(w, h int) Layer {
	if !l.IsPhoto() || w <= 0 || h <= 0 {
		return l
	}
	out := l.Clone()
	out.Photo.AspectRatio = float64(w) / float64(h)
	if out.Photo.AspectLocked {
		out.Height = out.Width / out.Photo.AspectRatio
	}
	return out
}

// SortByZOrder returns the layers ordered for painting. Layers that share a
// zOrder keep their relative array order.
func SortByZOrder(layers []Layer) []Layer {
	out := make([]Layer, len(layers))
	copy(out, layers)
	slices.SortStableFunc(out, func(a, b Layer) int {
		return cmp.Compare(a.ZOrder, b.ZOrder)
	})
	return out
}

// NormalizeZOrder assigns 1..N following the input order.
func NormalizeZOrder(layers []Layer) []Layer {
	out := make([]Layer, len(layers))
	for i, l := range layers {
		out[i] = l.Clone()
		out[i].ZOrder = i + 1
	}
	return out
}
