package layers

import "github.com/templa/templa/backend-go/internal/document"

// Patch is a partial layer update. Nil fields are left alone. zOrder is not
// patchable; stacking changes go through Reorder so it stays dense.
type Patch struct {
	Name         *string             `json:"name,omitempty"`
	X            *float64            `json:"x,omitempty"`
	Y            *float64            `json:"y,omitempty"`
	Width        *float64            `json:"width,omitempty"`
	Height       *float64            `json:"height,omitempty"`
	Rotation     *float64            `json:"rotation,omitempty"`
	Opacity      *float64            `json:"opacity,omitempty"`
	BlendMode    *document.BlendMode `json:"blendMode,omitempty"`
	CornerRadius *float64            `json:"cornerRadius,omitempty"`
	LockEnabled  *bool               `json:"lockEnabled,omitempty"`
	IsExpanded   *bool               `json:"isExpanded,omitempty"`

	Text  *TextPatch  `json:"text,omitempty"`
	Photo *PhotoPatch `json:"photo,omitempty"`
}

type TextPatch struct {
	Content       *string  `json:"content,omitempty"`
	FontFamily    *string  `json:"fontFamily,omitempty"`
	FontSize      *float64 `json:"fontSize,omitempty"`
	Color         *string  `json:"color,omitempty"`
	Bold          *bool    `json:"bold,omitempty"`
	Semibold      *bool    `json:"semibold,omitempty"`
	Italic        *bool    `json:"italic,omitempty"`
	LetterSpacing *float64 `json:"letterSpacing,omitempty"`
}

type PhotoPatch struct {
	Source       *string  `json:"source,omitempty"`
	AspectRatio  *float64 `json:"aspectRatio,omitempty"`
	AspectLocked *bool    `json:"aspectLocked,omitempty"`
}

// Move is the patch the drag controller issues.
func Move(x, y float64) Patch {
	return Patch{X: &x, Y: &y}
}

// Apply returns a copy of l with the patch merged in. Payload patches that do
// not match the layer's kind are dropped. Width and height go through the
// lock-aware resize after the photo payload is merged; when the ratio is
// locked and both are given, width wins.
func (p Patch) Apply(l document.Layer) document.Layer {
	out := l.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	setFloat(&out.X, p.X)
	setFloat(&out.Y, p.Y)
	setFloat(&out.Rotation, p.Rotation)
	if p.Opacity != nil {
		v := min(max(*p.Opacity, 0), 1)
		setFloat(&out.Opacity, &v)
	}
	if p.BlendMode != nil {
		out.BlendMode = *p.BlendMode
	}
	if p.CornerRadius != nil && *p.CornerRadius >= 0 {
		setFloat(&out.CornerRadius, p.CornerRadius)
	}
	if p.LockEnabled != nil {
		out.LockEnabled = *p.LockEnabled
	}
	if p.IsExpanded != nil {
		out.IsExpanded = *p.IsExpanded
	}

	if t := p.Text; t != nil && out.IsText() {
		if t.Content != nil {
			out.Text.Content = *t.Content
		}
		if t.FontFamily != nil {
			out.Text.FontFamily = *t.FontFamily
		}
		if t.FontSize != nil && *t.FontSize > 0 {
			setFloat(&out.Text.FontSize, t.FontSize)
		}
		if t.Color != nil {
			out.Text.Color = *t.Color
		}
		if t.Bold != nil {
			out.Text.Bold = *t.Bold
		}
		if t.Semibold != nil {
			out.Text.Semibold = *t.Semibold
		}
		if t.Italic != nil {
			out.Text.Italic = *t.Italic
		}
		setFloat(&out.Text.LetterSpacing, t.LetterSpacing)
	}

	if ph := p.Photo; ph != nil && out.IsPhoto() {
		if ph.Source != nil {
			out.Photo.Source = *ph.Source
		}
		if ph.AspectRatio != nil && *ph.AspectRatio > 0 {
			setFloat(&out.Photo.AspectRatio, ph.AspectRatio)
		}
		if ph.AspectLocked != nil {
			out.Photo.AspectLocked = *ph.AspectLocked
		}
	}

	width := p.Width != nil && *p.Width >= 0
	if width {
		out = out.ResizeWidth(*p.Width)
	}
	if p.Height != nil && *p.Height >= 0 && !(width && out.LockedRatio() > 0) {
		out = out.ResizeHeight(*p.Height)
	}
	return out
}
