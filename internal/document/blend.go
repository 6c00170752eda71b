package document

// BlendMode names how a layer's pixels combine with what is already painted.
// Values match the CSS mix-blend-mode keywords.
type BlendMode string

const (
	BlendNormal     BlendMode = "normal"
	BlendMultiply   BlendMode = "multiply"
	BlendScreen     BlendMode = "screen"
	BlendOverlay    BlendMode = "overlay"
	BlendDarken     BlendMode = "darken"
	BlendLighten    BlendMode = "lighten"
	BlendColorBurn  BlendMode = "color-burn"
	BlendLinearBurn BlendMode = "linear-burn"
)

// BlendModes lists every mode in declaration order.
var BlendModes = []BlendMode{
	BlendNormal,
	BlendMultiply,
	BlendScreen,
	BlendOverlay,
	BlendDarken,
	BlendLighten,
	BlendColorBurn,
	BlendLinearBurn,
}

// compositeFallback maps modes that have no native compositing operator to
// the closest one that does.
var compositeFallback = map[BlendMode]BlendMode{
	BlendLinearBurn: BlendMultiply,
}

// Valid reports whether b is one of the known modes.
func (b BlendMode) Valid() bool {
	for _, m := range BlendModes {
		if m == b {
			return true
		}
	}
	return false
}

// CompositeOperator returns the operator actually used to paint with b.
// Empty and unknown values paint as normal.
func (b BlendMode) CompositeOperator() BlendMode {
	if !b.Valid() {
		return BlendNormal
	}
	if op, ok := compositeFallback[b]; ok {
		return op
	}
	return b
}
