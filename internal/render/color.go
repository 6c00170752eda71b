package render

import (
	"image/color"
	"math"
	"strconv"
	"strings"
)

var namedColors = map[string]color.NRGBA{
	"black":       {0, 0, 0, 255},
	"white":       {255, 255, 255, 255},
	"red":         {255, 0, 0, 255},
	"green":       {0, 128, 0, 255},
	"lime":        {0, 255, 0, 255},
	"blue":        {0, 0, 255, 255},
	"yellow":      {255, 255, 0, 255},
	"cyan":        {0, 255, 255, 255},
	"aqua":        {0, 255, 255, 255},
	"magenta":     {255, 0, 255, 255},
	"fuchsia":     {255, 0, 255, 255},
	"gray":        {128, 128, 128, 255},
	"grey":        {128, 128, 128, 255},
	"silver":      {192, 192, 192, 255},
	"maroon":      {128, 0, 0, 255},
	"olive":       {128, 128, 0, 255},
	"navy":        {0, 0, 128, 255},
	"purple":      {128, 0, 128, 255},
	"teal":        {0, 128, 128, 255},
	"orange":      {255, 165, 0, 255},
	"pink":        {255, 192, 203, 255},
	"brown":       {165, 42, 42, 255},
	"gold":        {255, 215, 0, 255},
	"indigo":      {75, 0, 130, 255},
	"violet":      {238, 130, 238, 255},
	"transparent": {0, 0, 0, 0},
}

// ParseColor reads a CSS color: #rgb, #rgba, #rrggbb, #rrggbbaa, rgb(),
// rgba() or a basic named color. Anything else yields opaque black and
// ok == false, which is what a canvas keeps when handed an invalid fillStyle.
func ParseColor(s string) (c color.NRGBA, ok bool) {
	black := color.NRGBA{A: 255}
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return black, false
	}
	if named, ok := namedColors[s]; ok {
		return named, true
	}
	if strings.HasPrefix(s, "#") {
		if c, ok := parseHex(s[1:]); ok {
			return c, true
		}
		return black, false
	}
	if c, ok := parseFunc(s); ok {
		return c, true
	}
	return black, false
}

func parseHex(h string) (color.NRGBA, bool) {
	switch len(h) {
	case 3, 4:
		var expanded strings.Builder
		for _, r := range h {
			expanded.WriteRune(r)
			expanded.WriteRune(r)
		}
		h = expanded.String()
	case 6, 8:
	default:
		return color.NRGBA{}, false
	}
	if len(h) == 6 {
		h += "ff"
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, true
}

// parseFunc reads rgb(r, g, b) and rgba(r, g, b, a), with channels as
// numbers or percentages and the space separated form rgb(r g b / a).
func parseFunc(s string) (color.NRGBA, bool) {
	var body string
	switch {
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		body = s[5 : len(s)-1]
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		body = s[4 : len(s)-1]
	default:
		return color.NRGBA{}, false
	}

	body = strings.ReplaceAll(body, "/", " ")
	parts := strings.FieldsFunc(body, func(r rune) bool { return r == ',' || r == ' ' })
	if len(parts) != 3 && len(parts) != 4 {
		return color.NRGBA{}, false
	}

	var ch [4]uint8
	ch[3] = 255
	for i, p := range parts {
		v, pct, err := parseNumber(p)
		if err != nil {
			return color.NRGBA{}, false
		}
		if i == 3 {
			if pct {
				v /= 100
			}
			ch[i] = uint8(math.Round(min(max(v, 0), 1) * 255))
			continue
		}
		if pct {
			v = v / 100 * 255
		}
		ch[i] = uint8(math.Round(min(max(v, 0), 255)))
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, true
}

func parseNumber(s string) (v float64, pct bool, err error) {
	if strings.HasSuffix(s, "%") {
		pct = true
		s = s[:len(s)-1]
	}
	v, err = strconv.ParseFloat(s, 64)
	if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
		err = strconv.ErrSyntax
	}
	return v, pct, err
}
