package blockart

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Lab is a CIE L*a*b* colour (D65), with L in [0, 100].
type Lab struct {
	L, A, B float64
}

// Preview clamping ranges.
const (
	maxLabChroma = 80.0
	maxLabL      = 100.0
)

// Lab converts c from sRGB to CIE Lab.
func (c RGB) Lab() Lab {
	col := colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}
	l, a, b := col.Lab()
	return Lab{L: l * 100, A: a * 100, B: b * 100}
}

func (l Lab) clamp() Lab {
	return Lab{
		L: math.Max(0, math.Min(maxLabL, l.L)),
		A: math.Max(-maxLabChroma, math.Min(maxLabChroma, l.A)),
		B: math.Max(-maxLabChroma, math.Min(maxLabChroma, l.B)),
	}
}

// Preview converts l back to a displayable colour. Lab is clamped first,
// and if any resulting channel overshoots the display range all three are
// scaled down together so the brightest one sits exactly at the ceiling.
func (l Lab) Preview() RGB {
	c := l.clamp()
	col := colorful.Lab(c.L/100, c.A/100, c.B/100)

	r, g, b := col.R, col.G, col.B
	if peak := math.Max(r, math.Max(g, b)); peak > 1.0 {
		r /= peak
		g /= peak
		b /= peak
	}

	return RGB{
		R: unitToByte(r),
		G: unitToByte(g),
		B: unitToByte(b),
	}
}

func unitToByte(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.Round(v * 255))
}
