package waterfall

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"slices"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// DefaultSaturationBoost increases visual contrast of interpolated
// colors. Boosted saturation is clamped back into [0,1].
const DefaultSaturationBoost = 1.5

// ColorStop is an anchor point of the waterfall gradient. Stops are
// immutable process-wide configuration, sorted ascending by T; the first
// stop must sit at T=0 and the last at T=1.
type ColorStop struct {
	T          float64 `yaml:"t" json:"t"`                   // Position in [0,1]
	Hue        float64 `yaml:"hue" json:"hue"`               // Hue angle in degrees [0-360]
	Saturation float64 `yaml:"saturation" json:"saturation"` // Saturation [0-1]
	Lightness  float64 `yaml:"lightness" json:"lightness"`   // Lightness [0-1]
}

// DefaultColorStops returns the conventional cold-to-hot SDR ramp:
// deep blue through cyan and green up to yellow and red.
func DefaultColorStops() []ColorStop {
	return []ColorStop{
		{T: 0, Hue: 240, Saturation: 0.65, Lightness: 0.15},
		{T: 0.25, Hue: 195, Saturation: 0.70, Lightness: 0.40},
		{T: 0.5, Hue: 120, Saturation: 0.65, Lightness: 0.45},
		{T: 0.75, Hue: 60, Saturation: 0.80, Lightness: 0.50},
		{T: 1, Hue: 0, Saturation: 0.85, Lightness: 0.50},
	}
}

// Gradient maps a normalized sample in [0,1] to an RGB color by piecewise
// linear interpolation between stops in HSL space. Lookups are pure; a
// Gradient is safe for concurrent use once constructed.
type Gradient struct {
	stops []ColorStop
	boost float64
}

// NewGradient validates the stop configuration and builds a gradient.
// A non-positive saturation boost falls back to the default.
func NewGradient(stops []ColorStop, saturationBoost float64) (*Gradient, error) {
	if len(stops) < 2 {
		return nil, errors.New("gradient requires at least two color stops")
	}
	if stops[0].T != 0 {
		return nil, fmt.Errorf("first color stop must be at t=0, got t=%v", stops[0].T)
	}
	if last := stops[len(stops)-1]; last.T != 1 {
		return nil, fmt.Errorf("last color stop must be at t=1, got t=%v", last.T)
	}
	for i := 1; i < len(stops); i++ {
		if stops[i].T <= stops[i-1].T {
			return nil, fmt.Errorf("color stops must be strictly ascending: stop %d at t=%v follows t=%v",
				i, stops[i].T, stops[i-1].T)
		}
	}
	if saturationBoost <= 0 {
		saturationBoost = DefaultSaturationBoost
	}

	return &Gradient{stops: slices.Clone(stops), boost: saturationBoost}, nil
}

// At returns the color for a normalized sample. Input outside [0,1] is
// clamped rather than rejected, since noisy input is expected. The
// boundaries resolve to the first and last stop exactly.
func (g *Gradient) At(v float64) color.RGBA {
	if v <= 0 || math.IsNaN(v) {
		return g.render(g.stops[0])
	}
	if v >= 1 {
		return g.render(g.stops[len(g.stops)-1])
	}

	// Smallest stop at or beyond v; v is strictly inside (0,1) here, so
	// both neighbours exist.
	i := 1
	for g.stops[i].T < v {
		i++
	}

	a, b := g.stops[i-1], g.stops[i]
	f := (v - a.T) / (b.T - a.T)
	return g.hsl(
		a.Hue+(b.Hue-a.Hue)*f,
		a.Saturation+(b.Saturation-a.Saturation)*f,
		a.Lightness+(b.Lightness-a.Lightness)*f,
	)
}

func (g *Gradient) render(s ColorStop) color.RGBA {
	return g.hsl(s.Hue, s.Saturation, s.Lightness)
}

func (g *Gradient) hsl(h, s, l float64) color.RGBA {
	s = math.Min(s*g.boost, 1)
	r, gr, b := colorful.Hsl(h, s, l).Clamped().RGB255()
	return color.RGBA{R: r, G: gr, B: b, A: 0xff}
}
