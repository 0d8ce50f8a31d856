package waterfall

import (
	"errors"
	"fmt"
	"image/color"
)

// ErrRowTooShort reports a precondition violation: a row needs at least
// two samples to span the viewport.
var ErrRowTooShort = errors.New("row requires at least two samples")

// Vertex is one point of a row's line strip. X spans the viewport width,
// Z carries the scaled sample height; Y is owned by the history, which
// advances rows away from the baseline as newer rows arrive.
type Vertex struct {
	X, Y, Z float64
}

// RowGeometry is the drawable form of one normalized frame: evenly spaced
// vertex positions and a color per vertex. Geometry is immutable after
// construction and may be shared by scene snapshots.
type RowGeometry struct {
	Positions []Vertex
	Colors    []color.RGBA
}

// BuildRow converts normalized samples into a drawable row. Samples are
// spaced evenly across [0, viewportWidth]; each vertex carries the sample
// scaled by heightScale and its gradient color. Fewer than two samples is
// a caller error and produces no geometry.
func BuildRow(samples []float64, viewportWidth int, heightScale float64, g *Gradient) (RowGeometry, error) {
	n := len(samples)
	if n < 2 {
		return RowGeometry{}, fmt.Errorf("%w: got %d", ErrRowTooShort, n)
	}

	spacing := float64(viewportWidth) / float64(n-1)
	geom := RowGeometry{
		Positions: make([]Vertex, n),
		Colors:    make([]color.RGBA, n),
	}
	for i, s := range samples {
		geom.Positions[i] = Vertex{X: float64(i) * spacing, Z: s * heightScale}
		geom.Colors[i] = g.At(s)
	}
	return geom, nil
}

// Width reports the x-span covered by the row, which is the viewport
// width at the time the row was built.
func (rg RowGeometry) Width() float64 {
	if len(rg.Positions) == 0 {
		return 0
	}
	return rg.Positions[len(rg.Positions)-1].X
}
