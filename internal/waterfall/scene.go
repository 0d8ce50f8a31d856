package waterfall

import "github.com/swan-goose-duck/rtl-sdr-visualization/internal/spectrum"

// SceneRow is the render-path copy of one history row. Geometry is shared
// with the history row, which never mutates it after construction.
type SceneRow struct {
	Geometry       RowGeometry
	VerticalOffset float64
	AgeTicks       int
}

// Scene is a consistent, read-only snapshot of the engine state handed to
// renderers. Renderers draw from it and never reach back into the engine.
type Scene struct {
	Rows       []SceneRow      // Retained rows, newest first
	Viewport   ViewportState   // Size the projection maps to
	Projection Projection      // Orthographic bounds for the viewport
	Latest     *spectrum.Frame // Most recent valid frame, for the companion chart
	Generation uint64          // Increments on every state mutation
}

// Empty reports whether the scene holds no rows yet.
func (s Scene) Empty() bool {
	return len(s.Rows) == 0
}
