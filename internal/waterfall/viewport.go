package waterfall

// ViewportState tracks the host container size. It is owned by the
// engine and updated only through resize notifications; geometry and
// projection logic read it, nothing else writes it.
type ViewportState struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Projection is the orthographic mapping that keeps x in [0,width] and
// y in [0,height] covering the full visible area.
type Projection struct {
	Left, Right float64
	Top, Bottom float64
}

// Projection derives the orthographic bounds for the current size.
func (v ViewportState) Projection() Projection {
	return Projection{
		Left:   0,
		Right:  float64(v.Width),
		Top:    0,
		Bottom: float64(v.Height),
	}
}

// Resize returns the state for a new container size. Existing rows keep
// the geometry they were built with; only rows inserted after the resize
// span the new width.
func (v ViewportState) Resize(width, height int) ViewportState {
	if width > 0 {
		v.Width = width
	}
	if height > 0 {
		v.Height = height
	}
	return v
}
