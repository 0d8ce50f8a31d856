package waterfall

// Normalize rescales a raw power array into [0,1] using the frame's own
// minimum and maximum. A flat frame maps to the neutral midpoint 0.5
// instead of dividing by zero, so degenerate input never pushes NaN into
// geometry. Frames are normalized independently of one another: the
// display auto-levels per row, not globally.
func Normalize(raw []float64) []float64 {
	if len(raw) == 0 {
		return nil
	}

	lo, hi := raw[0], raw[0]
	for _, v := range raw[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	out := make([]float64, len(raw))
	if hi == lo {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}

	span := hi - lo
	for i, v := range raw {
		out[i] = (v - lo) / span
	}
	return out
}
