package waterfall

import "errors"

// Row is one rendered history entry derived from a single frame. A row is
// created by Insert at the baseline, moved only by Advance and destroyed
// on eviction. The history owns its rows exclusively; render paths see
// copies, never the rows themselves.
type Row struct {
	Samples        []float64   // Normalized samples in [0,1]
	Geometry       RowGeometry // Drawable positions and per-vertex colors
	VerticalOffset float64     // Distance from the newest-row baseline
	AgeTicks       int         // Advance steps survived
}

// HistoryOption configures optional History behaviour.
type HistoryOption func(*History)

// WithEvictFunc registers a hook invoked synchronously for every evicted
// row, before its geometry is released. Hosts holding external resources
// per row release them here.
func WithEvictFunc(fn func(*Row)) HistoryOption {
	return func(h *History) {
		h.onEvict = fn
	}
}

// History is the bounded, ordered, always-scrolling collection of rows,
// newest first. Insertion, advancement and eviction all happen here;
// nothing else mutates rows.
//
// Invariants: len(rows) never exceeds maxRows; vertical offsets ascend
// strictly from newest to oldest; no retained row sits beyond the visible
// depth. Eviction releases row resources synchronously in the same call
// that removes the row, keeping memory bounded by maxRows.
type History struct {
	rows            []*Row
	maxRows         int
	maxVisibleDepth float64
	heightScale     float64
	gradient        *Gradient
	onEvict         func(*Row)
}

// NewHistory creates a history bounded by maxRows and maxVisibleDepth.
// The gradient and heightScale parameterize geometry built on insert.
func NewHistory(maxRows int, maxVisibleDepth, heightScale float64, gradient *Gradient, opts ...HistoryOption) (*History, error) {
	if maxRows <= 0 {
		return nil, errors.New("history capacity must be positive")
	}
	if maxVisibleDepth <= 0 {
		return nil, errors.New("visible depth must be positive")
	}
	if heightScale <= 0 {
		return nil, errors.New("height scale must be positive")
	}
	if gradient == nil {
		return nil, errors.New("gradient is required")
	}

	h := &History{
		rows:            make([]*Row, 0, maxRows),
		maxRows:         maxRows,
		maxVisibleDepth: maxVisibleDepth,
		heightScale:     heightScale,
		gradient:        gradient,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Insert normalizes the raw samples, builds row geometry spanning the
// given viewport width and prepends the new row at the baseline. When the
// insertion overflows capacity the oldest row is evicted in the same
// call, independent of its depth. On error the history is unchanged.
func (h *History) Insert(raw []float64, viewportWidth int) (*Row, error) {
	samples := Normalize(raw)
	geom, err := BuildRow(samples, viewportWidth, h.heightScale, h.gradient)
	if err != nil {
		return nil, err
	}

	row := &Row{Samples: samples, Geometry: geom}

	h.rows = append(h.rows, nil)
	copy(h.rows[1:], h.rows)
	h.rows[0] = row

	if len(h.rows) > h.maxRows {
		last := len(h.rows) - 1
		h.evict(h.rows[last])
		h.rows[last] = nil
		h.rows = h.rows[:last]
	}
	return row, nil
}

// Advance scrolls every row away from the baseline by spacing and evicts,
// in the same pass, rows pushed beyond the visible depth. It runs once
// per inserted frame, so scroll speed follows the data rate: a paused
// source produces a paused scroll. Returns the number of rows evicted.
//
// The pass computes the retained set from the advanced offsets instead of
// filtering the slice while iterating it; offsets ascend oldest-last, so
// retention is a prefix.
func (h *History) Advance(spacing float64) int {
	retained := h.rows[:0]
	evicted := 0
	for _, row := range h.rows {
		row.VerticalOffset += spacing
		row.AgeTicks++
		if row.VerticalOffset > h.maxVisibleDepth {
			h.evict(row)
			evicted++
			continue
		}
		retained = append(retained, row)
	}
	for i := len(retained); i < len(h.rows); i++ {
		h.rows[i] = nil
	}
	h.rows = retained
	return evicted
}

// Len returns the number of retained rows.
func (h *History) Len() int {
	return len(h.rows)
}

// Newest returns the row at the baseline, or nil when empty.
func (h *History) Newest() *Row {
	if len(h.rows) == 0 {
		return nil
	}
	return h.rows[0]
}

// Snapshot copies the retained rows into scene rows for the render path.
// Offsets and ages are captured by value; geometry is shared because rows
// never mutate it after construction.
func (h *History) Snapshot() []SceneRow {
	rows := make([]SceneRow, len(h.rows))
	for i, row := range h.rows {
		rows[i] = SceneRow{
			Geometry:       row.Geometry,
			VerticalOffset: row.VerticalOffset,
			AgeTicks:       row.AgeTicks,
		}
	}
	return rows
}

// evict releases a row synchronously: the hook runs first, then geometry
// references are dropped so the backing arrays are collectable at once.
func (h *History) evict(row *Row) {
	if h.onEvict != nil {
		h.onEvict(row)
	}
	row.Geometry = RowGeometry{}
	row.Samples = nil
}
