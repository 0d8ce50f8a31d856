// Package render turns engine scenes into shareable artifacts: annotated
// waterfall images and spectrum charts. It draws from scene snapshots
// only and never reaches back into the engine.
package render

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"
	"time"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/waterfall"
)

const (
	defaultFontSize = 12.0

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 60
	defaultBottomBorder = 40
	defaultRightBorder  = 20

	defaultDatetimeFormat = time.DateTime
)

// Borders defines the white space around the waterfall plot.
type Borders struct {
	Top    int // Space for the frequency scale
	Left   int // Space for the row depth scale
	Bottom int // Space for the information bar
	Right  int // Right padding
}

// Config holds the waterfall image options. Zero values fall back to
// defaults; plot dimensions default to the scene viewport size.
type Config struct {
	Width  int // Plot width in pixels
	Height int // Plot height in pixels

	FontSize       float64
	DatetimeFormat string
	Location       *time.Location

	Borders Borders
}

// WithDefaults returns a copy of the config with zero fields replaced by
// their defaults.
func (c Config) WithDefaults() Config {
	if c.FontSize == 0 {
		c.FontSize = defaultFontSize
	}
	if c.DatetimeFormat == "" {
		c.DatetimeFormat = defaultDatetimeFormat
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.Borders.Top == 0 {
		c.Borders.Top = defaultTopBorder
	}
	if c.Borders.Left == 0 {
		c.Borders.Left = defaultLeftBorder
	}
	if c.Borders.Bottom == 0 {
		c.Borders.Bottom = defaultBottomBorder
	}
	if c.Borders.Right == 0 {
		c.Borders.Right = defaultRightBorder
	}
	return c
}

// Rasterizer draws scene snapshots as annotated waterfall images, one
// pixel line per retained row, newest at the top.
type Rasterizer struct {
	cfg Config
}

// NewRasterizer creates a rasterizer with defaults applied to cfg.
func NewRasterizer(cfg Config) *Rasterizer {
	return &Rasterizer{cfg: cfg.WithDefaults()}
}

// Render draws the scene into a new image: white background, annotated
// borders, waterfall rows inside the plot area. An empty scene produces
// a valid image with an empty plot.
func (r *Rasterizer) Render(scene waterfall.Scene) (*image.RGBA, error) {
	plotWidth, plotHeight := r.plotSize(scene)
	if plotWidth <= 0 || plotHeight <= 0 {
		return nil, fmt.Errorf("plot size must be positive, got %dx%d", plotWidth, plotHeight)
	}

	fullWidth := plotWidth + r.cfg.Borders.Left + r.cfg.Borders.Right
	fullHeight := plotHeight + r.cfg.Borders.Top + r.cfg.Borders.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	area := image.Rect(
		r.cfg.Borders.Left,
		r.cfg.Borders.Top,
		r.cfg.Borders.Left+plotWidth,
		r.cfg.Borders.Top+plotHeight,
	)

	ann, err := newAnnotator(r.cfg)
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	// Annotations first, rows second: the plot overwrites any label that
	// strays into the data area.
	if err := ann.annotate(img, scene, area); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}
	r.drawRows(img, area, scene)

	return img, nil
}

// WritePNG renders the scene and encodes it as PNG.
func (r *Rasterizer) WritePNG(w io.Writer, scene waterfall.Scene) error {
	img, err := r.Render(scene)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// plotSize resolves the plot dimensions, falling back to the scene
// viewport for axes left unconfigured.
func (r *Rasterizer) plotSize(scene waterfall.Scene) (width, height int) {
	width, height = r.cfg.Width, r.cfg.Height
	if width == 0 {
		width = scene.Viewport.Width
	}
	if height == 0 {
		height = scene.Viewport.Height
	}
	return width, height
}

// drawRows paints one horizontal pixel line per row at its scroll depth,
// the row's vertical offset rounded to the nearest line. Each line samples
// the row's per-vertex colors across the x-span the row was built with, so
// rows older than a resize keep their original span. Rows deeper than the
// plot height are skipped, not clipped mid-line.
func (r *Rasterizer) drawRows(img *image.RGBA, area image.Rectangle, scene waterfall.Scene) {
	if scene.Viewport.Width <= 0 {
		return
	}
	scaleX := float64(area.Dx()) / float64(scene.Viewport.Width)

	for _, row := range scene.Rows {
		y := area.Min.Y + int(math.Round(row.VerticalOffset))
		if y < area.Min.Y || y >= area.Max.Y {
			continue
		}

		colors := row.Geometry.Colors
		if len(colors) == 0 {
			continue
		}

		span := int(math.Round(row.Geometry.Width() * scaleX))
		if span < 1 {
			span = 1
		}
		if limit := area.Dx() - 1; span > limit {
			span = limit
		}

		for x := 0; x <= span; x++ {
			// Nearest vertex for this pixel column
			i := 0
			if span > 0 {
				i = int(math.Round(float64(x) / float64(span) * float64(len(colors)-1)))
			}
			img.SetRGBA(area.Min.X+x, y, colors[i])
		}
	}
}
