package waterfall

import "fmt"

const (
	DefaultMaxRows        = 5000 // Rows retained before overflow eviction
	DefaultRowSpacing     = 1.0  // Scroll distance per inserted frame
	DefaultHeightScale    = 2.0  // Vertical scale of sample values
	DefaultViewportWidth  = 1024
	DefaultViewportHeight = 768
	DefaultTargetFPS      = 30 // Render loop cadence
	DefaultQueueSize      = 64 // Pending frames between source and engine
)

// Config controls the rendering engine. Zero values fall back to the
// package defaults, so an empty Config is usable as-is.
type Config struct {
	MaxRows         int         `yaml:"max_rows" json:"max_rows"`
	RowSpacing      float64     `yaml:"row_spacing" json:"row_spacing"`
	HeightScale     float64     `yaml:"height_scale" json:"height_scale"`
	SaturationBoost float64     `yaml:"saturation_boost" json:"saturation_boost"`
	ColorStops      []ColorStop `yaml:"color_stops" json:"color_stops"`
	ViewportWidth   int         `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight  int         `yaml:"viewport_height" json:"viewport_height"`

	// MaxVisibleDepth bounds how far rows scroll before depth eviction.
	// Defaults to MaxRows * RowSpacing, so capacity and depth eviction
	// coincide unless configured apart.
	MaxVisibleDepth float64 `yaml:"max_visible_depth" json:"max_visible_depth"`

	TargetFPS int `yaml:"target_fps" json:"target_fps"`
	QueueSize int `yaml:"queue_size" json:"queue_size"`
}

// WithDefaults returns a copy with defaults applied to zero values.
func (c Config) WithDefaults() Config {
	if c.MaxRows == 0 {
		c.MaxRows = DefaultMaxRows
	}
	if c.RowSpacing == 0 {
		c.RowSpacing = DefaultRowSpacing
	}
	if c.HeightScale == 0 {
		c.HeightScale = DefaultHeightScale
	}
	if c.SaturationBoost == 0 {
		c.SaturationBoost = DefaultSaturationBoost
	}
	if len(c.ColorStops) == 0 {
		c.ColorStops = DefaultColorStops()
	}
	if c.ViewportWidth == 0 {
		c.ViewportWidth = DefaultViewportWidth
	}
	if c.ViewportHeight == 0 {
		c.ViewportHeight = DefaultViewportHeight
	}
	if c.MaxVisibleDepth == 0 {
		c.MaxVisibleDepth = float64(c.MaxRows) * c.RowSpacing
	}
	if c.TargetFPS == 0 {
		c.TargetFPS = DefaultTargetFPS
	}
	if c.QueueSize == 0 {
		c.QueueSize = DefaultQueueSize
	}
	return c
}

// Validate rejects configurations the engine cannot run with. It applies
// no defaults; call WithDefaults first.
func (c Config) Validate() error {
	if c.MaxRows <= 0 {
		return fmt.Errorf("max_rows must be positive, got %d", c.MaxRows)
	}
	if c.RowSpacing <= 0 {
		return fmt.Errorf("row_spacing must be positive, got %v", c.RowSpacing)
	}
	if c.HeightScale <= 0 {
		return fmt.Errorf("height_scale must be positive, got %v", c.HeightScale)
	}
	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", c.ViewportWidth, c.ViewportHeight)
	}
	if c.MaxVisibleDepth <= 0 {
		return fmt.Errorf("max_visible_depth must be positive, got %v", c.MaxVisibleDepth)
	}
	if c.TargetFPS <= 0 {
		return fmt.Errorf("target_fps must be positive, got %d", c.TargetFPS)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive, got %d", c.QueueSize)
	}
	return nil
}
