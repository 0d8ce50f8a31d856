package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"

	// DefaultWidth and DefaultHeight size the waterfall plot area. One
	// history row is drawn per pixel line, so the height also bounds the
	// number of rendered rows.
	DefaultWidth  = 1024
	DefaultHeight = 768
)

type ImageFormat string

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

// Config holds the snapshot tool settings, populated from flags.
type Config struct {
	DBPath     string
	SessionID  int64 // 0 selects the most recent session
	OutputFile string
	Format     ImageFormat
	ChartFile  string // companion spectrum chart HTML, empty disables
	Width      int
	Height     int
	MaxRows    int // rows rendered, 0 selects the plot height
	List       bool
	Verbose    bool
}

func NewConfig() *Config {
	return &Config{
		Format: ImagePNG,
		Width:  DefaultWidth,
		Height: DefaultHeight,
	}
}

// NewConfigFromCLI parses and validates the command line flags.
func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	var imageFormat string
	flag.StringVar(&c.DBPath, "db", "", "Path to the capture database file")
	flag.Int64Var(&c.SessionID, "s", 0, "Session ID, 0 selects the most recent session")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output image, without extension")
	flag.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	flag.StringVar(&c.ChartFile, "chart", "", "Write a spectrum chart of the last frame to this HTML file")
	flag.IntVar(&c.Width, "width", DefaultWidth, "Waterfall plot width in pixels")
	flag.IntVar(&c.Height, "height", DefaultHeight, "Waterfall plot height in pixels")
	flag.IntVar(&c.MaxRows, "rows", 0, "Rows to render, 0 renders one row per pixel line")
	flag.BoolVar(&c.List, "list", false, "List the capture's sessions and exit")
	flag.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	flag.Parse()

	imageFormat = strings.ToLower(imageFormat)

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.SessionID < 0 {
		err = errors.New("session id must not be negative")
	} else if c.Width <= 0 || c.Height <= 0 {
		err = fmt.Errorf("plot size must be positive: %dx%d", c.Width, c.Height)
	} else if !c.List && c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	if c.OutputFile != "" {
		c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	}
	if c.MaxRows <= 0 {
		c.MaxRows = c.Height
	}
	return c, nil
}
