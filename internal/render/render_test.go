package render

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/spectrum"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/waterfall"
)

func testGradient(t *testing.T) *waterfall.Gradient {
	t.Helper()
	g, err := waterfall.NewGradient(waterfall.DefaultColorStops(), 0)
	if err != nil {
		t.Fatalf("Failed to create gradient: %v", err)
	}
	return g
}

func testRow(t *testing.T, g *waterfall.Gradient, samples []float64, viewportWidth, age int) waterfall.SceneRow {
	t.Helper()
	geom, err := waterfall.BuildRow(samples, viewportWidth, 2.0, g)
	if err != nil {
		t.Fatalf("Failed to build row: %v", err)
	}
	return waterfall.SceneRow{
		Geometry:       geom,
		VerticalOffset: float64(age),
		AgeTicks:       age,
	}
}

func testScene(rows []waterfall.SceneRow, width, height int) waterfall.Scene {
	viewport := waterfall.ViewportState{Width: width, Height: height}
	return waterfall.Scene{
		Rows:       rows,
		Viewport:   viewport,
		Projection: viewport.Projection(),
	}
}

func TestRasterizer_Render(t *testing.T) {
	g := testGradient(t)
	samples := []float64{0, 0.25, 0.5, 0.75, 1}

	rows := []waterfall.SceneRow{
		testRow(t, g, samples, 100, 0),
		testRow(t, g, samples, 100, 1),
	}
	scene := testScene(rows, 100, 50)
	scene.Latest = &spectrum.Frame{
		Freqs:      []float64{1089e6, 1090e6, 1091e6},
		Power:      []float64{-80, -70, -75},
		Waterfall:  samples,
		CenterFreq: 1090e6,
		SampleRate: 2.4e6,
		Time:       time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
	}

	r := NewRasterizer(Config{Location: time.UTC})
	img, err := r.Render(scene)
	if err != nil {
		t.Fatalf("Failed to render scene: %v", err)
	}

	// Plot defaults to the viewport size plus borders
	wantWidth := 100 + defaultLeftBorder + defaultRightBorder
	wantHeight := 50 + defaultTopBorder + defaultBottomBorder
	bounds := img.Bounds()
	if bounds.Dx() != wantWidth || bounds.Dy() != wantHeight {
		t.Fatalf("Expected image %dx%d, got %dx%d", wantWidth, wantHeight, bounds.Dx(), bounds.Dy())
	}

	// Newest row occupies the top plot line, colored by the gradient
	top := defaultTopBorder
	left := defaultLeftBorder
	if got, want := img.RGBAAt(left, top), g.At(samples[0]); got != want {
		t.Errorf("Expected first vertex color %v at plot origin, got %v", want, got)
	}
	if got, want := img.RGBAAt(left+99, top), g.At(samples[4]); got != want {
		t.Errorf("Expected last vertex color %v at row end, got %v", want, got)
	}

	// Second row sits one line deeper
	if got, want := img.RGBAAt(left, top+1), g.At(samples[0]); got != want {
		t.Errorf("Expected second row color %v, got %v", want, got)
	}

	// Plot area below the rows stays background white
	white := img.RGBAAt(left, top+10)
	if white.R != 255 || white.G != 255 || white.B != 255 {
		t.Errorf("Expected white background below rows, got %v", white)
	}
}

func TestRasterizer_RowsBeyondPlotSkipped(t *testing.T) {
	g := testGradient(t)
	samples := []float64{0.2, 0.4, 0.6}

	// Plot is 10 lines tall; the second row is too deep to draw
	rows := []waterfall.SceneRow{
		testRow(t, g, samples, 20, 0),
		testRow(t, g, samples, 20, 10),
	}
	scene := testScene(rows, 20, 10)

	img, err := NewRasterizer(Config{}).Render(scene)
	if err != nil {
		t.Fatalf("Failed to render scene: %v", err)
	}

	deep := img.RGBAAt(defaultLeftBorder, defaultTopBorder+10)
	if deep.R != 255 || deep.G != 255 || deep.B != 255 {
		t.Errorf("Expected row beyond the plot to be skipped, got %v", deep)
	}
}

func TestRasterizer_ResizedRowKeepsSpan(t *testing.T) {
	g := testGradient(t)

	// Row built before a resize spans 60 of the 100 pixel plot
	rows := []waterfall.SceneRow{
		testRow(t, g, []float64{0.1, 0.9}, 60, 0),
	}
	scene := testScene(rows, 100, 20)

	img, err := NewRasterizer(Config{}).Render(scene)
	if err != nil {
		t.Fatalf("Failed to render scene: %v", err)
	}

	inside := img.RGBAAt(defaultLeftBorder+60, defaultTopBorder)
	if want := g.At(0.9); inside != want {
		t.Errorf("Expected row to end with color %v at its own span, got %v", want, inside)
	}
	outside := img.RGBAAt(defaultLeftBorder+61, defaultTopBorder)
	if outside.R != 255 || outside.G != 255 || outside.B != 255 {
		t.Errorf("Expected background beyond the row span, got %v", outside)
	}
}

func TestRasterizer_EmptyScene(t *testing.T) {
	scene := testScene(nil, 80, 40)

	img, err := NewRasterizer(Config{}).Render(scene)
	if err != nil {
		t.Fatalf("Failed to render empty scene: %v", err)
	}

	center := img.RGBAAt(defaultLeftBorder+40, defaultTopBorder+20)
	if center.R != 255 || center.G != 255 || center.B != 255 {
		t.Errorf("Expected empty plot to be white, got %v", center)
	}
}

func TestRasterizer_ZeroPlotSize(t *testing.T) {
	if _, err := NewRasterizer(Config{}).Render(waterfall.Scene{}); err == nil {
		t.Error("Expected error for a scene without dimensions")
	}
}

func TestRasterizer_WritePNG(t *testing.T) {
	g := testGradient(t)
	rows := []waterfall.SceneRow{
		testRow(t, g, []float64{0, 0.5, 1}, 40, 0),
	}
	scene := testScene(rows, 40, 20)

	var buf bytes.Buffer
	if err := NewRasterizer(Config{}).WritePNG(&buf, scene); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}

	decoded, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("Failed to decode PNG: %v", err)
	}
	wantWidth := 40 + defaultLeftBorder + defaultRightBorder
	if decoded.Bounds().Dx() != wantWidth {
		t.Errorf("Expected decoded width %d, got %d", wantWidth, decoded.Bounds().Dx())
	}
}

func TestNiceFrequencyStep(t *testing.T) {
	testCases := []struct {
		name  string
		span  float64
		width int
		want  float64
	}{
		{"2.4 MHz over 1024px", 2.4e6, 1024, 1e6},
		{"20 MHz over 1024px", 20e6, 1024, 10e6},
		{"narrow span returns half", 1000, 200, 500},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := niceFrequencyStep(tc.span, tc.width); got != tc.want {
				t.Errorf("Expected step %v, got %v", tc.want, got)
			}
		})
	}
}

func TestFormatFrequency(t *testing.T) {
	testCases := []struct {
		freq float64
		want string
	}{
		{2.4e9, "2.400 GHz"},
		{1090e6, "1090.0 MHz"},
		{433.5e3, "433.5 kHz"},
		{250, "250 Hz"},
	}

	for _, tc := range testCases {
		if got := formatFrequency(tc.freq); got != tc.want {
			t.Errorf("Expected %q for %.0f Hz, got %q", tc.want, tc.freq, got)
		}
	}
}
