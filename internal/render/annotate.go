package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/waterfall"
)

const (
	dpi            = 120.0
	tickMarkLength = 5
	pixelsPerLabel = 150.0
	depthLabels    = 8 // target label count on the depth scale
)

// annotator draws the frequency scale, the row depth scale and the info
// bar around the plot area.
type annotator struct {
	context  *freetype.Context
	fontFace font.Face
	cfg      Config
}

func newAnnotator(cfg Config) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(cfg.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		cfg:     cfg,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    cfg.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, scene waterfall.Scene, area image.Rectangle) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	if err := a.drawFrequencyScale(img, scene, area); err != nil {
		return fmt.Errorf("drawing frequency scale: %w", err)
	}
	if err := a.drawDepthScale(img, scene, area); err != nil {
		return fmt.Errorf("drawing depth scale: %w", err)
	}
	if err := a.drawInfoBar(img, scene); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}
	return nil
}

// drawFrequencyScale labels the top border with the frequency span of the
// most recent frame. Before the first frame arrives there is no span to
// label and the scale is left empty.
func (a *annotator) drawFrequencyScale(img *image.RGBA, scene waterfall.Scene, area image.Rectangle) error {
	frame := scene.Latest
	if frame == nil || len(frame.Freqs) < 2 {
		return nil
	}

	freqMin := frame.Freqs[0]
	freqMax := frame.Freqs[len(frame.Freqs)-1]
	if freqMax <= freqMin {
		return nil
	}

	freqStep := niceFrequencyStep(freqMax-freqMin, area.Dx())
	startFreq := math.Ceil(freqMin/freqStep) * freqStep

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	textY := area.Min.Y - fontHeight/2

	for freq := startFreq; freq <= freqMax; freq += freqStep {
		xRatio := (freq - freqMin) / (freqMax - freqMin)
		x := area.Min.X + int(xRatio*float64(area.Dx()))

		for y := area.Min.Y - tickMarkLength; y < area.Min.Y; y++ {
			img.Set(x, y, color.Black)
		}

		label := formatFrequency(freq)
		width := font.MeasureString(a.fontFace, label)
		if _, err := a.context.DrawString(label, freetype.Pt(x-width.Round()/2, textY)); err != nil {
			return fmt.Errorf("drawing frequency label: %w", err)
		}
	}
	return nil
}

// drawDepthScale labels the left border with scroll depth: 0 at the
// baseline, growing downward to the deepest retained row.
func (a *annotator) drawDepthScale(img *image.RGBA, scene waterfall.Scene, area image.Rectangle) error {
	if len(scene.Rows) == 0 {
		return nil
	}

	// Rows are newest first, so the last one sits deepest.
	depth := int(math.Round(scene.Rows[len(scene.Rows)-1].VerticalOffset))
	if depth > area.Dy()-1 {
		depth = area.Dy() - 1
	}
	if depth < 0 {
		return nil
	}

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	step := niceDepthStep(depth + 1)
	for d := 0; d <= depth; d += step {
		y := area.Min.Y + d

		for x := area.Min.X - tickMarkLength; x < area.Min.X; x++ {
			img.Set(x, y, color.Black)
		}

		textY := y + fontHeight/2 - metrics.Descent.Round()
		label := fmt.Sprintf("%d", d)
		if _, err := a.context.DrawString(label, freetype.Pt(10, textY)); err != nil {
			return fmt.Errorf("drawing depth label: %w", err)
		}
	}
	return nil
}

// drawInfoBar writes the tuning, the capture time of the newest frame and
// the retained row count into the bottom border.
func (a *annotator) drawInfoBar(img *image.RGBA, scene waterfall.Scene) error {
	var sb strings.Builder

	if frame := scene.Latest; frame != nil {
		sb.WriteString(fmt.Sprintf("Center: %s", formatFrequency(frame.CenterFreq)))
		sb.WriteString(fmt.Sprintf("; Rate: %s", formatSampleRate(frame.SampleRate)))
		if !frame.Time.IsZero() {
			sb.WriteString("; ")
			sb.WriteString(frame.Time.In(a.cfg.Location).Format(a.cfg.DatetimeFormat))
		}
		sb.WriteString("; ")
	}
	sb.WriteString(fmt.Sprintf("Rows: %d", len(scene.Rows)))

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	textY := img.Bounds().Max.Y - (a.cfg.Borders.Bottom-fontHeight)/2 - metrics.Descent.Round()

	if _, err := a.context.DrawString(sb.String(), freetype.Pt(a.cfg.Borders.Left, textY)); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}
	return nil
}

// niceFrequencyStep picks a standard tick step sized so labels sit about
// pixelsPerLabel apart across the given width.
func niceFrequencyStep(span float64, width int) float64 {
	steps := []float64{
		1,             // 1 Hz
		10,            // 10 Hz
		100,           // 100 Hz
		1_000,         // 1 kHz
		10_000,        // 10 kHz
		100_000,       // 100 kHz
		1_000_000,     // 1 MHz
		10_000_000,    // 10 MHz
		100_000_000,   // 100 MHz
		1_000_000_000, // 1 GHz
	}

	desiredSteps := float64(width) / pixelsPerLabel
	targetStep := span / desiredSteps

	for _, step := range steps {
		if step >= targetStep {
			if span/step >= 2 {
				return step
			}
			break
		}
	}

	// No standard step gives at least two ticks; half the span still
	// marks the center frequency.
	return span / 2
}

// niceDepthStep picks a round label interval for the depth scale.
func niceDepthStep(span int) int {
	steps := []int{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

	target := span / depthLabels
	for _, step := range steps {
		if step >= target {
			return step
		}
	}
	return steps[len(steps)-1]
}

func formatFrequency(freq float64) string {
	switch {
	case freq >= 1e9:
		return fmt.Sprintf("%.3f GHz", freq/1e9)
	case freq >= 1e6:
		return fmt.Sprintf("%.1f MHz", freq/1e6)
	case freq >= 1e3:
		return fmt.Sprintf("%.1f kHz", freq/1e3)
	default:
		return fmt.Sprintf("%.0f Hz", freq)
	}
}

func formatSampleRate(rate float64) string {
	switch {
	case rate >= 1e6:
		return fmt.Sprintf("%.1f MS/s", rate/1e6)
	case rate >= 1e3:
		return fmt.Sprintf("%.1f kS/s", rate/1e3)
	default:
		return fmt.Sprintf("%.0f S/s", rate)
	}
}
