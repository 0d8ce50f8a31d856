package render

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/spectrum"
)

// ErrNoFrame is returned when a chart is requested before any frame has
// been ingested.
var ErrNoFrame = errors.New("no frame to chart")

// WriteSpectrumChart renders the frame's power trace as a self-contained
// HTML line chart: frequency in MHz on the x axis, power in dB on the y
// axis, values exactly as carried by the frame.
func WriteSpectrumChart(w io.Writer, frame *spectrum.Frame) error {
	if frame == nil {
		return ErrNoFrame
	}
	if len(frame.Power) == 0 {
		return errors.New("frame carries no power trace")
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Spectrum",
			Width:     "1200px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Spectrum at %s", formatFrequency(frame.CenterFreq)),
			Subtitle: fmt.Sprintf("Sample rate %s, %d bins", formatSampleRate(frame.SampleRate), len(frame.Freqs)),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "MHz"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "dB"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: true, Trigger: "axis"}),
	)

	labels := make([]string, len(frame.Freqs))
	for i, hz := range frame.Freqs {
		labels[i] = strconv.FormatFloat(hz/1e6, 'f', 3, 64)
	}
	data := make([]opts.LineData, len(frame.Power))
	for i, dB := range frame.Power {
		data[i] = opts.LineData{Value: dB}
	}

	line.SetXAxis(labels).AddSeries("power", data)
	return line.Render(w)
}
