package chart

import (
	"bytes"
	"fmt"
	"io"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Default lead image size in pixels.
const (
	ImageWidth  = 800
	ImageHeight = 160
)

// WriteLeadPNG renders samples as a PNG line chart over the fixed vertical
// domain. Axes are hidden.
func WriteLeadPNG(w io.Writer, samples []float64, width, height int) error {
	if len(samples) < 2 {
		return ErrTooFewSamples
	}
	if width <= 0 {
		width = ImageWidth
	}
	if height <= 0 {
		height = ImageHeight
	}

	xs := make([]float64, len(samples))
	for i := range xs {
		xs[i] = float64(i)
	}

	graph := gochart.Chart{
		Width:  width,
		Height: height,
		XAxis: gochart.XAxis{
			Style: gochart.Style{Hidden: true},
		},
		YAxis: gochart.YAxis{
			Style: gochart.Style{Hidden: true},
			Range: &gochart.ContinuousRange{Min: VerticalMin, Max: VerticalMax},
		},
		Series: []gochart.Series{
			gochart.ContinuousSeries{
				XValues: xs,
				YValues: samples,
				Style: gochart.Style{
					StrokeColor: drawing.ColorFromHex("3b82f6"),
					StrokeWidth: 1.5,
				},
			},
		},
	}
	if err := graph.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("render lead image: %w", err)
	}
	return nil
}

// LeadPNG is WriteLeadPNG into a byte slice.
func LeadPNG(samples []float64, width, height int) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteLeadPNG(&buf, samples, width, height); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
