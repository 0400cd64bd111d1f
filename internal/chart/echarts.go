// Package chart renders ECG leads, as go-echarts options for the browser and
// as PNG images for reports.
package chart

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Fixed vertical domain of every lead chart, in mV.
const (
	VerticalMin = -1.5
	VerticalMax = 1.5
)

const lineColor = "#3b82f6"

var ErrTooFewSamples = errors.New("lead needs at least two samples")

// LeadLine builds a static line chart of (index, value) pairs.
func LeadLine(name string, samples []float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: name}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(false)}),
		charts.WithXAxisOpts(opts.XAxis{
			Type: "category",
			Show: opts.Bool(false),
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type: "value",
			Min:  VerticalMin,
			Max:  VerticalMax,
			Show: opts.Bool(false),
			SplitLine: &opts.SplitLine{
				Show:      opts.Bool(true),
				LineStyle: &opts.LineStyle{Type: "dashed", Color: "#e0e0e0"},
			},
		}),
	)

	xs := make([]int, len(samples))
	items := make([]opts.LineData, len(samples))
	for i, v := range samples {
		xs[i] = i
		items[i] = opts.LineData{Value: v}
	}

	line.SetXAxis(xs).
		AddSeries(name, items).
		SetSeriesOptions(
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			charts.WithLineStyleOpts(opts.LineStyle{Width: 1.5, Color: lineColor}),
		)
	return line
}

// LeadOptions returns the echarts option object for a lead as JSON.
func LeadOptions(name string, samples []float64) (string, error) {
	if len(samples) < 2 {
		return "", fmt.Errorf("lead %s: %w", name, ErrTooFewSamples)
	}
	b, err := json.Marshal(LeadLine(name, samples).JSON())
	if err != nil {
		return "", fmt.Errorf("encode lead %s options: %w", name, err)
	}
	return string(b), nil
}
