package http

import (
	"fmt"
	"math"
	"strings"

	"waterguard/water"
)

const (
	chartWidth   = 600.0
	chartHeight  = 240.0
	chartPadding = 36.0
)

// chartView is a pre-computed SVG line chart with a shaded acceptable band.
type chartView struct {
	Title      string
	Unit       string
	Width      float64
	Height     float64
	Left       float64
	Right      float64
	Top        float64
	Bottom     float64
	PlotWidth  float64
	TickY      float64
	Points     string
	BandTop    float64
	BandHeight float64
	LimitY     float64
	Ticks      []chartTick
	Markers    []chartMarker
	YMinText   string
	YMaxText   string
}

type chartTick struct {
	X    float64
	Text string
}

type chartMarker struct {
	X, Y    float64
	Outside bool
	Title   string
}

func buildChart(s water.Series) chartView {
	lo, hi := s.BandHigh, s.BandHigh
	if s.BandLow != nil {
		lo = *s.BandLow
	}
	for _, v := range s.Values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	lo -= span * 0.1
	hi += span * 0.1
	if s.BandLow == nil && lo > 0 {
		lo = 0
	}

	plotW := chartWidth - 2*chartPadding
	plotH := chartHeight - 2*chartPadding
	y := func(v float64) float64 {
		return chartPadding + plotH*(1-(v-lo)/(hi-lo))
	}
	x := func(i int) float64 {
		if len(s.Values) < 2 {
			return chartPadding
		}
		return chartPadding + plotW*float64(i)/float64(len(s.Values)-1)
	}

	view := chartView{
		Title:     s.Title,
		Unit:      s.Unit,
		Width:     chartWidth,
		Height:    chartHeight,
		Left:      chartPadding,
		Right:     chartWidth - chartPadding,
		Top:       chartPadding,
		Bottom:    chartHeight - chartPadding,
		PlotWidth: plotW,
		TickY:     chartHeight - chartPadding/3,
		LimitY:    y(s.BandHigh),
		BandTop:   y(s.BandHigh),
		YMinText:  fmt.Sprintf("%.1f", lo),
		YMaxText:  fmt.Sprintf("%.1f", hi),
	}
	bandBottom := view.Bottom
	if s.BandLow != nil {
		bandBottom = y(*s.BandLow)
	}
	view.BandHeight = bandBottom - view.BandTop

	points := make([]string, len(s.Values))
	for i, v := range s.Values {
		px, py := x(i), y(v)
		points[i] = fmt.Sprintf("%.1f,%.1f", px, py)
		outside := v > s.BandHigh || (s.BandLow != nil && v < *s.BandLow)
		label := ""
		if i < len(s.Months) {
			label = s.Months[i]
			view.Ticks = append(view.Ticks, chartTick{X: px, Text: label})
		}
		view.Markers = append(view.Markers, chartMarker{
			X:       px,
			Y:       py,
			Outside: outside,
			Title:   fmt.Sprintf("%s: %g", label, v),
		})
	}
	view.Points = strings.Join(points, " ")
	return view
}
