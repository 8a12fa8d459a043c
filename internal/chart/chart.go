// Package chart draws selection views as PNG or SVG images.
package chart

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/KaramelBytes/parish-explorer/internal/dataset"
	"github.com/KaramelBytes/parish-explorer/internal/selection"
)

// ErrNoData is returned when the view has nothing to draw.
var ErrNoData = errors.New("chart: no data to draw")

// Supported output formats.
const (
	PNG = "png"
	SVG = "svg"
)

// ContentType returns the MIME type for a format.
func ContentType(format string) string {
	if format == SVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// ParseFormat validates a user supplied format; empty means PNG.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", PNG:
		return PNG, nil
	case SVG:
		return SVG, nil
	}
	return "", fmt.Errorf("unsupported chart format %q (use png or svg)", s)
}

// Render draws v in the given format and writes the image to w.
func Render(w io.Writer, v *selection.View, format string) error {
	format, err := ParseFormat(format)
	if err != nil {
		return err
	}
	if v == nil || v.Empty() {
		return ErrNoData
	}
	var (
		p      *plot.Plot
		width  = 10 * vg.Inch
		height = 6 * vg.Inch
	)
	switch v.Directive.Kind {
	case selection.Bar:
		p, err = barPlot(v)
		// one row per parish needs vertical room
		if h := vg.Length(v.Rows.Len()) * 0.3 * vg.Inch; h > height {
			height = h
		}
	case selection.Scatter:
		p, err = scatterPlot(v)
	case selection.Heatmap:
		p, err = heatmapPlot(v)
		width, height = 9*vg.Inch, 8*vg.Inch
	default:
		return fmt.Errorf("unknown chart kind %q", v.Directive.Kind)
	}
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(width, height, format)
	if err != nil {
		return fmt.Errorf("render %s: %w", format, err)
	}
	_, err = wt.WriteTo(w)
	return err
}

func newPlot(title string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(16)
	return p
}

// barPlot draws a horizontal bar per parish with the largest value on top.
func barPlot(v *selection.View) (*plot.Plot, error) {
	metric := v.Directive.Metrics[0]
	col, err := v.Rows.Column(metric)
	if err != nil {
		return nil, err
	}
	names := v.Rows.Parishes()
	n := len(col)
	values := make(plotter.Values, n)
	labels := make([]string, n)
	for i := range col {
		values[n-1-i] = col[i]
		labels[n-1-i] = names[i]
	}

	p := newPlot(v.Directive.Title)
	p.X.Label.Text = metric
	p.Y.Label.Text = dataset.KeyColumn

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return nil, err
	}
	bars.Horizontal = true
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars, plotter.NewGrid())
	p.NominalY(labels...)
	if lo := minOf(col); lo > 0 {
		p.X.Min = 0
	}
	return p, nil
}

// scatterPlot draws one labelled series per parish.
func scatterPlot(v *selection.View) (*plot.Plot, error) {
	mx, my := v.Directive.Metrics[0], v.Directive.Metrics[1]
	xs, err := v.Rows.Column(mx)
	if err != nil {
		return nil, err
	}
	ys, err := v.Rows.Column(my)
	if err != nil {
		return nil, err
	}
	p := newPlot(v.Directive.Title)
	p.X.Label.Text = mx
	p.Y.Label.Text = my
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(xs))
	for i, name := range v.Rows.Parishes() {
		pts[i] = plotter.XY{X: xs[i], Y: ys[i]}
		s, err := plotter.NewScatter(plotter.XYs{pts[i]})
		if err != nil {
			return nil, fmt.Errorf("parish %s: %w", name, err)
		}
		s.GlyphStyle.Color = plotutil.Color(i)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Radius = vg.Points(5)
		p.Add(s)
	}
	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: v.Rows.Parishes()})
	if err != nil {
		return nil, err
	}
	p.Add(labels)
	return p, nil
}

// corrGrid adapts a correlation matrix to plotter.GridXYZ. Row 0 is drawn on
// top.
type corrGrid struct{ m *dataset.CorrMatrix }

func (g corrGrid) Dims() (c, r int)   { n := len(g.m.Columns); return n, n }
func (g corrGrid) Z(c, r int) float64 { return g.m.Values[len(g.m.Columns)-1-r][c] }
func (g corrGrid) X(c int) float64    { return float64(c) }
func (g corrGrid) Y(r int) float64    { return float64(r) }

func heatmapPlot(v *selection.View) (*plot.Plot, error) {
	m := v.Corr
	n := len(m.Columns)

	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(-1)
	cmap.SetMax(1)
	hm := plotter.NewHeatMap(corrGrid{m}, cmap.Palette(255))
	hm.Min, hm.Max = -1, 1

	p := newPlot(v.Directive.Title)
	p.Add(hm)

	rowLabels := make([]string, n)
	for i, c := range m.Columns {
		rowLabels[n-1-i] = c
	}
	p.NominalX(m.Columns...)
	p.NominalY(rowLabels...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter

	var (
		pts  plotter.XYs
		text []string
	)
	g := corrGrid{m}
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			pts = append(pts, plotter.XY{X: float64(c), Y: float64(r)})
			text = append(text, fmt.Sprintf("%.2f", g.Z(c, r)))
		}
	}
	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: text})
	if err != nil {
		return nil, err
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].XAlign = draw.XCenter
		labels.TextStyle[i].YAlign = draw.YCenter
	}
	p.Add(labels)
	return p, nil
}

func minOf(xs []float64) float64 {
	lo := math.Inf(1)
	for _, x := range xs {
		lo = math.Min(lo, x)
	}
	return lo
}
