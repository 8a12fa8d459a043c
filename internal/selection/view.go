package selection

import (
	"errors"
	"fmt"

	"github.com/KaramelBytes/parish-explorer/internal/dataset"
)

// ChartKind is the visualization chosen for a selection.
type ChartKind string

const (
	Bar     ChartKind = "bar"
	Scatter ChartKind = "scatter"
	Heatmap ChartKind = "heatmap"
)

// NoDataWarning is emitted when the resolved parish set is empty.
const NoDataWarning = "No data available for the selected variables. Please adjust your filters."

// Directive tells the charting collaborator what to draw.
type Directive struct {
	Kind    ChartKind `json:"kind"`
	Title   string    `json:"title"`
	Metrics []string  `json:"metrics"`
}

type titleRule struct {
	match  func(Flags) bool
	format string
}

// Evaluated top to bottom; first match wins. The top10+top5 and
// bottom10+bottom5 rows intentionally name only the larger slice.
var titleRules = []titleRule{
	{func(f Flags) bool { return f.SelectAll }, "All Parishes by %s"},
	{func(f Flags) bool { return f.Top10 && f.Bottom5 }, "Top 10 and Bottom 5 Parishes by %s"},
	{func(f Flags) bool { return f.Top5 && f.Bottom10 }, "Top 5 and Bottom 10 Parishes by %s"},
	{func(f Flags) bool { return f.Top5 && f.Bottom5 }, "Top 5 and Bottom 5 Parishes by %s"},
	{func(f Flags) bool { return f.Top10 && f.Bottom10 }, "Top 10 and Bottom 10 Parishes by %s"},
	{func(f Flags) bool { return f.Top10 && f.Top5 }, "Top 10 Parishes by %s"},
	{func(f Flags) bool { return f.Bottom10 && f.Bottom5 }, "Bottom 10 Parishes by %s"},
	{func(f Flags) bool { return f.Top5 }, "Top 5 Parishes by %s"},
	{func(f Flags) bool { return f.Top10 }, "Top 10 Parishes by %s"},
	{func(f Flags) bool { return f.Bottom5 }, "Bottom 5 Parishes by %s"},
	{func(f Flags) bool { return f.Bottom10 }, "Bottom 10 Parishes by %s"},
}

// BarTitle names a single-metric bar chart after the active presets.
func BarTitle(metric string, f Flags) string {
	for _, r := range titleRules {
		if r.match(f) {
			return fmt.Sprintf(r.format, metric)
		}
	}
	return fmt.Sprintf("Selected Parishes by %s", metric)
}

// Dispatch picks the chart from the number of metrics: 1 bar, 2 scatter,
// 3 or more heatmap.
func Dispatch(metrics []string, f Flags) (Directive, error) {
	d := Directive{Metrics: append([]string(nil), metrics...)}
	switch n := len(metrics); {
	case n == 0:
		return Directive{}, ErrNoMetrics
	case n == 1:
		d.Kind = Bar
		d.Title = BarTitle(metrics[0], f)
	case n == 2:
		d.Kind = Scatter
		d.Title = fmt.Sprintf("Scatter Plot: %s vs %s", metrics[0], metrics[1])
	default:
		d.Kind = Heatmap
		d.Title = "Correlation Heatmap"
	}
	return d, nil
}

// View is the chart-ready result of a resolution.
type View struct {
	Directive Directive
	// Rows holds the charted rows restricted to the directive's metrics. Bar
	// rows are sorted descending by the metric.
	Rows *dataset.Table
	// Corr is set for heatmaps with data.
	Corr     *dataset.CorrMatrix
	Warnings []string
}

// Empty reports whether there is nothing to draw.
func (v *View) Empty() bool {
	if v.Directive.Kind == Heatmap {
		return v.Corr == nil
	}
	return v.Rows == nil || v.Rows.Empty()
}

// BuildView prepares the chart data for a resolution. Empty selections produce
// a warning and an empty view, never an error.
func BuildView(res *Resolution, f Flags) (*View, error) {
	d, err := Dispatch(res.Metrics, f)
	if err != nil {
		return nil, err
	}
	rows, err := res.Rows.Select(d.Metrics)
	if err != nil {
		return nil, err
	}
	v := &View{Directive: d, Rows: rows}
	switch d.Kind {
	case Bar:
		if rows.Empty() {
			v.Warnings = append(v.Warnings, NoDataWarning)
			return v, nil
		}
		v.Rows, err = rows.SortBy(d.Metrics[0], false)
		if err != nil {
			return nil, err
		}
	case Scatter:
		if rows.Empty() {
			v.Warnings = append(v.Warnings, NoDataWarning)
		}
	case Heatmap:
		corr, err := dataset.Correlation(rows, d.Metrics)
		if errors.Is(err, dataset.ErrNoData) {
			v.Warnings = append(v.Warnings, NoDataWarning)
			return v, nil
		}
		if err != nil {
			return nil, err
		}
		v.Corr = corr
	}
	return v, nil
}
