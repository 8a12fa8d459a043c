package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Summary holds descriptive statistics for one metric.
type Summary struct {
	Metric string  `json:"metric"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	P25    float64 `json:"p25"`
	P50    float64 `json:"p50"`
	P75    float64 `json:"p75"`
	Max    float64 `json:"max"`
}

// MarshalJSON renders undefined statistics (NaN) as null.
func (s Summary) MarshalJSON() ([]byte, error) {
	num := func(f float64) *float64 {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return &f
	}
	return json.Marshal(struct {
		Metric string   `json:"metric"`
		Count  int      `json:"count"`
		Mean   *float64 `json:"mean"`
		Std    *float64 `json:"std"`
		Min    *float64 `json:"min"`
		P25    *float64 `json:"p25"`
		P50    *float64 `json:"p50"`
		P75    *float64 `json:"p75"`
		Max    *float64 `json:"max"`
	}{s.Metric, s.Count, num(s.Mean), num(s.Std), num(s.Min), num(s.P25), num(s.P50), num(s.P75), num(s.Max)})
}

// Describe computes count, mean, sample std, min, quartiles and max for each
// metric (all metrics when none are given). An empty table yields zero counts
// and NaN statistics rather than an error.
func Describe(t *Table, metrics ...string) ([]Summary, error) {
	if len(metrics) == 0 {
		metrics = t.metrics
	}
	out := make([]Summary, 0, len(metrics))
	for _, m := range metrics {
		vals, err := t.Column(m)
		if err != nil {
			return nil, err
		}
		s := Summary{Metric: m, Count: len(vals)}
		if len(vals) == 0 {
			nan := math.NaN()
			s.Mean, s.Std, s.Min, s.P25, s.P50, s.P75, s.Max = nan, nan, nan, nan, nan, nan, nan
			out = append(out, s)
			continue
		}
		// Welford for mean/variance
		var mean, m2 float64
		for i, v := range vals {
			d := v - mean
			mean += d / float64(i+1)
			m2 += d * (v - mean)
		}
		s.Mean = mean
		if len(vals) > 1 {
			s.Std = math.Sqrt(m2 / float64(len(vals)-1))
		} else {
			s.Std = math.NaN()
		}
		sorted := append([]float64(nil), vals...)
		sort.Float64s(sorted)
		s.Min = sorted[0]
		s.Max = sorted[len(sorted)-1]
		s.P25 = quantile(sorted, 0.25)
		s.P50 = quantile(sorted, 0.5)
		s.P75 = quantile(sorted, 0.75)
		out = append(out, s)
	}
	return out, nil
}

// DescribeText renders summaries as an aligned text table, one metric per row.
func DescribeText(sums []Summary) string {
	var b strings.Builder
	w := len("metric")
	for _, s := range sums {
		if len(s.Metric) > w {
			w = len(s.Metric)
		}
	}
	b.WriteString(fmt.Sprintf("%-*s %6s %14s %14s %14s %14s %14s %14s %14s\n", w, "metric", "count", "mean", "std", "min", "25%", "50%", "75%", "max"))
	for _, s := range sums {
		b.WriteString(fmt.Sprintf("%-*s %6d %14.4g %14.4g %14.4g %14.4g %14.4g %14.4g %14.4g\n",
			w, s.Metric, s.Count, s.Mean, s.Std, s.Min, s.P25, s.P50, s.P75, s.Max))
	}
	return b.String()
}

// CorrMatrix holds a symmetric Pearson correlation matrix.
type CorrMatrix struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"` // row-major, Values[i][j]
}

// Correlation computes pairwise Pearson correlations between the given metrics
// over all rows. A table with no rows returns ErrNoData. Constant columns
// correlate 0 with everything except themselves.
func Correlation(t *Table, metrics []string) (*CorrMatrix, error) {
	if len(metrics) == 0 {
		metrics = t.metrics
	}
	cols := make([][]float64, len(metrics))
	for i, m := range metrics {
		v, err := t.Column(m)
		if err != nil {
			return nil, err
		}
		cols[i] = v
	}
	if t.Empty() {
		return nil, fmt.Errorf("correlation over %d metrics: %w", len(metrics), ErrNoData)
	}
	n := len(metrics)
	mat := make([][]float64, n)
	for i := range mat {
		mat[i] = make([]float64, n)
	}
	for a := 0; a < n; a++ {
		for b := a; b < n; b++ {
			if a == b {
				mat[a][b] = 1
				continue
			}
			r := pearson(cols[a], cols[b])
			mat[a][b], mat[b][a] = r, r
		}
	}
	return &CorrMatrix{Columns: append([]string(nil), metrics...), Values: mat}, nil
}

func pearson(xs, ys []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sumX, sumY, sumXX, sumYY, sumXY float64
	for i := range xs {
		x, y := xs[i], ys[i]
		sumX += x
		sumY += y
		sumXX += x * x
		sumYY += y * y
		sumXY += x * y
	}
	n := float64(len(xs))
	denom := math.Sqrt((n*sumXX - sumX*sumX) * (n*sumYY - sumY*sumY))
	var r float64
	if denom != 0 {
		r = (n*sumXY - sumX*sumY) / denom
	}
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	if math.IsNaN(r) || math.IsInf(r, 0) {
		r = 0
	}
	return r
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
