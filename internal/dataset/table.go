package dataset

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// KeyColumn is the column holding the parish name.
const KeyColumn = "Parish"

var (
	// ErrUnknownMetric is returned when a metric name is not a column of the table.
	ErrUnknownMetric = errors.New("unknown metric")
	// ErrMissingKey is returned when the source has no Parish column.
	ErrMissingKey = errors.New("missing Parish column")
	// ErrNoData marks computations over an empty row set.
	ErrNoData = errors.New("no data")
)

// Row is one parish and its metric values, aligned with Table.Metrics().
type Row struct {
	Parish string
	Values []float64
}

// Table is an immutable, cleaned parish table. Derived tables (SortBy, Filter,
// Select) never modify the receiver.
type Table struct {
	Name     string
	Warnings []string

	metrics []string
	index   map[string]int
	rows    []Row
}

// New builds a Table from a header and raw string records. The Parish column is
// the key; every other column is coerced to float64 (commas stripped, "nan",
// blank or non-numeric values become 0). Columns with no numeric value at all
// are dropped with a warning.
func New(name string, header []string, records [][]string) (*Table, error) {
	keyIdx := -1
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = NormalizeName(h)
		if keyIdx < 0 && strings.EqualFold(cols[i], KeyColumn) {
			keyIdx = i
		}
	}
	if keyIdx < 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrMissingKey)
	}

	t := &Table{Name: name, index: map[string]int{}}

	// First pass: decide which columns are numeric.
	type colState struct {
		src     int
		numeric int
		text    int
	}
	var states []colState
	for i, c := range cols {
		if i == keyIdx || c == "" {
			continue
		}
		states = append(states, colState{src: i})
	}
	for _, rec := range records {
		for k := range states {
			s := cell(rec, states[k].src)
			if isMissing(s) {
				continue
			}
			if _, ok := parseNumeric(s); ok {
				states[k].numeric++
			} else {
				states[k].text++
			}
		}
	}
	var keep []int
	for _, st := range states {
		name := cols[st.src]
		if st.numeric == 0 && st.text > 0 {
			t.Warnings = append(t.Warnings, fmt.Sprintf("column %q is not numeric; skipped", name))
			continue
		}
		if _, dup := t.index[name]; dup {
			t.Warnings = append(t.Warnings, fmt.Sprintf("duplicate column %q; keeping the first", name))
			continue
		}
		if st.text > 0 {
			t.Warnings = append(t.Warnings, fmt.Sprintf("column %q: %d non-numeric values set to 0", name, st.text))
		}
		t.index[name] = len(t.metrics)
		t.metrics = append(t.metrics, name)
		keep = append(keep, st.src)
	}

	seen := map[string]bool{}
	for _, rec := range records {
		parish := NormalizeName(cell(rec, keyIdx))
		if parish == "" || strings.EqualFold(parish, "nan") {
			continue
		}
		if seen[parish] {
			t.Warnings = append(t.Warnings, fmt.Sprintf("duplicate parish %q; keeping the first row", parish))
			continue
		}
		seen[parish] = true
		vals := make([]float64, len(keep))
		for j, src := range keep {
			if v, ok := parseNumeric(cell(rec, src)); ok {
				vals[j] = v
			}
		}
		t.rows = append(t.rows, Row{Parish: parish, Values: vals})
	}
	return t, nil
}

// Load reads a parish table from an .xlsx, .csv or .tsv file.
// sheet selects an XLSX worksheet by name; empty means the first sheet.
func Load(path, sheet string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return LoadXLSX(path, sheet)
	case ".csv", ".tsv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open dataset: %w", err)
		}
		defer f.Close()
		t, err := ReadCSV(f, sniffDelimiter(path))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		t.Name = filepath.Base(path)
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported dataset format: %s", filepath.Ext(path))
	}
}

// Columns lists the key column followed by every metric column.
func (t *Table) Columns() []string {
	out := make([]string, 0, len(t.metrics)+1)
	out = append(out, KeyColumn)
	return append(out, t.metrics...)
}

// Metrics lists the numeric columns in source order.
func (t *Table) Metrics() []string {
	out := make([]string, len(t.metrics))
	copy(out, t.metrics)
	return out
}

// HasMetric reports whether m is a metric column.
func (t *Table) HasMetric(m string) bool {
	_, ok := t.index[m]
	return ok
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool { return len(t.rows) == 0 }

// Rows returns the rows in table order. Callers must not modify the values.
func (t *Table) Rows() []Row { return t.rows }

// Parishes returns parish names in table order.
func (t *Table) Parishes() []string {
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Parish
	}
	return out
}

// Column returns the values of metric m in table order.
func (t *Table) Column(m string) ([]float64, error) {
	j, ok := t.index[m]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, m)
	}
	out := make([]float64, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Values[j]
	}
	return out, nil
}

// Value returns metric m for the row at index i.
func (t *Table) Value(i int, m string) (float64, error) {
	j, ok := t.index[m]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMetric, m)
	}
	if i < 0 || i >= len(t.rows) {
		return 0, fmt.Errorf("row %d out of range", i)
	}
	return t.rows[i].Values[j], nil
}

// SortBy returns a copy ordered by metric m. Ties keep table order.
func (t *Table) SortBy(m string, ascending bool) (*Table, error) {
	j, ok := t.index[m]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, m)
	}
	out := t.derive(append([]Row(nil), t.rows...))
	sort.SliceStable(out.rows, func(a, b int) bool {
		if ascending {
			return out.rows[a].Values[j] < out.rows[b].Values[j]
		}
		return out.rows[a].Values[j] > out.rows[b].Values[j]
	})
	return out, nil
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > len(t.rows) {
		n = len(t.rows)
	}
	return t.derive(append([]Row(nil), t.rows[:n]...))
}

// Filter keeps the rows whose parish is in names, preserving table order.
// An empty or non-matching name set yields an empty table.
func (t *Table) Filter(names []string) *Table {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[NormalizeName(n)] = struct{}{}
	}
	var rows []Row
	for _, r := range t.rows {
		if _, ok := set[r.Parish]; ok {
			rows = append(rows, r)
		}
	}
	return t.derive(rows)
}

// Select returns a table restricted to the given metric columns, in the given order.
func (t *Table) Select(metrics []string) (*Table, error) {
	idx := make([]int, len(metrics))
	for k, m := range metrics {
		j, ok := t.index[m]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, m)
		}
		idx[k] = j
	}
	out := &Table{Name: t.Name, index: map[string]int{}}
	for _, j := range idx {
		m := t.metrics[j]
		if _, dup := out.index[m]; dup {
			continue
		}
		out.index[m] = len(out.metrics)
		out.metrics = append(out.metrics, m)
	}
	for _, r := range t.rows {
		vals := make([]float64, 0, len(out.metrics))
		for _, m := range out.metrics {
			vals = append(vals, r.Values[t.index[m]])
		}
		out.rows = append(out.rows, Row{Parish: r.Parish, Values: vals})
	}
	return out, nil
}

func (t *Table) derive(rows []Row) *Table {
	return &Table{Name: t.Name, metrics: t.metrics, index: t.index, rows: rows}
}

func cell(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

func isMissing(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "n/a")
}

// parseNumeric strips thousands separators and currency/percent decoration.
// Missing markers parse as 0.
func parseNumeric(s string) (float64, bool) {
	raw := strings.TrimSpace(strings.ReplaceAll(s, "\u00A0", " "))
	if isMissing(raw) {
		return 0, true
	}
	raw = strings.NewReplacer(",", "", " ", "", "$", "", "%", "").Replace(raw)
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}

// FromRows builds a Table directly from cleaned rows. Each row must carry one
// value per metric.
func FromRows(name string, metrics []string, rows []Row) (*Table, error) {
	t := &Table{Name: name, index: map[string]int{}}
	for _, m := range metrics {
		m = NormalizeName(m)
		if _, dup := t.index[m]; dup {
			return nil, fmt.Errorf("duplicate metric %q", m)
		}
		t.index[m] = len(t.metrics)
		t.metrics = append(t.metrics, m)
	}
	seen := map[string]bool{}
	for _, r := range rows {
		if len(r.Values) != len(t.metrics) {
			return nil, fmt.Errorf("row %q: got %d values, want %d", r.Parish, len(r.Values), len(t.metrics))
		}
		p := NormalizeName(r.Parish)
		if p == "" || seen[p] {
			return nil, fmt.Errorf("row %q: empty or duplicate parish", r.Parish)
		}
		seen[p] = true
		t.rows = append(t.rows, Row{Parish: p, Values: append([]float64(nil), r.Values...)})
	}
	return t, nil
}
