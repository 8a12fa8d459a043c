package selection

import (
	"errors"
	"fmt"

	"github.com/KaramelBytes/parish-explorer/internal/dataset"
)

const (
	// AllMetrics expands to every metric column of the table.
	AllMetrics = "All Metrics"
	// DefaultMetric is selected when the caller names none.
	DefaultMetric = "Population (2023)"
)

// ErrNoMetrics is returned when no metric is selected.
var ErrNoMetrics = errors.New("at least one metric must be selected")

// Flags are the preset toggles. They are independent and additive.
type Flags struct {
	SelectAll bool `json:"select_all" yaml:"select_all"`
	Top5      bool `json:"top_5" yaml:"top_5"`
	Top10     bool `json:"top_10" yaml:"top_10"`
	Bottom5   bool `json:"bottom_5" yaml:"bottom_5"`
	Bottom10  bool `json:"bottom_10" yaml:"bottom_10"`
}

// DefaultFlags mirrors the initial toggle state: top 10 and bottom 5.
func DefaultFlags() Flags { return Flags{Top10: true, Bottom5: true} }

// AnyBottom reports whether a bottom preset is active.
func (f Flags) AnyBottom() bool { return f.Bottom5 || f.Bottom10 }

// preset is one top/bottom slice.
type preset struct {
	on        func(Flags) bool
	n         int
	ascending bool
}

var presets = []preset{
	{func(f Flags) bool { return f.Top5 }, 5, false},
	{func(f Flags) bool { return f.Top10 }, 10, false},
	{func(f Flags) bool { return f.Bottom5 }, 5, true},
	{func(f Flags) bool { return f.Bottom10 }, 10, true},
}

// ExpandMetrics validates the selected metrics against the table. The
// AllMetrics sentinel anywhere in the list expands to every metric column.
// Duplicates are dropped; order of first appearance is kept.
func ExpandMetrics(t *dataset.Table, selected []string) ([]string, error) {
	for _, m := range selected {
		if m == AllMetrics {
			all := t.Metrics()
			if len(all) == 0 {
				return nil, ErrNoMetrics
			}
			return all, nil
		}
	}
	var out []string
	seen := map[string]bool{}
	for _, m := range selected {
		m = dataset.NormalizeName(m)
		if m == "" || seen[m] {
			continue
		}
		if !t.HasMetric(m) {
			return nil, fmt.Errorf("%w: %q (available: %v)", dataset.ErrUnknownMetric, m, t.Metrics())
		}
		seen[m] = true
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, ErrNoMetrics
	}
	return out, nil
}
