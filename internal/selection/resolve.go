package selection

import (
	"github.com/KaramelBytes/parish-explorer/internal/dataset"
)

// Source tells where the resolved parish set came from.
type Source string

const (
	SourceCommitted Source = "committed"
	SourceApplied   Source = "applied"
	SourceDefault   Source = "default"
)

// Input is one render's selection state.
type Input struct {
	Metrics []string `json:"metrics"`
	Flags   Flags    `json:"flags"`
	// Explicit is the multi-select override. Empty means the preset set.
	Explicit []string `json:"parishes,omitempty"`
	// Apply commits Explicit (or the preset set) into the session.
	Apply bool `json:"apply,omitempty"`
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Metrics []string
	// Preset is the union of the active preset slices; it is what an Apply
	// without explicit names commits.
	Preset []string
	// Parishes is the effective set, in table order.
	Parishes []string
	Source   Source
	// Commit is non-nil when the caller must store a new session selection.
	Commit []string
	// Rows is the table restricted to Parishes.
	Rows *dataset.Table
}

// Resolve maps a selection to a parish set. It is a pure function of the table,
// the input and the committed session snapshot; persisting Commit is the
// caller's job.
//
// Precedence: Apply > committed selection > default (top 10 + bottom 5 by the
// first metric). An empty committed selection counts as none.
func Resolve(t *dataset.Table, in Input, committed []string) (*Resolution, error) {
	metrics, err := ExpandMetrics(t, in.Metrics)
	if err != nil {
		return nil, err
	}
	res := &Resolution{Metrics: metrics}

	res.Preset, err = PresetParishes(t, metrics[0], in.Flags)
	if err != nil {
		return nil, err
	}

	var names []string
	switch {
	case in.Apply:
		commit := in.Explicit
		if len(commit) == 0 {
			commit = res.Preset
		}
		res.Commit = normalizeAll(commit)
		res.Source = SourceApplied
		names = res.Commit
	case len(committed) > 0:
		res.Source = SourceCommitted
		names = committed
	}
	if len(names) == 0 {
		res.Source = SourceDefault
		names, err = PresetParishes(t, metrics[0], Flags{Top10: true, Bottom5: true})
		if err != nil {
			return nil, err
		}
	}

	res.Rows = t.Filter(names)
	res.Parishes = res.Rows.Parishes()
	return res, nil
}

// PresetParishes returns the union of the active preset slices sorted by
// metric, in table order. SelectAll short-circuits to every parish.
func PresetParishes(t *dataset.Table, metric string, f Flags) ([]string, error) {
	if f.SelectAll {
		return t.Parishes(), nil
	}
	set := map[string]bool{}
	for _, p := range presets {
		if !p.on(f) {
			continue
		}
		sorted, err := t.SortBy(metric, p.ascending)
		if err != nil {
			return nil, err
		}
		for _, name := range sorted.Head(p.n).Parishes() {
			set[name] = true
		}
	}
	out := []string{}
	for _, name := range t.Parishes() {
		if set[name] {
			out = append(out, name)
		}
	}
	return out, nil
}

func normalizeAll(names []string) []string {
	out := make([]string, 0, len(names))
	seen := map[string]bool{}
	for _, n := range names {
		n = dataset.NormalizeName(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
