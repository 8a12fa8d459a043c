package selection

import (
	"context"
	"fmt"

	"github.com/KaramelBytes/parish-explorer/internal/dataset"
)

// Explore runs one render for a session: load the committed selection,
// resolve, persist an Apply, then build the view. With no metrics selected it
// falls back to DefaultMetric when the table has it.
func Explore(ctx context.Context, t *dataset.Table, s Store, sessionID string, in Input) (*Resolution, *View, error) {
	if len(in.Metrics) == 0 && t.HasMetric(DefaultMetric) {
		in.Metrics = []string{DefaultMetric}
	}
	committed, err := s.Load(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("load session: %w", err)
	}
	res, err := Resolve(t, in, committed)
	if err != nil {
		return nil, nil, err
	}
	if err := Commit(ctx, s, sessionID, res); err != nil {
		return nil, nil, fmt.Errorf("commit selection: %w", err)
	}
	v, err := BuildView(res, in.Flags)
	if err != nil {
		return nil, nil, err
	}
	return res, v, nil
}

// Clear drops the committed selection so the next render uses the defaults.
func Clear(ctx context.Context, s Store, sessionID string) error {
	return s.Save(ctx, sessionID, nil)
}
