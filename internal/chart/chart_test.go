package chart

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/parish-explorer/internal/dataset"
	"github.com/KaramelBytes/parish-explorer/internal/selection"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func testTable(t *testing.T) *dataset.Table {
	t.Helper()
	var rows []dataset.Row
	for i := 1; i <= 12; i++ {
		rows = append(rows, dataset.Row{
			Parish: fmt.Sprintf("Parish %02d", i),
			Values: []float64{float64(i * 100), float64(5000 - i*7), float64((i * 37) % 11)},
		})
	}
	tbl, err := dataset.FromRows("test", []string{"GDP (2023)", "Population (2023)", "Permits"}, rows)
	require.NoError(t, err)
	return tbl
}

func view(t *testing.T, metrics []string, names []string) *selection.View {
	t.Helper()
	tbl := testTable(t)
	res, err := selection.Resolve(tbl, selection.Input{Metrics: metrics, Flags: selection.DefaultFlags(), Explicit: names, Apply: names != nil}, nil)
	require.NoError(t, err)
	v, err := selection.BuildView(res, selection.DefaultFlags())
	require.NoError(t, err)
	return v
}

func TestRenderPNG(t *testing.T) {
	cases := map[string][]string{
		"bar":     {"GDP (2023)"},
		"scatter": {"GDP (2023)", "Population (2023)"},
		"heatmap": {"GDP (2023)", "Population (2023)", "Permits"},
	}
	for name, metrics := range cases {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Render(&buf, view(t, metrics, nil), PNG))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
		})
	}
}

func TestRenderSVG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, view(t, []string{"GDP (2023)"}, nil), "SVG"))
	assert.Contains(t, buf.String(), "<svg")
}

func TestRenderEmptyView(t *testing.T) {
	v := view(t, []string{"GDP (2023)"}, []string{"Nowhere"})
	require.True(t, v.Empty())
	assert.ErrorIs(t, Render(&bytes.Buffer{}, v, PNG), ErrNoData)
	assert.ErrorIs(t, Render(&bytes.Buffer{}, nil, PNG), ErrNoData)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, PNG, f)
	_, err = ParseFormat("gif")
	assert.Error(t, err)
	assert.Equal(t, "image/svg+xml", ContentType(SVG))
}
