package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const sampleCSV = `Parish, Population (2020),GDP (2023),Median_Family_Income (2019 -2023),Region
Acadia,"57,576","2,104,553",nan,South
Caddo,"237,848","12,553,004","61,250",North
East Carroll,"7,459",bad,"32,000",North
Orleans,"383,997","39,106,471","58,730",South
`

func loadSample(t *testing.T) *Table {
	t.Helper()
	tbl, err := ReadCSV(strings.NewReader(sampleCSV), ',')
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	return tbl
}

func TestNewCleansHeaderAndValues(t *testing.T) {
	tbl := loadSample(t)

	wantMetrics := []string{"Population (2020)", "GDP (2023)", "Median_Family_Income (2019 -2023)"}
	if got := tbl.Metrics(); !reflect.DeepEqual(got, wantMetrics) {
		t.Fatalf("metrics = %v, want %v", got, wantMetrics)
	}
	if got := tbl.Columns()[0]; got != KeyColumn {
		t.Fatalf("first column = %q, want %q", got, KeyColumn)
	}
	if tbl.Len() != 4 {
		t.Fatalf("rows = %d, want 4", tbl.Len())
	}

	cases := []struct {
		row    int
		metric string
		want   float64
	}{
		{0, "Population (2020)", 57576},
		{0, "GDP (2023)", 2104553},
		{0, "Median_Family_Income (2019 -2023)", 0}, // nan
		{2, "GDP (2023)", 0},                        // non-numeric
		{3, "Median_Family_Income (2019 -2023)", 58730},
	}
	for _, c := range cases {
		got, err := tbl.Value(c.row, c.metric)
		if err != nil {
			t.Fatalf("Value(%d,%q): %v", c.row, c.metric, err)
		}
		if got != c.want {
			t.Errorf("Value(%d,%q) = %v, want %v", c.row, c.metric, got, c.want)
		}
	}

	var sawRegion, sawBad bool
	for _, w := range tbl.Warnings {
		if strings.Contains(w, `"Region"`) {
			sawRegion = true
		}
		if strings.Contains(w, `"GDP (2023)"`) {
			sawBad = true
		}
	}
	if !sawRegion || !sawBad {
		t.Fatalf("expected warnings for Region and GDP, got %v", tbl.Warnings)
	}
}

func TestNewRequiresParishColumn(t *testing.T) {
	_, err := New("x", []string{"County", "GDP"}, [][]string{{"A", "1"}})
	if !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
}

func TestSortFilterSelect(t *testing.T) {
	tbl := loadSample(t)

	desc, err := tbl.SortBy("Population (2020)", false)
	if err != nil {
		t.Fatal(err)
	}
	if got := desc.Head(2).Parishes(); !reflect.DeepEqual(got, []string{"Orleans", "Caddo"}) {
		t.Fatalf("top 2 = %v", got)
	}
	asc, _ := tbl.SortBy("Population (2020)", true)
	if got := asc.Head(1).Parishes(); !reflect.DeepEqual(got, []string{"East Carroll"}) {
		t.Fatalf("bottom 1 = %v", got)
	}
	// receiver untouched
	if tbl.Parishes()[0] != "Acadia" {
		t.Fatalf("SortBy modified receiver: %v", tbl.Parishes())
	}

	f := tbl.Filter([]string{" Orleans", "Acadia", "Nowhere"})
	if got := f.Parishes(); !reflect.DeepEqual(got, []string{"Acadia", "Orleans"}) {
		t.Fatalf("filter = %v", got)
	}
	if !tbl.Filter(nil).Empty() {
		t.Fatal("empty filter should yield empty table")
	}

	if _, err := tbl.SortBy("Nope", true); !errors.Is(err, ErrUnknownMetric) {
		t.Fatalf("expected ErrUnknownMetric, got %v", err)
	}
	sel, err := tbl.Select([]string{"GDP (2023)"})
	if err != nil {
		t.Fatal(err)
	}
	if got := sel.Columns(); !reflect.DeepEqual(got, []string{"Parish", "GDP (2023)"}) {
		t.Fatalf("select columns = %v", got)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	tbl := loadSample(t)
	var buf bytes.Buffer
	if err := WriteCSV(&buf, tbl); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	back, err := ReadCSV(bytes.NewReader(buf.Bytes()), ',')
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if !reflect.DeepEqual(back.Columns(), tbl.Columns()) {
		t.Fatalf("columns %v != %v", back.Columns(), tbl.Columns())
	}
	if !reflect.DeepEqual(back.Rows(), tbl.Rows()) {
		t.Fatalf("rows differ:\n%v\n%v", back.Rows(), tbl.Rows())
	}
	var again bytes.Buffer
	if err := WriteCSV(&again, back); err != nil {
		t.Fatal(err)
	}
	if again.String() != buf.String() {
		t.Fatalf("second export differs:\n%s\n%s", again.String(), buf.String())
	}
	if !strings.HasPrefix(buf.String(), "Parish,Population (2020),") {
		t.Fatalf("unexpected header: %q", strings.SplitN(buf.String(), "\n", 2)[0])
	}
}

func TestXLSXRoundTrip(t *testing.T) {
	tbl := loadSample(t)
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, tbl); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}
	back, err := ReadXLSX(bytes.NewReader(buf.Bytes()), "")
	if err != nil {
		t.Fatalf("ReadXLSX: %v", err)
	}
	if !reflect.DeepEqual(back.Rows(), tbl.Rows()) {
		t.Fatalf("rows differ:\n%v\n%v", back.Rows(), tbl.Rows())
	}
}

func TestDescribe(t *testing.T) {
	tbl, err := FromRows("d", []string{"v"}, []Row{
		{Parish: "a", Values: []float64{1}},
		{Parish: "b", Values: []float64{2}},
		{Parish: "c", Values: []float64{3}},
		{Parish: "d", Values: []float64{4}},
	})
	if err != nil {
		t.Fatal(err)
	}
	sums, err := Describe(tbl)
	if err != nil {
		t.Fatal(err)
	}
	s := sums[0]
	approx := func(name string, got, want float64) {
		t.Helper()
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
	if s.Count != 4 {
		t.Errorf("count = %d", s.Count)
	}
	approx("mean", s.Mean, 2.5)
	approx("std", s.Std, math.Sqrt(5.0/3.0))
	approx("min", s.Min, 1)
	approx("p25", s.P25, 1.75)
	approx("p50", s.P50, 2.5)
	approx("p75", s.P75, 3.25)
	approx("max", s.Max, 4)

	empty, _ := Describe(tbl.Filter(nil))
	if empty[0].Count != 0 || !math.IsNaN(empty[0].Mean) {
		t.Fatalf("empty describe = %+v", empty[0])
	}
	if txt := DescribeText(sums); !strings.Contains(txt, "25%") {
		t.Fatalf("missing quartile header: %s", txt)
	}
}

func TestCorrelation(t *testing.T) {
	tbl, _ := FromRows("c", []string{"x", "y", "z", "k"}, []Row{
		{Parish: "a", Values: []float64{1, 2, 9, 5}},
		{Parish: "b", Values: []float64{2, 4, 7, 5}},
		{Parish: "c", Values: []float64{3, 6, 5, 5}},
	})
	m, err := Correlation(tbl, []string{"x", "y", "z", "k"})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(m.Values[0][1]-1) > 1e-9 {
		t.Errorf("r(x,y) = %v, want 1", m.Values[0][1])
	}
	if math.Abs(m.Values[0][2]+1) > 1e-9 {
		t.Errorf("r(x,z) = %v, want -1", m.Values[0][2])
	}
	if m.Values[0][3] != 0 || m.Values[3][3] != 1 {
		t.Errorf("constant column: r(x,k)=%v r(k,k)=%v", m.Values[0][3], m.Values[3][3])
	}
	if m.Values[1][0] != m.Values[0][1] {
		t.Error("matrix not symmetric")
	}

	if _, err := Correlation(tbl.Filter(nil), []string{"x", "y", "z"}); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestCacheReloadsChangedFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "parishes.csv")
	if err := os.WriteFile(p, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := NewCache(2)
	if err != nil {
		t.Fatal(err)
	}
	a, err := c.Load(p, "")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := c.Load(p, "")
	if a != b {
		t.Fatal("expected cached table on second load")
	}
	if err := os.WriteFile(p, []byte(sampleCSV+"Caldwell,\"9,645\",\"1\",\"2\",North\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := c.Load(p, "")
	if err != nil {
		t.Fatal(err)
	}
	if d == a || d.Len() != 5 {
		t.Fatalf("expected reload with 5 rows, got %d (same=%v)", d.Len(), d == a)
	}
	if d.Name != "parishes.csv" {
		t.Fatalf("name = %q", d.Name)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := []struct{ in, want string }{
		{" Population (2020)", "Population (2020)"},
		{"East\u00a0Carroll", "East Carroll"},
		{"St.  Tammany\x00", "St. Tammany"},
		{"\uff27\uff52\uff41\uff4e\uff54", "Grant"},
	}
	for _, c := range cases {
		if got := NormalizeName(c.in); got != c.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSummaryJSONNullsNaN(t *testing.T) {
	tbl, err := FromRows("one", []string{"GDP"}, []Row{{Parish: "Acadia", Values: []float64{5}}})
	if err != nil {
		t.Fatal(err)
	}
	sums, err := Describe(tbl)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(sums[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"std":null`) || !strings.Contains(string(b), `"mean":5`) {
		t.Fatalf("unexpected json %s", b)
	}
}
