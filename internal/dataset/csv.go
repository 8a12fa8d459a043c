package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// DefaultExportName is the file name offered for filtered downloads.
const DefaultExportName = "filtered_parish_data.csv"

// ReadCSV parses a delimited table with a header row.
func ReadCSV(r io.Reader, delim rune) (*Table, error) {
	cr := csv.NewReader(r)
	if delim != 0 {
		cr.Comma = delim
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file: %w", ErrNoData)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		// tolerate a UTF-8 BOM written by spreadsheet tools
		header[0] = trimBOM(header[0])
	}
	var records [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(records)+2, err)
		}
		records = append(records, rec)
	}
	return New("", header, records)
}

// WriteCSV writes the table with a header row and no index column. Numbers use
// the shortest representation that parses back to the same float64, so
// ReadCSV(WriteCSV(t)) reproduces every row and value.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, len(t.metrics)+1)
	for _, r := range t.rows {
		rec[0] = r.Parish
		for j, v := range r.Values {
			rec[j+1] = FormatValue(v)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %s: %w", r.Parish, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatValue renders a metric value for delimited output.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func trimBOM(s string) string {
	if len(s) >= 3 && s[0] == 0xEF && s[1] == 0xBB && s[2] == 0xBF {
		return s[3:]
	}
	return s
}
