// Package export writes filtered parish tables to local disk or an S3 bucket.
package export

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/parish-explorer/internal/dataset"
	"github.com/KaramelBytes/parish-explorer/internal/utils"
)

// Sink stores an exported file and returns where it ended up (a path or URL).
type Sink interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// Formats understood by Encode.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// FormatFromName infers the format from a file extension; anything that is
// not .xlsx is CSV.
func FormatFromName(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

// Encode serializes t and returns the bytes and content type.
func Encode(t *dataset.Table, format string) ([]byte, string, error) {
	var buf bytes.Buffer
	switch format {
	case FormatCSV, "":
		if err := dataset.WriteCSV(&buf, t); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), ContentTypeCSV, nil
	case FormatXLSX:
		if err := dataset.WriteXLSX(&buf, t); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), ContentTypeXLSX, nil
	}
	return nil, "", fmt.Errorf("unsupported export format %q", format)
}

// Table encodes t according to name's extension and hands it to s.
func Table(ctx context.Context, s Sink, name string, t *dataset.Table) (string, error) {
	if strings.TrimSpace(name) == "" {
		name = dataset.DefaultExportName
	}
	data, ct, err := Encode(t, FormatFromName(name))
	if err != nil {
		return "", err
	}
	return s.Put(ctx, name, data, ct)
}

// LocalSink writes files under Dir.
type LocalSink struct {
	Dir string
}

func (l LocalSink) Put(_ context.Context, name string, data []byte, _ string) (string, error) {
	clean := filepath.Clean(strings.TrimSpace(name))
	if clean == "." || clean == "" {
		return "", fmt.Errorf("export name is required")
	}
	path := clean
	if !filepath.IsAbs(clean) && l.Dir != "" {
		path = filepath.Join(l.Dir, clean)
	}
	if err := utils.SafeWriteFile(path, data); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}
