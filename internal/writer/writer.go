package writer

import (
	"fmt"
	"io"
	"os"

	"github.com/insightdelivered/statement-parser/internal/models"
)

// Writer renders a parsed statement in one output format.
type Writer interface {
	Write(out io.Writer, info *models.StatementInfo) error
	// Extension is the file suffix for the format, with the dot.
	Extension() string
	// ContentType is the MIME type used by the HTTP API.
	ContentType() string
}

// Supported output formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatXLSX = "xlsx"
)

// New returns the writer for format. includeHeader adds statement metadata
// where the format has room for it.
func New(format string, includeHeader bool) (Writer, error) {
	switch format {
	case FormatCSV, "":
		return &CSVWriter{IncludeHeader: includeHeader}, nil
	case FormatJSON:
		return &JSONWriter{IncludeHeader: includeHeader}, nil
	case FormatXLSX:
		return &XLSXWriter{IncludeHeader: includeHeader}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (want csv, json or xlsx)", format)
	}
}

// WriteToFile writes info to a file at path using w.
func WriteToFile(w Writer, path string, info *models.StatementInfo) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	if err := w.Write(f, info); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
