package export

import (
	"encoding/csv"
	"io"

	"docfill/internal/domain"
)

// BOM is the UTF-8 byte order mark Excel needs to detect encoding on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes placeholder rows as CSV.
type CSVWriter struct {
	csv *csv.Writer
}

// NewCSVWriter creates a CSVWriter that writes to w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{csv: csv.NewWriter(w)}
}

// WriteHeader writes the column header row.
func (w *CSVWriter) WriteHeader() error {
	return w.csv.Write(columns)
}

// WritePlaceholders writes one row per placeholder.
func (w *CSVWriter) WritePlaceholders(placeholders []domain.Placeholder) error {
	for i := range placeholders {
		if err := w.csv.Write(placeholderToRow(&placeholders[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes buffered data to the underlying writer.
func (w *CSVWriter) Flush() {
	w.csv.Flush()
}

// Error reports any error from a previous Write or Flush.
func (w *CSVWriter) Error() error {
	return w.csv.Error()
}
