package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Report defines tabular export content.
type Report struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// CSVExporter renders a Report into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the report. The title is not part of
// the CSV body.
func (e *CSVExporter) Render(report Report) ([]byte, error) {
	if len(report.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(report.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range report.Rows {
		record := make([]string, len(report.Headers))
		copy(record, row)
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
