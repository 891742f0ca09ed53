package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
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

// CSVStreamer writes CSV rows directly to an io.Writer so large exports
// stay bounded in memory.
type CSVStreamer struct {
	writer *csv.Writer
}

// NewCSVStreamer wraps the destination writer.
func NewCSVStreamer(w io.Writer) *CSVStreamer {
	return &CSVStreamer{writer: csv.NewWriter(w)}
}

// WriteHeader emits the header record.
func (s *CSVStreamer) WriteHeader(headers []string) error {
	if len(headers) == 0 {
		return fmt.Errorf("csv requires at least one header")
	}
	if err := s.writer.Write(headers); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}
	return nil
}

// WriteRow emits a single record.
func (s *CSVStreamer) WriteRow(record []string) error {
	if err := s.writer.Write(record); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	return nil
}

// Flush drains buffered records to the underlying writer.
func (s *CSVStreamer) Flush() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
