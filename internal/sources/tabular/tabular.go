// Package tabular reads header-keyed tab-separated source files.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrMissingColumn = errors.New("tabular: missing column")

// Row maps header names to trimmed cell values.
type Row map[string]string

// Get returns the trimmed value of column, "" when absent.
func (r Row) Get(column string) string {
	return r[column]
}

// Read parses a TSV stream whose first line is the header. required columns
// must be present; fn is called once per data line with line numbers
// starting at 2. Short lines yield empty values.
func Read(r io.Reader, required []string, fn func(line int, row Row) error) error {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("tabular: empty input")
		}
		return fmt.Errorf("tabular: read header: %w", err)
	}
	columns := make([]string, len(header))
	index := make(map[string]struct{}, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		columns[i] = h
		index[h] = struct{}{}
	}
	for _, want := range required {
		if _, ok := index[want]; !ok {
			return fmt.Errorf("%w: %q", ErrMissingColumn, want)
		}
	}

	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("tabular: line %d: %w", line, err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		row := make(Row, len(columns))
		for i, name := range columns {
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			} else {
				row[name] = ""
			}
		}
		if err := fn(line, row); err != nil {
			return err
		}
	}
}
