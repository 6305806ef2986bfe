package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVRenderer writes dataset rows as CSV. Title and notes are left out so the
// output stays machine readable.
type CSVRenderer struct{}

// NewCSVRenderer builds a CSV renderer.
func NewCSVRenderer() *CSVRenderer {
	return &CSVRenderer{}
}

func (r *CSVRenderer) ContentType() string { return "text/csv" }

func (r *CSVRenderer) Extension() string { return "csv" }

// Render returns the CSV document as bytes.
func (r *CSVRenderer) Render(data Dataset) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Write(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write streams the dataset to w, header row first. Cells come from free-text
// answers, so values a spreadsheet would run as a formula are quoted with a
// leading apostrophe.
func (r *CSVRenderer) Write(w io.Writer, data Dataset) error {
	if len(data.Headers) == 0 {
		return fmt.Errorf("csv requires at least one header")
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(data.Headers); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}
	record := make([]string, len(data.Headers))
	for n, row := range data.Rows {
		for i, header := range data.Headers {
			record[i] = neutralizeFormula(row[header])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", n+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func neutralizeFormula(cell string) string {
	if cell == "" {
		return cell
	}
	if strings.ContainsRune("=+-@\t\r", rune(cell[0])) {
		if isNumber(cell) {
			return cell
		}
		return "'" + cell
	}
	return cell
}

// isNumber keeps negative scores such as "-1" or "-0.5" unquoted.
func isNumber(cell string) bool {
	digits := strings.TrimLeft(cell, "+-")
	if digits == "" || len(cell)-len(digits) > 1 {
		return false
	}
	dot := false
	for _, ch := range digits {
		switch {
		case ch == '.' && !dot:
			dot = true
		case ch < '0' || ch > '9':
			return false
		}
	}
	return digits != "."
}
