// Package importfile reads user-supplied spreadsheet imports (CSV and XLSX)
// into a header row plus string cells, ready for reconciliation.
package importfile

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Options configures how an import file is read.
type Options struct {
	// Charset of a CSV file, by WHATWG label ("windows-1252", "latin1").
	// Empty means UTF-8. Ignored for XLSX.
	Charset string
	// Sheet selects an XLSX worksheet by name. Empty means the first one.
	Sheet string
	// Delimiter of a CSV file. Zero means detect from the header line.
	Delimiter rune
	// Comment marks CSV lines to ignore when it is their first character.
	// Zero disables comments.
	Comment rune
	// TrimSpace strips surrounding whitespace from every CSV cell.
	TrimSpace bool
}

// Sheet is a parsed import: one header row and the data rows below it.
// Every row has exactly len(Headers) cells.
type Sheet struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Read parses the file at path, choosing the parser by extension.
func Read(ctx context.Context, path string, opts Options) (*Sheet, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt", ".tsv":
		return readCSVFile(ctx, path, opts)
	case ".xlsx", ".xlsm":
		return readXLSX(ctx, path, opts)
	default:
		return nil, eris.Errorf("importfile: unsupported file type %q", filepath.Ext(path))
	}
}

// newSheet trims header cells, drops blank rows, and pads or truncates rows
// to the header width.
func newSheet(headers []string, rows [][]string) (*Sheet, error) {
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}
	if allBlank(headers) {
		return nil, eris.New("importfile: header row is empty")
	}

	s := &Sheet{Headers: headers, Rows: make([][]string, 0, len(rows))}
	for _, r := range rows {
		if allBlank(r) {
			continue
		}
		row := make([]string, len(headers))
		copy(row, r)
		s.Rows = append(s.Rows, row)
	}
	return s, nil
}

// index returns the column of header, or -1.
func (s *Sheet) index(header string) int {
	for i, h := range s.Headers {
		if h == header {
			return i
		}
	}
	return -1
}

// Column returns every cell under header, in row order. Nil if the header
// does not exist.
func (s *Sheet) Column(header string) []string {
	i := s.index(header)
	if i < 0 {
		return nil
	}
	out := make([]string, len(s.Rows))
	for r, row := range s.Rows {
		out[r] = row[i]
	}
	return out
}

// DistinctValues returns the non-blank cells under header, trimmed,
// deduplicated, in first-seen order.
func (s *Sheet) DistinctValues(header string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range s.Column(header) {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func allBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
