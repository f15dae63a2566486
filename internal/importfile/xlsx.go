package importfile

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// readXLSX reads one worksheet. The first non-blank row is the header.
func readXLSX(ctx context.Context, path string, opts Options) (*Sheet, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts.Sheet)
	if err != nil {
		return nil, err
	}

	var (
		headers []string
		rows    [][]string
	)
	for _, row := range sheet.Rows {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "xlsx: context cancelled")
		}
		if row == nil {
			continue
		}
		cells := rowToStrings(row, f.Date1904)
		if headers == nil {
			if allBlank(cells) {
				continue
			}
			headers = cells
			continue
		}
		rows = append(rows, cells)
	}
	if headers == nil {
		return nil, eris.Errorf("xlsx: sheet %q has no header row", sheet.Name)
	}
	return newSheet(headers, rows)
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

// rowToStrings renders each cell as text. Date-formatted numeric cells are
// written as ISO dates; their display format is locale-dependent and
// usually month-first.
func rowToStrings(row *xlsx.Row, date1904 bool) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cellString(cell, date1904)
	}
	return cells
}

func cellString(cell *xlsx.Cell, date1904 bool) string {
	if !cell.IsTime() {
		return cell.String()
	}
	t, err := cell.GetTime(date1904)
	if err != nil {
		return cell.String()
	}
	t = t.Round(time.Second)
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format(isoDate)
	}
	return t.Format(isoDateTime)
}

const (
	isoDate     = "2006-01-02"
	isoDateTime = "2006-01-02 15:04:05"
)
