package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// excelEpochOffset is the number of days between the spreadsheet serial
// epoch (1900-01-00, with the 1900 leap-year bug) and 1970-01-01.
const excelEpochOffset = 25569

// nativeLayouts are tried, in order, before day-first splitting.
var nativeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// Date converts a time.Time (returned unchanged), a numeric spreadsheet
// serial date, or a string into a time. Strings are tried against ISO-style
// layouts first and then split day-first on '/' or '-' (DD/MM/YYYY).
func Date(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case float64:
		return fromSerial(v)
	case float32:
		return fromSerial(float64(v))
	case int:
		return fromSerial(float64(v))
	case int64:
		return fromSerial(float64(v))
	case string:
		return parseDate(v)
	default:
		return time.Time{}, false
	}
}

func fromSerial(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) {
		return time.Time{}, false
	}
	ms := (serial - excelEpochOffset) * 86400 * 1000
	return time.UnixMilli(int64(math.Round(ms))).UTC(), true
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range nativeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return parseDayFirst(s)
}

// parseDayFirst handles DD/MM/YYYY, DD-MM-YYYY and two-digit years
// (interpreted as 20YY). Out-of-range days or months are rejected.
func parseDayFirst(s string) (time.Time, bool) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == '-' })
	if len(parts) != 3 {
		return time.Time{}, false
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return time.Time{}, false
		}
		nums[i] = n
	}
	day, month, year := nums[0], nums[1], nums[2]
	if year < 100 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}
