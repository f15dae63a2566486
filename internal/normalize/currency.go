package normalize

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency parses an amount. Native numbers are returned unchanged. For
// strings, whichever of '.' and ',' appears last is the decimal point and
// every occurrence of the other one is a thousands separator, so both
// "1.500,00" and "1,500.00" yield 1500. A separator that is the only kind
// present and repeats is grouping: "1,500,000" and "1.500.000" yield 1500000.
func Currency(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, true
	case float64:
		return decimal.NewFromFloat(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case string:
		return parseCurrency(v)
	default:
		return decimal.Decimal{}, false
	}
}

func parseCurrency(s string) (decimal.Decimal, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" {
		return decimal.Decimal{}, false
	}

	dots := strings.Count(cleaned, ".")
	commas := strings.Count(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")
	switch {
	case commas == 0 && dots > 1:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	case dots == 0 && commas > 1:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case lastComma > lastDot:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case lastDot > lastComma:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
