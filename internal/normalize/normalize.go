// Package normalize canonicalizes raw imported cell values (emails, phone
// numbers, amounts, dates) into comparable forms. Every function degrades to
// an empty or not-ok result on unparseable input; callers treat that as
// "no data", never as an error.
package normalize

import (
	"strings"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// TrunkPrefix is the national trunk prefix stripped from phone numbers.
// It is a regional policy, not a universal phone rule.
const TrunkPrefix = "0"

// Email trims and lowercases an address. No syntax validation is done.
func Email(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// Phone keeps only the digits of a phone number and removes a single
// leading TrunkPrefix. No country code inference is attempted.
func Phone(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return strings.TrimPrefix(b.String(), TrunkPrefix)
}

// Key returns the canonical lookup key for a raw value of the given kind.
// Text and reference values are matched verbatim. An empty key means the
// value could not be normalized and must not be looked up or learned.
func Key(kind model.FieldKind, raw string) string {
	switch kind {
	case model.KindEmail:
		return Email(raw)
	case model.KindPhone:
		return Phone(raw)
	case model.KindCurrency:
		d, ok := Currency(raw)
		if !ok {
			return ""
		}
		return d.String()
	case model.KindDate:
		t, ok := Date(raw)
		if !ok {
			return ""
		}
		return t.Format(dateKeyLayout)
	default:
		return raw
	}
}

const dateKeyLayout = "2006-01-02"
