// Package parser holds the value-parsing primitives for statement text:
// currency amounts, dates and payee names.
package parser

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Smashkat12/crechebooks-sub018/internal/apperr"
)

// separatorDecision tags how a raw amount's punctuation was interpreted.
// The decision is made per value from local structure, not configuration.
type separatorDecision int

const (
	decimalIsDot separatorDecision = iota
	decimalIsComma
	thousandsOnly
)

var currencySymbolReplacer = strings.NewReplacer(
	"R", "", "$", "", "€", "", "£", "", " ", "", " ", "",
)

// ParseCurrency converts amount text to integer cents. Currency symbols
// and whitespace are stripped. When both comma and dot appear, the
// later-occurring one is the decimal separator. A lone comma is decimal
// only when followed by exactly two digits, otherwise a thousands
// separator. The sign is preserved.
func ParseCurrency(text string) (int64, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return 0, apperr.NewValidation("amount", text, "empty amount")
	}

	s := currencySymbolReplacer.Replace(raw)

	// Some exports write debits with a trailing minus.
	negative := strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimSuffix(s, "-")

	switch classifySeparators(s) {
	case decimalIsComma:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case thousandsOnly:
		s = strings.ReplaceAll(s, ",", "")
	default:
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, apperr.NewValidation("amount", raw, "not a number")
	}

	cents := d.Shift(2).IntPart()
	if negative {
		cents = -cents
	}
	return cents, nil
}

func classifySeparators(s string) separatorDecision {
	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")

	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			return decimalIsComma
		}
		return decimalIsDot
	case comma >= 0:
		// "123,45" is decimal; "1,234" and "12,3456" are not.
		if len(s)-comma-1 == 2 {
			return decimalIsComma
		}
		return thousandsOnly
	default:
		return decimalIsDot
	}
}

// FormatCents renders integer cents as a plain decimal string, the
// inverse of ParseCurrency for canonical input.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
