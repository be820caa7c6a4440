// Package core provides money parsing and handling utilities.
//
// Amounts in the table are locale-formatted text. The canonical rule is:
// "," groups thousands and "." is the decimal point. Currency markers and
// whitespace are ignored. Anything that still does not parse is zero.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var currencyMarkers = []string{"VND", "vnd", "đ", "₫", "$", "€", "£"}

var groupPrinter = message.NewPrinter(language.English)

// ParseAmount converts a cell such as "1,000,000", "1,234.50đ" or " 300000 "
// to a decimal. Empty or malformed input parses to zero.
//
// Examples:
//
//	ParseAmount("1,000,000") -> 1000000
//	ParseAmount("12.5")      -> 12.5
//	ParseAmount("abc")       -> 0
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	for _, m := range currencyMarkers {
		s = strings.ReplaceAll(s, m, "")
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '\t', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FormatAmount renders an amount with "," thousands grouping and "." decimals,
// the inverse of ParseAmount.
func FormatAmount(d decimal.Decimal) string {
	neg := d.IsNegative()
	abs := d.Abs()
	whole := abs.Truncate(0)
	frac := abs.Sub(whole)

	out := groupPrinter.Sprintf("%d", whole.IntPart())
	if !frac.IsZero() {
		// "0.25" -> ".25"
		out += strings.TrimPrefix(frac.String(), "0")
	}
	if neg {
		return "-" + out
	}
	return out
}

// FormatCurrency appends the dong sign used by the dashboard.
func FormatCurrency(d decimal.Decimal) string {
	return FormatAmount(d) + "đ"
}
