// Package core provides amount parsing and decimal helpers.
//
// Amounts travel as float64 because that is what the export document
// carries, but anything that sums user-entered strings goes through
// shopspring/decimal first so totals do not pick up binary drift.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered decimal string to an Amount.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted and
// the value is rounded to two decimals. Zero, negative and malformed
// values return ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,345") -> 12.35, nil
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return 0, ErrInvalidAmount
	}
	f, _ := d.Float64()
	return Amount(f), nil
}

// ParseAmountOrZero mirrors the lenient "parse or 0" rule used for
// invoice line items.
func ParseAmountOrZero(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		return 0
	}
	return a
}

// SumAmounts adds amounts with decimal arithmetic, skipping values that
// are not finite numbers.
func SumAmounts(amounts ...Amount) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		if !a.Valid() {
			continue
		}
		total = total.Add(decimal.NewFromFloat(float64(a)))
	}
	f, _ := total.Round(2).Float64()
	return f
}
