// Package usage derives consumed water volume from two meter readings.
package usage

import "github.com/shopspring/decimal"

// Calculate returns max(0, current-previous). A reading lower than the previous
// one (meter rollover, entry error) yields zero usage instead of an error.
func Calculate(current, previous decimal.Decimal) decimal.Decimal {
	delta := current.Sub(previous)
	if delta.IsNegative() {
		return decimal.Zero
	}
	return delta
}

// Clamped reports whether Calculate discarded a negative delta.
func Clamped(current, previous decimal.Decimal) bool {
	return current.LessThan(previous)
}
