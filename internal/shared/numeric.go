package shared

import "github.com/shopspring/decimal"

func init() {
	// Amounts travel as JSON numbers, never quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	// QuantityScale is the number of fractional digits kept for readings, usage and amounts.
	QuantityScale int32 = 2
	// PriceScale is the number of fractional digits kept for unit prices.
	PriceScale int32 = 4
)

// RoundQuantity rounds a reading, usage or amount to its storage precision.
// decimal.Round rounds half away from zero, matching PostgreSQL numeric.
func RoundQuantity(d decimal.Decimal) decimal.Decimal {
	return d.Round(QuantityScale)
}

// RoundPrice rounds a unit price to its storage precision.
func RoundPrice(d decimal.Decimal) decimal.Decimal {
	return d.Round(PriceScale)
}

var (
	// Exclusive magnitude bounds of NUMERIC(12,2) and NUMERIC(10,4).
	maxQuantity = decimal.New(1, 10)
	maxPrice    = decimal.New(1, 6)
)

// QuantityFits reports whether d, rounded to QuantityScale, fits a reading,
// usage or amount column.
func QuantityFits(d decimal.Decimal) bool {
	return RoundQuantity(d).Abs().LessThan(maxQuantity)
}

// PriceFits reports whether d, rounded to PriceScale, fits a unit price column.
func PriceFits(d decimal.Decimal) bool {
	return RoundPrice(d).Abs().LessThan(maxPrice)
}
