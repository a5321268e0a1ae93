// Package readings records meter readings and resolves the previous reading
// each usage figure is derived from.
package readings

import (
	"time"

	"github.com/shopspring/decimal"
)

// MeterReading is a stored meter reading with its derived usage.
type MeterReading struct {
	ID              int64               `json:"id"`
	CustomerID      int64               `json:"customer_id"`
	ReadingDate     time.Time           `json:"reading_date"`
	CurrentReading  decimal.Decimal     `json:"current_reading"`
	PreviousReading decimal.NullDecimal `json:"previous_reading"`
	UsageCalculated decimal.Decimal     `json:"usage_calculated"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// CreateReadingInput is the payload for CreateReading. A nil PreviousReading
// is resolved from the customer's history.
type CreateReadingInput struct {
	CustomerID      int64            `json:"customer_id" validate:"required,gt=0"`
	ReadingDate     time.Time        `json:"reading_date" validate:"required"`
	CurrentReading  *decimal.Decimal `json:"current_reading" validate:"required"`
	PreviousReading *decimal.Decimal `json:"previous_reading,omitempty"`
}
