// Package billingconfig stores the single active pricing record used to price invoices.
package billingconfig

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// SingletonID is the fixed primary key of the only configuration row.
const SingletonID int16 = 1

// DefaultDueDateOffsetDays applies when a configuration is created without an offset.
const DefaultDueDateOffsetDays = 15

// MaxDueDateOffsetDays is the largest offset the INTEGER column holds.
const MaxDueDateOffsetDays = math.MaxInt32

// DefaultPricePerUnit applies when a configuration is created without a price.
var DefaultPricePerUnit = decimal.NewFromInt(10)

// Config is the active pricing record.
type Config struct {
	ID                int16           `json:"id"`
	PricePerUnit      decimal.Decimal `json:"price_per_unit"`
	DueDateOffsetDays int             `json:"due_date_offset_days"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Defaults returns an unsaved configuration carrying the default values.
func Defaults() Config {
	return Config{
		ID:                SingletonID,
		PricePerUnit:      DefaultPricePerUnit,
		DueDateOffsetDays: DefaultDueDateOffsetDays,
	}
}

// UpdateInput carries optional field changes; nil fields are left unchanged.
type UpdateInput struct {
	PricePerUnit      *decimal.Decimal `json:"price_per_unit,omitempty"`
	DueDateOffsetDays *int             `json:"due_date_offset_days,omitempty"`
}

// Empty reports whether no field is supplied.
func (in UpdateInput) Empty() bool {
	return in.PricePerUnit == nil && in.DueDateOffsetDays == nil
}

// Apply overlays the supplied fields on cfg.
func (in UpdateInput) Apply(cfg Config) Config {
	if in.PricePerUnit != nil {
		cfg.PricePerUnit = *in.PricePerUnit
	}
	if in.DueDateOffsetDays != nil {
		cfg.DueDateOffsetDays = *in.DueDateOffsetDays
	}
	return cfg
}
