// Package invoices generates invoices from meter readings and manages their
// payment status.
package invoices

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates invoice payment states. Every state may move to any other.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// Statuses lists the accepted values in display order.
var Statuses = []Status{StatusPending, StatusPaid, StatusOverdue}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusOverdue:
		return true
	}
	return false
}

// Invoice is a bill derived from one meter reading. Pricing values are a
// snapshot of the configuration at creation time.
type Invoice struct {
	ID             int64           `json:"id"`
	CustomerID     int64           `json:"customer_id"`
	MeterReadingID int64           `json:"meter_reading_id"`
	BillingPeriod  string          `json:"billing_period"`
	TotalUsage     decimal.Decimal `json:"total_usage"`
	PricePerUnit   decimal.Decimal `json:"price_per_unit"`
	AmountDue      decimal.Decimal `json:"amount_due"`
	DueDate        time.Time       `json:"due_date"`
	Status         Status          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CreateInvoiceInput is the payload for CreateInvoice.
type CreateInvoiceInput struct {
	CustomerID     int64  `json:"customer_id" validate:"required,gt=0"`
	MeterReadingID int64  `json:"meter_reading_id" validate:"required,gt=0"`
	BillingPeriod  string `json:"billing_period" validate:"required,max=100"`
}

// UpdateStatusInput is the payload for PATCH /api/invoices/{id}/status.
type UpdateStatusInput struct {
	Status Status `json:"status" validate:"required,oneof=pending paid overdue"`
}

// ListFilter narrows List. Zero values mean no filter.
type ListFilter struct {
	CustomerID int64
	Status     Status
}
