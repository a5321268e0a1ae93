package shared

import "errors"

var (
	// ErrNotFound indicates a referenced customer, reading, invoice or configuration is missing.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates input that violates a field constraint.
	ErrValidation = errors.New("validation failed")
	// ErrConfigurationMissing occurs when invoices are generated before any billing configuration exists.
	ErrConfigurationMissing = errors.New("billing configuration missing")
	// ErrDuplicate indicates a request that was already processed.
	ErrDuplicate = errors.New("duplicate request")
)
