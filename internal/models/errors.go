package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain error so callers can branch on the failure
// mode instead of matching message text.
type ErrorKind int

// Error kinds
const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindInvalidState
	KindInvalidQuantity
	KindInsufficientStock
	KindValidationFailed
	KindPersistenceFailure
	KindPartialFailure
	KindConflict
)

// String returns the kind's name.
func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindInvalidState:
		return "INVALID_STATE"
	case KindInvalidQuantity:
		return "INVALID_QUANTITY"
	case KindInsufficientStock:
		return "INSUFFICIENT_STOCK"
	case KindValidationFailed:
		return "VALIDATION_FAILED"
	case KindPersistenceFailure:
		return "PERSISTENCE_FAILURE"
	case KindPartialFailure:
		return "PARTIAL_FAILURE"
	case KindConflict:
		return "CONFLICT"
	}
	return "UNKNOWN"
}

// DomainError is a classified error with a human-readable message.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// KindOf extracts the error kind, or KindUnknown for unclassified errors.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	var pf *PartialFailureError
	if errors.As(err, &pf) {
		return KindPartialFailure
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// NewNotFound builds a NOT_FOUND error.
func NewNotFound(format string, args ...interface{}) error {
	return &DomainError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// NewInvalidState builds an INVALID_STATE error.
func NewInvalidState(format string, args ...interface{}) error {
	return &DomainError{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// NewInvalidQuantity builds an INVALID_QUANTITY error.
func NewInvalidQuantity(format string, args ...interface{}) error {
	return &DomainError{Kind: KindInvalidQuantity, Message: fmt.Sprintf(format, args...)}
}

// NewInsufficientStock builds an INSUFFICIENT_STOCK error.
func NewInsufficientStock(format string, args ...interface{}) error {
	return &DomainError{Kind: KindInsufficientStock, Message: fmt.Sprintf(format, args...)}
}

// NewValidationFailed builds a VALIDATION_FAILED error.
func NewValidationFailed(format string, args ...interface{}) error {
	return &DomainError{Kind: KindValidationFailed, Message: fmt.Sprintf(format, args...)}
}

// NewPersistenceFailure builds a PERSISTENCE_FAILURE error wrapping the cause.
func NewPersistenceFailure(err error, format string, args ...interface{}) error {
	return &DomainError{Kind: KindPersistenceFailure, Message: fmt.Sprintf(format, args...), Err: err}
}

// NewConflict builds a CONFLICT error (lock acquisition timed out).
func NewConflict(format string, args ...interface{}) error {
	return &DomainError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// StockIncreaseFailure records one ledger increase that failed after the
// purchase order update had already committed.
type StockIncreaseFailure struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Cause    error  `json:"-"`
}

// PartialFailureError is raised when a receiving call has durably updated the
// purchase order but one or more stock ledger increases failed. The order
// side is never rolled back: the goods have physically arrived. It carries
// enough detail for manual reconciliation.
type PartialFailureError struct {
	POID     string                 `json:"po_id"`
	Failures []StockIncreaseFailure `json:"failures"`
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("PARTIAL_FAILURE: purchase order %s updated but %d stock ledger increase(s) failed",
		e.POID, len(e.Failures))
}
