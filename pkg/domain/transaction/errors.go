package transaction

import (
	"errors"
	"fmt"
)

// ErrInvalidTransaction is the parent of every validation failure below.
var ErrInvalidTransaction = errors.New("invalid transaction")

var (
	ErrInvalidID          = fmt.Errorf("%w: id must be a UUID", ErrInvalidTransaction)
	ErrMissingCustomer    = fmt.Errorf("%w: customer id is required", ErrInvalidTransaction)
	ErrZeroAmount         = fmt.Errorf("%w: amount must not be zero", ErrInvalidTransaction)
	ErrInvalidCurrency    = fmt.Errorf("%w: currency must be a 3-letter ISO code", ErrInvalidTransaction)
	ErrMissingAccount     = fmt.Errorf("%w: account IBAN is required", ErrInvalidTransaction)
	ErrDescriptionTooLong = fmt.Errorf("%w: description must not exceed %d characters", ErrInvalidTransaction, MaxDescriptionLength)
	ErrInvalidValueDate   = fmt.Errorf("%w: value date must be yyyy-MM-dd", ErrInvalidTransaction)
)
