package order

import (
	"errors"
	"fmt"
)

// Sentinel errors for every way order creation can be refused. All are
// detected during validation and abort the whole batch; callers match with
// errors.Is.
var (
	ErrInvalidOrder              = errors.New("invalid order")
	ErrInvalidPrice              = errors.New("price must be positive")
	ErrOrderExpired              = errors.New("order expired")
	ErrInvalidMaker              = errors.New("maker is not the caller")
	ErrNotAssetOwner             = errors.New("maker does not own asset")
	ErrNotApproved               = errors.New("vault not approved for asset")
	ErrInsufficientAttachedFunds = errors.New("insufficient attached funds")
	ErrDuplicateOrder            = errors.New("duplicate order")
	ErrOrderNotFound             = errors.New("order not found")
	ErrUnauthorizedCaller        = errors.New("unauthorized caller")
	ErrReentrantCall             = errors.New("reentrant call")
)

// BatchError pins a creation failure to the offending position in the batch.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("order %d: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
