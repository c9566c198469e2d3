package saga

import (
	"errors"
	"fmt"

	"saldo/internal/repository"
)

// Store-level outcomes re-exported so callers can handle every saga result
// with errors.Is against a single package.
var (
	ErrUserNotFound      = repository.ErrUserNotFound
	ErrBalanceNotFound   = repository.ErrBalanceNotFound
	ErrBalanceExists     = repository.ErrBalanceExists
	ErrInsufficientFunds = repository.ErrInsufficientFunds
	ErrTransferNotFound  = repository.ErrTransferNotFound
	ErrTopupNotFound     = repository.ErrTopupNotFound
)

var (
	ErrInvalidAmount  = repository.ErrInvalidAmount
	ErrInvalidMethod  = errors.New("invalid payment method")
	ErrAmountTooLarge = errors.New("amount exceeds the topup limit")
	ErrSelfTransfer   = errors.New("cannot transfer to the same user")
)

// InconsistentError is the one outcome that must never be folded into a
// generic failure: a saga step failed AND its compensation failed, so the
// ledger and the record rows disagree until someone reconciles them by hand.
type InconsistentError struct {
	Saga            string
	Step            string
	Cause           error
	CompensationErr error
}

func (e *InconsistentError) Error() string {
	return fmt.Sprintf("%s saga inconsistent at %s: %v (compensation failed: %v)",
		e.Saga, e.Step, e.Cause, e.CompensationErr)
}

func (e *InconsistentError) Unwrap() error { return e.Cause }
