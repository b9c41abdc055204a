package fees

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAccountNotFound is returned when a referenced fee account doesn't exist.
	ErrAccountNotFound = errors.New("fee account not found")

	// ErrEventNotFound is returned when a referenced calendar event doesn't exist.
	ErrEventNotFound = errors.New("event not found")

	// ErrCheckoutNotFound is returned when a referenced checkout session doesn't exist.
	ErrCheckoutNotFound = errors.New("checkout session not found")

	// ErrInvalidAmount is returned when recording a payment of zero or less.
	// Note the asymmetry with Allocate, which treats such amounts as
	// "nothing to allocate" and returns an empty preview.
	ErrInvalidAmount = errors.New("payment amount must be positive")

	// ErrOverpayment is returned when a payment exceeds the outstanding
	// balance of its target installments. Disposition of a surplus is a
	// business decision this engine refuses to make silently.
	ErrOverpayment = errors.New("payment exceeds outstanding balance")

	// ErrNothingSelected is returned when a checkout advances to payment
	// without any installments selected.
	ErrNothingSelected = errors.New("no installments selected")

	// ErrInvalidTransition is returned on a checkout state change the
	// state machine does not allow.
	ErrInvalidTransition = errors.New("invalid checkout transition")

	// ErrDuplicateReceipt is returned when a payment's receipt number
	// already exists. Expected on client retries.
	ErrDuplicateReceipt = errors.New("duplicate receipt number")
)

// OverpaymentError carries the amounts behind an ErrOverpayment.
type OverpaymentError struct {
	Tendered    decimal.Decimal
	Outstanding decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment %s exceeds outstanding balance %s", e.Tendered, e.Outstanding)
}

func (e *OverpaymentError) Unwrap() error { return ErrOverpayment }

// TransitionError carries the rejected state change.
type TransitionError struct {
	From, To CheckoutState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot advance checkout from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// CLASSIFICATION HELPERS
// =============================================================================

// IsClientError reports whether the error is caused by invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrOverpayment) ||
		errors.Is(err, ErrNothingSelected) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrCheckoutNotFound)
}
