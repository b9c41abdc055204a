/*
checkout.go - Payment dialog state machine

PURPOSE:
  The multi-step payment flow (find the student, pick installments and
  review the preview, confirm) is an explicit finite-state machine rather
  than ambient dialog state. The pure allocation functions take the
  session's selection as input and hand results back; they never see the
  state itself.

STATES:
  search  ──select──▶  payment  ──record──▶  success
     ▲                    │
     └──────back──────────┘

  search:  locating the account, selection may change freely
  payment: selection locked in, preview shown, awaiting confirmation
  success: payment recorded, terminal

TRANSITIONS:
  search  -> payment   requires a non-empty selection
  payment -> search    back button, selection stays editable again
  payment -> success   after the recorder accepts the payment
  anything else        TransitionError
*/
package fees

import "time"

type CheckoutState string

const (
	CheckoutSearch  CheckoutState = "search"
	CheckoutPayment CheckoutState = "payment"
	CheckoutSuccess CheckoutState = "success"
)

// Checkout is one payment-dialog session.
type Checkout struct {
	ID        string
	StudentID string
	State     CheckoutState

	// Selected installment IDs, editable only in the search state.
	Selected []string

	// PaymentID is set on the transition to success.
	PaymentID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewCheckout(id, studentID string, now time.Time) *Checkout {
	return &Checkout{
		ID:        id,
		StudentID: studentID,
		State:     CheckoutSearch,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Select replaces the installment selection. Only legal while searching.
func (c *Checkout) Select(installmentIDs []string, now time.Time) error {
	if c.State != CheckoutSearch {
		return &TransitionError{From: c.State, To: c.State}
	}
	c.Selected = installmentIDs
	c.UpdatedAt = now
	return nil
}

// Advance moves the session to the requested state, enforcing the guards
// above. paymentID is consulted only for the transition to success.
func (c *Checkout) Advance(to CheckoutState, paymentID string, now time.Time) error {
	switch {
	case c.State == CheckoutSearch && to == CheckoutPayment:
		if len(c.Selected) == 0 {
			return ErrNothingSelected
		}
	case c.State == CheckoutPayment && to == CheckoutSearch:
		// back to selection
	case c.State == CheckoutPayment && to == CheckoutSuccess:
		c.PaymentID = paymentID
	default:
		return &TransitionError{From: c.State, To: to}
	}

	c.State = to
	c.UpdatedAt = now
	return nil
}

// Terminal reports whether the session can change no further.
func (c *Checkout) Terminal() bool { return c.State == CheckoutSuccess }
