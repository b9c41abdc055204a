/*
store.go - Persistence interfaces for fee and calendar data

PURPOSE:
  Defines the boundary between the fee engine and the database. The pure
  functions in this package never touch a Store; only the Recorder and the
  API layer do.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - fees/store:   In-memory for tests and dev

ATOMICITY:
  ApplyPayment is the one multi-table write: the payment row, its
  per-installment links, the updated installments (with particular
  shares), updated particulars, and the account totals land together or
  not at all.
*/
package fees

import (
	"context"

	"github.com/campus/school-engine/calendar"
)

// =============================================================================
// FEE STORE
// =============================================================================

// PaymentRecord is the atomic unit ApplyPayment persists. All rows are the
// post-payment state computed by the Recorder.
type PaymentRecord struct {
	Payment      Payment
	Links        []PaymentLink
	Installments []Installment
	Particulars  []Particular
	Account      Account
}

// Store persists fee accounts, installments, payments, and discount rules.
type Store interface {
	// CreateAccount persists a new account with its particulars and
	// installment plan atomically.
	CreateAccount(ctx context.Context, account Account, particulars []Particular, installments []Installment) error

	// AccountByStudent returns the student's fee account.
	// Returns ErrAccountNotFound when absent.
	AccountByStudent(ctx context.Context, studentID string) (Account, error)

	// Installments returns the account's schedule ordered by Number,
	// shares included.
	Installments(ctx context.Context, accountID string) ([]Installment, error)

	// Particulars returns the account's fee lines.
	Particulars(ctx context.Context, accountID string) ([]Particular, error)

	// Payments returns the account's payment history, newest first.
	Payments(ctx context.Context, accountID string) ([]Payment, error)

	// ApplyPayment persists a payment record atomically. Returns
	// ErrDuplicateReceipt if the receipt number already exists.
	ApplyPayment(ctx context.Context, rec PaymentRecord) error

	// DiscountRules returns all configured discount rules.
	DiscountRules(ctx context.Context) ([]DiscountRule, error)

	// SaveDiscountRule inserts or replaces a rule by ID.
	SaveDiscountRule(ctx context.Context, rule DiscountRule) error
}

// =============================================================================
// EVENT STORE
// =============================================================================

// EventStore persists calendar events. Deletion is soft: deleted events
// stop appearing in range queries but the rows remain.
type EventStore interface {
	CreateEvent(ctx context.Context, e calendar.Event) error

	// Event returns a single event. Returns ErrEventNotFound when absent
	// or soft-deleted.
	Event(ctx context.Context, id string) (calendar.Event, error)

	// EventsInRange returns events overlapping [from, to] by calendar day.
	EventsInRange(ctx context.Context, from, to calendar.Date) ([]calendar.Event, error)

	// UpdateEvent replaces an event by ID.
	UpdateEvent(ctx context.Context, e calendar.Event) error

	// DeleteEvent soft-deletes an event.
	DeleteEvent(ctx context.Context, id string) error
}
