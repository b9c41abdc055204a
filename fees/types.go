/*
Package fees provides the fee-collection engine.

PURPOSE:
  This package contains the domain types and algorithms for student fee
  accounts: greedy allocation of a tendered payment across ordered
  installments, discount computation, schedule summaries, the checkout
  state machine, and the payment-recording service.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: A student's fee account for an academic year
  - Installment: One scheduled partial payment of the account total
  - Particular: A named fee line (tuition, transport, lab...) with its own
    paid-state, linked to installments via proportional shares
  - DiscountRule: Percentage reduction, either early-payment or flat

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every money field, never float64
  2. Purity: Allocate and ComputeDiscount are previews - they never mutate
  3. One convention per call site: Balance() is principal only,
     TotalDue() adds the late fee; the allocation loop consumes Balance(),
     display subtotals and discount bases use TotalDue()

SEE ALSO:
  - allocate.go: Greedy payment allocation
  - discount.go: Discount computation
  - recorder.go: The mutating counterpart that applies an allocation
*/
package fees

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/campus/school-engine/calendar"
)

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPending Status = "PENDING" // nothing credited yet (installments)
	StatusUnpaid  Status = "UNPAID"  // nothing credited yet (particulars, accounts)
	StatusPartial Status = "PARTIAL"
	StatusPaid    Status = "PAID"
)

// statusFor derives the post-payment status from paid vs. total, using the
// given zero-paid label (installments say PENDING, particulars say UNPAID).
func statusFor(paid, total decimal.Decimal, zero Status) Status {
	switch {
	case paid.GreaterThanOrEqual(total):
		return StatusPaid
	case paid.IsPositive():
		return StatusPartial
	default:
		return zero
	}
}

// =============================================================================
// ACCOUNT - Student fee account for an academic year
// =============================================================================

type Account struct {
	ID            string
	StudentID     string
	StructureName string
	AcademicYear  string

	OriginalAmount decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
	PaidAmount     decimal.Decimal

	Status    Status
	CreatedAt time.Time
}

func (a Account) BalanceAmount() decimal.Decimal {
	return a.FinalAmount.Sub(a.PaidAmount)
}

// Particular is a named fee line of the account (tuition, transport, ...).
type Particular struct {
	ID         string
	AccountID  string
	Name       string
	Amount     decimal.Decimal
	PaidAmount decimal.Decimal
	Status     Status
}

// =============================================================================
// INSTALLMENT
// =============================================================================

// Installment is one scheduled partial payment. Number defines processing
// order; allocation always runs over non-PAID installments ascending by
// Number. Overdue and EarlyPaymentEligible are supplied by the caller -
// this package never compares due dates against "now" on its own.
type Installment struct {
	ID        string
	AccountID string
	Number    int

	Amount     decimal.Decimal
	PaidAmount decimal.Decimal
	LateFee    decimal.Decimal

	DueDate  calendar.Date
	PaidDate *calendar.Date

	Overdue              bool
	EarlyPaymentEligible bool
	Status               Status

	// Proportional split of this installment across the account's
	// particulars. May be empty when breakdowns are not tracked.
	Shares []ParticularShare
}

// Balance is the outstanding principal: Amount - PaidAmount.
// The allocation loop consumes this, never the late fee.
func (i Installment) Balance() decimal.Decimal {
	return i.Amount.Sub(i.PaidAmount)
}

// TotalDue is what the payer owes for this installment today:
// outstanding principal plus any late fee. Display subtotals and
// discount bases use this.
func (i Installment) TotalDue() decimal.Decimal {
	return i.Balance().Add(i.LateFee)
}

// ParticularShare links an installment to one particular with the slice of
// the installment amount that particular represents.
type ParticularShare struct {
	ID            string
	InstallmentID string
	ParticularID  string
	Amount        decimal.Decimal
	PaidAmount    decimal.Decimal
}

// =============================================================================
// PAYMENT
// =============================================================================

type PaymentMethod string

const (
	MethodCash     PaymentMethod = "CASH"
	MethodOnline   PaymentMethod = "ONLINE"
	MethodCheque   PaymentMethod = "CHEQUE"
	MethodTransfer PaymentMethod = "TRANSFER"
)

type Payment struct {
	ID            string
	AccountID     string
	Amount        decimal.Decimal
	Method        PaymentMethod
	ReceiptNumber string
	Note          string
	PaidAt        time.Time
}

// PaymentLink records how much of a payment landed on one installment.
type PaymentLink struct {
	PaymentID     string
	InstallmentID string
	Amount        decimal.Decimal
}

// =============================================================================
// DISCOUNT RULES
// =============================================================================

type DiscountType string

const (
	DiscountEarlyPayment DiscountType = "EARLY_PAYMENT"
	DiscountSibling      DiscountType = "SIBLING"
	DiscountStaffWard    DiscountType = "STAFF_WARD"
	DiscountMerit        DiscountType = "MERIT"
	DiscountScholarship  DiscountType = "SCHOLARSHIP"
)

// DiscountRule is a percentage reduction. EARLY_PAYMENT applies only to the
// early-eligible subset of selected installments; every other type is a
// flat percentage of the full selected subtotal, additive across rules.
type DiscountRule struct {
	ID         string
	Type       DiscountType
	Name       string
	Percentage decimal.Decimal // 0-100
}

func (r DiscountRule) IsFlatPercentage() bool {
	return r.Type != DiscountEarlyPayment
}
