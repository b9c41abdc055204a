/*
recorder.go - Payment recording service

PURPOSE:
  The mutating counterpart of the allocation preview. Takes a tendered
  amount, runs the same greedy allocation the dialog previewed, and applies
  it: payment row, per-installment links, advanced paid amounts and
  statuses, proportional particular shares, and account totals - all in
  one atomic store write.

FLOW:
  1. Load the account and schedule
  2. Validate: positive amount, no overpayment of the target set
  3. Allocate (identical inputs => identical split as the preview)
  4. Advance each touched installment: paid amount, status, paid date
  5. Distribute each installment's allocation across its particular
     shares proportionally, then roll the deltas up to the particulars
  6. Recompute account totals and status
  7. ApplyPayment atomically

GUARANTEE:
  Because Allocate is pure, the recorded split always equals the last
  preview the payer saw for the same amount and selection.
*/
package fees

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campus/school-engine/calendar"
)

// PaymentRequest is the input to RecordPayment.
type PaymentRequest struct {
	Amount   decimal.Decimal
	Selected []string // installment IDs; empty = auto-allocate
	Method   PaymentMethod
	Note     string

	// ReceiptNumber doubles as an idempotency key: retries with the same
	// receipt are rejected with ErrDuplicateReceipt. Generated when empty.
	ReceiptNumber string
}

// Receipt is the outcome of a recorded payment.
type Receipt struct {
	Payment     Payment
	Allocations []Allocation
	Account     Account
}

// Recorder applies payments to stored fee state.
type Recorder struct {
	Store Store

	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{Store: store, Now: time.Now}
}

// RecordPayment validates, allocates, and persists a payment against the
// student's fee account.
func (r *Recorder) RecordPayment(ctx context.Context, studentID string, req PaymentRequest) (*Receipt, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	account, err := r.Store.AccountByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	installments, err := r.Store.Installments(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("loading installments: %w", err)
	}

	targets := SelectByID(installments, req.Selected)
	outstanding := decimal.Zero
	for _, inst := range targets {
		outstanding = outstanding.Add(inst.Balance())
	}
	if req.Amount.GreaterThan(outstanding) {
		return nil, &OverpaymentError{Tendered: req.Amount, Outstanding: outstanding}
	}

	lines := Allocate(req.Amount, installments, req.Selected)

	now := r.Now()
	payment := Payment{
		ID:            uuid.NewString(),
		AccountID:     account.ID,
		Amount:        req.Amount,
		Method:        req.Method,
		ReceiptNumber: req.ReceiptNumber,
		Note:          req.Note,
		PaidAt:        now,
	}
	if payment.ReceiptNumber == "" {
		payment.ReceiptNumber = uuid.NewString()
	}

	rec := PaymentRecord{Payment: payment}
	byID := make(map[string]decimal.Decimal, len(lines))
	for _, l := range lines {
		byID[l.InstallmentID] = l.Amount
		rec.Links = append(rec.Links, PaymentLink{
			PaymentID:     payment.ID,
			InstallmentID: l.InstallmentID,
			Amount:        l.Amount,
		})
	}

	today := calendar.DateOf(now)
	particularDeltas := make(map[string]decimal.Decimal)
	for _, inst := range installments {
		allocated, touched := byID[inst.ID]
		if !touched {
			continue
		}
		updated := applyToInstallment(inst, allocated, today, particularDeltas)
		rec.Installments = append(rec.Installments, updated)
	}

	if len(particularDeltas) > 0 {
		particulars, err := r.Store.Particulars(ctx, account.ID)
		if err != nil {
			return nil, fmt.Errorf("loading particulars: %w", err)
		}
		for _, p := range particulars {
			delta, ok := particularDeltas[p.ID]
			if !ok {
				continue
			}
			p.PaidAmount = p.PaidAmount.Add(delta)
			p.Status = statusFor(p.PaidAmount, p.Amount, StatusUnpaid)
			rec.Particulars = append(rec.Particulars, p)
		}
	}

	account.PaidAmount = account.PaidAmount.Add(req.Amount)
	account.Status = statusFor(account.PaidAmount, account.FinalAmount, StatusUnpaid)
	rec.Account = account

	if err := r.Store.ApplyPayment(ctx, rec); err != nil {
		return nil, err
	}

	return &Receipt{Payment: payment, Allocations: lines, Account: account}, nil
}

// applyToInstallment advances one installment by its allocated amount and
// spreads the allocation across its particular shares in proportion to
// each share's slice of the installment total. The last share absorbs the
// division remainder so the portions always sum to the allocation, the
// same way the factory closes its even split.
func applyToInstallment(inst Installment, allocated decimal.Decimal, today calendar.Date, particularDeltas map[string]decimal.Decimal) Installment {
	inst.PaidAmount = inst.PaidAmount.Add(allocated)
	inst.Status = statusFor(inst.PaidAmount, inst.Amount, StatusPending)
	if inst.Status == StatusPaid {
		paid := today
		inst.PaidDate = &paid
	}

	if inst.Amount.IsPositive() && len(inst.Shares) > 0 {
		spent := decimal.Zero
		for si := range inst.Shares {
			share := &inst.Shares[si]
			portion := share.Amount.Div(inst.Amount).Mul(allocated)
			if si == len(inst.Shares)-1 {
				portion = allocated.Sub(spent)
			}
			spent = spent.Add(portion)
			share.PaidAmount = share.PaidAmount.Add(portion)
			particularDeltas[share.ParticularID] = particularDeltas[share.ParticularID].Add(portion)
		}
	}
	return inst
}
