/*
allocate.go - Greedy payment allocation across installments

PURPOSE:
  Distributes a tendered payment amount across a student's ordered,
  partially-paid installments. This is a PREVIEW computation: it reads
  installment state and returns the split, but mutates nothing - the
  payment dialog calls it on every keystroke to show where the money
  would land. The mutating counterpart lives in recorder.go.

ALGORITHM:
  1. Keep only non-PAID installments, sorted ascending by Number.
     Callers are supposed to pass them that way already; we re-filter and
     re-sort anyway since the result silently depends on it.
  2. If specific installment IDs were selected, restrict to those
     (order preserved). Otherwise auto-allocate over the full set.
  3. Walk left to right, paying each installment's outstanding principal
     min(remaining, balance) until the money runs out. Installments past
     that point are not in the result at all.

LATE FEES:
  The loop consumes Balance() (principal only). Late fees ride along in
  TotalDue() for display and discount bases but do not change allocation
  order or amounts. See types.go for the convention.

SEE ALSO:
  - discount.go: Discount over the selected subtotal
  - recorder.go: Applies an allocation to stored state
*/
package fees

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Allocation is the preview outcome for one installment touched by a payment.
type Allocation struct {
	InstallmentID     string
	InstallmentNumber int

	// Amount of the payment landing on this installment.
	Amount decimal.Decimal

	// BalanceBefore is the outstanding principal before this payment.
	BalanceBefore decimal.Decimal

	// WillComplete is true iff this allocation settles the installment
	// exactly: Amount == BalanceBefore.
	WillComplete bool
}

// Allocate previews the split of payment across installments, greedily in
// ascending installment number. selected optionally restricts the target
// set to those installment IDs; when empty the full non-PAID set is used.
//
// A payment of zero or less yields an empty result, not an error. The sum
// of allocated amounts never exceeds payment, and equals it whenever the
// target set's outstanding principal covers it.
func Allocate(payment decimal.Decimal, installments []Installment, selected []string) []Allocation {
	if !payment.IsPositive() {
		return nil
	}

	targets := targetSet(installments, selected)

	var result []Allocation
	remaining := payment
	for _, inst := range targets {
		if !remaining.IsPositive() {
			break
		}
		balance := inst.Balance()
		if !balance.IsPositive() {
			continue
		}

		allocated := decimal.Min(remaining, balance)
		result = append(result, Allocation{
			InstallmentID:     inst.ID,
			InstallmentNumber: inst.Number,
			Amount:            allocated,
			BalanceBefore:     balance,
			WillComplete:      allocated.GreaterThanOrEqual(balance),
		})
		remaining = remaining.Sub(allocated)
	}
	return result
}

// Preview wraps an allocation with its totals, surfacing any surplus the
// target set could not absorb instead of dropping it.
type Preview struct {
	Lines       []Allocation
	Allocated   decimal.Decimal
	Unallocated decimal.Decimal
}

// PreviewPayment runs Allocate and totals the outcome.
func PreviewPayment(payment decimal.Decimal, installments []Installment, selected []string) Preview {
	lines := Allocate(payment, installments, selected)

	allocated := decimal.Zero
	for _, l := range lines {
		allocated = allocated.Add(l.Amount)
	}

	unallocated := decimal.Zero
	if payment.IsPositive() {
		unallocated = payment.Sub(allocated)
	}
	return Preview{Lines: lines, Allocated: allocated, Unallocated: unallocated}
}

// targetSet re-filters to non-PAID, re-sorts ascending by number, and
// applies the optional ID selection.
func targetSet(installments []Installment, selected []string) []Installment {
	var wanted map[string]bool
	if len(selected) > 0 {
		wanted = make(map[string]bool, len(selected))
		for _, id := range selected {
			wanted[id] = true
		}
	}

	var targets []Installment
	for _, inst := range installments {
		if inst.Status == StatusPaid {
			continue
		}
		if wanted != nil && !wanted[inst.ID] {
			continue
		}
		targets = append(targets, inst)
	}
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].Number < targets[j].Number
	})
	return targets
}

// SelectByID returns the installments whose IDs are in selected, in
// ascending number order. Used by discount computation and the recorder,
// which operate on the same target set as Allocate.
func SelectByID(installments []Installment, selected []string) []Installment {
	return targetSet(installments, selected)
}
