/*
discount.go - Discount computation over a selected installment set

PURPOSE:
  Computes the discount a payer receives on the installments they selected
  in the payment dialog. Like allocation this is a pure preview; applying
  a discount to the account is the recorder's business.

RULES:
  EARLY_PAYMENT   percentage of the early-eligible subset's total due.
                  Contributes nothing when no selected installment is
                  flagged eligible.
  everything else percentage of the full selected subtotal. Multiple flat
                  rules are additive, not compounded.

BASE AMOUNTS:
  Discount bases use TotalDue() - outstanding principal PLUS late fee -
  unlike the allocation loop, which consumes principal only. The two
  conventions are deliberate and documented on the Installment methods.

ROUNDING:
  Each rule's amount is rounded to the nearest whole currency unit,
  half away from zero (decimal.Round(0)).
*/
package fees

import "github.com/shopspring/decimal"

// RuleDiscount is one rule's contribution to the total.
type RuleDiscount struct {
	RuleID string
	Type   DiscountType
	Amount decimal.Decimal
}

// DiscountResult is the computed discount over a selected installment set.
type DiscountResult struct {
	Subtotal      decimal.Decimal
	PerRule       []RuleDiscount
	TotalDiscount decimal.Decimal
	FinalAmount   decimal.Decimal
}

// ComputeDiscount evaluates rules over the selected installments.
// Percentages land on whole currency units via Round(0).
func ComputeDiscount(selected []Installment, rules []DiscountRule) DiscountResult {
	subtotal := decimal.Zero
	eligible := decimal.Zero
	anyEligible := false
	for _, inst := range selected {
		due := inst.TotalDue()
		subtotal = subtotal.Add(due)
		if inst.EarlyPaymentEligible {
			eligible = eligible.Add(due)
			anyEligible = true
		}
	}

	hundred := decimal.NewFromInt(100)
	result := DiscountResult{Subtotal: subtotal}

	for _, rule := range rules {
		var amount decimal.Decimal
		switch {
		case rule.Type == DiscountEarlyPayment:
			if !anyEligible {
				continue
			}
			amount = eligible.Mul(rule.Percentage).Div(hundred).Round(0)
		default:
			amount = subtotal.Mul(rule.Percentage).Div(hundred).Round(0)
		}

		result.PerRule = append(result.PerRule, RuleDiscount{
			RuleID: rule.ID,
			Type:   rule.Type,
			Amount: amount,
		})
		result.TotalDiscount = result.TotalDiscount.Add(amount)
	}

	result.FinalAmount = subtotal.Sub(result.TotalDiscount)
	return result
}
