package fees_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/campus/school-engine/fees"
)

func pct(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func TestComputeDiscount_FlatPercentage(t *testing.T) {
	// GIVEN: 1000 selected subtotal and one 10% sibling rule
	// WHEN: Computing the discount
	// THEN: 100 off, 900 final

	selected := []fees.Installment{inst("i1", 1, 1000, 0)}
	rules := []fees.DiscountRule{
		{ID: "sib", Type: fees.DiscountSibling, Percentage: pct(10)},
	}

	result := fees.ComputeDiscount(selected, rules)

	if !result.Subtotal.Equal(dec(1000)) {
		t.Errorf("subtotal = %s, want 1000", result.Subtotal)
	}
	if !result.TotalDiscount.Equal(dec(100)) {
		t.Errorf("discount = %s, want 100", result.TotalDiscount)
	}
	if !result.FinalAmount.Equal(dec(900)) {
		t.Errorf("final = %s, want 900", result.FinalAmount)
	}
}

func TestComputeDiscount_SubtotalIncludesLateFees(t *testing.T) {
	// The discount base is TotalDue: principal balance plus late fee.
	selected := []fees.Installment{
		{ID: "i1", Number: 1, Amount: dec(1000), PaidAmount: dec(200),
			LateFee: dec(50), Status: fees.StatusPartial},
	}

	result := fees.ComputeDiscount(selected, nil)

	if !result.Subtotal.Equal(dec(850)) {
		t.Errorf("subtotal = %s, want 850 (800 balance + 50 late fee)", result.Subtotal)
	}
	if !result.FinalAmount.Equal(dec(850)) {
		t.Errorf("no rules: final should equal subtotal, got %s", result.FinalAmount)
	}
}

func TestComputeDiscount_EarlyPaymentEligibleSubset(t *testing.T) {
	// GIVEN: Two selected installments, only one early-eligible
	// WHEN: A 5% early-payment rule applies
	// THEN: The rule discounts the eligible installment's due only

	selected := []fees.Installment{
		{ID: "i1", Number: 1, Amount: dec(1000), Status: fees.StatusPending,
			EarlyPaymentEligible: true},
		{ID: "i2", Number: 2, Amount: dec(1000), Status: fees.StatusPending},
	}
	rules := []fees.DiscountRule{
		{ID: "early", Type: fees.DiscountEarlyPayment, Percentage: pct(5)},
	}

	result := fees.ComputeDiscount(selected, rules)

	if !result.TotalDiscount.Equal(dec(50)) {
		t.Errorf("discount = %s, want 50 (5%% of eligible 1000)", result.TotalDiscount)
	}
	if !result.FinalAmount.Equal(dec(1950)) {
		t.Errorf("final = %s, want 1950", result.FinalAmount)
	}
}

func TestComputeDiscount_EarlyPaymentNoEligible(t *testing.T) {
	// An early-payment rule contributes nothing when no selected
	// installment is eligible - it doesn't even appear per-rule.
	selected := []fees.Installment{inst("i1", 1, 1000, 0)}
	rules := []fees.DiscountRule{
		{ID: "early", Type: fees.DiscountEarlyPayment, Percentage: pct(5)},
	}

	result := fees.ComputeDiscount(selected, rules)

	if !result.TotalDiscount.IsZero() {
		t.Errorf("discount = %s, want 0", result.TotalDiscount)
	}
	if len(result.PerRule) != 0 {
		t.Errorf("expected no per-rule entries, got %d", len(result.PerRule))
	}
}

func TestComputeDiscount_FlatRulesAdditive(t *testing.T) {
	// Percentages add: 10% + 5% of 1000 is 150, not compounded 145.
	selected := []fees.Installment{inst("i1", 1, 1000, 0)}
	rules := []fees.DiscountRule{
		{ID: "sib", Type: fees.DiscountSibling, Percentage: pct(10)},
		{ID: "staff", Type: fees.DiscountStaffWard, Percentage: pct(5)},
	}

	result := fees.ComputeDiscount(selected, rules)

	if !result.TotalDiscount.Equal(dec(150)) {
		t.Errorf("discount = %s, want 150", result.TotalDiscount)
	}
	if len(result.PerRule) != 2 {
		t.Fatalf("expected 2 per-rule entries, got %d", len(result.PerRule))
	}
	if !result.PerRule[0].Amount.Equal(dec(100)) || !result.PerRule[1].Amount.Equal(dec(50)) {
		t.Errorf("per-rule amounts = %s, %s; want 100, 50",
			result.PerRule[0].Amount, result.PerRule[1].Amount)
	}
}

func TestComputeDiscount_RoundsHalfAwayFromZero(t *testing.T) {
	// 7.5% of 950 = 71.25 -> 71; 2.5% of 950 = 23.75 -> 24.
	selected := []fees.Installment{inst("i1", 1, 950, 0)}

	low := fees.ComputeDiscount(selected, []fees.DiscountRule{
		{ID: "r", Type: fees.DiscountMerit, Percentage: decimal.NewFromFloat(7.5)},
	})
	if !low.TotalDiscount.Equal(dec(71)) {
		t.Errorf("7.5%% of 950 rounded = %s, want 71", low.TotalDiscount)
	}

	high := fees.ComputeDiscount(selected, []fees.DiscountRule{
		{ID: "r", Type: fees.DiscountMerit, Percentage: decimal.NewFromFloat(2.5)},
	})
	if !high.TotalDiscount.Equal(dec(24)) {
		t.Errorf("2.5%% of 950 rounded = %s, want 24", high.TotalDiscount)
	}
}

func TestComputeDiscount_EmptySelection(t *testing.T) {
	result := fees.ComputeDiscount(nil, []fees.DiscountRule{
		{ID: "sib", Type: fees.DiscountSibling, Percentage: pct(10)},
	})

	if !result.Subtotal.IsZero() || !result.FinalAmount.IsZero() {
		t.Errorf("empty selection: subtotal=%s final=%s, want both 0",
			result.Subtotal, result.FinalAmount)
	}
}
