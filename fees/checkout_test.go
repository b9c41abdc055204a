package fees_test

import (
	"errors"
	"testing"
	"time"

	"github.com/campus/school-engine/fees"
)

func TestCheckout_HappyPath(t *testing.T) {
	// GIVEN: A fresh session
	// WHEN: Selecting installments, advancing to payment, then success
	// THEN: Every transition is accepted and the payment ID sticks

	now := time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)
	c := fees.NewCheckout("sess-1", "stu-1", now)

	if c.State != fees.CheckoutSearch {
		t.Fatalf("new session should start in search, got %s", c.State)
	}

	if err := c.Select([]string{"i1", "i2"}, now); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := c.Advance(fees.CheckoutPayment, "", now); err != nil {
		t.Fatalf("advance to payment: %v", err)
	}
	if err := c.Advance(fees.CheckoutSuccess, "pay-1", now); err != nil {
		t.Fatalf("advance to success: %v", err)
	}

	if c.PaymentID != "pay-1" || !c.Terminal() {
		t.Errorf("expected terminal session with pay-1, got %+v", c)
	}
}

func TestCheckout_RequiresSelection(t *testing.T) {
	now := time.Now()
	c := fees.NewCheckout("sess-1", "stu-1", now)

	err := c.Advance(fees.CheckoutPayment, "", now)
	if !errors.Is(err, fees.ErrNothingSelected) {
		t.Errorf("expected ErrNothingSelected, got %v", err)
	}
	if c.State != fees.CheckoutSearch {
		t.Errorf("failed transition must not change state, got %s", c.State)
	}
}

func TestCheckout_BackToSearch(t *testing.T) {
	now := time.Now()
	c := fees.NewCheckout("sess-1", "stu-1", now)

	_ = c.Select([]string{"i1"}, now)
	_ = c.Advance(fees.CheckoutPayment, "", now)

	if err := c.Advance(fees.CheckoutSearch, "", now); err != nil {
		t.Fatalf("back to search: %v", err)
	}
	if err := c.Select([]string{"i2"}, now); err != nil {
		t.Errorf("selection should be editable again after going back: %v", err)
	}
}

func TestCheckout_RejectsIllegalTransitions(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name string
		prep func(*fees.Checkout)
		to   fees.CheckoutState
	}{
		{"search to success", func(c *fees.Checkout) {}, fees.CheckoutSuccess},
		{"success is terminal", func(c *fees.Checkout) {
			_ = c.Select([]string{"i1"}, now)
			_ = c.Advance(fees.CheckoutPayment, "", now)
			_ = c.Advance(fees.CheckoutSuccess, "pay-1", now)
		}, fees.CheckoutPayment},
		{"self transition", func(c *fees.Checkout) {}, fees.CheckoutSearch},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := fees.NewCheckout("sess-1", "stu-1", now)
			tc.prep(c)

			err := c.Advance(tc.to, "", now)
			if !errors.Is(err, fees.ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}

			var terr *fees.TransitionError
			if !errors.As(err, &terr) {
				t.Errorf("expected TransitionError, got %T", err)
			}
		})
	}
}

func TestCheckout_SelectLockedOutsideSearch(t *testing.T) {
	now := time.Now()
	c := fees.NewCheckout("sess-1", "stu-1", now)

	_ = c.Select([]string{"i1"}, now)
	_ = c.Advance(fees.CheckoutPayment, "", now)

	if err := c.Select([]string{"i2"}, now); !errors.Is(err, fees.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition selecting mid-payment, got %v", err)
	}
}
