package fees_test

import (
	"testing"
	"time"

	"github.com/campus/school-engine/calendar"
	"github.com/campus/school-engine/fees"
)

func day(y int, m time.Month, d int) calendar.Date { return calendar.NewDate(y, m, d) }

func TestSummarize(t *testing.T) {
	// GIVEN: One paid, one overdue partial with a late fee, one pending
	// WHEN: Summarizing
	// THEN: Totals, counts, and next due date line up

	installments := []fees.Installment{
		func() fees.Installment {
			i := inst("i1", 1, 1000, 1000)
			i.DueDate = day(2024, time.April, 1)
			return i
		}(),
		{ID: "i2", Number: 2, Amount: dec(1000), PaidAmount: dec(400),
			LateFee: dec(50), Overdue: true, Status: fees.StatusPartial,
			DueDate: day(2024, time.July, 1)},
		{ID: "i3", Number: 3, Amount: dec(1000), Status: fees.StatusPending,
			DueDate: day(2024, time.October, 1)},
	}

	s := fees.Summarize(installments)

	if !s.TotalAmount.Equal(dec(3000)) || !s.TotalPaid.Equal(dec(1400)) {
		t.Errorf("totals: amount=%s paid=%s", s.TotalAmount, s.TotalPaid)
	}
	if !s.Outstanding.Equal(dec(1600)) {
		t.Errorf("outstanding = %s, want 1600", s.Outstanding)
	}
	if !s.LateFees.Equal(dec(50)) || !s.TotalDue.Equal(dec(1650)) {
		t.Errorf("lateFees=%s totalDue=%s", s.LateFees, s.TotalDue)
	}
	if s.PaidCount != 1 || s.PartialCount != 1 || s.PendingCount != 1 || s.OverdueCount != 1 {
		t.Errorf("counts: paid=%d partial=%d pending=%d overdue=%d",
			s.PaidCount, s.PartialCount, s.PendingCount, s.OverdueCount)
	}
	if s.NextDue == nil || !s.NextDue.Equal(day(2024, time.July, 1)) {
		t.Errorf("next due = %v, want 2024-07-01 (paid installment excluded)", s.NextDue)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := fees.Summarize(nil)
	if !s.TotalDue.IsZero() || s.NextDue != nil {
		t.Errorf("empty schedule: totalDue=%s nextDue=%v", s.TotalDue, s.NextDue)
	}
}

func TestClassifyDueDate(t *testing.T) {
	today := day(2024, time.June, 15)

	cases := []struct {
		due    calendar.Date
		bucket fees.DueBucket
		urgent bool
	}{
		{day(2024, time.June, 10), fees.DueOverdue, true},
		{day(2024, time.June, 15), fees.DueToday, true},
		{day(2024, time.June, 16), fees.DueTomorrow, true},
		{day(2024, time.June, 20), fees.DueThisWeek, false},
		{day(2024, time.July, 10), fees.DueSoon, false},
		{day(2024, time.September, 15), fees.DueLater, false},
	}

	for _, tc := range cases {
		got := fees.ClassifyDueDate(tc.due, today)
		if got.Bucket != tc.bucket || got.Urgent != tc.urgent {
			t.Errorf("ClassifyDueDate(%s) = %s urgent=%v, want %s urgent=%v",
				tc.due, got.Bucket, got.Urgent, tc.bucket, tc.urgent)
		}
	}

	overdue := fees.ClassifyDueDate(day(2024, time.June, 10), today)
	if overdue.DaysUntil != -5 || overdue.Label != "5 days overdue" {
		t.Errorf("overdue: days=%d label=%q", overdue.DaysUntil, overdue.Label)
	}
}
