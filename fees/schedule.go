package fees

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/campus/school-engine/calendar"
)

// =============================================================================
// SCHEDULE SUMMARY - Totals over an installment list
// =============================================================================

// Summary aggregates an installment schedule for dashboard cards.
type Summary struct {
	TotalAmount decimal.Decimal
	TotalPaid   decimal.Decimal
	Outstanding decimal.Decimal // principal only
	LateFees    decimal.Decimal // unpaid installments' late fees
	TotalDue    decimal.Decimal // Outstanding + LateFees

	PaidCount    int
	PartialCount int
	PendingCount int
	OverdueCount int

	// NextDue is the earliest due date among unpaid installments, nil when
	// everything is settled.
	NextDue *calendar.Date
}

// Summarize totals a schedule. Input order does not matter.
func Summarize(installments []Installment) Summary {
	var s Summary
	for _, inst := range installments {
		s.TotalAmount = s.TotalAmount.Add(inst.Amount)
		s.TotalPaid = s.TotalPaid.Add(inst.PaidAmount)

		switch inst.Status {
		case StatusPaid:
			s.PaidCount++
			continue
		case StatusPartial:
			s.PartialCount++
		default:
			s.PendingCount++
		}

		s.Outstanding = s.Outstanding.Add(inst.Balance())
		s.LateFees = s.LateFees.Add(inst.LateFee)
		if inst.Overdue {
			s.OverdueCount++
		}
		if !inst.DueDate.IsZero() && (s.NextDue == nil || inst.DueDate.Before(*s.NextDue)) {
			due := inst.DueDate
			s.NextDue = &due
		}
	}
	s.TotalDue = s.Outstanding.Add(s.LateFees)
	return s
}

// =============================================================================
// DUE DATE CLASSIFICATION
// =============================================================================

type DueBucket string

const (
	DueOverdue  DueBucket = "overdue"
	DueToday    DueBucket = "today"
	DueTomorrow DueBucket = "tomorrow"
	DueThisWeek DueBucket = "this_week"
	DueSoon     DueBucket = "soon"  // within a month
	DueLater    DueBucket = "later" // beyond a month
)

// DueStatus is a human-facing classification of a due date.
type DueStatus struct {
	Bucket    DueBucket
	DaysUntil int // negative when overdue
	Urgent    bool
	Label     string
}

// ClassifyDueDate buckets a due date relative to today.
func ClassifyDueDate(due, today calendar.Date) DueStatus {
	days := calendar.DaysBetween(today, due)

	switch {
	case days < 0:
		return DueStatus{DueOverdue, days, true, fmt.Sprintf("%d days overdue", -days)}
	case days == 0:
		return DueStatus{DueToday, 0, true, "Due today"}
	case days == 1:
		return DueStatus{DueTomorrow, 1, true, "Due tomorrow"}
	case days <= 7:
		return DueStatus{DueThisWeek, days, false, fmt.Sprintf("Due in %d days", days)}
	case days <= 30:
		return DueStatus{DueSoon, days, false, fmt.Sprintf("Due in %d days", days)}
	default:
		return DueStatus{DueLater, days, false, fmt.Sprintf("Due in %d months", days/30)}
	}
}
