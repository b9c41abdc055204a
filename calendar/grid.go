/*
Package calendar provides the date-grid and event-layout engine behind the
month, week, and day views.

PURPOSE:
  Pure computation only. Given a viewed month (or week, or day) and a set of
  events, it produces the cell grid and event placements that a rendering
  layer draws. Nothing here performs I/O, holds state between calls, or
  mutates its inputs - every function is referentially transparent and safe
  to call concurrently from multiple views.

KEY CONCEPTS:
  Cell:       One square of the month grid. Carries its date and whether it
              belongs to the viewed month or spills over from a neighbor.
  Event:      A read-only calendar entry. May span multiple days and may be
              all-day (no start time) or timed.
  Membership: PREVIOUS / CURRENT / NEXT relative to the viewed month.

GRID SHAPE:
  The month grid is always exactly 35 or 42 cells (5 or 6 full weeks of 7),
  never a partial trailing week. Leading cells come from the tail of the
  previous month, trailing cells from the head of the next.

SEE ALSO:
  - events.go: Event matching and all-day/timed partition
  - timeline.go: Vertical positioning for day/week views
*/
package calendar

import "time"

// =============================================================================
// MONTH GRID
// =============================================================================

// Membership says which month a cell's date belongs to relative to the
// viewed month.
type Membership int

const (
	MembershipPrevious Membership = iota
	MembershipCurrent
	MembershipNext
)

func (m Membership) String() string {
	switch m {
	case MembershipPrevious:
		return "previous"
	case MembershipCurrent:
		return "current"
	case MembershipNext:
		return "next"
	default:
		return "unknown"
	}
}

// Cell is one square of the month grid. Cells are recomputed fresh on every
// build and carry no identity across builds.
type Cell struct {
	Day        int
	Membership Membership
	Date       Date
}

// DaysPerWeek is the fixed row width callers chunk the flat grid into.
const DaysPerWeek = 7

// BuildMonthGrid returns the flat cell sequence for the viewed month.
// month is 0-based (0 = January) to match the view layer's convention.
//
// The result always has exactly 35 or 42 cells: previous-month tail cells to
// fill the leading partial week, one cell per day of the viewed month, then
// next-month cells padding to a whole number of weeks. Out-of-range months
// are the caller's contract to normalize; time.Date arithmetic below wraps
// them rather than failing.
func BuildMonthGrid(year, month int) []Cell {
	m := time.Month(month + 1)
	first := NewDate(year, m, 1)
	daysInMonth := DaysInMonth(year, m)
	leading := int(first.Weekday()) // 0=Sunday .. 6=Saturday

	cells := make([]Cell, 0, 42)

	// Tail of the previous month, counting back from its last day.
	for i := leading; i > 0; i-- {
		d := first.AddDays(-i)
		cells = append(cells, Cell{Day: d.Day(), Membership: MembershipPrevious, Date: d})
	}

	for day := 1; day <= daysInMonth; day++ {
		cells = append(cells, Cell{Day: day, Membership: MembershipCurrent, Date: NewDate(year, m, day)})
	}

	// Pad to 35 cells when the unpadded grid fits in 5 weeks, else to 42.
	total := 35
	if len(cells) > 35 {
		total = 42
	}
	next := NewDate(year, m, daysInMonth).AddDays(1)
	for day := 1; len(cells) < total; day++ {
		d := next.AddDays(day - 1)
		cells = append(cells, Cell{Day: d.Day(), Membership: MembershipNext, Date: d})
	}

	return cells
}

// BuildWeek returns the 7 days Sunday..Saturday of the week containing anchor.
func BuildWeek(anchor Date) []Date {
	start := anchor.AddDays(-int(anchor.Weekday()))
	days := make([]Date, DaysPerWeek)
	for i := range days {
		days[i] = start.AddDays(i)
	}
	return days
}
