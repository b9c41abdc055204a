package calendar

// =============================================================================
// EVENT - Read-only calendar entry
// =============================================================================

// Event is an external, read-only record. Start/End are calendar days;
// StartTime/EndTime are "HH:MM" clock strings, empty for all-day events.
// Color and Title are opaque display attributes propagated untouched.
type Event struct {
	ID        string
	Title     string
	Start     Date
	End       Date // zero value means single-day at Start
	StartTime string
	EndTime   string
	AllDay    bool
	Color     string
}

// IsAllDay reports whether the event spans whole days: either flagged
// explicitly or carrying no start time.
func (e Event) IsAllDay() bool {
	return e.AllDay || e.StartTime == ""
}

// span returns the [start, end] day range, defaulting a missing end to the
// start and clamping an inverted range to zero length at the start rather
// than failing.
func (e Event) span() (Date, Date) {
	start, end := e.Start, e.End
	if end.IsZero() || end.Before(start) {
		end = start
	}
	return start, end
}

// IsMultiDay reports whether the event covers more than one calendar day.
func (e Event) IsMultiDay() bool {
	start, end := e.span()
	return !start.Equal(end)
}

// StartsOn reports whether the event's first day is date.
func (e Event) StartsOn(date Date) bool {
	start, _ := e.span()
	return start.Equal(date)
}

// EndsOn reports whether the event's last day is date.
func (e Event) EndsOn(date Date) bool {
	_, end := e.span()
	return end.Equal(date)
}

// =============================================================================
// EVENT MATCHING
// =============================================================================

// EventsOn returns the events whose day span contains date, inclusive on
// both ends. Time-of-day fields are ignored: a multi-day event appears in
// every day cell from its start through its end.
func EventsOn(events []Event, date Date) []Event {
	var matched []Event
	for _, e := range events {
		start, end := e.span()
		if date.AfterOrEqual(start) && date.BeforeOrEqual(end) {
			matched = append(matched, e)
		}
	}
	return matched
}

// SplitAllDay partitions events into the all-day banner section and the
// timed section of the day/week views.
func SplitAllDay(events []Event) (allDay, timed []Event) {
	for _, e := range events {
		if e.IsAllDay() {
			allDay = append(allDay, e)
		} else {
			timed = append(timed, e)
		}
	}
	return allDay, timed
}
