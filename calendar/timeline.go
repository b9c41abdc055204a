package calendar

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// TIMELINE POSITIONING - Day and week views
// =============================================================================

const (
	minutesPerDay = 24 * 60

	// Events shorter than this render at this height anyway, so a 15-minute
	// entry stays clickable.
	minVisualMinutes = 30

	defaultStartClock = "09:00"
	defaultEndClock   = "10:00"
)

// TimelinePosition is a vertical placement on the 24-hour axis, expressed as
// percentages of the full day column.
type TimelinePosition struct {
	TopPercent    float64
	HeightPercent float64
}

// PositionOnTimeline maps a timed event onto the 24-hour vertical axis.
// Missing clock strings on a non-all-day event fall back to 09:00-10:00;
// that is a rendering default, not a business rule.
func PositionOnTimeline(e Event) TimelinePosition {
	startClock := e.StartTime
	if startClock == "" {
		startClock = defaultStartClock
	}
	endClock := e.EndTime
	if endClock == "" {
		endClock = defaultEndClock
	}

	startMin := clockMinutes(startClock)
	endMin := clockMinutes(endClock)

	duration := endMin - startMin
	if duration < minVisualMinutes {
		duration = minVisualMinutes
	}

	return TimelinePosition{
		TopPercent:    float64(startMin) / minutesPerDay * 100,
		HeightPercent: float64(duration) / minutesPerDay * 100,
	}
}

// ParseClock validates an "HH:MM" clock string at the boundary and returns
// minutes since midnight.
func ParseClock(s string) (int, error) {
	hh, mm, ok := splitClock(s)
	if !ok || hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return hh*60 + mm, nil
}

// clockMinutes is the lenient internal variant: malformed input maps to 0
// (midnight) since positioning assumes already-validated events.
func clockMinutes(s string) int {
	hh, mm, ok := splitClock(s)
	if !ok {
		return 0
	}
	return hh*60 + mm
}

func splitClock(s string) (hh, mm int, ok bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	hh, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	mm, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return hh, mm, true
}
