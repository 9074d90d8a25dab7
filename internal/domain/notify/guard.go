package notify

import (
	"fmt"
	"time"

	"github.com/ehr/alerting/internal/platform/clock"
)

// Guard is the pre-filter in front of the send ledger. It reports the
// threshold or window the current instant falls in, which becomes part of
// the send key. The ledger claim remains the source of truth.
type Guard interface {
	Check(now time.Time) (key string, ok bool)
}

// Day thresholds at which expiry reminders are sent.
var (
	DocumentThresholds  = []int{30, 15, 7, 3}
	VaccineThresholds   = []int{30, 15, 7, 3}
	InsuranceThresholds = []int{60, 30, 15, 7, 3}

	// Appointments get a week-ahead and a day-before message.
	AppointmentThresholds = []int{7, 1}
)

// DayPinned is implemented by guards whose send key belongs to a fixed
// calendar day instead of the day the check runs.
type DayPinned interface {
	SendDay(loc *time.Location) string
}

// ExpiryGuard fires on the calendar days in Thresholds before DueAt.
type ExpiryGuard struct {
	DueAt      time.Time
	Thresholds []int
	Loc        *time.Location
}

func (g ExpiryGuard) Check(now time.Time) (string, bool) {
	days := clock.CalendarDays(now, g.DueAt, g.Loc)
	for _, t := range g.Thresholds {
		if days == t {
			return fmt.Sprintf("d%d", t), true
		}
	}
	return "", false
}

// Dose reminder windows, measured as lead time before the scheduled instant.
const (
	ImmediateWindowEnd = 15 * time.Minute
	AdvanceWindowStart = 45 * time.Minute
	AdvanceWindowEnd   = 75 * time.Minute
)

// DoseGuard fires in the immediate window [0, 15m] and the advance window
// [45m, 75m] before ScheduledAt.
type DoseGuard struct {
	ScheduledAt time.Time
}

func (g DoseGuard) Check(now time.Time) (string, bool) {
	lead := g.ScheduledAt.Sub(now)
	switch {
	case lead >= 0 && lead <= ImmediateWindowEnd:
		return "immediate", true
	case lead >= AdvanceWindowStart && lead <= AdvanceWindowEnd:
		return "advance", true
	default:
		return "", false
	}
}

// SendDay pins both windows to the dose's own day, so polls either side
// of midnight share one key.
func (g DoseGuard) SendDay(loc *time.Location) string {
	return clock.Day(g.ScheduledAt, loc)
}

// OncePerDay always passes; the ledger limits it to one send per day.
type OncePerDay string

func (g OncePerDay) Check(time.Time) (string, bool) {
	return string(g), true
}
