package alert

import (
	"fmt"
	"time"
)

// SnoozeDurations are the snooze options offered to users.
var SnoozeDurations = map[string]time.Duration{
	"1h": time.Hour,
	"3h": 3 * time.Hour,
	"1d": 24 * time.Hour,
	"3d": 3 * 24 * time.Hour,
	"1w": 7 * 24 * time.Hour,
}

// ParseSnooze resolves a snooze option such as "3h".
func ParseSnooze(s string) (time.Duration, error) {
	d, ok := SnoozeDurations[s]
	if !ok {
		return 0, fmt.Errorf("%w: invalid snooze duration %q (use 1h, 3h, 1d, 3d or 1w)", ErrValidation, s)
	}
	return d, nil
}

// allowedFrom lists the stored statuses a row may be in to move to "to".
// Info alerts never transition; terminal statuses are final.
func allowedFrom(src Source, to Status) ([]Status, error) {
	switch to {
	case StatusCompleted, StatusSnoozed:
		return []Status{StatusPending, StatusSnoozed}, nil
	case StatusCancelled:
		if src != SourceReminder {
			return nil, fmt.Errorf("%w: %s alerts cannot be cancelled", ErrUnsupportedSource, src)
		}
		return []Status{StatusPending, StatusSnoozed}, nil
	default:
		return nil, fmt.Errorf("%w: cannot move an alert to %q", ErrInvalidTransition, to)
	}
}

// CanTransition reports whether an alert of src in status from may move to to.
func CanTransition(src Source, from, to Status) bool {
	allowed, err := allowedFrom(src, to)
	if err != nil {
		return false
	}
	for _, s := range allowed {
		if s == from {
			return true
		}
	}
	return false
}

// DisplayStatus is the status shown to users: a snoozed alert whose trigger
// has passed is pending again.
func DisplayStatus(a *Alert, now time.Time) Status {
	if a.Status == StatusSnoozed && a.TriggerDate != nil && !now.Before(*a.TriggerDate) {
		return StatusPending
	}
	return a.Status
}

// IsDue reports whether the alert's trigger date, if any, has been reached.
func IsDue(a *Alert, now time.Time) bool {
	return a.TriggerDate == nil || !now.Before(*a.TriggerDate)
}
