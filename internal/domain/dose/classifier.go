package dose

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Urgency buckets a dose by how far its scheduled instant is from now.
type Urgency string

const (
	UrgencyMissed   Urgency = "missed"
	UrgencyDue      Urgency = "due"
	UrgencySoon     Urgency = "soon"
	UrgencyUpcoming Urgency = "upcoming"
)

const (
	dueTolerance = 60 * time.Minute
	soonHorizon  = 120 * time.Minute
	progressSpan = 1440
)

// Classify places scheduledAt relative to now. Boundaries are inclusive on
// the due side: exactly 60 minutes late or early is still due.
func Classify(scheduledAt, now time.Time) Urgency {
	diff := scheduledAt.Sub(now)
	switch {
	case diff < -dueTolerance:
		return UrgencyMissed
	case diff <= dueTolerance:
		return UrgencyDue
	case diff <= soonHorizon:
		return UrgencySoon
	default:
		return UrgencyUpcoming
	}
}

// Progress is the countdown shown next to a dose.
type Progress struct {
	Percent float64 `json:"percent"`
	Label   string  `json:"label"`
}

// TimeProgress fills up over the 24 hours before scheduledAt and reads 100
// once the instant has passed.
func TimeProgress(scheduledAt, now time.Time) Progress {
	diff := int(scheduledAt.Sub(now) / time.Minute)
	if scheduledAt.Before(now) {
		if diff == 0 {
			diff = -1
		}
		return Progress{Percent: 100, Label: "Hace " + FormatMinutes(-diff)}
	}
	pct := float64(progressSpan-diff) / progressSpan * 100
	return Progress{Percent: math.Max(0, math.Min(100, pct)), Label: "En " + FormatMinutes(diff)}
}

// DelayMinutes rounds the signed difference between taking and scheduling
// a dose to whole minutes, halves rounding up.
func DelayMinutes(scheduledAt, takenAt time.Time) int {
	return int(math.Floor(takenAt.Sub(scheduledAt).Minutes() + 0.5))
}

// FormatMinutes renders a non-negative minute count as "45min", "1h 35min"
// or "1d 1h".
func FormatMinutes(m int) string {
	if m < 0 {
		m = -m
	}
	switch {
	case m < 60:
		return fmt.Sprintf("%dmin", m)
	case m < 1440:
		s := fmt.Sprintf("%dh", m/60)
		if rem := m % 60; rem != 0 {
			s += fmt.Sprintf(" %dmin", rem)
		}
		return s
	default:
		parts := []string{fmt.Sprintf("%dd", m/1440)}
		if h := (m % 1440) / 60; h != 0 {
			parts = append(parts, fmt.Sprintf("%dh", h))
		}
		if rem := m % 60; rem != 0 {
			parts = append(parts, fmt.Sprintf("%dmin", rem))
		}
		return strings.Join(parts, " ")
	}
}

// FormatDelay describes punctuality: "on time", "1h 35min late",
// "30min early".
func FormatDelay(delay *int) string {
	if delay == nil || *delay == 0 {
		return "on time"
	}
	if *delay > 0 {
		return FormatMinutes(*delay) + " late"
	}
	return FormatMinutes(-*delay) + " early"
}
