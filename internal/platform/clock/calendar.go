package clock

import "time"

// Day formats t as a calendar date in loc.
func Day(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// CalendarDays returns the number of calendar days from "from" to "to" as
// seen in loc, ignoring the time of day. Daylight-saving shifts do not
// affect the count.
func CalendarDays(from, to time.Time, loc *time.Location) int {
	fy, fm, fd := from.In(loc).Date()
	ty, tm, td := to.In(loc).Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
