package notify

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func TestExpiryGuard(t *testing.T) {
	tests := []struct {
		dueIn  int
		key    string
		firing bool
	}{
		{31, "", false},
		{30, "d30", true},
		{29, "", false},
		{15, "d15", true},
		{7, "d7", true},
		{3, "d3", true},
		{1, "", false},
		{0, "", false},
		{-1, "", false},
	}
	for _, tt := range tests {
		g := ExpiryGuard{DueAt: testNow.AddDate(0, 0, tt.dueIn), Thresholds: DocumentThresholds, Loc: time.UTC}
		key, ok := g.Check(testNow)
		if ok != tt.firing || key != tt.key {
			t.Errorf("dueIn=%d: got (%q, %v), want (%q, %v)", tt.dueIn, key, ok, tt.key, tt.firing)
		}
	}
}

func TestExpiryGuard_InsuranceSixtyDays(t *testing.T) {
	g := ExpiryGuard{DueAt: testNow.AddDate(0, 0, 60), Thresholds: InsuranceThresholds, Loc: time.UTC}
	if key, ok := g.Check(testNow); !ok || key != "d60" {
		t.Errorf("got (%q, %v), want d60", key, ok)
	}
	g.Thresholds = DocumentThresholds
	if _, ok := g.Check(testNow); ok {
		t.Error("documents do not fire at 60 days")
	}
}

func TestExpiryGuard_IgnoresTimeOfDay(t *testing.T) {
	due := time.Date(2026, 3, 17, 0, 5, 0, 0, time.UTC)
	g := ExpiryGuard{DueAt: due, Thresholds: DocumentThresholds, Loc: time.UTC}
	for _, hour := range []int{0, 9, 23} {
		now := time.Date(2026, 3, 10, hour, 59, 0, 0, time.UTC)
		if key, ok := g.Check(now); !ok || key != "d7" {
			t.Errorf("hour %d: got (%q, %v), want d7", hour, key, ok)
		}
	}
}

func TestDoseGuard(t *testing.T) {
	tests := []struct {
		lead   time.Duration
		key    string
		firing bool
	}{
		{-time.Minute, "", false},
		{0, "immediate", true},
		{10 * time.Minute, "immediate", true},
		{15 * time.Minute, "immediate", true},
		{16 * time.Minute, "", false},
		{44 * time.Minute, "", false},
		{45 * time.Minute, "advance", true},
		{60 * time.Minute, "advance", true},
		{75 * time.Minute, "advance", true},
		{76 * time.Minute, "", false},
	}
	for _, tt := range tests {
		key, ok := DoseGuard{ScheduledAt: testNow.Add(tt.lead)}.Check(testNow)
		if ok != tt.firing || key != tt.key {
			t.Errorf("lead=%s: got (%q, %v), want (%q, %v)", tt.lead, key, ok, tt.key, tt.firing)
		}
	}
}

func TestOncePerDay(t *testing.T) {
	if key, ok := OncePerDay("welcome").Check(testNow); !ok || key != "welcome" {
		t.Errorf("got (%q, %v)", key, ok)
	}
}

func TestDoseGuard_SendDayIsScheduledDay(t *testing.T) {
	g := DoseGuard{ScheduledAt: time.Date(2026, 3, 11, 0, 5, 0, 0, time.UTC)}
	if got := g.SendDay(time.UTC); got != "2026-03-11" {
		t.Errorf("SendDay = %q, want 2026-03-11", got)
	}
	cst := time.FixedZone("CST", -6*3600)
	if got := g.SendDay(cst); got != "2026-03-10" {
		t.Errorf("SendDay in CST = %q, want 2026-03-10", got)
	}
}
