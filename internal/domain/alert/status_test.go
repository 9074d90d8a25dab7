package alert

import (
	"errors"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		src      Source
		from, to Status
		want     bool
	}{
		{SourceReminder, StatusPending, StatusCompleted, true},
		{SourceReminder, StatusPending, StatusSnoozed, true},
		{SourceReminder, StatusSnoozed, StatusSnoozed, true},
		{SourceReminder, StatusSnoozed, StatusCompleted, true},
		{SourceReminder, StatusPending, StatusCancelled, true},
		{SourceCustomAlert, StatusPending, StatusCancelled, false},
		{SourceCustomAlert, StatusPending, StatusCompleted, true},
		{SourceReminder, StatusCompleted, StatusPending, false},
		{SourceReminder, StatusCancelled, StatusSnoozed, false},
		{SourceReminder, StatusCompleted, StatusCompleted, false},
		{SourceCustomAlert, StatusInfo, StatusCompleted, false},
		{SourceCustomAlert, StatusInfo, StatusSnoozed, false},
		{SourceReminder, StatusPending, StatusInfo, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.src, tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s -> %s) = %v, want %v", tt.src, tt.from, tt.to, got, tt.want)
		}
	}
}

func TestAllowedFrom_Errors(t *testing.T) {
	if _, err := allowedFrom(SourceCustomAlert, StatusCancelled); !errors.Is(err, ErrUnsupportedSource) {
		t.Errorf("expected ErrUnsupportedSource, got %v", err)
	}
	if _, err := allowedFrom(SourceReminder, StatusPending); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestParseSnooze(t *testing.T) {
	for opt, want := range map[string]time.Duration{
		"1h": time.Hour,
		"3h": 3 * time.Hour,
		"1d": 24 * time.Hour,
		"3d": 72 * time.Hour,
		"1w": 168 * time.Hour,
	} {
		got, err := ParseSnooze(opt)
		if err != nil {
			t.Fatalf("ParseSnooze(%q): %v", opt, err)
		}
		if got != want {
			t.Errorf("ParseSnooze(%q) = %s, want %s", opt, got, want)
		}
	}
	for _, bad := range []string{"", "2h", "1m", "forever"} {
		if _, err := ParseSnooze(bad); !errors.Is(err, ErrValidation) {
			t.Errorf("ParseSnooze(%q): expected ErrValidation, got %v", bad, err)
		}
	}
}

func TestDisplayStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	tests := []struct {
		name    string
		alert   Alert
		want    Status
		wantDue bool
	}{
		{"snoozed future", Alert{Status: StatusSnoozed, TriggerDate: &future}, StatusSnoozed, false},
		{"snoozed elapsed", Alert{Status: StatusSnoozed, TriggerDate: &past}, StatusPending, true},
		{"snoozed exactly now", Alert{Status: StatusSnoozed, TriggerDate: &now}, StatusPending, true},
		{"pending no trigger", Alert{Status: StatusPending}, StatusPending, true},
		{"pending future trigger", Alert{Status: StatusPending, TriggerDate: &future}, StatusPending, false},
		{"completed", Alert{Status: StatusCompleted, TriggerDate: &past}, StatusCompleted, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayStatus(&tt.alert, now); got != tt.want {
				t.Errorf("DisplayStatus = %s, want %s", got, tt.want)
			}
			if got := IsDue(&tt.alert, now); got != tt.wantDue {
				t.Errorf("IsDue = %v, want %v", got, tt.wantDue)
			}
		})
	}
}
