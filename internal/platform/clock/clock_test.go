package clock

import (
	"testing"
	"time"
)

func TestManual_Advance(t *testing.T) {
	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	m := NewManual(start)
	m.Advance(90 * time.Minute)
	if got := m.Now(); !got.Equal(start.Add(90 * time.Minute)) {
		t.Errorf("expected %v, got %v", start.Add(90*time.Minute), got)
	}
	m.Set(start)
	if !m.Now().Equal(start) {
		t.Errorf("expected clock reset to %v", start)
	}
}

func TestFixed_Now(t *testing.T) {
	at := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	c := Fixed{T: at}
	if !c.Now().Equal(at) {
		t.Errorf("expected %v, got %v", at, c.Now())
	}
}
